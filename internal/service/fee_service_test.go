package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edunexa/tuition-api/internal/models"
)

type mockFeeRepo struct {
	fees       map[string]models.Fee
	marked     int64
	lastFilter models.FeeFilter
	listTotal  int
}

func (m *mockFeeRepo) List(ctx context.Context, filter models.FeeFilter) ([]models.FeeDetail, int, error) {
	m.lastFilter = filter
	details := make([]models.FeeDetail, 0, len(m.fees))
	for _, f := range m.fees {
		details = append(details, models.FeeDetail{Fee: f})
	}
	return details, m.listTotal, nil
}

func (m *mockFeeRepo) FindByID(ctx context.Context, tuitionID, id string) (*models.FeeDetail, error) {
	if f, ok := m.fees[id]; ok && f.TuitionID == tuitionID {
		return &models.FeeDetail{Fee: f}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockFeeRepo) Create(ctx context.Context, fee *models.Fee) error {
	if m.fees == nil {
		m.fees = make(map[string]models.Fee)
	}
	if fee.ID == "" {
		fee.ID = "generated"
	}
	m.fees[fee.ID] = *fee
	return nil
}

func (m *mockFeeRepo) Update(ctx context.Context, fee *models.Fee) error {
	m.fees[fee.ID] = *fee
	return nil
}

func (m *mockFeeRepo) Delete(ctx context.Context, tuitionID, id string) error {
	if _, ok := m.fees[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.fees, id)
	return nil
}

func (m *mockFeeRepo) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	return m.marked, nil
}

func TestFeeServiceCreate(t *testing.T) {
	repo := &mockFeeRepo{}
	svc := NewFeeService(repo, nil, nil, zap.NewNop())

	fee, err := svc.Create(context.Background(), "t1", CreateFeeRequest{
		StudentID: "s1",
		Label:     "March tuition",
		Amount:    1500,
		DueDate:   time.Date(2026, time.March, 15, 13, 45, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusPending, fee.Status)
	assert.Equal(t, "t1", fee.TuitionID)
	// Due dates are stored at day precision.
	assert.Equal(t, time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC), fee.DueDate)
}

func TestFeeServiceCreateRejectsZeroAmount(t *testing.T) {
	svc := NewFeeService(&mockFeeRepo{}, nil, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), "t1", CreateFeeRequest{
		StudentID: "s1",
		Label:     "March tuition",
		Amount:    0,
		DueDate:   time.Now(),
	})
	require.Error(t, err)
}

func TestFeeServiceRecordPayment(t *testing.T) {
	repo := &mockFeeRepo{fees: map[string]models.Fee{
		"f1": {ID: "f1", TuitionID: "t1", StudentID: "s1", Label: "March", Amount: 1500, Status: models.FeeStatusPending},
	}}
	svc := NewFeeService(repo, nil, nil, zap.NewNop())

	fee, err := svc.RecordPayment(context.Background(), "t1", "f1", RecordPaymentRequest{Method: "upi", ReceiptNo: "R-42"})
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusPaid, fee.Status)
	require.NotNil(t, fee.PaidAt)
	require.NotNil(t, fee.Method)
	assert.Equal(t, "upi", *fee.Method)
	require.NotNil(t, fee.ReceiptNo)
	assert.Equal(t, "R-42", *fee.ReceiptNo)
}

func TestFeeServiceRecordPaymentTwiceConflicts(t *testing.T) {
	repo := &mockFeeRepo{fees: map[string]models.Fee{
		"f1": {ID: "f1", TuitionID: "t1", Status: models.FeeStatusPending},
	}}
	svc := NewFeeService(repo, nil, nil, zap.NewNop())

	_, err := svc.RecordPayment(context.Background(), "t1", "f1", RecordPaymentRequest{Method: "cash"})
	require.NoError(t, err)

	_, err = svc.RecordPayment(context.Background(), "t1", "f1", RecordPaymentRequest{Method: "cash"})
	require.Error(t, err)
}

func TestFeeServiceRecordPaymentWrongTenant(t *testing.T) {
	repo := &mockFeeRepo{fees: map[string]models.Fee{
		"f1": {ID: "f1", TuitionID: "t1", Status: models.FeeStatusPending},
	}}
	svc := NewFeeService(repo, nil, nil, zap.NewNop())

	_, err := svc.RecordPayment(context.Background(), "other", "f1", RecordPaymentRequest{Method: "cash"})
	require.Error(t, err)
}

func TestFeeServiceWaive(t *testing.T) {
	repo := &mockFeeRepo{fees: map[string]models.Fee{
		"f1": {ID: "f1", TuitionID: "t1", Status: models.FeeStatusOverdue},
		"f2": {ID: "f2", TuitionID: "t1", Status: models.FeeStatusPaid},
	}}
	svc := NewFeeService(repo, nil, nil, zap.NewNop())

	fee, err := svc.Waive(context.Background(), "t1", "f1")
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusWaived, fee.Status)

	_, err = svc.Waive(context.Background(), "t1", "f2")
	require.Error(t, err, "paid fees cannot be waived")
}

func TestFeeServiceListNormalizesPagination(t *testing.T) {
	repo := &mockFeeRepo{listTotal: 42}
	svc := NewFeeService(repo, nil, nil, zap.NewNop())

	_, pagination, err := svc.List(context.Background(), models.FeeFilter{TuitionID: "t1", Page: 0, PageSize: 0})
	require.NoError(t, err)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 42, pagination.TotalCount)
}

func TestFeeServiceSweepOverdue(t *testing.T) {
	repo := &mockFeeRepo{marked: 7}
	svc := NewFeeService(repo, nil, nil, zap.NewNop())

	changed, err := svc.SweepOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), changed)
}
