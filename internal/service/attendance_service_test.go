package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edunexa/tuition-api/internal/models"
	appErrors "github.com/edunexa/tuition-api/pkg/errors"
)

type mockAttendanceRepo struct {
	records map[string]*models.AttendanceRecordDetail
	upserts []models.AttendanceRecord
	summary *models.AttendanceSummary
}

func newMockAttendanceRepo() *mockAttendanceRepo {
	return &mockAttendanceRepo{records: make(map[string]*models.AttendanceRecordDetail)}
}

func (m *mockAttendanceRepo) List(_ context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, int, error) {
	out := make([]models.AttendanceRecordDetail, 0, len(m.records))
	for _, rec := range m.records {
		if rec.TuitionID == filter.TuitionID {
			out = append(out, *rec)
		}
	}
	return out, len(out), nil
}

func (m *mockAttendanceRepo) FindByID(_ context.Context, tuitionID, id string) (*models.AttendanceRecordDetail, error) {
	rec, ok := m.records[id]
	if !ok || rec.TuitionID != tuitionID {
		return nil, sql.ErrNoRows
	}
	clone := *rec
	return &clone, nil
}

func (m *mockAttendanceRepo) Upsert(_ context.Context, record *models.AttendanceRecord) error {
	m.upserts = append(m.upserts, *record)
	if rec, ok := m.records[record.ID]; ok {
		rec.AttendanceRecord = *record
	}
	return nil
}

func (m *mockAttendanceRepo) BulkUpsert(_ context.Context, records []models.AttendanceRecord) error {
	m.upserts = append(m.upserts, records...)
	return nil
}

func (m *mockAttendanceRepo) Delete(_ context.Context, tuitionID, id string) error {
	rec, ok := m.records[id]
	if !ok || rec.TuitionID != tuitionID {
		return sql.ErrNoRows
	}
	delete(m.records, id)
	return nil
}

func (m *mockAttendanceRepo) Summary(_ context.Context, _, _ string, _, _ *time.Time) (*models.AttendanceSummary, error) {
	if m.summary == nil {
		return nil, errors.New("summary unavailable")
	}
	return m.summary, nil
}

func TestAttendanceServiceMark(t *testing.T) {
	repo := newMockAttendanceRepo()
	svc := NewAttendanceService(repo, nil, nil, nil)

	marked, err := svc.Mark(context.Background(), "t1", "u1", MarkAttendanceRequest{
		SubjectID: "sub1",
		FacultyID: "f1",
		Date:      time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC),
		Marks: []models.AttendanceMark{
			{StudentID: "s1", Status: models.AttendanceStatusPresent},
			{StudentID: "s2", Status: models.AttendanceStatusAbsent},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, marked)
	require.Len(t, repo.upserts, 2)

	first := repo.upserts[0]
	assert.Equal(t, "t1", first.TuitionID)
	assert.Equal(t, "sub1", first.SubjectID)
	assert.Equal(t, day(2026, time.March, 10), first.Date)
	require.NotNil(t, first.MarkedBy)
	assert.Equal(t, "u1", *first.MarkedBy)
}

func TestAttendanceServiceMarkRejectsUnknownStatus(t *testing.T) {
	repo := newMockAttendanceRepo()
	svc := NewAttendanceService(repo, nil, nil, nil)

	_, err := svc.Mark(context.Background(), "t1", "u1", MarkAttendanceRequest{
		SubjectID: "sub1",
		FacultyID: "f1",
		Date:      day(2026, time.March, 10),
		Marks:     []models.AttendanceMark{{StudentID: "s1", Status: "sleeping"}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.upserts)
}

func TestAttendanceServiceMarkRequiresMarks(t *testing.T) {
	svc := NewAttendanceService(newMockAttendanceRepo(), nil, nil, nil)

	_, err := svc.Mark(context.Background(), "t1", "u1", MarkAttendanceRequest{
		SubjectID: "sub1",
		FacultyID: "f1",
		Date:      day(2026, time.March, 10),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceUpdate(t *testing.T) {
	repo := newMockAttendanceRepo()
	repo.records["a1"] = &models.AttendanceRecordDetail{
		AttendanceRecord: models.AttendanceRecord{
			ID:        "a1",
			TuitionID: "t1",
			StudentID: "s1",
			Status:    models.AttendanceStatusAbsent,
		},
		StudentName: "Asha Patil",
	}
	svc := NewAttendanceService(repo, nil, nil, nil)

	notes := "arrived after roll call"
	updated, err := svc.Update(context.Background(), "t1", "a1", models.AttendanceStatusLate, &notes)
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusLate, updated.Status)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, notes, *updated.Notes)
	assert.Equal(t, "Asha Patil", updated.StudentName)
}

func TestAttendanceServiceUpdateNotFound(t *testing.T) {
	svc := NewAttendanceService(newMockAttendanceRepo(), nil, nil, nil)

	_, err := svc.Update(context.Background(), "t1", "missing", models.AttendanceStatusPresent, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceUpdateWrongTenant(t *testing.T) {
	repo := newMockAttendanceRepo()
	repo.records["a1"] = &models.AttendanceRecordDetail{
		AttendanceRecord: models.AttendanceRecord{ID: "a1", TuitionID: "t1", Status: models.AttendanceStatusPresent},
	}
	svc := NewAttendanceService(repo, nil, nil, nil)

	_, err := svc.Update(context.Background(), "t2", "a1", models.AttendanceStatusAbsent, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceDelete(t *testing.T) {
	repo := newMockAttendanceRepo()
	repo.records["a1"] = &models.AttendanceRecordDetail{
		AttendanceRecord: models.AttendanceRecord{ID: "a1", TuitionID: "t1", Status: models.AttendanceStatusPresent},
	}
	svc := NewAttendanceService(repo, nil, nil, nil)

	require.NoError(t, svc.Delete(context.Background(), "t1", "a1"))
	assert.Empty(t, repo.records)

	err := svc.Delete(context.Background(), "t1", "a1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceSummary(t *testing.T) {
	repo := newMockAttendanceRepo()
	repo.summary = &models.AttendanceSummary{Present: 18, Absent: 2, Late: 1, Total: 21, Percent: 90.48}
	svc := NewAttendanceService(repo, nil, nil, nil)

	summary, err := svc.Summary(context.Background(), "t1", "s1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 18, summary.Present)
	assert.InDelta(t, 90.48, summary.Percent, 0.001)
}

func TestTruncateToDay(t *testing.T) {
	got := truncateToDay(time.Date(2026, time.March, 10, 23, 59, 59, 999, time.FixedZone("IST", 5*3600+1800)))
	assert.Equal(t, day(2026, time.March, 10), got)
}
