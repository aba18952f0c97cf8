package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edunexa/tuition-api/internal/models"
	appErrors "github.com/edunexa/tuition-api/pkg/errors"
)

type mockStudentRepo struct {
	students map[string]*models.StudentDetail
	nextID   int
}

func newMockStudentRepo() *mockStudentRepo {
	return &mockStudentRepo{students: make(map[string]*models.StudentDetail)}
}

func (m *mockStudentRepo) List(_ context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	out := make([]models.StudentDetail, 0, len(m.students))
	for _, st := range m.students {
		if st.TuitionID == filter.TuitionID {
			out = append(out, *st)
		}
	}
	return out, len(out), nil
}

func (m *mockStudentRepo) FindByID(_ context.Context, tuitionID, id string) (*models.StudentDetail, error) {
	st, ok := m.students[id]
	if !ok || st.TuitionID != tuitionID {
		return nil, sql.ErrNoRows
	}
	clone := *st
	return &clone, nil
}

func (m *mockStudentRepo) ExistsByRollNo(_ context.Context, tuitionID, rollNo, excludeID string) (bool, error) {
	for _, st := range m.students {
		if st.TuitionID == tuitionID && st.RollNo == rollNo && st.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStudentRepo) Create(_ context.Context, student *models.Student) error {
	m.nextID++
	student.ID = "s" + string(rune('0'+m.nextID))
	m.students[student.ID] = &models.StudentDetail{Student: *student}
	return nil
}

func (m *mockStudentRepo) Update(_ context.Context, student *models.Student) error {
	existing, ok := m.students[student.ID]
	if !ok || existing.TuitionID != student.TuitionID {
		return sql.ErrNoRows
	}
	existing.Student = *student
	return nil
}

func (m *mockStudentRepo) Delete(_ context.Context, tuitionID, id string) error {
	st, ok := m.students[id]
	if !ok || st.TuitionID != tuitionID {
		return sql.ErrNoRows
	}
	delete(m.students, id)
	return nil
}

func TestStudentServiceCreate(t *testing.T) {
	repo := newMockStudentRepo()
	svc := NewStudentService(repo, nil, nil)

	student, err := svc.Create(context.Background(), "t1", CreateStudentRequest{
		RollNo:        "R-101",
		FullName:      "Asha Patil",
		GuardianName:  "Leela Patil",
		GuardianPhone: "+91-9000000001",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, student.ID)
	assert.Equal(t, models.StudentStatusEnrolled, student.Status)
	assert.True(t, student.Active)
}

func TestStudentServiceCreateDuplicateRollNo(t *testing.T) {
	repo := newMockStudentRepo()
	svc := NewStudentService(repo, nil, nil)

	_, err := svc.Create(context.Background(), "t1", CreateStudentRequest{RollNo: "R-101", FullName: "Asha Patil"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), "t1", CreateStudentRequest{RollNo: "R-101", FullName: "Ravi Kumar"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	// same roll number in another tuition is fine
	_, err = svc.Create(context.Background(), "t2", CreateStudentRequest{RollNo: "R-101", FullName: "Ravi Kumar"})
	require.NoError(t, err)
}

func TestStudentServiceCreateValidation(t *testing.T) {
	svc := NewStudentService(newMockStudentRepo(), nil, nil)

	_, err := svc.Create(context.Background(), "t1", CreateStudentRequest{FullName: "No Roll"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), "t1", CreateStudentRequest{RollNo: "R-102", FullName: "Bad Email", Email: "not-an-email"})
	require.Error(t, err)
}

func TestStudentServiceUpdate(t *testing.T) {
	repo := newMockStudentRepo()
	svc := NewStudentService(repo, nil, nil)

	student, err := svc.Create(context.Background(), "t1", CreateStudentRequest{RollNo: "R-101", FullName: "Asha Patil"})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), "t1", student.ID, UpdateStudentRequest{
		RollNo:   "R-101",
		FullName: "Asha R Patil",
		Status:   models.StudentStatusLeft,
		Active:   false,
	})
	require.NoError(t, err)
	assert.Equal(t, "Asha R Patil", updated.FullName)
	assert.Equal(t, models.StudentStatusLeft, updated.Status)
	assert.False(t, updated.Active)
}

func TestStudentServiceUpdateKeepsOwnRollNo(t *testing.T) {
	repo := newMockStudentRepo()
	svc := NewStudentService(repo, nil, nil)

	student, err := svc.Create(context.Background(), "t1", CreateStudentRequest{RollNo: "R-101", FullName: "Asha Patil"})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), "t1", student.ID, UpdateStudentRequest{
		RollNo:   "R-101",
		FullName: "Asha Patil",
		Status:   models.StudentStatusEnrolled,
		Active:   true,
	})
	require.NoError(t, err)
}

func TestStudentServiceUpdateRejectsUnknownStatus(t *testing.T) {
	repo := newMockStudentRepo()
	svc := NewStudentService(repo, nil, nil)

	student, err := svc.Create(context.Background(), "t1", CreateStudentRequest{RollNo: "R-101", FullName: "Asha Patil"})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), "t1", student.ID, UpdateStudentRequest{
		RollNo:   "R-101",
		FullName: "Asha Patil",
		Status:   "graduated",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceGetNotFound(t *testing.T) {
	svc := NewStudentService(newMockStudentRepo(), nil, nil)

	_, err := svc.Get(context.Background(), "t1", "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceDelete(t *testing.T) {
	repo := newMockStudentRepo()
	svc := NewStudentService(repo, nil, nil)

	student, err := svc.Create(context.Background(), "t1", CreateStudentRequest{RollNo: "R-101", FullName: "Asha Patil"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), "t1", student.ID))
	err = svc.Delete(context.Background(), "t1", student.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
