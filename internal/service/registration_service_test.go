package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edunexa/tuition-api/internal/models"
)

type mockRegistrationTuitions struct {
	tuitions map[string]models.Tuition
}

func (m *mockRegistrationTuitions) FindBySlug(ctx context.Context, slug string) (*models.Tuition, error) {
	if t, ok := m.tuitions[slug]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

type mockRegistrationStudents struct {
	rollNos map[string]bool
	created []models.Student
}

func (m *mockRegistrationStudents) ExistsByRollNo(ctx context.Context, tuitionID, rollNo, excludeID string) (bool, error) {
	return m.rollNos[rollNo], nil
}

func (m *mockRegistrationStudents) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = "generated"
	}
	m.created = append(m.created, *student)
	return nil
}

type mockRegistrationAudit struct {
	logs []models.AuditLog
}

func (m *mockRegistrationAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, *log)
	return nil
}

func validRegistration() RegisterStudentRequest {
	return RegisterStudentRequest{
		TuitionSlug:   "Bright-Minds",
		FullName:      "Asha Patil",
		RollNo:        "R-17",
		Gender:        "female",
		GuardianName:  "Leela Patil",
		GuardianPhone: "9876543210",
		Email:         "Asha@Example.com",
	}
}

func newTestRegistrationService(students *mockRegistrationStudents, audit *mockRegistrationAudit, limiter *fixedLimiter) *RegistrationService {
	tuitions := &mockRegistrationTuitions{tuitions: map[string]models.Tuition{
		"bright-minds": {ID: "t1", Name: "Bright Minds", Slug: "bright-minds", Active: true},
	}}
	return NewRegistrationService(tuitions, students, audit, limiter, RegistrationConfig{}, nil, zap.NewNop())
}

func TestRegistrationServiceRegister(t *testing.T) {
	students := &mockRegistrationStudents{rollNos: make(map[string]bool)}
	audit := &mockRegistrationAudit{}
	svc := newTestRegistrationService(students, audit, &fixedLimiter{allowed: true})

	student, err := svc.Register(context.Background(), "203.0.113.7", validRegistration())
	require.NoError(t, err)

	// Self-registered students wait for approval.
	assert.Equal(t, models.StudentStatusPending, student.Status)
	assert.False(t, student.Active)
	assert.Equal(t, "t1", student.TuitionID)
	assert.Equal(t, "asha@example.com", student.Email)

	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionRegistration, audit.logs[0].Action)
	assert.Equal(t, "203.0.113.7", audit.logs[0].IPAddress)
}

func TestRegistrationServiceRegisterUnknownSlug(t *testing.T) {
	svc := newTestRegistrationService(&mockRegistrationStudents{}, &mockRegistrationAudit{}, &fixedLimiter{allowed: true})

	req := validRegistration()
	req.TuitionSlug = "nowhere"
	_, err := svc.Register(context.Background(), "203.0.113.7", req)
	require.Error(t, err)
}

func TestRegistrationServiceRegisterDuplicateRollNo(t *testing.T) {
	students := &mockRegistrationStudents{rollNos: map[string]bool{"R-17": true}}
	svc := newTestRegistrationService(students, &mockRegistrationAudit{}, &fixedLimiter{allowed: true})

	_, err := svc.Register(context.Background(), "203.0.113.7", validRegistration())
	require.Error(t, err)
	assert.Empty(t, students.created)
}

func TestRegistrationServiceRegisterRateLimited(t *testing.T) {
	limiter := &fixedLimiter{allowed: false}
	svc := newTestRegistrationService(&mockRegistrationStudents{}, &mockRegistrationAudit{}, limiter)

	_, err := svc.Register(context.Background(), "203.0.113.7", validRegistration())
	require.Error(t, err)
	require.Len(t, limiter.keys, 1)
	assert.Equal(t, "register:203.0.113.7", limiter.keys[0])
}

func TestRegistrationServiceRegisterValidation(t *testing.T) {
	svc := newTestRegistrationService(&mockRegistrationStudents{}, &mockRegistrationAudit{}, &fixedLimiter{allowed: true})

	req := validRegistration()
	req.GuardianPhone = ""
	_, err := svc.Register(context.Background(), "203.0.113.7", req)
	require.Error(t, err)

	req = validRegistration()
	req.Gender = "unknown"
	_, err = svc.Register(context.Background(), "203.0.113.7", req)
	require.Error(t, err)
}
