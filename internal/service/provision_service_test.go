package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/edunexa/tuition-api/internal/models"
)

type mockProvisionTuitions struct {
	bySlug  map[string]models.Tuition
	created []models.Tuition
}

func (m *mockProvisionTuitions) FindBySlug(ctx context.Context, slug string) (*models.Tuition, error) {
	if t, ok := m.bySlug[slug]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockProvisionTuitions) Create(ctx context.Context, tuition *models.Tuition) error {
	if tuition.ID == "" {
		tuition.ID = "t-new"
	}
	m.created = append(m.created, *tuition)
	return nil
}

type mockProvisionUsers struct {
	emails  map[string]bool
	created []models.User
	logs    []models.AuditLog
}

func (m *mockProvisionUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return m.emails[email], nil
}

func (m *mockProvisionUsers) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "u-new"
	}
	m.created = append(m.created, *user)
	return nil
}

func (m *mockProvisionUsers) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	return m.created, len(m.created), nil
}

func (m *mockProvisionUsers) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, *log)
	return nil
}

type mockProvisionStudents struct {
	students map[string]models.StudentDetail
}

func (m *mockProvisionStudents) FindByID(ctx context.Context, tuitionID, id string) (*models.StudentDetail, error) {
	if s, ok := m.students[id]; ok && s.TuitionID == tuitionID {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

const provisionStudentID = "5f0c2ab1-44d2-4a7a-9c63-0b2f1e8d7a90"

func newTestProvisionService() (*ProvisionService, *mockProvisionTuitions, *mockProvisionUsers) {
	tuitions := &mockProvisionTuitions{bySlug: map[string]models.Tuition{
		"taken": {ID: "t1", Slug: "taken"},
	}}
	users := &mockProvisionUsers{emails: make(map[string]bool)}
	students := &mockProvisionStudents{students: map[string]models.StudentDetail{
		provisionStudentID: {Student: models.Student{
			ID: provisionStudentID, TuitionID: "t1", FullName: "Asha Patil",
			GuardianName: "Leela Patil", Status: models.StudentStatusEnrolled,
		}},
	}}
	return NewProvisionService(tuitions, users, students, nil, zap.NewNop()), tuitions, users
}

func validProvisionTuition() ProvisionTuitionRequest {
	return ProvisionTuitionRequest{
		Name:          "Bright Minds",
		Slug:          "bright-minds",
		AdminEmail:    "Owner@Example.com",
		AdminName:     "Owner",
		AdminPassword: "changeme123",
	}
}

func TestProvisionServiceProvisionTuition(t *testing.T) {
	svc, tuitions, users := newTestProvisionService()

	tuition, admin, err := svc.ProvisionTuition(context.Background(), "root", validProvisionTuition())
	require.NoError(t, err)

	assert.True(t, tuition.Active)
	assert.Equal(t, "bright-minds", tuition.Slug)
	require.Len(t, tuitions.created, 1)

	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.Equal(t, "owner@example.com", admin.Email)
	assert.Equal(t, tuition.ID, admin.TuitionID)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("changeme123")))

	require.Len(t, users.logs, 1)
	assert.Equal(t, models.AuditActionProvision, users.logs[0].Action)
}

func TestProvisionServiceProvisionTuitionSlugTaken(t *testing.T) {
	svc, _, _ := newTestProvisionService()

	req := validProvisionTuition()
	req.Slug = "taken"
	_, _, err := svc.ProvisionTuition(context.Background(), "root", req)
	require.Error(t, err)
}

func TestProvisionServiceProvisionTuitionEmailTaken(t *testing.T) {
	svc, _, users := newTestProvisionService()
	users.emails["owner@example.com"] = true

	_, _, err := svc.ProvisionTuition(context.Background(), "root", validProvisionTuition())
	require.Error(t, err)
}

func TestProvisionServiceProvisionStudentUser(t *testing.T) {
	svc, _, users := newTestProvisionService()

	user, err := svc.ProvisionStudentUser(context.Background(), "t1", "admin1", ProvisionStudentUserRequest{
		StudentID: provisionStudentID,
		Email:     "asha@example.com",
		Password:  "studpass123",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.Equal(t, "Asha Patil", user.FullName)
	require.NotNil(t, user.StudentID)
	assert.Equal(t, provisionStudentID, *user.StudentID)
	require.Len(t, users.created, 1)
}

func TestProvisionServiceProvisionParentUser(t *testing.T) {
	svc, _, _ := newTestProvisionService()

	user, err := svc.ProvisionStudentUser(context.Background(), "t1", "admin1", ProvisionStudentUserRequest{
		StudentID: provisionStudentID,
		Email:     "leela@example.com",
		Password:  "parentpass1",
		Parent:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleParent, user.Role)
	assert.Equal(t, "Leela Patil", user.FullName)
}

func TestProvisionServiceProvisionStudentUserRequiresEnrollment(t *testing.T) {
	svc, _, _ := newTestProvisionService()
	pendingID := "0d9c5a3e-7f21-4b8a-9d4c-6e5f1a2b3c4d"
	svcStudents := svc.students.(*mockProvisionStudents)
	svcStudents.students[pendingID] = models.StudentDetail{Student: models.Student{
		ID: pendingID, TuitionID: "t1", Status: models.StudentStatusPending,
	}}

	_, err := svc.ProvisionStudentUser(context.Background(), "t1", "admin1", ProvisionStudentUserRequest{
		StudentID: pendingID,
		Email:     "pending@example.com",
		Password:  "studpass123",
	})
	require.Error(t, err)
}

func TestProvisionServiceListAccountsNormalizesPagination(t *testing.T) {
	svc, _, users := newTestProvisionService()
	users.created = append(users.created, models.User{ID: "u1"})

	accounts, pagination, err := svc.ListAccounts(context.Background(), models.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
}
