package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/edunexa/tuition-api/internal/models"
	appErrors "github.com/edunexa/tuition-api/pkg/errors"
)

type provisionTuitionRepository interface {
	FindBySlug(ctx context.Context, slug string) (*models.Tuition, error)
	Create(ctx context.Context, tuition *models.Tuition) error
}

type provisionUserRepository interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type provisionStudentRepository interface {
	FindByID(ctx context.Context, tuitionID, id string) (*models.StudentDetail, error)
}

// ProvisionTuitionRequest creates a tenant with its first admin account.
type ProvisionTuitionRequest struct {
	Name          string `json:"name" validate:"required,min=2,max=120"`
	Slug          string `json:"slug" validate:"required,min=2,max=60,lowercase"`
	Address       string `json:"address" validate:"omitempty,max=300"`
	Phone         string `json:"phone" validate:"omitempty,max=20"`
	Email         string `json:"email" validate:"omitempty,email"`
	AdminEmail    string `json:"admin_email" validate:"required,email"`
	AdminName     string `json:"admin_name" validate:"required,min=2,max=120"`
	AdminPassword string `json:"admin_password" validate:"required,min=8,max=72"`
}

// ProvisionStudentUserRequest links a login account to an existing student.
type ProvisionStudentUserRequest struct {
	StudentID string `json:"student_id" validate:"required,uuid4"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	Parent    bool   `json:"parent"`
}

// ProvisionService creates tenants and their login accounts.
type ProvisionService struct {
	tuitions  provisionTuitionRepository
	users     provisionUserRepository
	students  provisionStudentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProvisionService constructs the provisioning service.
func NewProvisionService(
	tuitions provisionTuitionRepository,
	users provisionUserRepository,
	students provisionStudentRepository,
	validate *validator.Validate,
	logger *zap.Logger,
) *ProvisionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProvisionService{
		tuitions:  tuitions,
		users:     users,
		students:  students,
		validator: validate,
		logger:    logger,
	}
}

// ProvisionTuition creates a tenant plus its admin user. Superadmin only,
// enforced by middleware.
func (s *ProvisionService) ProvisionTuition(ctx context.Context, actorID string, req ProvisionTuitionRequest) (*models.Tuition, *models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.WrapErr(err, appErrors.ErrValidation)
	}
	slug := strings.ToLower(strings.TrimSpace(req.Slug))

	if _, err := s.tuitions.FindBySlug(ctx, slug); err == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrConflict, "tuition slug already in use")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, appErrors.WrapErr(err, appErrors.ErrInternal)
	}

	adminEmail := strings.ToLower(strings.TrimSpace(req.AdminEmail))
	exists, err := s.users.ExistsByEmail(ctx, adminEmail)
	if err != nil {
		return nil, nil, appErrors.WrapErr(err, appErrors.ErrInternal)
	}
	if exists {
		return nil, nil, appErrors.Clone(appErrors.ErrConflict, "admin email already in use")
	}

	tuition := &models.Tuition{
		Name:    req.Name,
		Slug:    slug,
		Address: req.Address,
		Phone:   req.Phone,
		Email:   req.Email,
		Active:  true,
	}
	if err := s.tuitions.Create(ctx, tuition); err != nil {
		return nil, nil, appErrors.WrapErr(err, appErrors.ErrInternal)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, appErrors.WrapErr(err, appErrors.ErrInternal)
	}
	admin := &models.User{
		TuitionID:    tuition.ID,
		Email:        adminEmail,
		PasswordHash: string(hash),
		FullName:     req.AdminName,
		Role:         models.RoleAdmin,
		Active:       true,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return nil, nil, appErrors.WrapErr(err, appErrors.ErrInternal)
	}

	s.writeAudit(ctx, &tuition.ID, actorID, "tuitions", tuition.ID)
	s.logger.Info("tuition provisioned",
		zap.String("tuition_id", tuition.ID),
		zap.String("slug", tuition.Slug))
	return tuition, admin, nil
}

// ProvisionStudentUser creates a STUDENT (or PARENT) login linked to a student row.
func (s *ProvisionService) ProvisionStudentUser(ctx context.Context, tuitionID, actorID string, req ProvisionStudentUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WrapErr(err, appErrors.ErrValidation)
	}

	student, err := s.students.FindByID(ctx, tuitionID, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.WrapErr(err, appErrors.ErrInternal)
	}
	if student.Status != models.StudentStatusEnrolled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student must be enrolled before account creation")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, appErrors.WrapErr(err, appErrors.ErrInternal)
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already in use")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.WrapErr(err, appErrors.ErrInternal)
	}
	role := models.RoleStudent
	fullName := student.FullName
	if req.Parent {
		role = models.RoleParent
		fullName = student.GuardianName
	}
	user := &models.User{
		TuitionID:    tuitionID,
		Email:        email,
		PasswordHash: string(hash),
		FullName:     fullName,
		Role:         role,
		StudentID:    &student.ID,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, appErrors.WrapErr(err, appErrors.ErrInternal)
	}

	s.writeAudit(ctx, &tuitionID, actorID, "users", user.ID)
	s.logger.Info("student account provisioned",
		zap.String("tuition_id", tuitionID),
		zap.String("student_id", student.ID),
		zap.String("user_id", user.ID),
		zap.String("role", string(role)))
	return user, nil
}

// ListAccounts returns login accounts for a tuition with pagination metadata.
func (s *ProvisionService) ListAccounts(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.WrapErr(err, appErrors.ErrInternal)
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return users, pagination, nil
}

func (s *ProvisionService) writeAudit(ctx context.Context, tuitionID *string, actorID, resource, resourceID string) {
	log := &models.AuditLog{
		TuitionID:  tuitionID,
		UserID:     &actorID,
		Action:     models.AuditActionProvision,
		Resource:   resource,
		ResourceID: &resourceID,
	}
	if err := s.users.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to write provision audit log", zap.Error(err))
	}
}
