package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edunexa/tuition-api/internal/models"
	appErrors "github.com/edunexa/tuition-api/pkg/errors"
)

type registrationTuitionRepository interface {
	FindBySlug(ctx context.Context, slug string) (*models.Tuition, error)
}

type registrationStudentRepository interface {
	ExistsByRollNo(ctx context.Context, tuitionID, rollNo, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
}

type registrationAuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type registrationRateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RegisterStudentRequest is the public self-registration payload.
type RegisterStudentRequest struct {
	TuitionSlug   string `json:"tuition_slug" validate:"required"`
	FullName      string `json:"full_name" validate:"required,min=2,max=120"`
	RollNo        string `json:"roll_no" validate:"required,max=32"`
	Gender        string `json:"gender" validate:"omitempty,oneof=male female other"`
	GuardianName  string `json:"guardian_name" validate:"required,max=120"`
	GuardianPhone string `json:"guardian_phone" validate:"required,max=20"`
	Phone         string `json:"phone" validate:"omitempty,max=20"`
	Email         string `json:"email" validate:"omitempty,email"`
	Address       string `json:"address" validate:"omitempty,max=300"`
}

// RegistrationConfig throttles the unauthenticated endpoint.
type RegistrationConfig struct {
	RateLimit  int
	RateWindow time.Duration
}

func (c RegistrationConfig) withDefaults() RegistrationConfig {
	if c.RateLimit <= 0 {
		c.RateLimit = 5
	}
	if c.RateWindow <= 0 {
		c.RateWindow = time.Minute
	}
	return c
}

// RegistrationService handles public student self-registration. New students
// land with pending status until an admin approves them.
type RegistrationService struct {
	tuitions  registrationTuitionRepository
	students  registrationStudentRepository
	audit     registrationAuditWriter
	limiter   registrationRateLimiter
	cfg       RegistrationConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRegistrationService constructs the registration service.
func NewRegistrationService(
	tuitions registrationTuitionRepository,
	students registrationStudentRepository,
	audit registrationAuditWriter,
	limiter registrationRateLimiter,
	cfg RegistrationConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *RegistrationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{
		tuitions:  tuitions,
		students:  students,
		audit:     audit,
		limiter:   limiter,
		cfg:       cfg.withDefaults(),
		validator: validate,
		logger:    logger,
	}
}

// Register creates a pending student under the tuition identified by slug.
// clientKey identifies the caller for rate limiting (usually the remote IP).
func (s *RegistrationService) Register(ctx context.Context, clientKey string, req RegisterStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WrapErr(err, appErrors.ErrValidation)
	}
	if s.limiter != nil && clientKey != "" {
		allowed, err := s.limiter.Allow(ctx, "register:"+clientKey, s.cfg.RateLimit, s.cfg.RateWindow)
		if err != nil {
			s.logger.Warn("registration rate check failed, allowing", zap.Error(err))
		} else if !allowed {
			return nil, appErrors.Clone(appErrors.ErrRateLimited, "too many registration attempts, try again later")
		}
	}

	tuition, err := s.tuitions.FindBySlug(ctx, strings.ToLower(strings.TrimSpace(req.TuitionSlug)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tuition not found")
		}
		return nil, appErrors.WrapErr(err, appErrors.ErrInternal)
	}

	exists, err := s.students.ExistsByRollNo(ctx, tuition.ID, req.RollNo, "")
	if err != nil {
		return nil, appErrors.WrapErr(err, appErrors.ErrInternal)
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "roll number already registered")
	}

	student := &models.Student{
		TuitionID:     tuition.ID,
		RollNo:        req.RollNo,
		FullName:      req.FullName,
		Gender:        req.Gender,
		GuardianName:  req.GuardianName,
		GuardianPhone: req.GuardianPhone,
		Phone:         req.Phone,
		Email:         strings.ToLower(strings.TrimSpace(req.Email)),
		Address:       req.Address,
		Status:        models.StudentStatusPending,
		Active:        false,
	}
	if err := s.students.Create(ctx, student); err != nil {
		return nil, appErrors.WrapErr(err, appErrors.ErrInternal)
	}

	if s.audit != nil {
		log := &models.AuditLog{
			TuitionID:  &tuition.ID,
			Action:     models.AuditActionRegistration,
			Resource:   "students",
			ResourceID: &student.ID,
			IPAddress:  clientKey,
		}
		if err := s.audit.CreateAuditLog(ctx, log); err != nil {
			s.logger.Warn("failed to write registration audit log", zap.Error(err))
		}
	}

	s.logger.Info("student self-registered",
		zap.String("tuition_id", tuition.ID),
		zap.String("student_id", student.ID))
	return student, nil
}
