package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edunexa/tuition-api/internal/models"
	appErrors "github.com/edunexa/tuition-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	FindByID(ctx context.Context, tuitionID, id string) (*models.StudentDetail, error)
	ExistsByRollNo(ctx context.Context, tuitionID, rollNo, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, tuitionID, id string) error
}

// CreateStudentRequest holds payload for creating students.
type CreateStudentRequest struct {
	RollNo        string     `json:"roll_no" validate:"required"`
	FullName      string     `json:"full_name" validate:"required"`
	Gender        string     `json:"gender"`
	BirthDate     *time.Time `json:"birth_date,omitempty"`
	DivisionID    *string    `json:"division_id,omitempty"`
	GuardianName  string     `json:"guardian_name"`
	GuardianPhone string     `json:"guardian_phone"`
	Address       string     `json:"address"`
	Phone         string     `json:"phone"`
	Email         string     `json:"email" validate:"omitempty,email"`
}

// UpdateStudentRequest holds payload for updating students.
type UpdateStudentRequest struct {
	RollNo        string               `json:"roll_no" validate:"required"`
	FullName      string               `json:"full_name" validate:"required"`
	Gender        string               `json:"gender"`
	BirthDate     *time.Time           `json:"birth_date,omitempty"`
	DivisionID    *string              `json:"division_id,omitempty"`
	GuardianName  string               `json:"guardian_name"`
	GuardianPhone string               `json:"guardian_phone"`
	Address       string               `json:"address"`
	Phone         string               `json:"phone"`
	Email         string               `json:"email" validate:"omitempty,email"`
	Status        models.StudentStatus `json:"status" validate:"required"`
	Active        bool                 `json:"active"`
}

// StudentService handles student use-cases.
type StudentService struct {
	repo      studentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, validator: validate, logger: logger}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
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
	return students, pagination, nil
}

// Get returns detailed student information.
func (s *StudentService) Get(ctx context.Context, tuitionID, id string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByID(ctx, tuitionID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create enrolls a new student in a tuition.
func (s *StudentService) Create(ctx context.Context, tuitionID string, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	exists, err := s.repo.ExistsByRollNo(ctx, tuitionID, req.RollNo, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate roll number")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "roll number already used")
	}
	student := &models.Student{
		TuitionID:     tuitionID,
		RollNo:        req.RollNo,
		FullName:      req.FullName,
		Gender:        req.Gender,
		BirthDate:     req.BirthDate,
		DivisionID:    req.DivisionID,
		GuardianName:  req.GuardianName,
		GuardianPhone: req.GuardianPhone,
		Address:       req.Address,
		Phone:         req.Phone,
		Email:         req.Email,
		Status:        models.StudentStatusEnrolled,
		Active:        true,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Update modifies an existing student.
func (s *StudentService) Update(ctx context.Context, tuitionID, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if !validStudentStatus(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown student status")
	}
	exists, err := s.repo.ExistsByRollNo(ctx, tuitionID, req.RollNo, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate roll number")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "roll number already used")
	}
	student := &models.Student{
		ID:            id,
		TuitionID:     tuitionID,
		RollNo:        req.RollNo,
		FullName:      req.FullName,
		Gender:        req.Gender,
		BirthDate:     req.BirthDate,
		DivisionID:    req.DivisionID,
		GuardianName:  req.GuardianName,
		GuardianPhone: req.GuardianPhone,
		Address:       req.Address,
		Phone:         req.Phone,
		Email:         req.Email,
		Status:        req.Status,
		Active:        req.Active,
	}
	if err := s.repo.Update(ctx, student); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// Delete marks a student inactive.
func (s *StudentService) Delete(ctx context.Context, tuitionID, id string) error {
	if err := s.repo.Delete(ctx, tuitionID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	return nil
}

func validStudentStatus(status models.StudentStatus) bool {
	switch status {
	case models.StudentStatusPending, models.StudentStatusEnrolled, models.StudentStatusLeft:
		return true
	default:
		return false
	}
}
