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

type facultyRepository interface {
	List(ctx context.Context, filter models.FacultyFilter) ([]models.Faculty, int, error)
	FindByID(ctx context.Context, tuitionID, id string) (*models.Faculty, error)
	Create(ctx context.Context, fac *models.Faculty) error
	Update(ctx context.Context, fac *models.Faculty) error
	Delete(ctx context.Context, tuitionID, id string) error
}

// FacultyRequest holds payload for creating or updating faculty members.
type FacultyRequest struct {
	FullName  string     `json:"full_name" validate:"required"`
	Email     string     `json:"email" validate:"omitempty,email"`
	Phone     string     `json:"phone"`
	Expertise string     `json:"expertise"`
	JoinedAt  *time.Time `json:"joined_at,omitempty"`
	Active    *bool      `json:"active,omitempty"`
}

// FacultyService handles faculty use-cases.
type FacultyService struct {
	repo      facultyRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFacultyService constructs the faculty service.
func NewFacultyService(repo facultyRepository, validate *validator.Validate, logger *zap.Logger) *FacultyService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FacultyService{repo: repo, validator: validate, logger: logger}
}

// List returns faculty and pagination metadata.
func (s *FacultyService) List(ctx context.Context, filter models.FacultyFilter) ([]models.Faculty, *models.Pagination, error) {
	list, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list faculty")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return list, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one faculty member.
func (s *FacultyService) Get(ctx context.Context, tuitionID, id string) (*models.Faculty, error) {
	fac, err := s.repo.FindByID(ctx, tuitionID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "faculty not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
	}
	return fac, nil
}

// Create registers a faculty member.
func (s *FacultyService) Create(ctx context.Context, tuitionID string, req FacultyRequest) (*models.Faculty, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid faculty payload")
	}
	fac := &models.Faculty{
		TuitionID: tuitionID,
		FullName:  req.FullName,
		Email:     req.Email,
		Phone:     req.Phone,
		Expertise: req.Expertise,
		JoinedAt:  req.JoinedAt,
		Active:    true,
	}
	if req.Active != nil {
		fac.Active = *req.Active
	}
	if err := s.repo.Create(ctx, fac); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create faculty")
	}
	return fac, nil
}

// Update modifies a faculty member.
func (s *FacultyService) Update(ctx context.Context, tuitionID, id string, req FacultyRequest) (*models.Faculty, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid faculty payload")
	}
	current, err := s.Get(ctx, tuitionID, id)
	if err != nil {
		return nil, err
	}
	fac := &models.Faculty{
		ID:        id,
		TuitionID: tuitionID,
		FullName:  req.FullName,
		Email:     req.Email,
		Phone:     req.Phone,
		Expertise: req.Expertise,
		JoinedAt:  req.JoinedAt,
		Active:    current.Active,
	}
	if req.Active != nil {
		fac.Active = *req.Active
	}
	if err := s.repo.Update(ctx, fac); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "faculty not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update faculty")
	}
	return fac, nil
}

// Delete marks a faculty member inactive.
func (s *FacultyService) Delete(ctx context.Context, tuitionID, id string) error {
	if err := s.repo.Delete(ctx, tuitionID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "faculty not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete faculty")
	}
	return nil
}
