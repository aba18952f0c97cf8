package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edunexa/tuition-api/internal/models"
	appErrors "github.com/edunexa/tuition-api/pkg/errors"
)

type subjectRepository interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error)
	FindByID(ctx context.Context, tuitionID, id string) (*models.Subject, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	Delete(ctx context.Context, tuitionID, id string) error
	ListDivisions(ctx context.Context, tuitionID string) ([]models.Division, error)
	FindDivisionByID(ctx context.Context, tuitionID, id string) (*models.Division, error)
	CreateDivision(ctx context.Context, division *models.Division) error
	UpdateDivision(ctx context.Context, division *models.Division) error
	DeleteDivision(ctx context.Context, tuitionID, id string) error
}

// SubjectRequest holds payload for creating or updating subjects.
type SubjectRequest struct {
	Name   string `json:"name" validate:"required"`
	Code   string `json:"code"`
	Active *bool  `json:"active,omitempty"`
}

// DivisionRequest holds payload for creating or updating divisions.
type DivisionRequest struct {
	Name   string `json:"name" validate:"required"`
	Active *bool  `json:"active,omitempty"`
}

// SubjectService handles subject and division use-cases.
type SubjectService struct {
	repo      subjectRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService constructs the subject service.
func NewSubjectService(repo subjectRepository, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{repo: repo, validator: validate, logger: logger}
}

// List returns subjects and pagination metadata.
func (s *SubjectService) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error) {
	subjects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return subjects, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one subject.
func (s *SubjectService) Get(ctx context.Context, tuitionID, id string) (*models.Subject, error) {
	subject, err := s.repo.FindByID(ctx, tuitionID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	return subject, nil
}

// Create adds a subject.
func (s *SubjectService) Create(ctx context.Context, tuitionID string, req SubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}
	subject := &models.Subject{TuitionID: tuitionID, Name: req.Name, Code: req.Code, Active: true}
	if req.Active != nil {
		subject.Active = *req.Active
	}
	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}
	return subject, nil
}

// Update modifies a subject.
func (s *SubjectService) Update(ctx context.Context, tuitionID, id string, req SubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}
	current, err := s.Get(ctx, tuitionID, id)
	if err != nil {
		return nil, err
	}
	subject := &models.Subject{ID: id, TuitionID: tuitionID, Name: req.Name, Code: req.Code, Active: current.Active}
	if req.Active != nil {
		subject.Active = *req.Active
	}
	if err := s.repo.Update(ctx, subject); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
	}
	return subject, nil
}

// Delete marks a subject inactive.
func (s *SubjectService) Delete(ctx context.Context, tuitionID, id string) error {
	if err := s.repo.Delete(ctx, tuitionID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete subject")
	}
	return nil
}

// ListDivisions returns every division of a tuition.
func (s *SubjectService) ListDivisions(ctx context.Context, tuitionID string) ([]models.Division, error) {
	divisions, err := s.repo.ListDivisions(ctx, tuitionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list divisions")
	}
	return divisions, nil
}

// CreateDivision adds a division.
func (s *SubjectService) CreateDivision(ctx context.Context, tuitionID string, req DivisionRequest) (*models.Division, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid division payload")
	}
	division := &models.Division{TuitionID: tuitionID, Name: req.Name, Active: true}
	if req.Active != nil {
		division.Active = *req.Active
	}
	if err := s.repo.CreateDivision(ctx, division); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create division")
	}
	return division, nil
}

// UpdateDivision modifies a division.
func (s *SubjectService) UpdateDivision(ctx context.Context, tuitionID, id string, req DivisionRequest) (*models.Division, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid division payload")
	}
	current, err := s.repo.FindDivisionByID(ctx, tuitionID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "division not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load division")
	}
	division := &models.Division{ID: id, TuitionID: tuitionID, Name: req.Name, Active: current.Active}
	if req.Active != nil {
		division.Active = *req.Active
	}
	if err := s.repo.UpdateDivision(ctx, division); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "division not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update division")
	}
	return division, nil
}

// DeleteDivision marks a division inactive.
func (s *SubjectService) DeleteDivision(ctx context.Context, tuitionID, id string) error {
	if err := s.repo.DeleteDivision(ctx, tuitionID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "division not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete division")
	}
	return nil
}
