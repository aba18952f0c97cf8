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

type homeworkRepository interface {
	ListHomework(ctx context.Context, tuitionID, divisionID string) ([]models.Homework, error)
	FindHomeworkByID(ctx context.Context, tuitionID, id string) (*models.Homework, error)
	CreateHomework(ctx context.Context, hw *models.Homework) error
	UpdateHomework(ctx context.Context, hw *models.Homework) error
	DeleteHomework(ctx context.Context, tuitionID, id string) error
	ListAnnouncements(ctx context.Context, tuitionID string, asOf time.Time) ([]models.Announcement, error)
	CreateAnnouncement(ctx context.Context, ann *models.Announcement) error
	DeleteAnnouncement(ctx context.Context, tuitionID, id string) error
}

type announcementNotifier interface {
	NotifyAnnouncement(ctx context.Context, tuitionID string, ann *models.Announcement)
}

// CreateHomeworkRequest holds payload for posting an assignment.
type CreateHomeworkRequest struct {
	DivisionID string     `json:"division_id" validate:"required,uuid4"`
	SubjectID  string     `json:"subject_id" validate:"required,uuid4"`
	Title      string     `json:"title" validate:"required,max=200"`
	Details    string     `json:"details" validate:"required"`
	DueDate    *time.Time `json:"due_date"`
}

// CreateAnnouncementRequest holds payload for posting a broadcast.
type CreateAnnouncementRequest struct {
	Title     string     `json:"title" validate:"required,max=200"`
	Body      string     `json:"body" validate:"required"`
	Audience  string     `json:"audience" validate:"omitempty,oneof=students all"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// HomeworkService handles homework and announcement use-cases.
type HomeworkService struct {
	repo      homeworkRepository
	notifier  announcementNotifier
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewHomeworkService constructs the homework service.
func NewHomeworkService(repo homeworkRepository, notifier announcementNotifier, validate *validator.Validate, logger *zap.Logger) *HomeworkService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HomeworkService{
		repo:      repo,
		notifier:  notifier,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock.
func (s *HomeworkService) WithClock(now func() time.Time) *HomeworkService {
	if now != nil {
		s.now = now
	}
	return s
}

// ListHomework returns assignments, optionally filtered by division.
func (s *HomeworkService) ListHomework(ctx context.Context, tuitionID, divisionID string) ([]models.Homework, error) {
	items, err := s.repo.ListHomework(ctx, tuitionID, divisionID)
	if err != nil {
		return nil, appErrors.WrapErr(err, appErrors.ErrInternal)
	}
	return items, nil
}

// CreateHomework posts an assignment on behalf of a faculty member.
func (s *HomeworkService) CreateHomework(ctx context.Context, tuitionID string, facultyID *string, req CreateHomeworkRequest) (*models.Homework, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WrapErr(err, appErrors.ErrValidation)
	}
	if req.DueDate != nil && req.DueDate.Before(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "due date must be in the future")
	}
	hw := &models.Homework{
		TuitionID:  tuitionID,
		DivisionID: req.DivisionID,
		SubjectID:  req.SubjectID,
		FacultyID:  facultyID,
		Title:      req.Title,
		Details:    req.Details,
		DueDate:    req.DueDate,
	}
	if err := s.repo.CreateHomework(ctx, hw); err != nil {
		return nil, appErrors.WrapErr(err, appErrors.ErrInternal)
	}
	return hw, nil
}

// UpdateHomework edits an existing assignment.
func (s *HomeworkService) UpdateHomework(ctx context.Context, tuitionID, id string, req CreateHomeworkRequest) (*models.Homework, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WrapErr(err, appErrors.ErrValidation)
	}
	hw, err := s.repo.FindHomeworkByID(ctx, tuitionID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "homework not found")
		}
		return nil, appErrors.WrapErr(err, appErrors.ErrInternal)
	}
	hw.DivisionID = req.DivisionID
	hw.SubjectID = req.SubjectID
	hw.Title = req.Title
	hw.Details = req.Details
	hw.DueDate = req.DueDate
	if err := s.repo.UpdateHomework(ctx, hw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "homework not found")
		}
		return nil, appErrors.WrapErr(err, appErrors.ErrInternal)
	}
	return hw, nil
}

// DeleteHomework removes an assignment.
func (s *HomeworkService) DeleteHomework(ctx context.Context, tuitionID, id string) error {
	if err := s.repo.DeleteHomework(ctx, tuitionID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "homework not found")
		}
		return appErrors.WrapErr(err, appErrors.ErrInternal)
	}
	return nil
}

// ListAnnouncements returns unexpired broadcasts, newest first.
func (s *HomeworkService) ListAnnouncements(ctx context.Context, tuitionID string) ([]models.Announcement, error) {
	items, err := s.repo.ListAnnouncements(ctx, tuitionID, s.now())
	if err != nil {
		return nil, appErrors.WrapErr(err, appErrors.ErrInternal)
	}
	return items, nil
}

// CreateAnnouncement posts a broadcast and pushes it to subscribers.
func (s *HomeworkService) CreateAnnouncement(ctx context.Context, tuitionID string, postedBy *string, req CreateAnnouncementRequest) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WrapErr(err, appErrors.ErrValidation)
	}
	audience := req.Audience
	if audience == "" {
		audience = "students"
	}
	ann := &models.Announcement{
		TuitionID: tuitionID,
		Title:     req.Title,
		Body:      req.Body,
		Audience:  audience,
		PostedBy:  postedBy,
		ExpiresAt: req.ExpiresAt,
	}
	if err := s.repo.CreateAnnouncement(ctx, ann); err != nil {
		return nil, appErrors.WrapErr(err, appErrors.ErrInternal)
	}
	if s.notifier != nil {
		s.notifier.NotifyAnnouncement(ctx, tuitionID, ann)
	}
	return ann, nil
}

// DeleteAnnouncement removes a broadcast.
func (s *HomeworkService) DeleteAnnouncement(ctx context.Context, tuitionID, id string) error {
	if err := s.repo.DeleteAnnouncement(ctx, tuitionID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return appErrors.WrapErr(err, appErrors.ErrInternal)
	}
	return nil
}
