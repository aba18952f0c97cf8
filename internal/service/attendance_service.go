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

type attendanceRepository interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, int, error)
	FindByID(ctx context.Context, tuitionID, id string) (*models.AttendanceRecordDetail, error)
	Upsert(ctx context.Context, record *models.AttendanceRecord) error
	BulkUpsert(ctx context.Context, records []models.AttendanceRecord) error
	Delete(ctx context.Context, tuitionID, id string) error
	Summary(ctx context.Context, tuitionID, studentID string, from, to *time.Time) (*models.AttendanceSummary, error)
}

// MarkAttendanceRequest records attendance for one division-subject session.
type MarkAttendanceRequest struct {
	SubjectID string                  `json:"subject_id" validate:"required"`
	FacultyID string                  `json:"faculty_id" validate:"required"`
	Date      time.Time               `json:"date" validate:"required"`
	Marks     []models.AttendanceMark `json:"marks" validate:"required,min=1,dive"`
}

// AttendanceService handles attendance use-cases.
type AttendanceService struct {
	repo      attendanceRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns attendance records and pagination metadata.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, *models.Pagination, error) {
	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return records, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Mark writes a batch of attendance rows for one session. Re-marking the same
// student and date replaces the earlier status.
func (s *AttendanceService) Mark(ctx context.Context, tuitionID, markedBy string, req MarkAttendanceRequest) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	records := make([]models.AttendanceRecord, 0, len(req.Marks))
	date := truncateToDay(req.Date)
	for _, mark := range req.Marks {
		if !mark.Status.Valid() {
			return 0, appErrors.Clone(appErrors.ErrValidation, "unknown attendance status")
		}
		record := models.AttendanceRecord{
			TuitionID: tuitionID,
			StudentID: mark.StudentID,
			SubjectID: req.SubjectID,
			FacultyID: req.FacultyID,
			Date:      date,
			Status:    mark.Status,
			Notes:     mark.Notes,
		}
		if markedBy != "" {
			record.MarkedBy = &markedBy
		}
		records = append(records, record)
	}
	if err := s.repo.BulkUpsert(ctx, records); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}
	s.invalidate(ctx, tuitionID)
	return len(records), nil
}

// Update rewrites one attendance record.
func (s *AttendanceService) Update(ctx context.Context, tuitionID, id string, status models.AttendanceStatus, notes *string) (*models.AttendanceRecordDetail, error) {
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown attendance status")
	}
	current, err := s.repo.FindByID(ctx, tuitionID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance record")
	}
	record := current.AttendanceRecord
	record.Status = status
	record.Notes = notes
	if err := s.repo.Upsert(ctx, &record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update attendance record")
	}
	s.invalidate(ctx, tuitionID)
	current.AttendanceRecord = record
	return current, nil
}

// Delete removes an attendance record.
func (s *AttendanceService) Delete(ctx context.Context, tuitionID, id string) error {
	if err := s.repo.Delete(ctx, tuitionID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attendance record")
	}
	s.invalidate(ctx, tuitionID)
	return nil
}

// Summary aggregates a student's attendance counts over an optional range.
func (s *AttendanceService) Summary(ctx context.Context, tuitionID, studentID string, from, to *time.Time) (*models.AttendanceSummary, error) {
	summary, err := s.repo.Summary(ctx, tuitionID, studentID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise attendance")
	}
	return summary, nil
}

func (s *AttendanceService) invalidate(ctx context.Context, tuitionID string) {
	if err := s.cache.Invalidate(ctx, "dashboard:"+tuitionID+":*"); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
	if err := s.cache.Invalidate(ctx, "leaderboard:"+tuitionID); err != nil {
		s.logger.Warn("leaderboard cache invalidation failed", zap.Error(err))
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
