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

type timetableRepository interface {
	List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableEntryDetail, int, error)
	FindByID(ctx context.Context, tuitionID, id string) (*models.TimetableEntryDetail, error)
	Create(ctx context.Context, entry *models.TimetableEntry) error
	Update(ctx context.Context, entry *models.TimetableEntry) error
	Delete(ctx context.Context, tuitionID, id string) error
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// parseClock parses a wall-clock "HH:MM" value. Anything that does not parse
// into a valid 24h time is rejected rather than coerced.
func parseClock(value string) (hour, minute int, err error) {
	bad := appErrors.Clone(appErrors.ErrBadTimeFormat, "time must be HH:MM")
	if len(value) != 5 || value[2] != ':' {
		return 0, 0, bad
	}
	for _, i := range []int{0, 1, 3, 4} {
		if value[i] < '0' || value[i] > '9' {
			return 0, 0, bad
		}
	}
	hour = int(value[0]-'0')*10 + int(value[1]-'0')
	minute = int(value[3]-'0')*10 + int(value[4]-'0')
	if hour > 23 || minute > 59 {
		return 0, 0, bad
	}
	return hour, minute, nil
}

// TimetableEntryRequest holds payload for creating or updating entries.
type TimetableEntryRequest struct {
	DivisionID string                    `json:"division_id" validate:"required"`
	SubjectID  string                    `json:"subject_id" validate:"required"`
	FacultyID  string                    `json:"faculty_id" validate:"required"`
	EntryType  models.TimetableEntryType `json:"entry_type" validate:"required"`
	DayOfWeek  string                    `json:"day_of_week"`
	StartTime  string                    `json:"start_time" validate:"required"`
	EndTime    string                    `json:"end_time" validate:"required"`
	Date       *time.Time                `json:"date,omitempty"`
	EndDate    *time.Time                `json:"end_date,omitempty"`
	ActiveFrom *time.Time                `json:"active_from,omitempty"`
	ActiveTo   *time.Time                `json:"active_to,omitempty"`
	Room       string                    `json:"room"`
	Active     *bool                     `json:"active,omitempty"`
}

// TimetableService handles timetable use-cases.
type TimetableService struct {
	repo      timetableRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTimetableService constructs the timetable service.
func NewTimetableService(repo timetableRepository, validate *validator.Validate, logger *zap.Logger) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{repo: repo, validator: validate, logger: logger}
}

// List returns timetable entries and pagination metadata.
func (s *TimetableService) List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableEntryDetail, *models.Pagination, error) {
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable entries")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return entries, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one timetable entry.
func (s *TimetableService) Get(ctx context.Context, tuitionID, id string) (*models.TimetableEntryDetail, error) {
	entry, err := s.repo.FindByID(ctx, tuitionID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable entry")
	}
	return entry, nil
}

// Create schedules a class session.
func (s *TimetableService) Create(ctx context.Context, tuitionID string, req TimetableEntryRequest) (*models.TimetableEntry, error) {
	entry, err := s.buildEntry(tuitionID, "", req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable entry")
	}
	return entry, nil
}

// Update modifies a scheduled session.
func (s *TimetableService) Update(ctx context.Context, tuitionID, id string, req TimetableEntryRequest) (*models.TimetableEntry, error) {
	entry, err := s.buildEntry(tuitionID, id, req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, entry); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update timetable entry")
	}
	return entry, nil
}

// Delete removes a scheduled session.
func (s *TimetableService) Delete(ctx context.Context, tuitionID, id string) error {
	if err := s.repo.Delete(ctx, tuitionID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable entry")
	}
	return nil
}

func (s *TimetableService) buildEntry(tuitionID, id string, req TimetableEntryRequest) (*models.TimetableEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable payload")
	}
	if !req.EntryType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown entry type")
	}
	startH, startM, err := parseClock(req.StartTime)
	if err != nil {
		return nil, err
	}
	endH, endM, err := parseClock(req.EndTime)
	if err != nil {
		return nil, err
	}
	if endH*60+endM <= startH*60+startM {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end time must be after start time")
	}
	switch req.EntryType {
	case models.TimetableEntryRegular:
		if _, ok := weekdays[normalizeWeekday(req.DayOfWeek)]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "regular entries require a valid day of week")
		}
	case models.TimetableEntrySpecial:
		if req.Date == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "special entries require a date")
		}
		if req.EndDate != nil && req.EndDate.Before(*req.Date) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "end date must not precede date")
		}
	}
	entry := &models.TimetableEntry{
		ID:         id,
		TuitionID:  tuitionID,
		DivisionID: req.DivisionID,
		SubjectID:  req.SubjectID,
		FacultyID:  req.FacultyID,
		EntryType:  req.EntryType,
		DayOfWeek:  normalizeWeekday(req.DayOfWeek),
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Date:       req.Date,
		EndDate:    req.EndDate,
		ActiveFrom: req.ActiveFrom,
		ActiveTo:   req.ActiveTo,
		Room:       req.Room,
		Active:     true,
	}
	if req.Active != nil {
		entry.Active = *req.Active
	}
	return entry, nil
}

func normalizeWeekday(day string) string {
	out := make([]byte, 0, len(day))
	for i := 0; i < len(day); i++ {
		c := day[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}
