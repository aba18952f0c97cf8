package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/edunexa/tuition-api/internal/dto"
	"github.com/edunexa/tuition-api/internal/models"
	appErrors "github.com/edunexa/tuition-api/pkg/errors"
)

type reminderTimetableRepository interface {
	ListActiveForDate(ctx context.Context, tuitionID string, date time.Time, dayOfWeek string) ([]models.TimetableEntryDetail, error)
	ListTuitionIDsWithEntries(ctx context.Context) ([]string, error)
}

type reminderAttendanceRepository interface {
	MarkedEntryKeys(ctx context.Context, tuitionID string, date time.Time) (map[string]bool, error)
}

type reminderStateStore interface {
	Dismiss(ctx context.Context, tuitionID, key string, ttl time.Duration) error
	IsDismissed(ctx context.Context, tuitionID, key string) (bool, error)
	MarkNotified(ctx context.Context, tuitionID, key string, ttl time.Duration) error
	WasNotified(ctx context.Context, tuitionID, key string) (bool, error)
	ClearDay(ctx context.Context, tuitionID, date string) error
}

type reminderNotifier interface {
	NotifyPendingClass(ctx context.Context, tuitionID string, pending dto.PendingClassResponse) error
}

// ReminderConfig tunes the pending-class evaluation loop.
type ReminderConfig struct {
	EvalInterval  time.Duration
	ClearInterval time.Duration
	WindowMin     int
	WindowMax     int
}

// ReminderService finds class sessions nearing their end with no attendance
// recorded and pushes at most one reminder per session per day.
type ReminderService struct {
	timetable  reminderTimetableRepository
	attendance reminderAttendanceRepository
	store      reminderStateStore
	notifier   reminderNotifier
	metrics    *MetricsService
	logger     *zap.Logger
	now        func() time.Time
	cfg        ReminderConfig

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewReminderService constructs the reminder service.
func NewReminderService(timetable reminderTimetableRepository, attendance reminderAttendanceRepository, store reminderStateStore, notifier reminderNotifier, metrics *MetricsService, logger *zap.Logger, cfg ReminderConfig) *ReminderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.EvalInterval <= 0 {
		cfg.EvalInterval = 30 * time.Second
	}
	if cfg.ClearInterval <= 0 {
		cfg.ClearInterval = 60 * time.Second
	}
	if cfg.WindowMin <= 0 {
		cfg.WindowMin = 5
	}
	if cfg.WindowMax <= cfg.WindowMin {
		cfg.WindowMax = cfg.WindowMin + 10
	}
	return &ReminderService{
		timetable:  timetable,
		attendance: attendance,
		store:      store,
		notifier:   notifier,
		metrics:    metrics,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		cfg:        cfg,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *ReminderService) WithClock(now func() time.Time) *ReminderService {
	if now != nil {
		s.now = now
	}
	return s
}

// Pending evaluates the timetable and returns sessions currently inside the
// reminder window with no attendance recorded, minus dismissed ones.
func (s *ReminderService) Pending(ctx context.Context, tuitionID string) ([]dto.PendingClassResponse, error) {
	pending, err := s.evaluate(ctx, tuitionID)
	if err != nil {
		return nil, err
	}
	out := pending[:0]
	for _, p := range pending {
		dismissed, err := s.store.IsDismissed(ctx, tuitionID, p.Key)
		if err != nil {
			s.logger.Warn("reminder dismissal lookup failed", zap.String("key", p.Key), zap.Error(err))
		}
		if !dismissed {
			out = append(out, p)
		}
	}
	return out, nil
}

// Dismiss hides a pending reminder for the rest of its day.
func (s *ReminderService) Dismiss(ctx context.Context, tuitionID, key string) error {
	if key == "" {
		return appErrors.Clone(appErrors.ErrValidation, "reminder key is required")
	}
	now := s.now()
	endOfDay := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, now.Location())
	if err := s.store.Dismiss(ctx, tuitionID, key, endOfDay.Sub(now)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to dismiss reminder")
	}
	return nil
}

// evaluate computes the raw pending set for one tenant at the current time.
// Entries with malformed clock values are skipped with a warning instead of
// aborting the whole evaluation.
func (s *ReminderService) evaluate(ctx context.Context, tuitionID string) ([]dto.PendingClassResponse, error) {
	now := s.now()
	date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayOfWeek := normalizeWeekday(now.Weekday().String())

	entries, err := s.timetable.ListActiveForDate(ctx, tuitionID, date, dayOfWeek)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	if len(entries) == 0 {
		return nil, nil
	}

	marked, err := s.attendance.MarkedEntryKeys(ctx, tuitionID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load marked sessions")
	}

	var pending []dto.PendingClassResponse
	for _, entry := range entries {
		if marked[entry.SubjectID+":"+entry.FacultyID] {
			continue
		}
		startH, startM, err := parseClock(entry.StartTime)
		if err != nil {
			s.logger.Warn("timetable entry has malformed start time",
				zap.String("entry_id", entry.ID), zap.String("start_time", entry.StartTime))
			continue
		}
		endH, endM, err := parseClock(entry.EndTime)
		if err != nil {
			s.logger.Warn("timetable entry has malformed end time",
				zap.String("entry_id", entry.ID), zap.String("end_time", entry.EndTime))
			continue
		}
		startsAt := time.Date(now.Year(), now.Month(), now.Day(), startH, startM, 0, 0, now.Location())
		endsAt := time.Date(now.Year(), now.Month(), now.Day(), endH, endM, 0, 0, now.Location())
		if now.Before(startsAt) || !now.Before(endsAt) {
			continue
		}
		remaining := endsAt.Sub(now)
		if remaining < time.Duration(s.cfg.WindowMin)*time.Minute || remaining > time.Duration(s.cfg.WindowMax)*time.Minute {
			continue
		}
		pending = append(pending, dto.PendingClassResponse{
			Key:         fmt.Sprintf("%s:%s", entry.ID, date.Format("2006-01-02")),
			EntryID:     entry.ID,
			SubjectID:   entry.SubjectID,
			FacultyID:   entry.FacultyID,
			DivisionID:  entry.DivisionID,
			Date:        date.Format("2006-01-02"),
			EndsAt:      endsAt,
			MinutesLeft: int(remaining.Minutes()),
		})
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].EndsAt.Equal(pending[j].EndsAt) {
			return pending[i].EntryID < pending[j].EntryID
		}
		return pending[i].EndsAt.Before(pending[j].EndsAt)
	})
	return pending, nil
}

// emitDue pushes at most one not-yet-notified, not-dismissed reminder per
// tenant per pass.
func (s *ReminderService) emitDue(ctx context.Context, tuitionID string) {
	pending, err := s.evaluate(ctx, tuitionID)
	if err != nil {
		s.logger.Warn("reminder evaluation failed", zap.String("tuition_id", tuitionID), zap.Error(err))
		return
	}
	for _, p := range pending {
		dismissed, err := s.store.IsDismissed(ctx, tuitionID, p.Key)
		if err != nil || dismissed {
			continue
		}
		notified, err := s.store.WasNotified(ctx, tuitionID, p.Key)
		if err != nil || notified {
			continue
		}
		if err := s.notifier.NotifyPendingClass(ctx, tuitionID, p); err != nil {
			s.logger.Warn("pending class push failed", zap.String("key", p.Key), zap.Error(err))
			continue
		}
		now := s.now()
		endOfDay := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, now.Location())
		if err := s.store.MarkNotified(ctx, tuitionID, p.Key, endOfDay.Sub(now)); err != nil {
			s.logger.Warn("failed to mark reminder notified", zap.String("key", p.Key), zap.Error(err))
		}
		s.metrics.RecordReminderSent()
		return
	}
}

// clearStale sweeps reminder state recorded for the previous day.
func (s *ReminderService) clearStale(ctx context.Context, tuitionID string) {
	yesterday := s.now().AddDate(0, 0, -1).Format("2006-01-02")
	if err := s.store.ClearDay(ctx, tuitionID, yesterday); err != nil {
		s.logger.Warn("reminder state sweep failed", zap.String("tuition_id", tuitionID), zap.Error(err))
	}
}

// Start launches the evaluation and sweep loops. It returns immediately.
func (s *ReminderService) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		evalTicker := time.NewTicker(s.cfg.EvalInterval)
		clearTicker := time.NewTicker(s.cfg.ClearInterval)
		defer evalTicker.Stop()
		defer clearTicker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-evalTicker.C:
				s.runPass(ctx, s.emitDue)
			case <-clearTicker.C:
				s.runPass(ctx, s.clearStale)
			}
		}
	}()
}

// Stop terminates the loops and waits for them to exit.
func (s *ReminderService) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

func (s *ReminderService) runPass(ctx context.Context, fn func(context.Context, string)) {
	tuitionIDs, err := s.timetable.ListTuitionIDsWithEntries(ctx)
	if err != nil {
		s.logger.Warn("failed to list tenants for reminder pass", zap.Error(err))
		return
	}
	for _, id := range tuitionIDs {
		fn(ctx, id)
	}
}
