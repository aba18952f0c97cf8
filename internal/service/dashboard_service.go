package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/edunexa/tuition-api/internal/dto"
	"github.com/edunexa/tuition-api/internal/models"
	appErrors "github.com/edunexa/tuition-api/pkg/errors"
)

type dashboardTimetableRepository interface {
	ListActiveForDate(ctx context.Context, tuitionID string, date time.Time, dayOfWeek string) ([]models.TimetableEntryDetail, error)
}

type dashboardAttendanceRepository interface {
	CountsForDate(ctx context.Context, tuitionID string, date time.Time) (present, absent, markedSessions int, err error)
}

type dashboardFeeRepository interface {
	CollectedOn(ctx context.Context, tuitionID string, date time.Time) (float64, error)
	DueBetween(ctx context.Context, tuitionID string, from, to time.Time) (int, float64, error)
	OverdueBefore(ctx context.Context, tuitionID string, date time.Time) (int, float64, error)
}

type dashboardTestRepository interface {
	UpcomingWithin(ctx context.Context, tuitionID string, after time.Time, days, limit int) ([]models.WeeklyTestDetail, error)
}

// DashboardConfig tunes daily summary assembly.
type DashboardConfig struct {
	CacheTTL         time.Duration
	FeeDueWindowDays int
	TestWindowDays   int
	TestLimit        int
}

// DashboardService assembles the fixed-shape daily summary card.
type DashboardService struct {
	timetable  dashboardTimetableRepository
	attendance dashboardAttendanceRepository
	fees       dashboardFeeRepository
	tests      dashboardTestRepository
	cache      *CacheService
	logger     *zap.Logger
	now        func() time.Time
	cfg        DashboardConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(timetable dashboardTimetableRepository, attendance dashboardAttendanceRepository, fees dashboardFeeRepository, tests dashboardTestRepository, cache *CacheService, logger *zap.Logger, cfg DashboardConfig) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 2 * time.Minute
	}
	if cfg.FeeDueWindowDays <= 0 {
		cfg.FeeDueWindowDays = 7
	}
	if cfg.TestWindowDays <= 0 {
		cfg.TestWindowDays = 7
	}
	if cfg.TestLimit <= 0 {
		cfg.TestLimit = 3
	}
	return &DashboardService{
		timetable:  timetable,
		attendance: attendance,
		fees:       fees,
		tests:      tests,
		cache:      cache,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		cfg:        cfg,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *DashboardService) WithClock(now func() time.Time) *DashboardService {
	if now != nil {
		s.now = now
	}
	return s
}

// DailySummary computes (or loads from cache) the summary card for today.
// All denominators are guarded: an empty day yields zeros, never an error.
func (s *DashboardService) DailySummary(ctx context.Context, tuitionID string) (*dto.DailySummaryResponse, error) {
	now := s.now()
	date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dateStr := date.Format("2006-01-02")

	cacheKey := "dashboard:" + tuitionID + ":" + dateStr
	var cached dto.DailySummaryResponse
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, nil
	}

	entries, err := s.timetable.ListActiveForDate(ctx, tuitionID, date, normalizeWeekday(now.Weekday().String()))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scheduled sessions")
	}

	present, absent, markedSessions, err := s.attendance.CountsForDate(ctx, tuitionID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance counts")
	}

	rate := 0
	if present+absent > 0 {
		rate = present * 100 / (present + absent)
	}

	collected, err := s.fees.CollectedOn(ctx, tuitionID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee collections")
	}
	dueCount, dueAmount, err := s.fees.DueBetween(ctx, tuitionID, date, date.AddDate(0, 0, s.cfg.FeeDueWindowDays))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load due fees")
	}
	overdueCount, overdueAmount, err := s.fees.OverdueBefore(ctx, tuitionID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load overdue fees")
	}

	upcoming, err := s.tests.UpcomingWithin(ctx, tuitionID, date, s.cfg.TestWindowDays, s.cfg.TestLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load upcoming tests")
	}
	upcomingTests := make([]dto.UpcomingTest, 0, len(upcoming))
	for _, test := range upcoming {
		upcomingTests = append(upcomingTests, dto.UpcomingTest{
			ID:        test.ID,
			Name:      test.Name,
			SubjectID: test.SubjectID,
			Date:      test.Date.Format("2006-01-02"),
		})
	}

	summary := &dto.DailySummaryResponse{
		Date: dateStr,
		Classes: dto.ClassesSection{
			Scheduled: len(entries),
			Marked:    markedSessions,
		},
		Attendance: dto.AttendanceSection{
			Present: present,
			Absent:  absent,
			Rate:    rate,
		},
		Fees: dto.FeesSection{
			CollectedToday: collected,
			DueSoonCount:   dueCount,
			DueSoonAmount:  dueAmount,
			OverdueCount:   overdueCount,
			OverdueAmount:  overdueAmount,
		},
		Tests: upcomingTests,
	}

	if err := s.cache.Set(ctx, cacheKey, summary, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.Error(err))
	}
	return summary, nil
}
