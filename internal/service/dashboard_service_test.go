package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edunexa/tuition-api/internal/models"
)

type mockDashboardTimetable struct {
	entries []models.TimetableEntryDetail
}

func (m *mockDashboardTimetable) ListActiveForDate(ctx context.Context, tuitionID string, date time.Time, dayOfWeek string) ([]models.TimetableEntryDetail, error) {
	return m.entries, nil
}

type mockDashboardAttendance struct {
	present, absent, marked int
}

func (m *mockDashboardAttendance) CountsForDate(ctx context.Context, tuitionID string, date time.Time) (int, int, int, error) {
	return m.present, m.absent, m.marked, nil
}

type mockDashboardFees struct {
	collected     float64
	dueCount      int
	dueAmount     float64
	overdueCount  int
	overdueAmount float64
}

func (m *mockDashboardFees) CollectedOn(ctx context.Context, tuitionID string, date time.Time) (float64, error) {
	return m.collected, nil
}

func (m *mockDashboardFees) DueBetween(ctx context.Context, tuitionID string, from, to time.Time) (int, float64, error) {
	return m.dueCount, m.dueAmount, nil
}

func (m *mockDashboardFees) OverdueBefore(ctx context.Context, tuitionID string, date time.Time) (int, float64, error) {
	return m.overdueCount, m.overdueAmount, nil
}

type mockDashboardTests struct {
	upcoming []models.WeeklyTestDetail
}

func (m *mockDashboardTests) UpcomingWithin(ctx context.Context, tuitionID string, after time.Time, days, limit int) ([]models.WeeklyTestDetail, error) {
	return m.upcoming, nil
}

func TestDashboardServiceDailySummary(t *testing.T) {
	timetable := &mockDashboardTimetable{entries: []models.TimetableEntryDetail{
		{TimetableEntry: models.TimetableEntry{ID: "e1"}},
		{TimetableEntry: models.TimetableEntry{ID: "e2"}},
		{TimetableEntry: models.TimetableEntry{ID: "e3"}},
	}}
	attendance := &mockDashboardAttendance{present: 18, absent: 2, marked: 2}
	fees := &mockDashboardFees{collected: 4500, dueCount: 3, dueAmount: 9000, overdueCount: 1, overdueAmount: 1500}
	tests := &mockDashboardTests{upcoming: []models.WeeklyTestDetail{
		{WeeklyTest: models.WeeklyTest{ID: "w1", Name: "Algebra", SubjectID: "sub1", Date: time.Date(2026, time.March, 12, 0, 0, 0, 0, time.UTC)}},
	}}

	svc := NewDashboardService(timetable, attendance, fees, tests, nil, zap.NewNop(), DashboardConfig{}).
		WithClock(func() time.Time { return time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC) })

	summary, err := svc.DailySummary(context.Background(), "t1")
	require.NoError(t, err)

	assert.Equal(t, "2026-03-10", summary.Date)
	assert.Equal(t, 3, summary.Classes.Scheduled)
	assert.Equal(t, 2, summary.Classes.Marked)
	assert.Equal(t, 18, summary.Attendance.Present)
	assert.Equal(t, 90, summary.Attendance.Rate)
	assert.Equal(t, 4500.0, summary.Fees.CollectedToday)
	assert.Equal(t, 3, summary.Fees.DueSoonCount)
	assert.Equal(t, 1, summary.Fees.OverdueCount)
	require.Len(t, summary.Tests, 1)
	assert.Equal(t, "2026-03-12", summary.Tests[0].Date)
}

func TestDashboardServiceDailySummaryEmptyDay(t *testing.T) {
	svc := NewDashboardService(&mockDashboardTimetable{}, &mockDashboardAttendance{}, &mockDashboardFees{}, &mockDashboardTests{}, nil, zap.NewNop(), DashboardConfig{}).
		WithClock(func() time.Time { return time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC) })

	summary, err := svc.DailySummary(context.Background(), "t1")
	require.NoError(t, err)

	// No attendance yet: the rate must be zero, not a division error.
	assert.Equal(t, 0, summary.Attendance.Rate)
	assert.Equal(t, 0, summary.Classes.Scheduled)
	assert.Empty(t, summary.Tests)
}
