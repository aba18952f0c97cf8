package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edunexa/tuition-api/internal/dto"
	"github.com/edunexa/tuition-api/internal/models"
)

type mockReminderTimetable struct {
	entries  []models.TimetableEntryDetail
	tuitions []string
}

func (m *mockReminderTimetable) ListActiveForDate(ctx context.Context, tuitionID string, date time.Time, dayOfWeek string) ([]models.TimetableEntryDetail, error) {
	return m.entries, nil
}

func (m *mockReminderTimetable) ListTuitionIDsWithEntries(ctx context.Context) ([]string, error) {
	return m.tuitions, nil
}

type mockReminderAttendance struct {
	marked map[string]bool
}

func (m *mockReminderAttendance) MarkedEntryKeys(ctx context.Context, tuitionID string, date time.Time) (map[string]bool, error) {
	return m.marked, nil
}

type mockReminderStore struct {
	dismissed map[string]bool
	notified  map[string]bool
	cleared   []string
}

func newMockReminderStore() *mockReminderStore {
	return &mockReminderStore{dismissed: make(map[string]bool), notified: make(map[string]bool)}
}

func (m *mockReminderStore) Dismiss(ctx context.Context, tuitionID, key string, ttl time.Duration) error {
	m.dismissed[key] = true
	return nil
}

func (m *mockReminderStore) IsDismissed(ctx context.Context, tuitionID, key string) (bool, error) {
	return m.dismissed[key], nil
}

func (m *mockReminderStore) MarkNotified(ctx context.Context, tuitionID, key string, ttl time.Duration) error {
	m.notified[key] = true
	return nil
}

func (m *mockReminderStore) WasNotified(ctx context.Context, tuitionID, key string) (bool, error) {
	return m.notified[key], nil
}

func (m *mockReminderStore) ClearDay(ctx context.Context, tuitionID, date string) error {
	m.cleared = append(m.cleared, date)
	return nil
}

type mockReminderNotifier struct {
	sent []dto.PendingClassResponse
	err  error
}

func (m *mockReminderNotifier) NotifyPendingClass(ctx context.Context, tuitionID string, pending dto.PendingClassResponse) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, pending)
	return nil
}

func reminderEntry(id, subjectID, divisionID, endTime string) models.TimetableEntryDetail {
	return reminderEntrySpan(id, subjectID, divisionID, "13:00", endTime)
}

func reminderEntrySpan(id, subjectID, divisionID, startTime, endTime string) models.TimetableEntryDetail {
	return models.TimetableEntryDetail{TimetableEntry: models.TimetableEntry{
		ID:         id,
		SubjectID:  subjectID,
		DivisionID: divisionID,
		FacultyID:  "f1",
		StartTime:  startTime,
		EndTime:    endTime,
		Active:     true,
	}}
}

func newReminderService(timetable *mockReminderTimetable, attendance *mockReminderAttendance, store *mockReminderStore, notifier *mockReminderNotifier, at time.Time) *ReminderService {
	return NewReminderService(timetable, attendance, store, notifier, nil, zap.NewNop(), ReminderConfig{WindowMin: 5, WindowMax: 15}).
		WithClock(func() time.Time { return at })
}

func TestReminderServicePendingWindow(t *testing.T) {
	// 14:00 on a fixed day; entries end across and outside the 5-15 minute window.
	now := time.Date(2026, time.March, 10, 14, 0, 0, 0, time.UTC)
	timetable := &mockReminderTimetable{entries: []models.TimetableEntryDetail{
		reminderEntry("e1", "sub1", "d1", "14:05"),
		reminderEntry("e2", "sub2", "d1", "14:15"),
		reminderEntry("e3", "sub3", "d1", "14:16"),
		reminderEntry("e4", "sub4", "d1", "14:04"),
		reminderEntry("e5", "sub5", "d1", "13:30"),
	}}
	svc := newReminderService(timetable, &mockReminderAttendance{}, newMockReminderStore(), &mockReminderNotifier{}, now)

	pending, err := svc.Pending(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "e1", pending[0].EntryID)
	assert.Equal(t, 5, pending[0].MinutesLeft)
	assert.Equal(t, "e2", pending[1].EntryID)
	assert.Equal(t, 15, pending[1].MinutesLeft)
}

func TestReminderServicePendingSkipsMarked(t *testing.T) {
	now := time.Date(2026, time.March, 10, 13, 52, 0, 0, time.UTC)
	timetable := &mockReminderTimetable{entries: []models.TimetableEntryDetail{
		reminderEntry("e1", "sub1", "d1", "14:00"),
		reminderEntry("e2", "sub2", "d1", "14:00"),
	}}
	attendance := &mockReminderAttendance{marked: map[string]bool{"sub1:f1": true}}
	svc := newReminderService(timetable, attendance, newMockReminderStore(), &mockReminderNotifier{}, now)

	pending, err := svc.Pending(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "e2", pending[0].EntryID)
	assert.Equal(t, 8, pending[0].MinutesLeft)
}

func TestReminderServicePendingSkipsMalformedClock(t *testing.T) {
	now := time.Date(2026, time.March, 10, 13, 52, 0, 0, time.UTC)
	timetable := &mockReminderTimetable{entries: []models.TimetableEntryDetail{
		reminderEntry("e1", "sub1", "d1", "2pm"),
		reminderEntry("e2", "sub2", "d1", "14:00"),
	}}
	svc := newReminderService(timetable, &mockReminderAttendance{}, newMockReminderStore(), &mockReminderNotifier{}, now)

	pending, err := svc.Pending(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "e2", pending[0].EntryID)
}

func TestReminderServicePendingSkipsMalformedStart(t *testing.T) {
	now := time.Date(2026, time.March, 10, 13, 52, 0, 0, time.UTC)
	timetable := &mockReminderTimetable{entries: []models.TimetableEntryDetail{
		reminderEntrySpan("e1", "sub1", "d1", "noon", "14:00"),
		reminderEntrySpan("e2", "sub2", "d1", "13:00", "14:00"),
	}}
	svc := newReminderService(timetable, &mockReminderAttendance{}, newMockReminderStore(), &mockReminderNotifier{}, now)

	pending, err := svc.Pending(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "e2", pending[0].EntryID)
}

func TestReminderServicePendingSkipsUnstartedSession(t *testing.T) {
	// Both sessions end inside the window, but only the one already in
	// progress is due for marking.
	now := time.Date(2026, time.March, 10, 13, 53, 0, 0, time.UTC)
	timetable := &mockReminderTimetable{entries: []models.TimetableEntryDetail{
		reminderEntrySpan("e1", "sub1", "d1", "13:58", "14:05"),
		reminderEntrySpan("e2", "sub2", "d1", "13:50", "14:05"),
	}}
	svc := newReminderService(timetable, &mockReminderAttendance{}, newMockReminderStore(), &mockReminderNotifier{}, now)

	pending, err := svc.Pending(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "e2", pending[0].EntryID)
}

func TestReminderServicePendingWindowBoundExact(t *testing.T) {
	// 15m30s before the end is outside the window; exactly 15m is inside.
	timetable := &mockReminderTimetable{entries: []models.TimetableEntryDetail{
		reminderEntry("e1", "sub1", "d1", "14:00"),
	}}

	early := time.Date(2026, time.March, 10, 13, 44, 30, 0, time.UTC)
	svc := newReminderService(timetable, &mockReminderAttendance{}, newMockReminderStore(), &mockReminderNotifier{}, early)
	pending, err := svc.Pending(context.Background(), "t1")
	require.NoError(t, err)
	assert.Empty(t, pending)

	onBound := time.Date(2026, time.March, 10, 13, 45, 0, 0, time.UTC)
	svc = newReminderService(timetable, &mockReminderAttendance{}, newMockReminderStore(), &mockReminderNotifier{}, onBound)
	pending, err = svc.Pending(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 15, pending[0].MinutesLeft)
}

func TestReminderServicePendingOrderedByEndTime(t *testing.T) {
	now := time.Date(2026, time.March, 10, 14, 0, 0, 0, time.UTC)
	timetable := &mockReminderTimetable{entries: []models.TimetableEntryDetail{
		reminderEntry("e3", "sub3", "d1", "14:15"),
		reminderEntry("e1", "sub1", "d1", "14:10"),
		reminderEntry("e2", "sub2", "d1", "14:10"),
	}}
	svc := newReminderService(timetable, &mockReminderAttendance{}, newMockReminderStore(), &mockReminderNotifier{}, now)

	pending, err := svc.Pending(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, "e1", pending[0].EntryID)
	assert.Equal(t, "e2", pending[1].EntryID)
	assert.Equal(t, "e3", pending[2].EntryID)
}

func TestReminderServiceDismissHidesPending(t *testing.T) {
	now := time.Date(2026, time.March, 10, 13, 52, 0, 0, time.UTC)
	timetable := &mockReminderTimetable{entries: []models.TimetableEntryDetail{
		reminderEntry("e1", "sub1", "d1", "14:00"),
	}}
	store := newMockReminderStore()
	svc := newReminderService(timetable, &mockReminderAttendance{}, store, &mockReminderNotifier{}, now)

	pending, err := svc.Pending(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, svc.Dismiss(context.Background(), "t1", pending[0].Key))

	pending, err = svc.Pending(context.Background(), "t1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestReminderServiceDismissRequiresKey(t *testing.T) {
	svc := newReminderService(&mockReminderTimetable{}, &mockReminderAttendance{}, newMockReminderStore(), &mockReminderNotifier{}, time.Now())
	require.Error(t, svc.Dismiss(context.Background(), "t1", ""))
}

func TestReminderServiceEmitDueOncePerDay(t *testing.T) {
	now := time.Date(2026, time.March, 10, 13, 52, 0, 0, time.UTC)
	timetable := &mockReminderTimetable{entries: []models.TimetableEntryDetail{
		reminderEntry("e1", "sub1", "d1", "14:00"),
	}}
	store := newMockReminderStore()
	notifier := &mockReminderNotifier{}
	svc := newReminderService(timetable, &mockReminderAttendance{}, store, notifier, now)

	svc.emitDue(context.Background(), "t1")
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "e1", notifier.sent[0].EntryID)

	// Second pass inside the same window must not notify again.
	svc.emitDue(context.Background(), "t1")
	assert.Len(t, notifier.sent, 1)
}

func TestReminderServiceEmitDueSingleNotificationPerPass(t *testing.T) {
	now := time.Date(2026, time.March, 10, 13, 52, 0, 0, time.UTC)
	timetable := &mockReminderTimetable{entries: []models.TimetableEntryDetail{
		reminderEntry("e1", "sub1", "d1", "14:00"),
		reminderEntry("e2", "sub2", "d1", "14:00"),
	}}
	notifier := &mockReminderNotifier{}
	svc := newReminderService(timetable, &mockReminderAttendance{}, newMockReminderStore(), notifier, now)

	svc.emitDue(context.Background(), "t1")
	assert.Len(t, notifier.sent, 1)
}

func TestReminderServiceClearStale(t *testing.T) {
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	store := newMockReminderStore()
	svc := newReminderService(&mockReminderTimetable{}, &mockReminderAttendance{}, store, &mockReminderNotifier{}, now)

	svc.clearStale(context.Background(), "t1")
	require.Len(t, store.cleared, 1)
	assert.Equal(t, "2026-03-09", store.cleared[0])
}
