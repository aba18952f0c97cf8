package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edunexa/tuition-api/internal/models"
	appErrors "github.com/edunexa/tuition-api/pkg/errors"
)

type mockTimetableRepo struct {
	entries map[string]*models.TimetableEntryDetail
	nextID  int
}

func newMockTimetableRepo() *mockTimetableRepo {
	return &mockTimetableRepo{entries: make(map[string]*models.TimetableEntryDetail)}
}

func (m *mockTimetableRepo) List(_ context.Context, filter models.TimetableFilter) ([]models.TimetableEntryDetail, int, error) {
	out := make([]models.TimetableEntryDetail, 0, len(m.entries))
	for _, entry := range m.entries {
		if entry.TuitionID == filter.TuitionID {
			out = append(out, *entry)
		}
	}
	return out, len(out), nil
}

func (m *mockTimetableRepo) FindByID(_ context.Context, tuitionID, id string) (*models.TimetableEntryDetail, error) {
	entry, ok := m.entries[id]
	if !ok || entry.TuitionID != tuitionID {
		return nil, sql.ErrNoRows
	}
	clone := *entry
	return &clone, nil
}

func (m *mockTimetableRepo) Create(_ context.Context, entry *models.TimetableEntry) error {
	m.nextID++
	entry.ID = "e" + string(rune('0'+m.nextID))
	m.entries[entry.ID] = &models.TimetableEntryDetail{TimetableEntry: *entry}
	return nil
}

func (m *mockTimetableRepo) Update(_ context.Context, entry *models.TimetableEntry) error {
	existing, ok := m.entries[entry.ID]
	if !ok || existing.TuitionID != entry.TuitionID {
		return sql.ErrNoRows
	}
	existing.TimetableEntry = *entry
	return nil
}

func (m *mockTimetableRepo) Delete(_ context.Context, tuitionID, id string) error {
	entry, ok := m.entries[id]
	if !ok || entry.TuitionID != tuitionID {
		return sql.ErrNoRows
	}
	delete(m.entries, id)
	return nil
}

func validTimetableRequest() TimetableEntryRequest {
	return TimetableEntryRequest{
		DivisionID: "d1",
		SubjectID:  "sub1",
		FacultyID:  "f1",
		EntryType:  models.TimetableEntryRegular,
		DayOfWeek:  "Monday",
		StartTime:  "14:00",
		EndTime:    "15:00",
		Room:       "B-2",
	}
}

func TestTimetableServiceCreate(t *testing.T) {
	repo := newMockTimetableRepo()
	svc := NewTimetableService(repo, nil, nil)

	entry, err := svc.Create(context.Background(), "t1", validTimetableRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "t1", entry.TuitionID)
	assert.Equal(t, "monday", entry.DayOfWeek)
	assert.True(t, entry.Active)
}

func TestTimetableServiceCreateRejectsInvertedTimes(t *testing.T) {
	svc := NewTimetableService(newMockTimetableRepo(), nil, nil)

	req := validTimetableRequest()
	req.StartTime = "15:00"
	req.EndTime = "14:00"
	_, err := svc.Create(context.Background(), "t1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	req.EndTime = "15:00"
	_, err = svc.Create(context.Background(), "t1", req)
	require.Error(t, err, "zero-length sessions are rejected")
}

func TestTimetableServiceCreateRejectsBadClock(t *testing.T) {
	svc := NewTimetableService(newMockTimetableRepo(), nil, nil)

	for _, bad := range []string{"2pm", "14:60", "24:00", "14-30", "9:30"} {
		req := validTimetableRequest()
		req.StartTime = bad
		_, err := svc.Create(context.Background(), "t1", req)
		require.Error(t, err, "start time %q", bad)
		assert.Equal(t, appErrors.ErrBadTimeFormat.Code, appErrors.FromError(err).Code)
	}
}

func TestTimetableServiceCreateRegularNeedsWeekday(t *testing.T) {
	svc := NewTimetableService(newMockTimetableRepo(), nil, nil)

	req := validTimetableRequest()
	req.DayOfWeek = "someday"
	_, err := svc.Create(context.Background(), "t1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceCreateSpecialNeedsDate(t *testing.T) {
	repo := newMockTimetableRepo()
	svc := NewTimetableService(repo, nil, nil)

	req := validTimetableRequest()
	req.EntryType = models.TimetableEntrySpecial
	req.DayOfWeek = ""
	_, err := svc.Create(context.Background(), "t1", req)
	require.Error(t, err)

	date := day(2026, time.March, 14)
	req.Date = &date
	entry, err := svc.Create(context.Background(), "t1", req)
	require.NoError(t, err)
	require.NotNil(t, entry.Date)
	assert.Equal(t, date, *entry.Date)

	before := day(2026, time.March, 13)
	req.EndDate = &before
	_, err = svc.Create(context.Background(), "t1", req)
	require.Error(t, err, "end date precedes date")
}

func TestTimetableServiceUpdateNotFound(t *testing.T) {
	svc := NewTimetableService(newMockTimetableRepo(), nil, nil)

	_, err := svc.Update(context.Background(), "t1", "missing", validTimetableRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceUpdate(t *testing.T) {
	repo := newMockTimetableRepo()
	svc := NewTimetableService(repo, nil, nil)

	created, err := svc.Create(context.Background(), "t1", validTimetableRequest())
	require.NoError(t, err)

	req := validTimetableRequest()
	req.Room = "B-3"
	inactive := false
	req.Active = &inactive
	updated, err := svc.Update(context.Background(), "t1", created.ID, req)
	require.NoError(t, err)
	assert.Equal(t, "B-3", updated.Room)
	assert.False(t, updated.Active)
}

func TestParseClock(t *testing.T) {
	h, m, err := parseClock("09:45")
	require.NoError(t, err)
	assert.Equal(t, 9, h)
	assert.Equal(t, 45, m)

	h, m, err = parseClock("23:59")
	require.NoError(t, err)
	assert.Equal(t, 23, h)
	assert.Equal(t, 59, m)
}
