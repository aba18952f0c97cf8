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

type mockHomeworkRepo struct {
	homework      map[string]*models.Homework
	announcements map[string]*models.Announcement
	nextID        int
}

func newMockHomeworkRepo() *mockHomeworkRepo {
	return &mockHomeworkRepo{
		homework:      make(map[string]*models.Homework),
		announcements: make(map[string]*models.Announcement),
	}
}

func (m *mockHomeworkRepo) ListHomework(_ context.Context, tuitionID, divisionID string) ([]models.Homework, error) {
	out := make([]models.Homework, 0, len(m.homework))
	for _, hw := range m.homework {
		if hw.TuitionID != tuitionID {
			continue
		}
		if divisionID != "" && hw.DivisionID != divisionID {
			continue
		}
		out = append(out, *hw)
	}
	return out, nil
}

func (m *mockHomeworkRepo) FindHomeworkByID(_ context.Context, tuitionID, id string) (*models.Homework, error) {
	hw, ok := m.homework[id]
	if !ok || hw.TuitionID != tuitionID {
		return nil, sql.ErrNoRows
	}
	clone := *hw
	return &clone, nil
}

func (m *mockHomeworkRepo) CreateHomework(_ context.Context, hw *models.Homework) error {
	m.nextID++
	hw.ID = "hw" + string(rune('0'+m.nextID))
	m.homework[hw.ID] = hw
	return nil
}

func (m *mockHomeworkRepo) UpdateHomework(_ context.Context, hw *models.Homework) error {
	existing, ok := m.homework[hw.ID]
	if !ok || existing.TuitionID != hw.TuitionID {
		return sql.ErrNoRows
	}
	m.homework[hw.ID] = hw
	return nil
}

func (m *mockHomeworkRepo) DeleteHomework(_ context.Context, tuitionID, id string) error {
	hw, ok := m.homework[id]
	if !ok || hw.TuitionID != tuitionID {
		return sql.ErrNoRows
	}
	delete(m.homework, id)
	return nil
}

func (m *mockHomeworkRepo) ListAnnouncements(_ context.Context, tuitionID string, asOf time.Time) ([]models.Announcement, error) {
	out := make([]models.Announcement, 0, len(m.announcements))
	for _, ann := range m.announcements {
		if ann.TuitionID != tuitionID {
			continue
		}
		if ann.ExpiresAt != nil && ann.ExpiresAt.Before(asOf) {
			continue
		}
		out = append(out, *ann)
	}
	return out, nil
}

func (m *mockHomeworkRepo) CreateAnnouncement(_ context.Context, ann *models.Announcement) error {
	m.nextID++
	ann.ID = "ann" + string(rune('0'+m.nextID))
	m.announcements[ann.ID] = ann
	return nil
}

func (m *mockHomeworkRepo) DeleteAnnouncement(_ context.Context, tuitionID, id string) error {
	ann, ok := m.announcements[id]
	if !ok || ann.TuitionID != tuitionID {
		return sql.ErrNoRows
	}
	delete(m.announcements, id)
	return nil
}

type mockAnnouncementNotifier struct {
	notified []models.Announcement
}

func (m *mockAnnouncementNotifier) NotifyAnnouncement(_ context.Context, _ string, ann *models.Announcement) {
	m.notified = append(m.notified, *ann)
}

func validHomeworkRequest() CreateHomeworkRequest {
	return CreateHomeworkRequest{
		DivisionID: "0d9c5a3e-7f21-4b8a-9d4c-6e5f1a2b3c4d",
		SubjectID:  "5f0c2ab1-44d2-4a7a-9c63-0b2f1e8d7a90",
		Title:      "Algebra worksheet 4",
		Details:    "Problems 1-20, show working",
	}
}

func TestHomeworkServiceCreate(t *testing.T) {
	repo := newMockHomeworkRepo()
	svc := NewHomeworkService(repo, nil, nil, nil).
		WithClock(func() time.Time { return day(2026, time.March, 10) })

	facultyID := "f1"
	due := day(2026, time.March, 14)
	req := validHomeworkRequest()
	req.DueDate = &due
	hw, err := svc.CreateHomework(context.Background(), "t1", &facultyID, req)
	require.NoError(t, err)
	assert.NotEmpty(t, hw.ID)
	assert.Equal(t, "t1", hw.TuitionID)
	require.NotNil(t, hw.FacultyID)
	assert.Equal(t, "f1", *hw.FacultyID)
}

func TestHomeworkServiceCreateRejectsPastDueDate(t *testing.T) {
	svc := NewHomeworkService(newMockHomeworkRepo(), nil, nil, nil).
		WithClock(func() time.Time { return day(2026, time.March, 10) })

	due := day(2026, time.March, 9)
	req := validHomeworkRequest()
	req.DueDate = &due
	_, err := svc.CreateHomework(context.Background(), "t1", nil, req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestHomeworkServiceCreateValidation(t *testing.T) {
	svc := NewHomeworkService(newMockHomeworkRepo(), nil, nil, nil)

	req := validHomeworkRequest()
	req.DivisionID = "not-a-uuid"
	_, err := svc.CreateHomework(context.Background(), "t1", nil, req)
	require.Error(t, err)

	req = validHomeworkRequest()
	req.Title = ""
	_, err = svc.CreateHomework(context.Background(), "t1", nil, req)
	require.Error(t, err)
}

func TestHomeworkServiceUpdate(t *testing.T) {
	repo := newMockHomeworkRepo()
	svc := NewHomeworkService(repo, nil, nil, nil)

	hw, err := svc.CreateHomework(context.Background(), "t1", nil, validHomeworkRequest())
	require.NoError(t, err)

	req := validHomeworkRequest()
	req.Title = "Algebra worksheet 5"
	updated, err := svc.UpdateHomework(context.Background(), "t1", hw.ID, req)
	require.NoError(t, err)
	assert.Equal(t, "Algebra worksheet 5", updated.Title)

	_, err = svc.UpdateHomework(context.Background(), "t2", hw.ID, req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestHomeworkServiceDeleteNotFound(t *testing.T) {
	svc := NewHomeworkService(newMockHomeworkRepo(), nil, nil, nil)

	err := svc.DeleteHomework(context.Background(), "t1", "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestHomeworkServiceCreateAnnouncementNotifies(t *testing.T) {
	repo := newMockHomeworkRepo()
	notifier := &mockAnnouncementNotifier{}
	svc := NewHomeworkService(repo, notifier, nil, nil)

	postedBy := "u1"
	ann, err := svc.CreateAnnouncement(context.Background(), "t1", &postedBy, CreateAnnouncementRequest{
		Title: "Holiday on Friday",
		Body:  "Centre closed for Holi.",
	})
	require.NoError(t, err)
	assert.Equal(t, "students", ann.Audience)
	require.Len(t, notifier.notified, 1)
	assert.Equal(t, "Holiday on Friday", notifier.notified[0].Title)
}

func TestHomeworkServiceListAnnouncementsSkipsExpired(t *testing.T) {
	repo := newMockHomeworkRepo()
	svc := NewHomeworkService(repo, nil, nil, nil).
		WithClock(func() time.Time { return day(2026, time.March, 10) })

	expired := day(2026, time.March, 1)
	_, err := svc.CreateAnnouncement(context.Background(), "t1", nil, CreateAnnouncementRequest{
		Title:     "Old notice",
		Body:      "gone",
		ExpiresAt: &expired,
	})
	require.NoError(t, err)
	_, err = svc.CreateAnnouncement(context.Background(), "t1", nil, CreateAnnouncementRequest{
		Title: "Current notice",
		Body:  "stays",
	})
	require.NoError(t, err)

	items, err := svc.ListAnnouncements(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Current notice", items[0].Title)
}
