package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edunexa/tuition-api/internal/models"
	"github.com/edunexa/tuition-api/internal/repository"
	appErrors "github.com/edunexa/tuition-api/pkg/errors"
)

type mockPresentDates struct {
	dates map[string][]time.Time
	err   error
}

func (m *mockPresentDates) PresentDates(ctx context.Context, tuitionID, studentID string, limit int) ([]time.Time, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.dates[studentID], nil
}

type mockGamificationRepo struct {
	challenges  map[string]models.Challenge
	completions []models.ChallengeCompletion
	badges      []models.Badge
	awards      []models.StudentBadge
	inputs      []repository.LeaderboardInput
}

func (m *mockGamificationRepo) ListChallenges(ctx context.Context, tuitionID string, activeOnly bool) ([]models.Challenge, error) {
	out := make([]models.Challenge, 0, len(m.challenges))
	for _, ch := range m.challenges {
		if activeOnly && !ch.Active {
			continue
		}
		out = append(out, ch)
	}
	return out, nil
}

func (m *mockGamificationRepo) FindChallengeByID(ctx context.Context, tuitionID, id string) (*models.Challenge, error) {
	if ch, ok := m.challenges[id]; ok {
		return &ch, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockGamificationRepo) CreateChallenge(ctx context.Context, challenge *models.Challenge) error {
	if m.challenges == nil {
		m.challenges = make(map[string]models.Challenge)
	}
	if challenge.ID == "" {
		challenge.ID = "generated"
	}
	m.challenges[challenge.ID] = *challenge
	return nil
}

func (m *mockGamificationRepo) UpdateChallenge(ctx context.Context, challenge *models.Challenge) error {
	m.challenges[challenge.ID] = *challenge
	return nil
}

func (m *mockGamificationRepo) DeleteChallenge(ctx context.Context, tuitionID, id string) error {
	delete(m.challenges, id)
	return nil
}

func (m *mockGamificationRepo) RecordCompletion(ctx context.Context, completion *models.ChallengeCompletion) error {
	m.completions = append(m.completions, *completion)
	return nil
}

func (m *mockGamificationRepo) ListBadges(ctx context.Context, tuitionID string) ([]models.Badge, error) {
	return m.badges, nil
}

func (m *mockGamificationRepo) CreateBadge(ctx context.Context, badge *models.Badge) error {
	if badge.ID == "" {
		badge.ID = "generated"
	}
	m.badges = append(m.badges, *badge)
	return nil
}

func (m *mockGamificationRepo) AwardBadge(ctx context.Context, award *models.StudentBadge) error {
	m.awards = append(m.awards, *award)
	return nil
}

func (m *mockGamificationRepo) RevokeBadge(ctx context.Context, tuitionID, badgeID, studentID string) error {
	for i, award := range m.awards {
		if award.TuitionID == tuitionID && award.BadgeID == badgeID && award.StudentID == studentID {
			m.awards = append(m.awards[:i], m.awards[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *mockGamificationRepo) ListStudentBadges(ctx context.Context, tuitionID, studentID string) ([]models.StudentBadge, error) {
	return m.awards, nil
}

func (m *mockGamificationRepo) LeaderboardInputs(ctx context.Context, tuitionID string) ([]repository.LeaderboardInput, error) {
	return m.inputs, nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestComputeStreaks(t *testing.T) {
	today := day(2026, time.March, 10)

	cases := []struct {
		name    string
		dates   []time.Time
		current int
		longest int
	}{
		{name: "empty", dates: nil, current: 0, longest: 0},
		{
			name:    "run ending today",
			dates:   []time.Time{day(2026, time.March, 10), day(2026, time.March, 9), day(2026, time.March, 8)},
			current: 3,
			longest: 3,
		},
		{
			name:    "run ending yesterday still counts",
			dates:   []time.Time{day(2026, time.March, 9), day(2026, time.March, 8)},
			current: 2,
			longest: 2,
		},
		{
			name:    "stale run keeps longest only",
			dates:   []time.Time{day(2026, time.March, 5), day(2026, time.March, 4), day(2026, time.March, 3)},
			current: 0,
			longest: 3,
		},
		{
			name: "gap resets current but not longest",
			dates: []time.Time{
				day(2026, time.March, 10), day(2026, time.March, 9),
				day(2026, time.March, 5), day(2026, time.March, 4), day(2026, time.March, 3), day(2026, time.March, 2),
			},
			current: 2,
			longest: 4,
		},
		{
			name:    "single day today",
			dates:   []time.Time{day(2026, time.March, 10)},
			current: 1,
			longest: 1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			current, longest := computeStreaks(tc.dates, today)
			assert.Equal(t, tc.current, current, "current")
			assert.Equal(t, tc.longest, longest, "longest")
		})
	}
}

func TestGamificationServiceStreak(t *testing.T) {
	attendance := &mockPresentDates{dates: map[string][]time.Time{
		"s1": {day(2026, time.March, 10), day(2026, time.March, 9)},
	}}
	svc := NewGamificationService(&mockGamificationRepo{}, attendance, nil, nil, zap.NewNop(), GamificationConfig{}).
		WithClock(func() time.Time { return day(2026, time.March, 10) })

	info, err := svc.Streak(context.Background(), "t1", "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, info.CurrentStreak)
	assert.Equal(t, 2, info.LongestStreak)
}

func TestGamificationServiceLeaderboard(t *testing.T) {
	repo := &mockGamificationRepo{inputs: []repository.LeaderboardInput{
		{StudentID: "s1", StudentName: "Asha", BadgeCount: 1, Points: 10},
		{StudentID: "s2", StudentName: "Ravi", BadgeCount: 0, Points: 10},
		{StudentID: "s3", StudentName: "Meera", BadgeCount: 2, Points: 50},
	}}
	attendance := &mockPresentDates{dates: map[string][]time.Time{
		// s1 carries a 3-day streak worth 3*2 bonus points.
		"s1": {day(2026, time.March, 10), day(2026, time.March, 9), day(2026, time.March, 8)},
	}}
	svc := NewGamificationService(repo, attendance, nil, nil, zap.NewNop(), GamificationConfig{StreakPoints: 2}).
		WithClock(func() time.Time { return day(2026, time.March, 10) })

	entries, err := svc.Leaderboard(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "s3", entries[0].StudentID)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "s1", entries[1].StudentID)
	assert.Equal(t, 16, entries[1].Points)
	assert.Equal(t, "s2", entries[2].StudentID)
	assert.Equal(t, 3, entries[2].Rank)
}

func TestGamificationServiceLeaderboardCapped(t *testing.T) {
	repo := &mockGamificationRepo{inputs: []repository.LeaderboardInput{
		{StudentID: "s1", StudentName: "A", Points: 3},
		{StudentID: "s2", StudentName: "B", Points: 2},
		{StudentID: "s3", StudentName: "C", Points: 1},
	}}
	svc := NewGamificationService(repo, &mockPresentDates{}, nil, nil, zap.NewNop(), GamificationConfig{LeaderboardSize: 2})

	entries, err := svc.Leaderboard(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "s1", entries[0].StudentID)
}

func TestGamificationServiceCompleteChallenge(t *testing.T) {
	now := day(2026, time.March, 10)
	starts := day(2026, time.March, 1)
	ends := day(2026, time.March, 31)
	repo := &mockGamificationRepo{challenges: map[string]models.Challenge{
		"c1": {ID: "c1", Title: "Read daily", Active: true, StartsAt: &starts, EndsAt: &ends},
		"c2": {ID: "c2", Title: "Dormant", Active: false},
	}}
	svc := NewGamificationService(repo, &mockPresentDates{}, nil, nil, zap.NewNop(), GamificationConfig{}).
		WithClock(func() time.Time { return now })

	require.NoError(t, svc.CompleteChallenge(context.Background(), "t1", "c1", "s1"))
	require.Len(t, repo.completions, 1)
	assert.Equal(t, "s1", repo.completions[0].StudentID)

	err := svc.CompleteChallenge(context.Background(), "t1", "c2", "s1")
	require.Error(t, err)

	err = svc.CompleteChallenge(context.Background(), "t1", "missing", "s1")
	require.Error(t, err)
}

func TestGamificationServiceCompleteChallengeOutsideWindow(t *testing.T) {
	starts := day(2026, time.April, 1)
	repo := &mockGamificationRepo{challenges: map[string]models.Challenge{
		"c1": {ID: "c1", Title: "Future", Active: true, StartsAt: &starts},
	}}
	svc := NewGamificationService(repo, &mockPresentDates{}, nil, nil, zap.NewNop(), GamificationConfig{}).
		WithClock(func() time.Time { return day(2026, time.March, 10) })

	err := svc.CompleteChallenge(context.Background(), "t1", "c1", "s1")
	require.Error(t, err)
	assert.Empty(t, repo.completions)
}

func TestGamificationServiceAwardAndRevokeBadge(t *testing.T) {
	repo := &mockGamificationRepo{}
	svc := NewGamificationService(repo, &mockPresentDates{}, nil, nil, zap.NewNop(), GamificationConfig{})

	require.NoError(t, svc.AwardBadge(context.Background(), "t1", "b1", "s1", "u1"))
	require.Len(t, repo.awards, 1)
	require.NotNil(t, repo.awards[0].AwardedBy)
	assert.Equal(t, "u1", *repo.awards[0].AwardedBy)

	require.NoError(t, svc.RevokeBadge(context.Background(), "t1", "b1", "s1"))
	assert.Empty(t, repo.awards)

	err := svc.RevokeBadge(context.Background(), "t1", "b1", "s1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
