package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edunexa/tuition-api/internal/models"
	"github.com/edunexa/tuition-api/internal/repository"
	appErrors "github.com/edunexa/tuition-api/pkg/errors"
)

type presentDatesProvider interface {
	PresentDates(ctx context.Context, tuitionID, studentID string, limit int) ([]time.Time, error)
}

type gamificationRepository interface {
	ListChallenges(ctx context.Context, tuitionID string, activeOnly bool) ([]models.Challenge, error)
	FindChallengeByID(ctx context.Context, tuitionID, id string) (*models.Challenge, error)
	CreateChallenge(ctx context.Context, challenge *models.Challenge) error
	UpdateChallenge(ctx context.Context, challenge *models.Challenge) error
	DeleteChallenge(ctx context.Context, tuitionID, id string) error
	RecordCompletion(ctx context.Context, completion *models.ChallengeCompletion) error
	ListBadges(ctx context.Context, tuitionID string) ([]models.Badge, error)
	CreateBadge(ctx context.Context, badge *models.Badge) error
	AwardBadge(ctx context.Context, award *models.StudentBadge) error
	RevokeBadge(ctx context.Context, tuitionID, badgeID, studentID string) error
	ListStudentBadges(ctx context.Context, tuitionID, studentID string) ([]models.StudentBadge, error)
	LeaderboardInputs(ctx context.Context, tuitionID string) ([]repository.LeaderboardInput, error)
}

// GamificationConfig tunes streak scoring and leaderboard shape.
type GamificationConfig struct {
	StreakPoints    int
	LeaderboardSize int
	CacheTTL        time.Duration
}

// ChallengeRequest holds payload for creating or updating challenges.
type ChallengeRequest struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description"`
	Points      int        `json:"points" validate:"gte=0"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	Active      *bool      `json:"active,omitempty"`
}

// BadgeRequest holds payload for creating badges.
type BadgeRequest struct {
	Name     string `json:"name" validate:"required"`
	Icon     string `json:"icon"`
	Criteria string `json:"criteria"`
	Points   int    `json:"points" validate:"gte=0"`
}

// GamificationService computes streaks and assembles the leaderboard on top
// of challenge and badge bookkeeping.
type GamificationService struct {
	repo       gamificationRepository
	attendance presentDatesProvider
	cache      *CacheService
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
	cfg        GamificationConfig
}

// NewGamificationService constructs the gamification service.
func NewGamificationService(repo gamificationRepository, attendance presentDatesProvider, cache *CacheService, validate *validator.Validate, logger *zap.Logger, cfg GamificationConfig) *GamificationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.StreakPoints <= 0 {
		cfg.StreakPoints = 2
	}
	if cfg.LeaderboardSize <= 0 {
		cfg.LeaderboardSize = 20
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &GamificationService{
		repo:       repo,
		attendance: attendance,
		cache:      cache,
		validator:  validate,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		cfg:        cfg,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *GamificationService) WithClock(now func() time.Time) *GamificationService {
	if now != nil {
		s.now = now
	}
	return s
}

// computeStreaks derives current and longest consecutive-day runs from a list
// of unique presence dates sorted newest first. The current streak survives
// only while its latest day is today or yesterday.
func computeStreaks(dates []time.Time, today time.Time) (current, longest int) {
	if len(dates) == 0 {
		return 0, 0
	}
	day := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	today = day(today)

	run := 1
	longest = 1
	for i := 1; i < len(dates); i++ {
		prev := day(dates[i-1])
		cur := day(dates[i])
		if prev.Sub(cur) == 24*time.Hour {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 1
		}
	}

	latest := day(dates[0])
	gap := today.Sub(latest)
	if gap < 0 || gap > 24*time.Hour {
		return 0, longest
	}
	current = 1
	for i := 1; i < len(dates); i++ {
		if day(dates[i-1]).Sub(day(dates[i])) == 24*time.Hour {
			current++
		} else {
			break
		}
	}
	return current, longest
}

// Streak returns the attendance streaks for one student.
func (s *GamificationService) Streak(ctx context.Context, tuitionID, studentID string) (*models.StreakInfo, error) {
	dates, err := s.attendance.PresentDates(ctx, tuitionID, studentID, 366)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance dates")
	}
	current, longest := computeStreaks(dates, s.now())
	return &models.StreakInfo{StudentID: studentID, CurrentStreak: current, LongestStreak: longest}, nil
}

// Leaderboard ranks students by points, then current streak, then name. The
// result is cached per tuition.
func (s *GamificationService) Leaderboard(ctx context.Context, tuitionID string) ([]models.LeaderboardEntry, error) {
	cacheKey := "leaderboard:" + tuitionID
	var cached []models.LeaderboardEntry
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return cached, nil
	}

	inputs, err := s.repo.LeaderboardInputs(ctx, tuitionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leaderboard inputs")
	}

	entries := make([]models.LeaderboardEntry, 0, len(inputs))
	for _, input := range inputs {
		dates, err := s.attendance.PresentDates(ctx, tuitionID, input.StudentID, 366)
		if err != nil {
			s.logger.Warn("failed to load attendance for leaderboard",
				zap.String("student_id", input.StudentID), zap.Error(err))
			continue
		}
		current, longest := computeStreaks(dates, s.now())
		entries = append(entries, models.LeaderboardEntry{
			StudentID:     input.StudentID,
			StudentName:   input.StudentName,
			CurrentStreak: current,
			LongestStreak: longest,
			BadgeCount:    input.BadgeCount,
			Points:        input.Points + current*s.cfg.StreakPoints,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		if entries[i].CurrentStreak != entries[j].CurrentStreak {
			return entries[i].CurrentStreak > entries[j].CurrentStreak
		}
		return entries[i].StudentName < entries[j].StudentName
	})
	if len(entries) > s.cfg.LeaderboardSize {
		entries = entries[:s.cfg.LeaderboardSize]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}

	if err := s.cache.Set(ctx, cacheKey, entries, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("leaderboard cache write failed", zap.Error(err))
	}
	return entries, nil
}

// ListChallenges returns challenges for a tuition.
func (s *GamificationService) ListChallenges(ctx context.Context, tuitionID string, activeOnly bool) ([]models.Challenge, error) {
	challenges, err := s.repo.ListChallenges(ctx, tuitionID, activeOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list challenges")
	}
	return challenges, nil
}

// CreateChallenge adds a challenge.
func (s *GamificationService) CreateChallenge(ctx context.Context, tuitionID string, req ChallengeRequest) (*models.Challenge, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid challenge payload")
	}
	challenge := &models.Challenge{
		TuitionID:   tuitionID,
		Title:       req.Title,
		Description: req.Description,
		Points:      req.Points,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		Active:      true,
	}
	if req.Active != nil {
		challenge.Active = *req.Active
	}
	if err := s.repo.CreateChallenge(ctx, challenge); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create challenge")
	}
	return challenge, nil
}

// CompleteChallenge records a completion for a student. The challenge must be
// active and inside its window when one is set.
func (s *GamificationService) CompleteChallenge(ctx context.Context, tuitionID, challengeID, studentID string) error {
	challenge, err := s.repo.FindChallengeByID(ctx, tuitionID, challengeID)
	if err != nil {
		return appErrors.Clone(appErrors.ErrNotFound, "challenge not found")
	}
	if !challenge.Active {
		return appErrors.Clone(appErrors.ErrValidation, "challenge is not active")
	}
	now := s.now()
	if challenge.StartsAt != nil && now.Before(*challenge.StartsAt) {
		return appErrors.Clone(appErrors.ErrValidation, "challenge has not started")
	}
	if challenge.EndsAt != nil && now.After(*challenge.EndsAt) {
		return appErrors.Clone(appErrors.ErrValidation, "challenge has ended")
	}
	completion := &models.ChallengeCompletion{
		TuitionID:   tuitionID,
		ChallengeID: challengeID,
		StudentID:   studentID,
		CompletedAt: now,
	}
	if err := s.repo.RecordCompletion(ctx, completion); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record completion")
	}
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("leaderboard:%s", tuitionID)); err != nil {
		s.logger.Warn("leaderboard cache invalidation failed", zap.Error(err))
	}
	return nil
}

// ListBadges returns badge definitions.
func (s *GamificationService) ListBadges(ctx context.Context, tuitionID string) ([]models.Badge, error) {
	badges, err := s.repo.ListBadges(ctx, tuitionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list badges")
	}
	return badges, nil
}

// CreateBadge adds a badge definition.
func (s *GamificationService) CreateBadge(ctx context.Context, tuitionID string, req BadgeRequest) (*models.Badge, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid badge payload")
	}
	badge := &models.Badge{
		TuitionID: tuitionID,
		Name:      req.Name,
		Icon:      req.Icon,
		Criteria:  req.Criteria,
		Points:    req.Points,
	}
	if err := s.repo.CreateBadge(ctx, badge); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create badge")
	}
	return badge, nil
}

// AwardBadge grants a badge to a student.
func (s *GamificationService) AwardBadge(ctx context.Context, tuitionID, badgeID, studentID string, awardedBy string) error {
	award := &models.StudentBadge{
		TuitionID: tuitionID,
		BadgeID:   badgeID,
		StudentID: studentID,
	}
	if awardedBy != "" {
		award.AwardedBy = &awardedBy
	}
	if err := s.repo.AwardBadge(ctx, award); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to award badge")
	}
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("leaderboard:%s", tuitionID)); err != nil {
		s.logger.Warn("leaderboard cache invalidation failed", zap.Error(err))
	}
	return nil
}

// RevokeBadge withdraws a badge from a student.
func (s *GamificationService) RevokeBadge(ctx context.Context, tuitionID, badgeID, studentID string) error {
	if err := s.repo.RevokeBadge(ctx, tuitionID, badgeID, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "badge award not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke badge")
	}
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("leaderboard:%s", tuitionID)); err != nil {
		s.logger.Warn("leaderboard cache invalidation failed", zap.Error(err))
	}
	return nil
}

// StudentBadges returns the badges awarded to one student.
func (s *GamificationService) StudentBadges(ctx context.Context, tuitionID, studentID string) ([]models.StudentBadge, error) {
	awards, err := s.repo.ListStudentBadges(ctx, tuitionID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student badges")
	}
	return awards, nil
}
