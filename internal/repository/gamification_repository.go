package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edunexa/tuition-api/internal/models"
)

// GamificationRepository provides database access for challenges, badges and
// the raw inputs of the leaderboard.
type GamificationRepository struct {
	db *sqlx.DB
}

// NewGamificationRepository creates a new instance of GamificationRepository.
func NewGamificationRepository(db *sqlx.DB) *GamificationRepository {
	return &GamificationRepository{db: db}
}

// ListChallenges returns challenges for a tuition, newest first.
func (r *GamificationRepository) ListChallenges(ctx context.Context, tuitionID string, activeOnly bool) ([]models.Challenge, error) {
	query := `SELECT id, tuition_id, title, description, points, starts_at, ends_at, active, created_at, updated_at
        FROM challenges WHERE tuition_id = $1`
	if activeOnly {
		query += " AND active = true"
	}
	query += " ORDER BY created_at DESC"
	var challenges []models.Challenge
	if err := r.db.SelectContext(ctx, &challenges, query, tuitionID); err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	return challenges, nil
}

// FindChallengeByID loads a challenge scoped to a tuition.
func (r *GamificationRepository) FindChallengeByID(ctx context.Context, tuitionID, id string) (*models.Challenge, error) {
	const query = `SELECT id, tuition_id, title, description, points, starts_at, ends_at, active, created_at, updated_at
        FROM challenges WHERE tuition_id = $1 AND id = $2 LIMIT 1`
	var challenge models.Challenge
	if err := r.db.GetContext(ctx, &challenge, query, tuitionID, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find challenge: %w", err)
	}
	return &challenge, nil
}

// CreateChallenge inserts a challenge record.
func (r *GamificationRepository) CreateChallenge(ctx context.Context, challenge *models.Challenge) error {
	if challenge.ID == "" {
		challenge.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	challenge.CreatedAt = now
	challenge.UpdatedAt = now
	const query = `INSERT INTO challenges (id, tuition_id, title, description, points, starts_at, ends_at, active, created_at, updated_at)
        VALUES (:id, :tuition_id, :title, :description, :points, :starts_at, :ends_at, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, challenge); err != nil {
		return fmt.Errorf("create challenge: %w", err)
	}
	return nil
}

// UpdateChallenge rewrites a challenge scoped to its tuition.
func (r *GamificationRepository) UpdateChallenge(ctx context.Context, challenge *models.Challenge) error {
	challenge.UpdatedAt = time.Now().UTC()
	const query = `UPDATE challenges SET title = :title, description = :description, points = :points,
            starts_at = :starts_at, ends_at = :ends_at, active = :active, updated_at = :updated_at
        WHERE id = :id AND tuition_id = :tuition_id`
	result, err := r.db.NamedExecContext(ctx, query, challenge)
	if err != nil {
		return fmt.Errorf("update challenge: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update challenge: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteChallenge removes a challenge and its completions.
func (r *GamificationRepository) DeleteChallenge(ctx context.Context, tuitionID, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin challenge delete tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM challenge_completions WHERE tuition_id = $1 AND challenge_id = $2`, tuitionID, id); err != nil {
		return fmt.Errorf("delete challenge completions: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM challenges WHERE tuition_id = $1 AND id = $2`, tuitionID, id)
	if err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit challenge delete tx: %w", err)
	}
	return nil
}

// RecordCompletion marks a challenge complete for a student. Duplicate
// completions are ignored.
func (r *GamificationRepository) RecordCompletion(ctx context.Context, completion *models.ChallengeCompletion) error {
	if completion.ID == "" {
		completion.ID = uuid.NewString()
	}
	if completion.CompletedAt.IsZero() {
		completion.CompletedAt = time.Now().UTC()
	}
	const query = `INSERT INTO challenge_completions (id, tuition_id, challenge_id, student_id, completed_at)
        VALUES (:id, :tuition_id, :challenge_id, :student_id, :completed_at)
        ON CONFLICT (tuition_id, challenge_id, student_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, completion); err != nil {
		return fmt.Errorf("record challenge completion: %w", err)
	}
	return nil
}

// ListBadges returns badge definitions for a tuition.
func (r *GamificationRepository) ListBadges(ctx context.Context, tuitionID string) ([]models.Badge, error) {
	const query = `SELECT id, tuition_id, name, icon, criteria, points, created_at, updated_at
        FROM badges WHERE tuition_id = $1 ORDER BY name ASC`
	var badges []models.Badge
	if err := r.db.SelectContext(ctx, &badges, query, tuitionID); err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	return badges, nil
}

// CreateBadge inserts a badge definition.
func (r *GamificationRepository) CreateBadge(ctx context.Context, badge *models.Badge) error {
	if badge.ID == "" {
		badge.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	badge.CreatedAt = now
	badge.UpdatedAt = now
	const query = `INSERT INTO badges (id, tuition_id, name, icon, criteria, points, created_at, updated_at)
        VALUES (:id, :tuition_id, :name, :icon, :criteria, :points, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, badge); err != nil {
		return fmt.Errorf("create badge: %w", err)
	}
	return nil
}

// AwardBadge grants a badge to a student. Duplicate awards are ignored.
func (r *GamificationRepository) AwardBadge(ctx context.Context, award *models.StudentBadge) error {
	if award.ID == "" {
		award.ID = uuid.NewString()
	}
	if award.AwardedAt.IsZero() {
		award.AwardedAt = time.Now().UTC()
	}
	const query = `INSERT INTO student_badges (id, tuition_id, badge_id, student_id, awarded_at, awarded_by)
        VALUES (:id, :tuition_id, :badge_id, :student_id, :awarded_at, :awarded_by)
        ON CONFLICT (tuition_id, badge_id, student_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, award); err != nil {
		return fmt.Errorf("award badge: %w", err)
	}
	return nil
}

// RevokeBadge withdraws a badge from a student.
func (r *GamificationRepository) RevokeBadge(ctx context.Context, tuitionID, badgeID, studentID string) error {
	const query = `DELETE FROM student_badges WHERE tuition_id = $1 AND badge_id = $2 AND student_id = $3`
	result, err := r.db.ExecContext(ctx, query, tuitionID, badgeID, studentID)
	if err != nil {
		return fmt.Errorf("revoke badge: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListStudentBadges returns the badges awarded to a student.
func (r *GamificationRepository) ListStudentBadges(ctx context.Context, tuitionID, studentID string) ([]models.StudentBadge, error) {
	const query = `SELECT id, tuition_id, badge_id, student_id, awarded_at, awarded_by
        FROM student_badges WHERE tuition_id = $1 AND student_id = $2 ORDER BY awarded_at DESC`
	var awards []models.StudentBadge
	if err := r.db.SelectContext(ctx, &awards, query, tuitionID, studentID); err != nil {
		return nil, fmt.Errorf("list student badges: %w", err)
	}
	return awards, nil
}

// leaderboardInput is an intermediate row combining the counters that feed the
// ranked leaderboard. Streaks are derived per student in the service layer.
type LeaderboardInput struct {
	StudentID   string `db:"student_id"`
	StudentName string `db:"student_name"`
	BadgeCount  int    `db:"badge_count"`
	Points      int    `db:"points"`
}

// LeaderboardInputs aggregates badge counts and challenge/badge points for
// every active student of a tuition.
func (r *GamificationRepository) LeaderboardInputs(ctx context.Context, tuitionID string) ([]LeaderboardInput, error) {
	const query = `SELECT s.id AS student_id, s.full_name AS student_name,
            COUNT(DISTINCT sb.id) AS badge_count,
            COALESCE(SUM(DISTINCT b.points), 0) + COALESCE(cp.challenge_points, 0) AS points
        FROM students s
        LEFT JOIN student_badges sb ON sb.student_id = s.id AND sb.tuition_id = s.tuition_id
        LEFT JOIN badges b ON b.id = sb.badge_id
        LEFT JOIN (
            SELECT cc.student_id, SUM(c.points) AS challenge_points
            FROM challenge_completions cc
            JOIN challenges c ON c.id = cc.challenge_id
            WHERE cc.tuition_id = $1
            GROUP BY cc.student_id
        ) cp ON cp.student_id = s.id
        WHERE s.tuition_id = $1 AND s.active = true
        GROUP BY s.id, s.full_name, cp.challenge_points`
	var inputs []LeaderboardInput
	if err := r.db.SelectContext(ctx, &inputs, query, tuitionID); err != nil {
		return nil, fmt.Errorf("leaderboard inputs: %w", err)
	}
	return inputs, nil
}
