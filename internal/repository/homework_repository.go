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

// HomeworkRepository provides database access for homework and announcements.
type HomeworkRepository struct {
	db *sqlx.DB
}

// NewHomeworkRepository creates a new instance of HomeworkRepository.
func NewHomeworkRepository(db *sqlx.DB) *HomeworkRepository {
	return &HomeworkRepository{db: db}
}

// ListHomework returns homework for a tuition, optionally narrowed to a division.
func (r *HomeworkRepository) ListHomework(ctx context.Context, tuitionID, divisionID string) ([]models.Homework, error) {
	query := `SELECT id, tuition_id, division_id, subject_id, faculty_id, title, details, due_date, created_at, updated_at
        FROM homework WHERE tuition_id = $1`
	args := []interface{}{tuitionID}
	if divisionID != "" {
		query += " AND division_id = $2"
		args = append(args, divisionID)
	}
	query += " ORDER BY created_at DESC"
	var list []models.Homework
	if err := r.db.SelectContext(ctx, &list, query, args...); err != nil {
		return nil, fmt.Errorf("list homework: %w", err)
	}
	return list, nil
}

// FindHomeworkByID loads a homework row scoped to a tuition.
func (r *HomeworkRepository) FindHomeworkByID(ctx context.Context, tuitionID, id string) (*models.Homework, error) {
	const query = `SELECT id, tuition_id, division_id, subject_id, faculty_id, title, details, due_date, created_at, updated_at
        FROM homework WHERE tuition_id = $1 AND id = $2 LIMIT 1`
	var hw models.Homework
	if err := r.db.GetContext(ctx, &hw, query, tuitionID, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find homework: %w", err)
	}
	return &hw, nil
}

// CreateHomework inserts a homework row.
func (r *HomeworkRepository) CreateHomework(ctx context.Context, hw *models.Homework) error {
	if hw.ID == "" {
		hw.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	hw.CreatedAt = now
	hw.UpdatedAt = now
	const query = `INSERT INTO homework (id, tuition_id, division_id, subject_id, faculty_id, title, details, due_date, created_at, updated_at)
        VALUES (:id, :tuition_id, :division_id, :subject_id, :faculty_id, :title, :details, :due_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, hw); err != nil {
		return fmt.Errorf("create homework: %w", err)
	}
	return nil
}

// UpdateHomework rewrites a homework row scoped to its tuition.
func (r *HomeworkRepository) UpdateHomework(ctx context.Context, hw *models.Homework) error {
	hw.UpdatedAt = time.Now().UTC()
	const query = `UPDATE homework SET division_id = :division_id, subject_id = :subject_id,
            faculty_id = :faculty_id, title = :title, details = :details, due_date = :due_date,
            updated_at = :updated_at
        WHERE id = :id AND tuition_id = :tuition_id`
	result, err := r.db.NamedExecContext(ctx, query, hw)
	if err != nil {
		return fmt.Errorf("update homework: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update homework: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteHomework removes a homework row.
func (r *HomeworkRepository) DeleteHomework(ctx context.Context, tuitionID, id string) error {
	const query = `DELETE FROM homework WHERE tuition_id = $1 AND id = $2`
	result, err := r.db.ExecContext(ctx, query, tuitionID, id)
	if err != nil {
		return fmt.Errorf("delete homework: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete homework: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListAnnouncements returns unexpired announcements for a tuition, newest first.
func (r *HomeworkRepository) ListAnnouncements(ctx context.Context, tuitionID string, asOf time.Time) ([]models.Announcement, error) {
	const query = `SELECT id, tuition_id, title, body, audience, posted_by, expires_at, created_at, updated_at
        FROM announcements
        WHERE tuition_id = $1 AND (expires_at IS NULL OR expires_at > $2)
        ORDER BY created_at DESC`
	var list []models.Announcement
	if err := r.db.SelectContext(ctx, &list, query, tuitionID, asOf); err != nil {
		return nil, fmt.Errorf("list announcements: %w", err)
	}
	return list, nil
}

// CreateAnnouncement inserts an announcement.
func (r *HomeworkRepository) CreateAnnouncement(ctx context.Context, ann *models.Announcement) error {
	if ann.ID == "" {
		ann.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	ann.CreatedAt = now
	ann.UpdatedAt = now
	const query = `INSERT INTO announcements (id, tuition_id, title, body, audience, posted_by, expires_at, created_at, updated_at)
        VALUES (:id, :tuition_id, :title, :body, :audience, :posted_by, :expires_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, ann); err != nil {
		return fmt.Errorf("create announcement: %w", err)
	}
	return nil
}

// DeleteAnnouncement removes an announcement.
func (r *HomeworkRepository) DeleteAnnouncement(ctx context.Context, tuitionID, id string) error {
	const query = `DELETE FROM announcements WHERE tuition_id = $1 AND id = $2`
	result, err := r.db.ExecContext(ctx, query, tuitionID, id)
	if err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
