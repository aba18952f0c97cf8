package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edunexa/tuition-api/internal/models"
)

// SubjectRepository provides database access for subjects and divisions.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a new instance of SubjectRepository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// List returns subjects scoped to a tuition with total count.
func (r *SubjectRepository) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	baseQuery := `FROM subjects WHERE tuition_id = $1`
	args := []interface{}{filter.TuitionID}
	var conditions []string

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(code) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`SELECT id, tuition_id, name, code, active, created_at, updated_at %s ORDER BY name ASC LIMIT %d OFFSET %d`,
		baseQuery, pageSize, offset)
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list subjects: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + baseQuery
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count subjects: %w", err)
	}
	return subjects, total, nil
}

// FindByID loads a subject scoped to a tuition.
func (r *SubjectRepository) FindByID(ctx context.Context, tuitionID, id string) (*models.Subject, error) {
	const query = `SELECT id, tuition_id, name, code, active, created_at, updated_at
        FROM subjects WHERE tuition_id = $1 AND id = $2 LIMIT 1`
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, tuitionID, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find subject: %w", err)
	}
	return &subject, nil
}

// Create inserts a subject record.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	subject.CreatedAt = now
	subject.UpdatedAt = now
	const query = `INSERT INTO subjects (id, tuition_id, name, code, active, created_at, updated_at)
        VALUES (:id, :tuition_id, :name, :code, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

// Update rewrites a subject scoped to its tuition.
func (r *SubjectRepository) Update(ctx context.Context, subject *models.Subject) error {
	subject.UpdatedAt = time.Now().UTC()
	const query = `UPDATE subjects SET name = :name, code = :code, active = :active, updated_at = :updated_at
        WHERE id = :id AND tuition_id = :tuition_id`
	result, err := r.db.NamedExecContext(ctx, query, subject)
	if err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete soft-deletes a subject.
func (r *SubjectRepository) Delete(ctx context.Context, tuitionID, id string) error {
	const query = `UPDATE subjects SET active = false, updated_at = $3 WHERE tuition_id = $1 AND id = $2`
	result, err := r.db.ExecContext(ctx, query, tuitionID, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListDivisions returns every division of a tuition ordered by name.
func (r *SubjectRepository) ListDivisions(ctx context.Context, tuitionID string) ([]models.Division, error) {
	const query = `SELECT id, tuition_id, name, active, created_at, updated_at
        FROM divisions WHERE tuition_id = $1 ORDER BY name ASC`
	var divisions []models.Division
	if err := r.db.SelectContext(ctx, &divisions, query, tuitionID); err != nil {
		return nil, fmt.Errorf("list divisions: %w", err)
	}
	return divisions, nil
}

// FindDivisionByID loads a division scoped to a tuition.
func (r *SubjectRepository) FindDivisionByID(ctx context.Context, tuitionID, id string) (*models.Division, error) {
	const query = `SELECT id, tuition_id, name, active, created_at, updated_at
        FROM divisions WHERE tuition_id = $1 AND id = $2 LIMIT 1`
	var division models.Division
	if err := r.db.GetContext(ctx, &division, query, tuitionID, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find division: %w", err)
	}
	return &division, nil
}

// CreateDivision inserts a division record.
func (r *SubjectRepository) CreateDivision(ctx context.Context, division *models.Division) error {
	if division.ID == "" {
		division.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	division.CreatedAt = now
	division.UpdatedAt = now
	const query = `INSERT INTO divisions (id, tuition_id, name, active, created_at, updated_at)
        VALUES (:id, :tuition_id, :name, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, division); err != nil {
		return fmt.Errorf("create division: %w", err)
	}
	return nil
}

// UpdateDivision rewrites a division scoped to its tuition.
func (r *SubjectRepository) UpdateDivision(ctx context.Context, division *models.Division) error {
	division.UpdatedAt = time.Now().UTC()
	const query = `UPDATE divisions SET name = :name, active = :active, updated_at = :updated_at
        WHERE id = :id AND tuition_id = :tuition_id`
	result, err := r.db.NamedExecContext(ctx, query, division)
	if err != nil {
		return fmt.Errorf("update division: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update division: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteDivision soft-deletes a division.
func (r *SubjectRepository) DeleteDivision(ctx context.Context, tuitionID, id string) error {
	const query = `UPDATE divisions SET active = false, updated_at = $3 WHERE tuition_id = $1 AND id = $2`
	result, err := r.db.ExecContext(ctx, query, tuitionID, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("delete division: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete division: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
