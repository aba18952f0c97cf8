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

// TuitionRepository provides database access for tenant records.
type TuitionRepository struct {
	db *sqlx.DB
}

// NewTuitionRepository creates a new instance of TuitionRepository.
func NewTuitionRepository(db *sqlx.DB) *TuitionRepository {
	return &TuitionRepository{db: db}
}

const tuitionColumns = `id, name, slug, address, phone, email, active, created_at, updated_at`

// List returns every tenant, newest first. Superadmin only.
func (r *TuitionRepository) List(ctx context.Context) ([]models.Tuition, error) {
	query := fmt.Sprintf(`SELECT %s FROM tuitions ORDER BY created_at DESC`, tuitionColumns)
	var tuitions []models.Tuition
	if err := r.db.SelectContext(ctx, &tuitions, query); err != nil {
		return nil, fmt.Errorf("list tuitions: %w", err)
	}
	return tuitions, nil
}

// FindByID loads a tenant by identifier.
func (r *TuitionRepository) FindByID(ctx context.Context, id string) (*models.Tuition, error) {
	query := fmt.Sprintf(`SELECT %s FROM tuitions WHERE id = $1 LIMIT 1`, tuitionColumns)
	var tuition models.Tuition
	if err := r.db.GetContext(ctx, &tuition, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find tuition: %w", err)
	}
	return &tuition, nil
}

// FindBySlug loads a tenant by its public slug. The registration endpoint
// resolves slugs so the form never exposes tenant ids.
func (r *TuitionRepository) FindBySlug(ctx context.Context, slug string) (*models.Tuition, error) {
	query := fmt.Sprintf(`SELECT %s FROM tuitions WHERE slug = $1 AND active = true LIMIT 1`, tuitionColumns)
	var tuition models.Tuition
	if err := r.db.GetContext(ctx, &tuition, query, slug); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find tuition by slug: %w", err)
	}
	return &tuition, nil
}

// Create inserts a tenant record.
func (r *TuitionRepository) Create(ctx context.Context, tuition *models.Tuition) error {
	if tuition.ID == "" {
		tuition.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	tuition.CreatedAt = now
	tuition.UpdatedAt = now
	const query = `INSERT INTO tuitions (id, name, slug, address, phone, email, active, created_at, updated_at)
        VALUES (:id, :name, :slug, :address, :phone, :email, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, tuition); err != nil {
		return fmt.Errorf("create tuition: %w", err)
	}
	return nil
}

// Update rewrites a tenant record.
func (r *TuitionRepository) Update(ctx context.Context, tuition *models.Tuition) error {
	tuition.UpdatedAt = time.Now().UTC()
	const query = `UPDATE tuitions SET name = :name, slug = :slug, address = :address,
            phone = :phone, email = :email, active = :active, updated_at = :updated_at
        WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, tuition)
	if err != nil {
		return fmt.Errorf("update tuition: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update tuition: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
