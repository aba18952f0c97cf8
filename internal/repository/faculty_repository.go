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

// FacultyRepository provides database access for faculty records.
type FacultyRepository struct {
	db *sqlx.DB
}

// NewFacultyRepository creates a new instance of FacultyRepository.
func NewFacultyRepository(db *sqlx.DB) *FacultyRepository {
	return &FacultyRepository{db: db}
}

const facultyColumns = `id, tuition_id, full_name, email, phone, expertise, joined_at, active, created_at, updated_at`

// List returns faculty scoped to a tuition with total count.
func (r *FacultyRepository) List(ctx context.Context, filter models.FacultyFilter) ([]models.Faculty, int, error) {
	baseQuery := `FROM faculty WHERE tuition_id = $1`
	args := []interface{}{filter.TuitionID}
	var conditions []string

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(full_name) LIKE $%d OR LOWER(email) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"full_name":  true,
		"joined_at":  true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "full_name"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "ASC"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", facultyColumns, baseQuery, sortBy, sortOrder, pageSize, offset)
	var list []models.Faculty
	if err := r.db.SelectContext(ctx, &list, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list faculty: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + baseQuery
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count faculty: %w", err)
	}
	return list, total, nil
}

// FindByID loads a faculty member scoped to a tuition.
func (r *FacultyRepository) FindByID(ctx context.Context, tuitionID, id string) (*models.Faculty, error) {
	query := fmt.Sprintf(`SELECT %s FROM faculty WHERE tuition_id = $1 AND id = $2 LIMIT 1`, facultyColumns)
	var fac models.Faculty
	if err := r.db.GetContext(ctx, &fac, query, tuitionID, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find faculty: %w", err)
	}
	return &fac, nil
}

// Create inserts a faculty record.
func (r *FacultyRepository) Create(ctx context.Context, fac *models.Faculty) error {
	if fac.ID == "" {
		fac.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	fac.CreatedAt = now
	fac.UpdatedAt = now
	const query = `INSERT INTO faculty (id, tuition_id, full_name, email, phone, expertise, joined_at, active, created_at, updated_at)
        VALUES (:id, :tuition_id, :full_name, :email, :phone, :expertise, :joined_at, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, fac); err != nil {
		return fmt.Errorf("create faculty: %w", err)
	}
	return nil
}

// Update rewrites a faculty record scoped to its tuition.
func (r *FacultyRepository) Update(ctx context.Context, fac *models.Faculty) error {
	fac.UpdatedAt = time.Now().UTC()
	const query = `UPDATE faculty SET full_name = :full_name, email = :email, phone = :phone,
            expertise = :expertise, joined_at = :joined_at, active = :active, updated_at = :updated_at
        WHERE id = :id AND tuition_id = :tuition_id`
	result, err := r.db.NamedExecContext(ctx, query, fac)
	if err != nil {
		return fmt.Errorf("update faculty: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update faculty: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete soft-deletes a faculty member.
func (r *FacultyRepository) Delete(ctx context.Context, tuitionID, id string) error {
	const query = `UPDATE faculty SET active = false, updated_at = $3 WHERE tuition_id = $1 AND id = $2`
	result, err := r.db.ExecContext(ctx, query, tuitionID, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("delete faculty: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete faculty: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
