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

// StudentRepository provides database access for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository creates a new instance of StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `s.id, s.tuition_id, s.roll_no, s.full_name, s.gender, s.birth_date, s.division_id,
    s.guardian_name, s.guardian_phone, s.address, s.phone, s.email, s.status, s.active, s.created_at, s.updated_at`

// List returns students scoped to a tuition with total count.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	baseQuery := `FROM students s LEFT JOIN divisions d ON d.id = s.division_id WHERE s.tuition_id = $1`
	args := []interface{}{filter.TuitionID}
	var conditions []string

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.full_name) LIKE $%d OR LOWER(s.roll_no) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.DivisionID != "" {
		conditions = append(conditions, fmt.Sprintf("s.division_id = $%d", len(args)+1))
		args = append(args, filter.DivisionID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("s.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("s.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"full_name":  "s.full_name",
		"roll_no":    "s.roll_no",
		"created_at": "s.created_at",
		"status":     "s.status",
	}
	sortColumn, ok := allowedSorts[sortBy]
	if !ok {
		sortColumn = "s.full_name"
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

	query := fmt.Sprintf(`SELECT %s, d.name AS division_name %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		studentColumns, baseQuery, sortColumn, sortOrder, pageSize, offset)
	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + baseQuery
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID loads a student with its division name, scoped to a tuition.
func (r *StudentRepository) FindByID(ctx context.Context, tuitionID, id string) (*models.StudentDetail, error) {
	query := fmt.Sprintf(`SELECT %s, d.name AS division_name
        FROM students s LEFT JOIN divisions d ON d.id = s.division_id
        WHERE s.tuition_id = $1 AND s.id = $2 LIMIT 1`, studentColumns)
	var student models.StudentDetail
	if err := r.db.GetContext(ctx, &student, query, tuitionID, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &student, nil
}

// ExistsByRollNo reports whether a roll number is taken within a tuition,
// excluding an optional student id (for updates).
func (r *StudentRepository) ExistsByRollNo(ctx context.Context, tuitionID, rollNo, excludeID string) (bool, error) {
	query := `SELECT 1 FROM students WHERE tuition_id = $1 AND roll_no = $2`
	args := []interface{}{tuitionID, rollNo}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	query += " LIMIT 1"
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check roll number: %w", err)
	}
	return true, nil
}

// Create inserts a student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, tuition_id, roll_no, full_name, gender, birth_date, division_id,
            guardian_name, guardian_phone, address, phone, email, status, active, created_at, updated_at)
        VALUES (:id, :tuition_id, :roll_no, :full_name, :gender, :birth_date, :division_id,
            :guardian_name, :guardian_phone, :address, :phone, :email, :status, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update rewrites a student record scoped to its tuition.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET roll_no = :roll_no, full_name = :full_name, gender = :gender,
            birth_date = :birth_date, division_id = :division_id, guardian_name = :guardian_name,
            guardian_phone = :guardian_phone, address = :address, phone = :phone, email = :email,
            status = :status, active = :active, updated_at = :updated_at
        WHERE id = :id AND tuition_id = :tuition_id`
	result, err := r.db.NamedExecContext(ctx, query, student)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete soft-deletes a student by marking it inactive.
func (r *StudentRepository) Delete(ctx context.Context, tuitionID, id string) error {
	const query = `UPDATE students SET active = false, updated_at = $3 WHERE tuition_id = $1 AND id = $2`
	result, err := r.db.ExecContext(ctx, query, tuitionID, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByDivision returns the number of active students in a division.
func (r *StudentRepository) CountByDivision(ctx context.Context, tuitionID, divisionID string) (int, error) {
	const query = `SELECT COUNT(*) FROM students WHERE tuition_id = $1 AND division_id = $2 AND active = true`
	var count int
	if err := r.db.GetContext(ctx, &count, query, tuitionID, divisionID); err != nil {
		return 0, fmt.Errorf("count students by division: %w", err)
	}
	return count, nil
}

// ListIDsByDivision returns the ids of active students in a division.
func (r *StudentRepository) ListIDsByDivision(ctx context.Context, tuitionID, divisionID string) ([]string, error) {
	const query = `SELECT id FROM students WHERE tuition_id = $1 AND division_id = $2 AND active = true`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, tuitionID, divisionID); err != nil {
		return nil, fmt.Errorf("list student ids by division: %w", err)
	}
	return ids, nil
}
