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

// TestRepository provides database access for weekly tests and results.
type TestRepository struct {
	db *sqlx.DB
}

// NewTestRepository creates a new instance of TestRepository.
func NewTestRepository(db *sqlx.DB) *TestRepository {
	return &TestRepository{db: db}
}

const testColumns = `t.id, t.tuition_id, t.division_id, t.subject_id, t.name, t.date, t.max_marks, t.created_at, t.updated_at`

// List returns weekly tests scoped to a tuition with total count.
func (r *TestRepository) List(ctx context.Context, filter models.TestFilter) ([]models.WeeklyTestDetail, int, error) {
	baseQuery := `FROM weekly_tests t
        LEFT JOIN subjects sub ON sub.id = t.subject_id
        LEFT JOIN divisions d ON d.id = t.division_id
        WHERE t.tuition_id = $1`
	args := []interface{}{filter.TuitionID}
	var conditions []string

	if filter.DivisionID != "" {
		conditions = append(conditions, fmt.Sprintf("t.division_id = $%d", len(args)+1))
		args = append(args, filter.DivisionID)
	}
	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("t.subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("t.date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("t.date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
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

	query := fmt.Sprintf(`SELECT %s, sub.name AS subject_name, d.name AS division_name
        %s ORDER BY t.date DESC LIMIT %d OFFSET %d`, testColumns, baseQuery, pageSize, offset)
	var tests []models.WeeklyTestDetail
	if err := r.db.SelectContext(ctx, &tests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list weekly tests: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + baseQuery
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count weekly tests: %w", err)
	}
	return tests, total, nil
}

// FindByID loads a weekly test with display names.
func (r *TestRepository) FindByID(ctx context.Context, tuitionID, id string) (*models.WeeklyTestDetail, error) {
	query := fmt.Sprintf(`SELECT %s, sub.name AS subject_name, d.name AS division_name
        FROM weekly_tests t
        LEFT JOIN subjects sub ON sub.id = t.subject_id
        LEFT JOIN divisions d ON d.id = t.division_id
        WHERE t.tuition_id = $1 AND t.id = $2 LIMIT 1`, testColumns)
	var test models.WeeklyTestDetail
	if err := r.db.GetContext(ctx, &test, query, tuitionID, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find weekly test: %w", err)
	}
	return &test, nil
}

// UpcomingWithin returns at most limit tests scheduled in (after, after+days].
func (r *TestRepository) UpcomingWithin(ctx context.Context, tuitionID string, after time.Time, days, limit int) ([]models.WeeklyTestDetail, error) {
	query := fmt.Sprintf(`SELECT %s, sub.name AS subject_name, d.name AS division_name
        FROM weekly_tests t
        LEFT JOIN subjects sub ON sub.id = t.subject_id
        LEFT JOIN divisions d ON d.id = t.division_id
        WHERE t.tuition_id = $1 AND t.date > $2 AND t.date <= $3
        ORDER BY t.date ASC LIMIT $4`, testColumns)
	var tests []models.WeeklyTestDetail
	if err := r.db.SelectContext(ctx, &tests, query, tuitionID, after, after.AddDate(0, 0, days), limit); err != nil {
		return nil, fmt.Errorf("upcoming weekly tests: %w", err)
	}
	return tests, nil
}

// Create inserts a weekly test.
func (r *TestRepository) Create(ctx context.Context, test *models.WeeklyTest) error {
	if test.ID == "" {
		test.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	test.CreatedAt = now
	test.UpdatedAt = now
	const query = `INSERT INTO weekly_tests (id, tuition_id, division_id, subject_id, name, date, max_marks, created_at, updated_at)
        VALUES (:id, :tuition_id, :division_id, :subject_id, :name, :date, :max_marks, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, test); err != nil {
		return fmt.Errorf("create weekly test: %w", err)
	}
	return nil
}

// Update rewrites a weekly test scoped to its tuition.
func (r *TestRepository) Update(ctx context.Context, test *models.WeeklyTest) error {
	test.UpdatedAt = time.Now().UTC()
	const query = `UPDATE weekly_tests SET division_id = :division_id, subject_id = :subject_id,
            name = :name, date = :date, max_marks = :max_marks, updated_at = :updated_at
        WHERE id = :id AND tuition_id = :tuition_id`
	result, err := r.db.NamedExecContext(ctx, query, test)
	if err != nil {
		return fmt.Errorf("update weekly test: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update weekly test: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a weekly test and its results.
func (r *TestRepository) Delete(ctx context.Context, tuitionID, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin test delete tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM test_results WHERE tuition_id = $1 AND test_id = $2`, tuitionID, id); err != nil {
		return fmt.Errorf("delete test results: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM weekly_tests WHERE tuition_id = $1 AND id = $2`, tuitionID, id)
	if err != nil {
		return fmt.Errorf("delete weekly test: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete weekly test: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit test delete tx: %w", err)
	}
	return nil
}

// ListResults returns results for a test joined with student names.
func (r *TestRepository) ListResults(ctx context.Context, tuitionID, testID string) ([]models.TestResultDetail, error) {
	const query = `SELECT res.id, res.tuition_id, res.test_id, res.student_id, res.marks, res.remarks,
            res.created_at, res.updated_at, s.full_name AS student_name, t.max_marks
        FROM test_results res
        JOIN students s ON s.id = res.student_id
        JOIN weekly_tests t ON t.id = res.test_id
        WHERE res.tuition_id = $1 AND res.test_id = $2
        ORDER BY res.marks DESC`
	var results []models.TestResultDetail
	if err := r.db.SelectContext(ctx, &results, query, tuitionID, testID); err != nil {
		return nil, fmt.Errorf("list test results: %w", err)
	}
	return results, nil
}

// UpsertResults writes a batch of results, replacing any existing score a
// student already has for the test.
func (r *TestRepository) UpsertResults(ctx context.Context, results []models.TestResult) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin results tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	const query = `INSERT INTO test_results (id, tuition_id, test_id, student_id, marks, remarks, created_at, updated_at)
        VALUES (:id, :tuition_id, :test_id, :student_id, :marks, :remarks, :created_at, :updated_at)
        ON CONFLICT (tuition_id, test_id, student_id)
        DO UPDATE SET marks = EXCLUDED.marks, remarks = EXCLUDED.remarks, updated_at = EXCLUDED.updated_at`
	for i := range results {
		if results[i].ID == "" {
			results[i].ID = uuid.NewString()
		}
		results[i].CreatedAt = now
		results[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, results[i]); err != nil {
			return fmt.Errorf("upsert test result: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit results tx: %w", err)
	}
	return nil
}

// ListResultsForStudent returns a student's results joined with test metadata.
func (r *TestRepository) ListResultsForStudent(ctx context.Context, tuitionID, studentID string) ([]models.TestResultDetail, error) {
	const query = `SELECT res.id, res.tuition_id, res.test_id, res.student_id, res.marks, res.remarks,
            res.created_at, res.updated_at, s.full_name AS student_name, t.max_marks
        FROM test_results res
        JOIN students s ON s.id = res.student_id
        JOIN weekly_tests t ON t.id = res.test_id
        WHERE res.tuition_id = $1 AND res.student_id = $2
        ORDER BY t.date DESC`
	var results []models.TestResultDetail
	if err := r.db.SelectContext(ctx, &results, query, tuitionID, studentID); err != nil {
		return nil, fmt.Errorf("list student test results: %w", err)
	}
	return results, nil
}
