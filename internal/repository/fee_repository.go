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

// FeeRepository provides database access for fee installments.
type FeeRepository struct {
	db *sqlx.DB
}

// NewFeeRepository creates a new instance of FeeRepository.
func NewFeeRepository(db *sqlx.DB) *FeeRepository {
	return &FeeRepository{db: db}
}

const feeColumns = `f.id, f.tuition_id, f.student_id, f.label, f.amount, f.due_date, f.status,
    f.paid_at, f.method, f.receipt_no, f.created_at, f.updated_at`

// List returns fees scoped to a tuition with total count.
func (r *FeeRepository) List(ctx context.Context, filter models.FeeFilter) ([]models.FeeDetail, int, error) {
	baseQuery := `FROM fees f JOIN students s ON s.id = f.student_id WHERE f.tuition_id = $1`
	args := []interface{}{filter.TuitionID}
	var conditions []string

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("f.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("f.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DueFrom != nil {
		conditions = append(conditions, fmt.Sprintf("f.due_date >= $%d", len(args)+1))
		args = append(args, *filter.DueFrom)
	}
	if filter.DueTo != nil {
		conditions = append(conditions, fmt.Sprintf("f.due_date <= $%d", len(args)+1))
		args = append(args, *filter.DueTo)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"due_date":     "f.due_date",
		"amount":       "f.amount",
		"status":       "f.status",
		"student_name": "s.full_name",
	}
	sortColumn, ok := allowedSorts[sortBy]
	if !ok {
		sortColumn = "f.due_date"
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

	query := fmt.Sprintf(`SELECT %s, s.full_name AS student_name %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		feeColumns, baseQuery, sortColumn, sortOrder, pageSize, offset)
	var fees []models.FeeDetail
	if err := r.db.SelectContext(ctx, &fees, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list fees: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + baseQuery
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count fees: %w", err)
	}
	return fees, total, nil
}

// FindByID loads a fee with its student name, scoped to a tuition.
func (r *FeeRepository) FindByID(ctx context.Context, tuitionID, id string) (*models.FeeDetail, error) {
	query := fmt.Sprintf(`SELECT %s, s.full_name AS student_name
        FROM fees f JOIN students s ON s.id = f.student_id
        WHERE f.tuition_id = $1 AND f.id = $2 LIMIT 1`, feeColumns)
	var fee models.FeeDetail
	if err := r.db.GetContext(ctx, &fee, query, tuitionID, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find fee: %w", err)
	}
	return &fee, nil
}

// Create inserts a fee installment.
func (r *FeeRepository) Create(ctx context.Context, fee *models.Fee) error {
	if fee.ID == "" {
		fee.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	fee.CreatedAt = now
	fee.UpdatedAt = now
	const query = `INSERT INTO fees (id, tuition_id, student_id, label, amount, due_date, status,
            paid_at, method, receipt_no, created_at, updated_at)
        VALUES (:id, :tuition_id, :student_id, :label, :amount, :due_date, :status,
            :paid_at, :method, :receipt_no, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, fee); err != nil {
		return fmt.Errorf("create fee: %w", err)
	}
	return nil
}

// Update rewrites a fee scoped to its tuition.
func (r *FeeRepository) Update(ctx context.Context, fee *models.Fee) error {
	fee.UpdatedAt = time.Now().UTC()
	const query = `UPDATE fees SET student_id = :student_id, label = :label, amount = :amount,
            due_date = :due_date, status = :status, paid_at = :paid_at, method = :method,
            receipt_no = :receipt_no, updated_at = :updated_at
        WHERE id = :id AND tuition_id = :tuition_id`
	result, err := r.db.NamedExecContext(ctx, query, fee)
	if err != nil {
		return fmt.Errorf("update fee: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update fee: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a fee installment.
func (r *FeeRepository) Delete(ctx context.Context, tuitionID, id string) error {
	const query = `DELETE FROM fees WHERE tuition_id = $1 AND id = $2`
	result, err := r.db.ExecContext(ctx, query, tuitionID, id)
	if err != nil {
		return fmt.Errorf("delete fee: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete fee: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CollectedOn sums payments recorded on a specific date.
func (r *FeeRepository) CollectedOn(ctx context.Context, tuitionID string, date time.Time) (float64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM fees
        WHERE tuition_id = $1 AND status = 'paid' AND paid_at >= $2 AND paid_at < $3`
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	var total float64
	if err := r.db.GetContext(ctx, &total, query, tuitionID, dayStart, dayStart.AddDate(0, 0, 1)); err != nil {
		return 0, fmt.Errorf("fees collected on date: %w", err)
	}
	return total, nil
}

// DueBetween returns the count and sum of unpaid fees due in [from, to].
func (r *FeeRepository) DueBetween(ctx context.Context, tuitionID string, from, to time.Time) (count int, amount float64, err error) {
	const query = `SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM fees
        WHERE tuition_id = $1 AND status IN ('pending', 'overdue') AND due_date >= $2 AND due_date <= $3`
	row := r.db.QueryRowxContext(ctx, query, tuitionID, from, to)
	if err = row.Scan(&count, &amount); err != nil {
		return 0, 0, fmt.Errorf("fees due between: %w", err)
	}
	return count, amount, nil
}

// OverdueBefore returns the count and sum of unpaid fees past due as of a date.
func (r *FeeRepository) OverdueBefore(ctx context.Context, tuitionID string, date time.Time) (count int, amount float64, err error) {
	const query = `SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM fees
        WHERE tuition_id = $1 AND status IN ('pending', 'overdue') AND due_date < $2`
	row := r.db.QueryRowxContext(ctx, query, tuitionID, date)
	if err = row.Scan(&count, &amount); err != nil {
		return 0, 0, fmt.Errorf("fees overdue: %w", err)
	}
	return count, amount, nil
}

// ListDueOn returns unpaid fees due exactly on a date across every tuition.
// Used by the fee reminder batch job.
func (r *FeeRepository) ListDueOn(ctx context.Context, date time.Time) ([]models.FeeDetail, error) {
	query := fmt.Sprintf(`SELECT %s, s.full_name AS student_name
        FROM fees f JOIN students s ON s.id = f.student_id
        WHERE f.status IN ('pending', 'overdue') AND f.due_date = $1
        ORDER BY f.tuition_id, s.full_name`, feeColumns)
	var fees []models.FeeDetail
	if err := r.db.SelectContext(ctx, &fees, query, date); err != nil {
		return nil, fmt.Errorf("list fees due on date: %w", err)
	}
	return fees, nil
}

// MarkOverdue flips pending fees past their due date to overdue. Returns the
// number of rows changed.
func (r *FeeRepository) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	const query = `UPDATE fees SET status = 'overdue', updated_at = $2
        WHERE status = 'pending' AND due_date < $1`
	result, err := r.db.ExecContext(ctx, query, asOf, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("mark fees overdue: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark fees overdue: %w", err)
	}
	return rows, nil
}
