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

// AttendanceRepository provides database access for attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository creates a new instance of AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

const attendanceColumns = `a.id, a.tuition_id, a.student_id, a.subject_id, a.faculty_id, a.date,
    a.status, a.notes, a.marked_by, a.created_at, a.updated_at`

// List returns attendance records scoped to a tuition with total count.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, int, error) {
	baseQuery := `FROM attendance_records a
        JOIN students s ON s.id = a.student_id
        LEFT JOIN subjects sub ON sub.id = a.subject_id
        WHERE a.tuition_id = $1`
	args := []interface{}{filter.TuitionID}
	var conditions []string

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("a.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("a.subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.FacultyID != "" {
		conditions = append(conditions, fmt.Sprintf("a.faculty_id = $%d", len(args)+1))
		args = append(args, filter.FacultyID)
	}
	if filter.DivisionID != "" {
		conditions = append(conditions, fmt.Sprintf("s.division_id = $%d", len(args)+1))
		args = append(args, filter.DivisionID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("a.date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("a.date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"date":         "a.date",
		"status":       "a.status",
		"student_name": "s.full_name",
	}
	sortColumn, ok := allowedSorts[sortBy]
	if !ok {
		sortColumn = "a.date"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
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

	query := fmt.Sprintf(`SELECT %s, s.full_name AS student_name, sub.name AS subject_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, attendanceColumns, baseQuery, sortColumn, sortOrder, pageSize, offset)
	var records []models.AttendanceRecordDetail
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + baseQuery
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return records, total, nil
}

// Upsert writes an attendance record, replacing an existing mark for the same
// student, subject and date so a session can be re-marked.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	const query = `INSERT INTO attendance_records (id, tuition_id, student_id, subject_id, faculty_id, date,
            status, notes, marked_by, created_at, updated_at)
        VALUES (:id, :tuition_id, :student_id, :subject_id, :faculty_id, :date,
            :status, :notes, :marked_by, :created_at, :updated_at)
        ON CONFLICT (tuition_id, student_id, subject_id, date)
        DO UPDATE SET status = EXCLUDED.status, notes = EXCLUDED.notes,
            marked_by = EXCLUDED.marked_by, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("upsert attendance: %w", err)
	}
	return nil
}

// BulkUpsert writes a batch of attendance marks inside one transaction.
func (r *AttendanceRepository) BulkUpsert(ctx context.Context, records []models.AttendanceRecord) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attendance tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	const query = `INSERT INTO attendance_records (id, tuition_id, student_id, subject_id, faculty_id, date,
            status, notes, marked_by, created_at, updated_at)
        VALUES (:id, :tuition_id, :student_id, :subject_id, :faculty_id, :date,
            :status, :notes, :marked_by, :created_at, :updated_at)
        ON CONFLICT (tuition_id, student_id, subject_id, date)
        DO UPDATE SET status = EXCLUDED.status, notes = EXCLUDED.notes,
            marked_by = EXCLUDED.marked_by, updated_at = EXCLUDED.updated_at`
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.NewString()
		}
		records[i].CreatedAt = now
		records[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, records[i]); err != nil {
			return fmt.Errorf("upsert attendance row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit attendance tx: %w", err)
	}
	return nil
}

// FindByID loads an attendance record scoped to a tuition.
func (r *AttendanceRepository) FindByID(ctx context.Context, tuitionID, id string) (*models.AttendanceRecordDetail, error) {
	query := fmt.Sprintf(`SELECT %s, s.full_name AS student_name, sub.name AS subject_name
        FROM attendance_records a
        JOIN students s ON s.id = a.student_id
        LEFT JOIN subjects sub ON sub.id = a.subject_id
        WHERE a.tuition_id = $1 AND a.id = $2 LIMIT 1`, attendanceColumns)
	var record models.AttendanceRecordDetail
	if err := r.db.GetContext(ctx, &record, query, tuitionID, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find attendance: %w", err)
	}
	return &record, nil
}

// Delete removes an attendance record.
func (r *AttendanceRepository) Delete(ctx context.Context, tuitionID, id string) error {
	const query = `DELETE FROM attendance_records WHERE tuition_id = $1 AND id = $2`
	result, err := r.db.ExecContext(ctx, query, tuitionID, id)
	if err != nil {
		return fmt.Errorf("delete attendance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete attendance: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// PresentDates returns the distinct dates a student was marked present,
// newest first. Feeds the streak calculation; late arrivals do not count.
func (r *AttendanceRepository) PresentDates(ctx context.Context, tuitionID, studentID string, limit int) ([]time.Time, error) {
	if limit <= 0 {
		limit = 366
	}
	const query = `SELECT DISTINCT date FROM attendance_records
        WHERE tuition_id = $1 AND student_id = $2 AND status = 'present'
        ORDER BY date DESC LIMIT $3`
	var dates []time.Time
	if err := r.db.SelectContext(ctx, &dates, query, tuitionID, studentID, limit); err != nil {
		return nil, fmt.Errorf("present dates: %w", err)
	}
	return dates, nil
}

// Summary returns aggregate counts for a student over an optional date range.
func (r *AttendanceRepository) Summary(ctx context.Context, tuitionID, studentID string, from, to *time.Time) (*models.AttendanceSummary, error) {
	query := `SELECT
            COUNT(*) FILTER (WHERE status = 'present') AS present,
            COUNT(*) FILTER (WHERE status = 'absent') AS absent,
            COUNT(*) FILTER (WHERE status = 'late') AS late,
            COUNT(*) FILTER (WHERE status = 'excused') AS excused,
            COUNT(*) AS total
        FROM attendance_records WHERE tuition_id = $1 AND student_id = $2`
	args := []interface{}{tuitionID, studentID}
	if from != nil {
		query += fmt.Sprintf(" AND date >= $%d", len(args)+1)
		args = append(args, *from)
	}
	if to != nil {
		query += fmt.Sprintf(" AND date <= $%d", len(args)+1)
		args = append(args, *to)
	}
	var summary models.AttendanceSummary
	row := r.db.QueryRowxContext(ctx, query, args...)
	if err := row.Scan(&summary.Present, &summary.Absent, &summary.Late, &summary.Excused, &summary.Total); err != nil {
		return nil, fmt.Errorf("attendance summary: %w", err)
	}
	if summary.Total > 0 {
		summary.Percent = float64(summary.Present+summary.Late) / float64(summary.Total) * 100
	}
	return &summary, nil
}

// CountsForDate returns present/absent counts and the number of distinct
// marked sessions (subject+division pairs) across a tuition for one date.
func (r *AttendanceRepository) CountsForDate(ctx context.Context, tuitionID string, date time.Time) (present, absent, markedSessions int, err error) {
	const query = `SELECT
            COUNT(*) FILTER (WHERE a.status IN ('present', 'late')) AS present,
            COUNT(*) FILTER (WHERE a.status = 'absent') AS absent,
            COUNT(DISTINCT (a.subject_id, s.division_id)) AS sessions
        FROM attendance_records a
        JOIN students s ON s.id = a.student_id
        WHERE a.tuition_id = $1 AND a.date = $2`
	row := r.db.QueryRowxContext(ctx, query, tuitionID, date)
	if err = row.Scan(&present, &absent, &markedSessions); err != nil {
		return 0, 0, 0, fmt.Errorf("attendance counts for date: %w", err)
	}
	return present, absent, markedSessions, nil
}

// MarkedEntryKeys returns "subjectID:facultyID" pairs already marked on a
// date. The reminder evaluator skips sessions whose attendance exists.
func (r *AttendanceRepository) MarkedEntryKeys(ctx context.Context, tuitionID string, date time.Time) (map[string]bool, error) {
	const query = `SELECT DISTINCT subject_id, faculty_id
        FROM attendance_records
        WHERE tuition_id = $1 AND date = $2`
	rows, err := r.db.QueryxContext(ctx, query, tuitionID, date)
	if err != nil {
		return nil, fmt.Errorf("marked entry keys: %w", err)
	}
	defer rows.Close()

	marked := make(map[string]bool)
	for rows.Next() {
		var subjectID, facultyID string
		if err := rows.Scan(&subjectID, &facultyID); err != nil {
			return nil, fmt.Errorf("scan marked entry key: %w", err)
		}
		marked[subjectID+":"+facultyID] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("marked entry keys: %w", err)
	}
	return marked, nil
}
