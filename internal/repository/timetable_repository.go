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

// TimetableRepository provides database access for timetable entries.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository creates a new instance of TimetableRepository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

const timetableColumns = `t.id, t.tuition_id, t.division_id, t.subject_id, t.faculty_id, t.entry_type,
    t.day_of_week, t.start_time, t.end_time, t.date, t.end_date, t.active_from, t.active_to,
    t.room, t.active, t.created_at, t.updated_at`

const timetableJoins = `FROM timetable_entries t
    LEFT JOIN subjects sub ON sub.id = t.subject_id
    LEFT JOIN faculty f ON f.id = t.faculty_id
    LEFT JOIN divisions d ON d.id = t.division_id`

// List returns timetable entries scoped to a tuition with total count.
func (r *TimetableRepository) List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableEntryDetail, int, error) {
	baseQuery := timetableJoins + ` WHERE t.tuition_id = $1`
	args := []interface{}{filter.TuitionID}
	var conditions []string

	if filter.DivisionID != "" {
		conditions = append(conditions, fmt.Sprintf("t.division_id = $%d", len(args)+1))
		args = append(args, filter.DivisionID)
	}
	if filter.FacultyID != "" {
		conditions = append(conditions, fmt.Sprintf("t.faculty_id = $%d", len(args)+1))
		args = append(args, filter.FacultyID)
	}
	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("t.subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.EntryType != nil {
		conditions = append(conditions, fmt.Sprintf("t.entry_type = $%d", len(args)+1))
		args = append(args, *filter.EntryType)
	}
	if filter.DayOfWeek != "" {
		conditions = append(conditions, fmt.Sprintf("t.day_of_week = $%d", len(args)+1))
		args = append(args, filter.DayOfWeek)
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

	query := fmt.Sprintf(`SELECT %s, sub.name AS subject_name, f.full_name AS faculty_name, d.name AS division_name
        %s ORDER BY t.day_of_week ASC, t.start_time ASC LIMIT %d OFFSET %d`,
		timetableColumns, baseQuery, pageSize, offset)
	var entries []models.TimetableEntryDetail
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list timetable entries: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + baseQuery
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count timetable entries: %w", err)
	}
	return entries, total, nil
}

// FindByID loads a timetable entry with display names.
func (r *TimetableRepository) FindByID(ctx context.Context, tuitionID, id string) (*models.TimetableEntryDetail, error) {
	query := fmt.Sprintf(`SELECT %s, sub.name AS subject_name, f.full_name AS faculty_name, d.name AS division_name
        %s WHERE t.tuition_id = $1 AND t.id = $2 LIMIT 1`, timetableColumns, timetableJoins)
	var entry models.TimetableEntryDetail
	if err := r.db.GetContext(ctx, &entry, query, tuitionID, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find timetable entry: %w", err)
	}
	return &entry, nil
}

// ListActiveForDate loads every active entry that may apply on the given date:
// regular entries matching its weekday (inside their active window when set),
// and special entries whose date or date range covers it. Window evaluation on
// the wall clock happens in the service layer.
func (r *TimetableRepository) ListActiveForDate(ctx context.Context, tuitionID string, date time.Time, dayOfWeek string) ([]models.TimetableEntryDetail, error) {
	query := fmt.Sprintf(`SELECT %s, sub.name AS subject_name, f.full_name AS faculty_name, d.name AS division_name
        %s WHERE t.tuition_id = $1 AND t.active = true AND (
            (t.entry_type = 'regular' AND t.day_of_week = $2
                AND (t.active_from IS NULL OR t.active_from <= $3)
                AND (t.active_to IS NULL OR t.active_to >= $3))
            OR
            (t.entry_type = 'special' AND (
                (t.end_date IS NULL AND t.date = $3)
                OR (t.end_date IS NOT NULL AND t.date <= $3 AND t.end_date >= $3)))
        )
        ORDER BY t.start_time ASC`, timetableColumns, timetableJoins)
	var entries []models.TimetableEntryDetail
	if err := r.db.SelectContext(ctx, &entries, query, tuitionID, dayOfWeek, date); err != nil {
		return nil, fmt.Errorf("list timetable entries for date: %w", err)
	}
	return entries, nil
}

// ListTuitionIDsWithEntries returns the distinct tuitions that have at least
// one active timetable entry. Used by the reminder runner to bound its scan.
func (r *TimetableRepository) ListTuitionIDsWithEntries(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT tuition_id FROM timetable_entries WHERE active = true`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("list tuitions with timetable entries: %w", err)
	}
	return ids, nil
}

// Create inserts a timetable entry.
func (r *TimetableRepository) Create(ctx context.Context, entry *models.TimetableEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	const query = `INSERT INTO timetable_entries (id, tuition_id, division_id, subject_id, faculty_id, entry_type,
            day_of_week, start_time, end_time, date, end_date, active_from, active_to, room, active, created_at, updated_at)
        VALUES (:id, :tuition_id, :division_id, :subject_id, :faculty_id, :entry_type,
            :day_of_week, :start_time, :end_time, :date, :end_date, :active_from, :active_to, :room, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create timetable entry: %w", err)
	}
	return nil
}

// Update rewrites a timetable entry scoped to its tuition.
func (r *TimetableRepository) Update(ctx context.Context, entry *models.TimetableEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	const query = `UPDATE timetable_entries SET division_id = :division_id, subject_id = :subject_id,
            faculty_id = :faculty_id, entry_type = :entry_type, day_of_week = :day_of_week,
            start_time = :start_time, end_time = :end_time, date = :date, end_date = :end_date,
            active_from = :active_from, active_to = :active_to, room = :room, active = :active,
            updated_at = :updated_at
        WHERE id = :id AND tuition_id = :tuition_id`
	result, err := r.db.NamedExecContext(ctx, query, entry)
	if err != nil {
		return fmt.Errorf("update timetable entry: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update timetable entry: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a timetable entry.
func (r *TimetableRepository) Delete(ctx context.Context, tuitionID, id string) error {
	const query = `DELETE FROM timetable_entries WHERE tuition_id = $1 AND id = $2`
	result, err := r.db.ExecContext(ctx, query, tuitionID, id)
	if err != nil {
		return fmt.Errorf("delete timetable entry: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete timetable entry: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
