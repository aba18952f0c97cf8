package models

import "time"

// TimetableEntryType distinguishes weekly recurring sessions from one-off or
// ranged "special" sessions.
type TimetableEntryType string

const (
	TimetableEntryRegular TimetableEntryType = "regular"
	TimetableEntrySpecial TimetableEntryType = "special"
)

// TimetableEntry is a scheduled class session. Regular entries recur on
// DayOfWeek between ActiveFrom/ActiveTo when set; special entries apply on
// Date, or every day of [Date, EndDate] when EndDate is set. StartTime and
// EndTime are wall-clock "HH:MM" strings.
type TimetableEntry struct {
	ID         string             `db:"id" json:"id"`
	TuitionID  string             `db:"tuition_id" json:"tuition_id"`
	DivisionID string             `db:"division_id" json:"division_id"`
	SubjectID  string             `db:"subject_id" json:"subject_id"`
	FacultyID  string             `db:"faculty_id" json:"faculty_id"`
	EntryType  TimetableEntryType `db:"entry_type" json:"entry_type"`
	DayOfWeek  string             `db:"day_of_week" json:"day_of_week,omitempty"`
	StartTime  string             `db:"start_time" json:"start_time"`
	EndTime    string             `db:"end_time" json:"end_time"`
	Date       *time.Time         `db:"date" json:"date,omitempty"`
	EndDate    *time.Time         `db:"end_date" json:"end_date,omitempty"`
	ActiveFrom *time.Time         `db:"active_from" json:"active_from,omitempty"`
	ActiveTo   *time.Time         `db:"active_to" json:"active_to,omitempty"`
	Room       string             `db:"room" json:"room"`
	Active     bool               `db:"active" json:"active"`
	CreatedAt  time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `db:"updated_at" json:"updated_at"`
}

// Valid reports whether the entry type is a supported value.
func (t TimetableEntryType) Valid() bool {
	switch t {
	case TimetableEntryRegular, TimetableEntrySpecial:
		return true
	default:
		return false
	}
}

// TimetableEntryDetail extends an entry with display names.
type TimetableEntryDetail struct {
	TimetableEntry
	SubjectName  *string `db:"subject_name" json:"subject_name,omitempty"`
	FacultyName  *string `db:"faculty_name" json:"faculty_name,omitempty"`
	DivisionName *string `db:"division_name" json:"division_name,omitempty"`
}

// TimetableFilter scopes timetable listing queries.
type TimetableFilter struct {
	TuitionID  string
	DivisionID string
	FacultyID  string
	SubjectID  string
	EntryType  *TimetableEntryType
	DayOfWeek  string
	Page       int
	PageSize   int
}
