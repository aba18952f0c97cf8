package dto

import "time"

// PendingClassResponse is the single "pending class" reminder surfaced to a
// caller: a session near its end time with no attendance yet recorded.
type PendingClassResponse struct {
	Key         string    `json:"key"`
	EntryID     string    `json:"entryId"`
	SubjectID   string    `json:"subjectId"`
	FacultyID   string    `json:"facultyId"`
	DivisionID  string    `json:"divisionId"`
	Date        string    `json:"date"`
	EndsAt      time.Time `json:"endsAt"`
	MinutesLeft int       `json:"minutesLeft"`
}
