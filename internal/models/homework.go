package models

import "time"

// Homework is an assignment posted for a division and subject.
type Homework struct {
	ID         string     `db:"id" json:"id"`
	TuitionID  string     `db:"tuition_id" json:"tuition_id"`
	DivisionID string     `db:"division_id" json:"division_id"`
	SubjectID  string     `db:"subject_id" json:"subject_id"`
	FacultyID  *string    `db:"faculty_id" json:"faculty_id,omitempty"`
	Title      string     `db:"title" json:"title"`
	Details    string     `db:"details" json:"details"`
	DueDate    *time.Time `db:"due_date" json:"due_date,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// Announcement is a broadcast message to students and parents.
type Announcement struct {
	ID        string     `db:"id" json:"id"`
	TuitionID string     `db:"tuition_id" json:"tuition_id"`
	Title     string     `db:"title" json:"title"`
	Body      string     `db:"body" json:"body"`
	Audience  string     `db:"audience" json:"audience"`
	PostedBy  *string    `db:"posted_by" json:"posted_by,omitempty"`
	ExpiresAt *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}
