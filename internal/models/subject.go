package models

import "time"

// Subject is a course taught at a tuition center.
type Subject struct {
	ID        string    `db:"id" json:"id"`
	TuitionID string    `db:"tuition_id" json:"tuition_id"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Division groups students into batches (grade/section equivalents).
type Division struct {
	ID        string    `db:"id" json:"id"`
	TuitionID string    `db:"tuition_id" json:"tuition_id"`
	Name      string    `db:"name" json:"name"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectFilter scopes subject listing queries.
type SubjectFilter struct {
	TuitionID string
	Search    string
	Active    *bool
	Page      int
	PageSize  int
}
