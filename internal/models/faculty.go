package models

import "time"

// Faculty represents a teacher employed by a tuition center.
type Faculty struct {
	ID         string    `db:"id" json:"id"`
	TuitionID  string    `db:"tuition_id" json:"tuition_id"`
	FullName   string    `db:"full_name" json:"full_name"`
	Email      string    `db:"email" json:"email"`
	Phone      string    `db:"phone" json:"phone"`
	Expertise  string    `db:"expertise" json:"expertise"`
	JoinedAt   *time.Time `db:"joined_at" json:"joined_at,omitempty"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// FacultyFilter scopes faculty listing queries.
type FacultyFilter struct {
	TuitionID string
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
