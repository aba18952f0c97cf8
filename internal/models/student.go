package models

import "time"

// StudentStatus tracks the lifecycle of a student row.
type StudentStatus string

const (
	StudentStatusPending  StudentStatus = "pending"
	StudentStatusEnrolled StudentStatus = "enrolled"
	StudentStatusLeft     StudentStatus = "left"
)

// Student represents a learner registered with a tuition center.
type Student struct {
	ID          string        `db:"id" json:"id"`
	TuitionID   string        `db:"tuition_id" json:"tuition_id"`
	RollNo      string        `db:"roll_no" json:"roll_no"`
	FullName    string        `db:"full_name" json:"full_name"`
	Gender      string        `db:"gender" json:"gender"`
	BirthDate   *time.Time    `db:"birth_date" json:"birth_date,omitempty"`
	DivisionID  *string       `db:"division_id" json:"division_id,omitempty"`
	GuardianName  string      `db:"guardian_name" json:"guardian_name"`
	GuardianPhone string      `db:"guardian_phone" json:"guardian_phone"`
	Address     string        `db:"address" json:"address"`
	Phone       string        `db:"phone" json:"phone"`
	Email       string        `db:"email" json:"email"`
	Status      StudentStatus `db:"status" json:"status"`
	Active      bool          `db:"active" json:"active"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	TuitionID  string
	Search     string
	DivisionID string
	Status     *StudentStatus
	Active     *bool
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// StudentDetail contains student information with division context.
type StudentDetail struct {
	Student
	DivisionName *string `db:"division_name" json:"division_name,omitempty"`
}
