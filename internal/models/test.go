package models

import "time"

// WeeklyTest is a scheduled assessment for a division and subject.
type WeeklyTest struct {
	ID         string    `db:"id" json:"id"`
	TuitionID  string    `db:"tuition_id" json:"tuition_id"`
	DivisionID string    `db:"division_id" json:"division_id"`
	SubjectID  string    `db:"subject_id" json:"subject_id"`
	Name       string    `db:"name" json:"name"`
	Date       time.Time `db:"date" json:"date"`
	MaxMarks   float64   `db:"max_marks" json:"max_marks"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// WeeklyTestDetail extends the test with display names.
type WeeklyTestDetail struct {
	WeeklyTest
	SubjectName  *string `db:"subject_name" json:"subject_name,omitempty"`
	DivisionName *string `db:"division_name" json:"division_name,omitempty"`
}

// TestResult is a student's score for a weekly test.
type TestResult struct {
	ID        string    `db:"id" json:"id"`
	TuitionID string    `db:"tuition_id" json:"tuition_id"`
	TestID    string    `db:"test_id" json:"test_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	Marks     float64   `db:"marks" json:"marks"`
	Remarks   *string   `db:"remarks" json:"remarks,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TestResultDetail extends a result with student metadata.
type TestResultDetail struct {
	TestResult
	StudentName string  `db:"student_name" json:"student_name"`
	MaxMarks    float64 `db:"max_marks" json:"max_marks"`
}

// TestFilter scopes weekly test listing queries.
type TestFilter struct {
	TuitionID  string
	DivisionID string
	SubjectID  string
	DateFrom   *time.Time
	DateTo     *time.Time
	Page       int
	PageSize   int
}
