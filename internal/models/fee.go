package models

import "time"

// FeeStatus tracks payment state of a fee installment.
type FeeStatus string

const (
	FeeStatusPending FeeStatus = "pending"
	FeeStatusPaid    FeeStatus = "paid"
	FeeStatusOverdue FeeStatus = "overdue"
	FeeStatusWaived  FeeStatus = "waived"
)

// Valid reports whether the status is a supported value.
func (s FeeStatus) Valid() bool {
	switch s {
	case FeeStatusPending, FeeStatusPaid, FeeStatusOverdue, FeeStatusWaived:
		return true
	default:
		return false
	}
}

// Fee is a single fee installment owed by a student.
type Fee struct {
	ID        string     `db:"id" json:"id"`
	TuitionID string     `db:"tuition_id" json:"tuition_id"`
	StudentID string     `db:"student_id" json:"student_id"`
	Label     string     `db:"label" json:"label"`
	Amount    float64    `db:"amount" json:"amount"`
	DueDate   time.Time  `db:"due_date" json:"due_date"`
	Status    FeeStatus  `db:"status" json:"status"`
	PaidAt    *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	Method    *string    `db:"method" json:"method,omitempty"`
	ReceiptNo *string    `db:"receipt_no" json:"receipt_no,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// FeeDetail extends the fee with student metadata.
type FeeDetail struct {
	Fee
	StudentName string `db:"student_name" json:"student_name"`
}

// FeeFilter scopes fee listing queries.
type FeeFilter struct {
	TuitionID  string
	StudentID  string
	Status     *FeeStatus
	DueFrom    *time.Time
	DueTo      *time.Time
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
