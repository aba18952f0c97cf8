package models

import "time"

// BackupStatus tracks the lifecycle of a tenant snapshot.
type BackupStatus string

const (
	BackupStatusReady   BackupStatus = "ready"
	BackupStatusExpired BackupStatus = "expired"
	BackupStatusDeleted BackupStatus = "deleted"
)

// Backup is a point-in-time snapshot of one tuition's data.
type Backup struct {
	ID        string       `db:"id" json:"id"`
	TuitionID string       `db:"tuition_id" json:"tuition_id"`
	CreatedBy *string      `db:"created_by" json:"created_by,omitempty"`
	Filename  string       `db:"filename" json:"filename"`
	SizeBytes int64        `db:"size_bytes" json:"size_bytes"`
	Status    BackupStatus `db:"status" json:"status"`
	ExpiresAt time.Time    `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}
