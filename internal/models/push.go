package models

import "time"

// PushSubscription stores a browser Web Push endpoint for a user.
type PushSubscription struct {
	ID        string    `db:"id" json:"id"`
	TuitionID string    `db:"tuition_id" json:"tuition_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Endpoint  string    `db:"endpoint" json:"endpoint"`
	P256dh    string    `db:"p256dh" json:"p256dh"`
	Auth      string    `db:"auth" json:"auth"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
