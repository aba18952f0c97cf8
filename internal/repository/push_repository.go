package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edunexa/tuition-api/internal/models"
)

// PushRepository provides database access for Web Push subscriptions.
type PushRepository struct {
	db *sqlx.DB
}

// NewPushRepository creates a new instance of PushRepository.
func NewPushRepository(db *sqlx.DB) *PushRepository {
	return &PushRepository{db: db}
}

// Save stores a subscription, replacing keys when the endpoint re-registers.
func (r *PushRepository) Save(ctx context.Context, sub *models.PushSubscription) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO push_subscriptions (id, tuition_id, user_id, endpoint, p256dh, auth, created_at)
        VALUES (:id, :tuition_id, :user_id, :endpoint, :p256dh, :auth, :created_at)
        ON CONFLICT (endpoint)
        DO UPDATE SET user_id = EXCLUDED.user_id, p256dh = EXCLUDED.p256dh, auth = EXCLUDED.auth`
	if _, err := r.db.NamedExecContext(ctx, query, sub); err != nil {
		return fmt.Errorf("save push subscription: %w", err)
	}
	return nil
}

// ListByUser returns the subscriptions registered by one user.
func (r *PushRepository) ListByUser(ctx context.Context, tuitionID, userID string) ([]models.PushSubscription, error) {
	const query = `SELECT id, tuition_id, user_id, endpoint, p256dh, auth, created_at
        FROM push_subscriptions WHERE tuition_id = $1 AND user_id = $2`
	var subs []models.PushSubscription
	if err := r.db.SelectContext(ctx, &subs, query, tuitionID, userID); err != nil {
		return nil, fmt.Errorf("list push subscriptions by user: %w", err)
	}
	return subs, nil
}

// ListByRole returns subscriptions of every user of a tuition holding a role.
func (r *PushRepository) ListByRole(ctx context.Context, tuitionID string, role models.UserRole) ([]models.PushSubscription, error) {
	const query = `SELECT p.id, p.tuition_id, p.user_id, p.endpoint, p.p256dh, p.auth, p.created_at
        FROM push_subscriptions p
        JOIN users u ON u.id = p.user_id
        WHERE p.tuition_id = $1 AND u.role = $2 AND u.active = true`
	var subs []models.PushSubscription
	if err := r.db.SelectContext(ctx, &subs, query, tuitionID, role); err != nil {
		return nil, fmt.Errorf("list push subscriptions by role: %w", err)
	}
	return subs, nil
}

// DeleteByEndpoint removes a subscription whose endpoint is gone or revoked.
func (r *PushRepository) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	const query = `DELETE FROM push_subscriptions WHERE endpoint = $1`
	if _, err := r.db.ExecContext(ctx, query, endpoint); err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}

// DeleteByID removes one of the caller's subscriptions, scoped to the
// tuition and user so nobody can unsubscribe someone else's browser.
func (r *PushRepository) DeleteByID(ctx context.Context, tuitionID, userID, id string) error {
	const query = `DELETE FROM push_subscriptions WHERE tuition_id = $1 AND user_id = $2 AND id = $3`
	result, err := r.db.ExecContext(ctx, query, tuitionID, userID, id)
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
