package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReminderStore keeps per-tenant reminder state: which pending-class keys were
// dismissed by a user and which were already pushed. Backing the state with
// Redis keeps dismissals durable across restarts and shared between replicas.
type ReminderStore struct {
	client *redis.Client
}

// NewReminderStore constructs a reminder state store.
func NewReminderStore(client *redis.Client) *ReminderStore {
	return &ReminderStore{client: client}
}

func reminderKey(kind, tuitionID, key string) string {
	return fmt.Sprintf("reminder:%s:%s:%s", kind, tuitionID, key)
}

// Dismiss records that a user dismissed a reminder key until the TTL lapses.
func (s *ReminderStore) Dismiss(ctx context.Context, tuitionID, key string, ttl time.Duration) error {
	if s.client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if err := s.client.Set(ctx, reminderKey("dismissed", tuitionID, key), "1", ttl).Err(); err != nil {
		return fmt.Errorf("dismiss reminder %s: %w", key, err)
	}
	return nil
}

// IsDismissed reports whether a reminder key was dismissed.
func (s *ReminderStore) IsDismissed(ctx context.Context, tuitionID, key string) (bool, error) {
	if s.client == nil {
		return false, nil
	}
	n, err := s.client.Exists(ctx, reminderKey("dismissed", tuitionID, key)).Result()
	if err != nil {
		return false, fmt.Errorf("check dismissed reminder %s: %w", key, err)
	}
	return n > 0, nil
}

// MarkNotified records that a reminder was pushed so it is not pushed again.
func (s *ReminderStore) MarkNotified(ctx context.Context, tuitionID, key string, ttl time.Duration) error {
	if s.client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if err := s.client.Set(ctx, reminderKey("notified", tuitionID, key), "1", ttl).Err(); err != nil {
		return fmt.Errorf("mark reminder notified %s: %w", key, err)
	}
	return nil
}

// WasNotified reports whether a reminder was already pushed.
func (s *ReminderStore) WasNotified(ctx context.Context, tuitionID, key string) (bool, error) {
	if s.client == nil {
		return false, nil
	}
	n, err := s.client.Exists(ctx, reminderKey("notified", tuitionID, key)).Result()
	if err != nil {
		return false, fmt.Errorf("check notified reminder %s: %w", key, err)
	}
	return n > 0, nil
}

// ClearDay drops every reminder key recorded for the given date suffix. The
// clear pass uses it to sweep state for windows that have passed.
func (s *ReminderStore) ClearDay(ctx context.Context, tuitionID, date string) error {
	if s.client == nil {
		return nil
	}
	for _, kind := range []string{"dismissed", "notified"} {
		pattern := fmt.Sprintf("reminder:%s:%s:*:%s", kind, tuitionID, date)
		iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
		for iter.Next(ctx) {
			if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
				return fmt.Errorf("clear reminder key %s: %w", iter.Val(), err)
			}
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("scan reminder keys: %w", err)
		}
	}
	return nil
}
