package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// Subscription mirrors a stored browser push subscription.
type Subscription struct {
	Endpoint string
	P256dh   string
	Auth     string
}

// Message is the payload rendered by the client notification handler.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// Sender dispatches Web Push notifications using VAPID credentials.
type Sender struct {
	options webpush.Options
}

// NewSender builds a sender from VAPID material.
func NewSender(subscriber, publicKey, privateKey string) *Sender {
	return &Sender{
		options: webpush.Options{
			Subscriber:      subscriber,
			VAPIDPublicKey:  publicKey,
			VAPIDPrivateKey: privateKey,
			TTL:             60,
		},
	}
}

// Send pushes a message to a single subscription. It returns ErrGone when the
// endpoint reports the subscription no longer exists, so callers can prune it.
func (s *Sender) Send(ctx context.Context, sub Subscription, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	opts := s.options
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &opts)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		return ErrGone
	case resp.StatusCode >= 400:
		return fmt.Errorf("push endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// ErrGone signals that the subscription endpoint is dead and should be removed.
var ErrGone = fmt.Errorf("push subscription gone")
