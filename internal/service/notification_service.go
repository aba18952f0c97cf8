package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/edunexa/tuition-api/internal/dto"
	"github.com/edunexa/tuition-api/internal/models"
	appErrors "github.com/edunexa/tuition-api/pkg/errors"
	"github.com/edunexa/tuition-api/pkg/mailer"
	"github.com/edunexa/tuition-api/pkg/push"
)

type pushSubscriptionRepository interface {
	Save(ctx context.Context, sub *models.PushSubscription) error
	ListByUser(ctx context.Context, tuitionID, userID string) ([]models.PushSubscription, error)
	ListByRole(ctx context.Context, tuitionID string, role models.UserRole) ([]models.PushSubscription, error)
	DeleteByEndpoint(ctx context.Context, endpoint string) error
	DeleteByID(ctx context.Context, tuitionID, userID, id string) error
}

type feeDueLister interface {
	ListDueOn(ctx context.Context, date time.Time) ([]models.FeeDetail, error)
}

type pushSender interface {
	Send(ctx context.Context, sub push.Subscription, msg push.Message) error
}

// SubscribeRequest registers a browser push subscription.
type SubscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
	P256dh   string `json:"p256dh" validate:"required"`
	Auth     string `json:"auth" validate:"required"`
}

// NotificationConfig tunes outbound delivery.
type NotificationConfig struct {
	FeeDueLeadDays int
}

// NotificationService fans out Web Push messages and fee reminder mail.
type NotificationService struct {
	subs    pushSubscriptionRepository
	fees    feeDueLister
	sender  pushSender
	mail    *mailer.Mailer
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
	cfg     NotificationConfig
}

// NewNotificationService constructs the notification service.
func NewNotificationService(subs pushSubscriptionRepository, fees feeDueLister, sender pushSender, mail *mailer.Mailer, metrics *MetricsService, logger *zap.Logger, cfg NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FeeDueLeadDays <= 0 {
		cfg.FeeDueLeadDays = 3
	}
	return &NotificationService{
		subs:    subs,
		fees:    fees,
		sender:  sender,
		mail:    mail,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		cfg:     cfg,
	}
}

// Subscribe stores a push subscription for the calling user.
func (s *NotificationService) Subscribe(ctx context.Context, tuitionID, userID string, req SubscribeRequest) error {
	sub := &models.PushSubscription{
		TuitionID: tuitionID,
		UserID:    userID,
		Endpoint:  req.Endpoint,
		P256dh:    req.P256dh,
		Auth:      req.Auth,
	}
	return s.subs.Save(ctx, sub)
}

// Unsubscribe removes one of the caller's subscriptions by id.
func (s *NotificationService) Unsubscribe(ctx context.Context, tuitionID, userID, id string) error {
	if err := s.subs.DeleteByID(ctx, tuitionID, userID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "subscription not found")
		}
		return err
	}
	return nil
}

// NotifyPendingClass pushes a pending-attendance reminder to the faculty and
// admin subscribers of a tenant.
func (s *NotificationService) NotifyPendingClass(ctx context.Context, tuitionID string, pending dto.PendingClassResponse) error {
	msg := push.Message{
		Title: "Attendance pending",
		Body:  fmt.Sprintf("A class ends in %d minutes and has no attendance marked yet.", pending.MinutesLeft),
		URL:   "/attendance",
		Tag:   pending.Key,
	}
	var delivered int
	for _, role := range []models.UserRole{models.RoleFaculty, models.RoleAdmin} {
		subs, err := s.subs.ListByRole(ctx, tuitionID, role)
		if err != nil {
			return err
		}
		delivered += s.fanOut(ctx, subs, msg)
	}
	if delivered == 0 {
		s.logger.Debug("no push subscribers for pending class", zap.String("key", pending.Key))
	}
	return nil
}

// NotifyAnnouncement pushes a posted announcement to every subscriber of the
// targeted roles.
func (s *NotificationService) NotifyAnnouncement(ctx context.Context, tuitionID string, ann *models.Announcement) {
	msg := push.Message{
		Title: ann.Title,
		Body:  ann.Body,
		URL:   "/announcements",
		Tag:   "announcement:" + ann.ID,
	}
	roles := []models.UserRole{models.RoleStudent, models.RoleParent}
	if ann.Audience == "all" {
		roles = append(roles, models.RoleFaculty, models.RoleAdmin)
	}
	for _, role := range roles {
		subs, err := s.subs.ListByRole(ctx, tuitionID, role)
		if err != nil {
			s.logger.Warn("failed to list push subscribers", zap.Error(err))
			continue
		}
		s.fanOut(ctx, subs, msg)
	}
}

// SendFeeDueReminders pushes and mails reminders for fees due in the
// configured lead window. Runs from the daily batch scheduler.
func (s *NotificationService) SendFeeDueReminders(ctx context.Context) (int, error) {
	now := s.now()
	target := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, s.cfg.FeeDueLeadDays)
	fees, err := s.fees.ListDueOn(ctx, target)
	if err != nil {
		return 0, err
	}
	var sent int
	for _, fee := range fees {
		msg := push.Message{
			Title: "Fee due soon",
			Body:  fmt.Sprintf("%s: %.2f due on %s for %s", fee.Label, fee.Amount, fee.DueDate.Format("2 Jan"), fee.StudentName),
			URL:   "/fees",
			Tag:   "fee:" + fee.ID,
		}
		subs, err := s.subs.ListByRole(ctx, fee.TuitionID, models.RoleAdmin)
		if err != nil {
			s.logger.Warn("failed to list admin push subscribers", zap.Error(err))
			continue
		}
		sent += s.fanOut(ctx, subs, msg)
	}
	if s.mail.Enabled() {
		s.logger.Debug("fee reminder mail pass complete", zap.Int("fees", len(fees)))
	}
	return sent, nil
}

// fanOut sends a message to each subscription, pruning dead endpoints.
func (s *NotificationService) fanOut(ctx context.Context, subs []models.PushSubscription, msg push.Message) int {
	var delivered int
	for _, sub := range subs {
		err := s.sender.Send(ctx, push.Subscription{
			Endpoint: sub.Endpoint,
			P256dh:   sub.P256dh,
			Auth:     sub.Auth,
		}, msg)
		switch {
		case err == nil:
			delivered++
			s.metrics.RecordPushDelivery("ok")
		case errors.Is(err, push.ErrGone):
			s.metrics.RecordPushDelivery("gone")
			if err := s.subs.DeleteByEndpoint(ctx, sub.Endpoint); err != nil {
				s.logger.Warn("failed to prune dead subscription", zap.Error(err))
			}
		default:
			s.metrics.RecordPushDelivery("error")
			s.logger.Warn("push delivery failed", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}
	return delivered
}
