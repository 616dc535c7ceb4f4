package service

import (
	"context"
	"encoding/json"
	"time"

	"leave-bot/internal/metrics"
	"leave-bot/internal/models"
	"leave-bot/internal/repository"
	"leave-bot/pkg/telegram"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

const defaultNotificationLimit = 20

// Notice is a notification to store and deliver.
type Notice struct {
	UserID    uint
	Type      string
	Payload   map[string]any
	DedupeKey string
	Text      string
	Buttons   []telegram.Button
}

type NotificationService struct {
	store  *repository.Store
	sender telegram.Sender
	logger *logrus.Logger
	now    func() time.Time
}

func NewNotificationService(store *repository.Store, sender telegram.Sender, logger *logrus.Logger) *NotificationService {
	return &NotificationService{
		store:  store,
		sender: sender,
		logger: logger,
		now:    time.Now,
	}
}

// Notify stores and delivers each notice. Failures are logged and never
// returned: notifications must not affect the operation that raised them.
func (s *NotificationService) Notify(ctx context.Context, notices ...Notice) {
	for _, n := range notices {
		s.notify(ctx, n)
	}
}

func (s *NotificationService) notify(ctx context.Context, notice Notice) {
	log := s.logger.WithFields(logrus.Fields{
		"user_id":    notice.UserID,
		"type":       notice.Type,
		"dedupe_key": notice.DedupeKey,
	})

	user, err := s.store.Users.GetByID(ctx, notice.UserID)
	if err != nil {
		metrics.Notifications.WithLabelValues("failed").Inc()
		log.WithError(err).Warn("Failed to load notification recipient")
		return
	}
	if !user.IsActive {
		metrics.Notifications.WithLabelValues("skipped").Inc()
		return
	}

	row := &models.Notification{
		UserID: notice.UserID,
		Type:   notice.Type,
	}
	if notice.DedupeKey != "" {
		key := notice.DedupeKey
		row.DedupeKey = &key
	}
	if notice.Payload != nil {
		data, err := json.Marshal(notice.Payload)
		if err != nil {
			log.WithError(err).Warn("Failed to encode notification payload")
		} else {
			row.Payload = datatypes.JSON(data)
		}
	}

	created, err := s.store.Notifications.Create(ctx, row)
	if err != nil {
		metrics.Notifications.WithLabelValues("failed").Inc()
		log.WithError(err).Warn("Failed to store notification")
		return
	}
	if !created {
		metrics.Notifications.WithLabelValues("duplicate").Inc()
		log.Debug("Duplicate notification skipped")
		return
	}

	if s.sender == nil || notice.Text == "" {
		metrics.Notifications.WithLabelValues("stored").Inc()
		return
	}
	if err := s.sender.Send(user.ChatID, notice.Text, notice.Buttons...); err != nil {
		metrics.Notifications.WithLabelValues("failed").Inc()
		log.WithError(err).Warn("Failed to deliver notification")
		return
	}

	if err := s.store.Notifications.MarkDelivered(ctx, row.ID); err != nil {
		log.WithError(err).Warn("Failed to mark notification delivered")
	}
	metrics.Notifications.WithLabelValues("delivered").Inc()
}

// List returns the user's most recent notifications.
func (s *NotificationService) List(ctx context.Context, userID uint, unreadOnly bool) ([]models.Notification, error) {
	return s.store.Notifications.ListForUser(ctx, userID, unreadOnly, defaultNotificationLimit)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) error {
	return s.store.Notifications.MarkRead(ctx, userID, id, s.now())
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return s.store.Notifications.MarkAllRead(ctx, userID, s.now())
}
