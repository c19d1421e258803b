// Package notification turns consumed events into inbox rows and emails.
package notification

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bacembenakkari/TalentCloud/internal/identity"
	"github.com/bacembenakkari/TalentCloud/internal/metrics"
	"github.com/bacembenakkari/TalentCloud/internal/models"
)

const defaultSendTimeout = 10 * time.Second

// Store persists notifications.
type Store interface {
	Create(ctx context.Context, n *models.Notification) error
}

// Delivery is one notification to persist and send. UserID may be blank.
type Delivery struct {
	UserID  string
	Email   string
	Subject string
	Body    string
}

// Executor persists a notification row and sends the matching email.
// Neither step depends on the other succeeding.
type Executor struct {
	store       Store
	sender      Sender
	domain      string
	sendTimeout time.Duration
	log         logrus.FieldLogger
	metrics     metrics.Recorder
}

func NewExecutor(store Store, sender Sender, domain string, sendTimeout time.Duration, log logrus.FieldLogger, rec metrics.Recorder) *Executor {
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	if rec == nil {
		rec = metrics.Noop{}
	}
	return &Executor{
		store:       store,
		sender:      sender,
		domain:      domain,
		sendTimeout: sendTimeout,
		log:         log,
		metrics:     rec,
	}
}

// Deliver returns the stored notification. Its ID is zero when the row
// could not be persisted.
func (e *Executor) Deliver(ctx context.Context, d Delivery) *models.Notification {
	n := &models.Notification{
		Email:     models.NormalizeEmail(d.Email),
		Title:     d.Subject,
		Message:   d.Body,
		State:     models.NotificationUnread,
		CreatedAt: time.Now().UTC(),
	}
	if userID := strings.TrimSpace(d.UserID); userID != "" {
		n.UserID = &userID
	}

	log := e.log.WithFields(logrus.Fields{
		"user_id": d.UserID,
		"email":   n.Email,
		"subject": d.Subject,
	})

	if err := e.store.Create(ctx, n); err != nil {
		n.ID = 0
		log.WithError(err).Error("Failed to persist notification")
		e.metrics.NotificationPersistFailed(ctx)
	} else {
		e.metrics.NotificationPersisted(ctx)
	}

	if n.Email == "" || identity.IsFallback(n.Email, e.domain) {
		log.Warn("Recipient has no usable email address, notification stored but not sent")
		return n
	}

	sendCtx, cancel := context.WithTimeout(ctx, e.sendTimeout)
	defer cancel()

	if err := e.sender.Send(sendCtx, n.Email, d.Subject, d.Body); err != nil {
		log.WithError(err).Error("Failed to send notification email")
		e.metrics.NotificationSendFailed(ctx)
		return n
	}

	log.WithField("notification_id", n.ID).Info("Notification delivered")
	return n
}
