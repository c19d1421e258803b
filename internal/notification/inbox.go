package notification

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/bacembenakkari/TalentCloud/internal/database"
	"github.com/bacembenakkari/TalentCloud/internal/identity"
	"github.com/bacembenakkari/TalentCloud/internal/models"
)

var (
	ErrUnauthenticated = errors.New("no user id or email supplied")
	ErrForbidden       = errors.New("notification belongs to another user")
	ErrNotFound        = errors.New("notification not found")
)

// InboxStore is the read side of the notification store.
type InboxStore interface {
	FindByID(ctx context.Context, id int64) (*models.Notification, error)
	ListByUserID(ctx context.Context, userID string) ([]models.Notification, error)
	ListByEmail(ctx context.Context, email string) ([]models.Notification, error)
	MarkRead(ctx context.Context, id int64) error
	CountUnread(ctx context.Context, userID, email string) (int, error)
}

// Caller identifies who is reading the inbox. Either field may be blank,
// not both.
type Caller struct {
	UserID string
	Email  string
}

func (c Caller) empty() bool {
	return strings.TrimSpace(c.UserID) == "" && strings.TrimSpace(c.Email) == ""
}

// Inbox answers inbox queries. Rows may be addressed by user id, by email,
// or both, so every query looks at both.
type Inbox struct {
	store  InboxStore
	lookup identity.Lookup
	log    logrus.FieldLogger
}

func NewInbox(store InboxStore, lookup identity.Lookup, log logrus.FieldLogger) *Inbox {
	return &Inbox{
		store:  store,
		lookup: lookup,
		log:    log,
	}
}

// complete fills a missing email from the identity service. A failed lookup
// leaves it blank: placeholder addresses never match a real inbox.
func (i *Inbox) complete(ctx context.Context, c Caller) Caller {
	c.UserID = strings.TrimSpace(c.UserID)
	c.Email = models.NormalizeEmail(c.Email)
	if c.Email != "" || c.UserID == "" || i.lookup == nil {
		return c
	}

	result := i.lookup.LookupEmail(ctx, c.UserID)
	if result.OK() {
		c.Email = models.NormalizeEmail(result.Email)
	} else {
		i.log.WithFields(logrus.Fields{
			"user_id": c.UserID,
			"reason":  result.Reason,
		}).Debug("Could not resolve inbox email, listing by user id only")
	}
	return c
}

// List returns the caller's notifications, newest first, without duplicates.
func (i *Inbox) List(ctx context.Context, c Caller) ([]models.Notification, error) {
	if c.empty() {
		return nil, ErrUnauthenticated
	}
	c = i.complete(ctx, c)

	seen := make(map[int64]bool)
	list := make([]models.Notification, 0)
	add := func(ns []models.Notification) {
		for _, n := range ns {
			if !seen[n.ID] {
				seen[n.ID] = true
				list = append(list, n)
			}
		}
	}

	if c.UserID != "" {
		byUser, err := i.store.ListByUserID(ctx, c.UserID)
		if err != nil {
			return nil, err
		}
		add(byUser)
	}
	if c.Email != "" {
		byEmail, err := i.store.ListByEmail(ctx, c.Email)
		if err != nil {
			return nil, err
		}
		add(byEmail)
	}

	sort.SliceStable(list, func(a, b int) bool {
		return list[a].CreatedAt.After(list[b].CreatedAt)
	})
	return list, nil
}

// MarkRead marks a notification read on behalf of its owner.
func (i *Inbox) MarkRead(ctx context.Context, id int64, c Caller) (*models.Notification, error) {
	if c.empty() {
		return nil, ErrUnauthenticated
	}
	c.UserID = strings.TrimSpace(c.UserID)
	c.Email = models.NormalizeEmail(c.Email)

	n, err := i.store.FindByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if !owns(n, c) {
		return nil, ErrForbidden
	}

	if err := i.store.MarkRead(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	n.State = models.NotificationRead
	return n, nil
}

// UnreadCount counts the caller's unread notifications.
func (i *Inbox) UnreadCount(ctx context.Context, c Caller) (int, error) {
	if c.empty() {
		return 0, ErrUnauthenticated
	}
	c = i.complete(ctx, c)
	return i.store.CountUnread(ctx, c.UserID, c.Email)
}

func owns(n *models.Notification, c Caller) bool {
	if c.UserID != "" && n.UserID != nil && *n.UserID == c.UserID {
		return true
	}
	return c.Email != "" && models.NormalizeEmail(n.Email) == c.Email
}
