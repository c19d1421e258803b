package notification

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bacembenakkari/TalentCloud/internal/database"
	"github.com/bacembenakkari/TalentCloud/internal/identity"
	"github.com/bacembenakkari/TalentCloud/internal/models"
)

type fakeInboxStore struct {
	rows   []models.Notification
	marked []int64
}

func (s *fakeInboxStore) FindByID(ctx context.Context, id int64) (*models.Notification, error) {
	for _, n := range s.rows {
		if n.ID == id {
			cp := n
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *fakeInboxStore) ListByUserID(ctx context.Context, userID string) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range s.rows {
		if n.UserID != nil && *n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *fakeInboxStore) ListByEmail(ctx context.Context, email string) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range s.rows {
		if n.Email == email {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *fakeInboxStore) MarkRead(ctx context.Context, id int64) error {
	s.marked = append(s.marked, id)
	return nil
}

func (s *fakeInboxStore) CountUnread(ctx context.Context, userID, email string) (int, error) {
	count := 0
	for _, n := range s.rows {
		mine := (userID != "" && n.UserID != nil && *n.UserID == userID) || (email != "" && n.Email == email)
		if mine && n.State == models.NotificationUnread {
			count++
		}
	}
	return count, nil
}

func strPtr(s string) *string { return &s }

func inboxRows() []models.Notification {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	return []models.Notification{
		{ID: 1, UserID: strPtr("u-1"), Email: "jane@example.com", State: models.NotificationRead, CreatedAt: base},
		{ID: 2, UserID: nil, Email: "jane@example.com", State: models.NotificationUnread, CreatedAt: base.Add(2 * time.Hour)},
		{ID: 3, UserID: strPtr("u-1"), Email: "old@example.com", State: models.NotificationUnread, CreatedAt: base.Add(time.Hour)},
		{ID: 4, UserID: strPtr("u-2"), Email: "bob@example.com", State: models.NotificationUnread, CreatedAt: base.Add(3 * time.Hour)},
	}
}

func TestInboxList_MergesAndSorts(t *testing.T) {
	log, _ := test.NewNullLogger()
	inbox := NewInbox(&fakeInboxStore{rows: inboxRows()}, nil, log)

	list, err := inbox.List(context.Background(), Caller{UserID: "u-1", Email: "Jane@Example.com"})
	require.NoError(t, err)

	var ids []int64
	for _, n := range list {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []int64{2, 3, 1}, ids)
}

func TestInboxList_ResolvesEmailFromUserID(t *testing.T) {
	log, _ := test.NewNullLogger()
	inbox := NewInbox(&fakeInboxStore{rows: inboxRows()}, staticLookup(identity.Ok("jane@example.com")), log)

	list, err := inbox.List(context.Background(), Caller{UserID: "u-1"})
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestInboxList_FailedLookupListsByUserOnly(t *testing.T) {
	log, _ := test.NewNullLogger()
	inbox := NewInbox(&fakeInboxStore{rows: inboxRows()}, staticLookup(identity.Failed(identity.ReasonUnavailable, nil)), log)

	list, err := inbox.List(context.Background(), Caller{UserID: "u-1"})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestInbox_RequiresCaller(t *testing.T) {
	log, _ := test.NewNullLogger()
	inbox := NewInbox(&fakeInboxStore{}, nil, log)

	_, err := inbox.List(context.Background(), Caller{})
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = inbox.UnreadCount(context.Background(), Caller{UserID: "  "})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestInboxMarkRead(t *testing.T) {
	log, _ := test.NewNullLogger()
	store := &fakeInboxStore{rows: inboxRows()}
	inbox := NewInbox(store, nil, log)
	ctx := context.Background()

	n, err := inbox.MarkRead(ctx, 2, Caller{Email: "JANE@example.com"})
	require.NoError(t, err)
	assert.Equal(t, models.NotificationRead, n.State)

	_, err = inbox.MarkRead(ctx, 3, Caller{UserID: "u-1"})
	assert.NoError(t, err)

	_, err = inbox.MarkRead(ctx, 4, Caller{UserID: "u-1", Email: "jane@example.com"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = inbox.MarkRead(ctx, 99, Caller{UserID: "u-1"})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, []int64{2, 3}, store.marked)
}

func TestInboxUnreadCount(t *testing.T) {
	log, _ := test.NewNullLogger()
	inbox := NewInbox(&fakeInboxStore{rows: inboxRows()}, nil, log)

	count, err := inbox.UnreadCount(context.Background(), Caller{UserID: "u-1", Email: "jane@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
