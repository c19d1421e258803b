package database

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/bacembenakkari/TalentCloud/internal/models"
)

// NotificationRepository is the append-mostly store behind the inbox. Rows
// are inserted independently, so concurrent consumers never contend.
type NotificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const notificationColumns = `id, user_id, email, title, message, state, created_at`

func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (user_id, email, title, message, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := r.db.QueryRowxContext(ctx, query,
		n.UserID, n.Email, n.Title, n.Message, n.State, n.CreatedAt,
	).Scan(&n.ID)
	return errors.Wrap(err, "failed to insert notification")
}

func (r *NotificationRepository) FindByID(ctx context.Context, id int64) (*models.Notification, error) {
	n := &models.Notification{}
	err := r.db.GetContext(ctx, n,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get notification %d", id)
	}
	return n, nil
}

func (r *NotificationRepository) ListByUserID(ctx context.Context, userID string) ([]models.Notification, error) {
	var list []models.Notification
	err := r.db.SelectContext(ctx, &list, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	return list, errors.Wrapf(err, "failed to list notifications for user %s", userID)
}

func (r *NotificationRepository) ListByEmail(ctx context.Context, email string) ([]models.Notification, error) {
	var list []models.Notification
	err := r.db.SelectContext(ctx, &list, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE email = $1
		ORDER BY created_at DESC`, models.NormalizeEmail(email))
	return list, errors.Wrapf(err, "failed to list notifications for %s", email)
}

// MarkRead flips a notification to READ. Marking an already read row is a
// no-op that still succeeds.
func (r *NotificationRepository) MarkRead(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET state = $1 WHERE id = $2`, models.NotificationRead, id)
	if err != nil {
		return errors.Wrapf(err, "failed to mark notification %d as read", id)
	}
	if err := expectOneRow(result); err != nil {
		if errors.Is(err, ErrConflict) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// CountUnread counts UNREAD rows addressed to the user id or the email.
// Either may be blank.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID, email string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM notifications
		WHERE state = $1
		  AND ((user_id = $2 AND $2 <> '') OR (email = $3 AND $3 <> ''))`,
		models.NotificationUnread, userID, models.NormalizeEmail(email))
	if err != nil {
		return 0, errors.Wrap(err, "failed to count unread notifications")
	}
	return count, nil
}
