package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bacembenakkari/TalentCloud/internal/config"
	"github.com/bacembenakkari/TalentCloud/internal/models"
)

// setupPostgres connects to a scratch database and migrates it. Tests are
// skipped when Postgres is not reachable.
func setupPostgres(t *testing.T) *DB {
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Database.DBName = "talentcloud_test"
	if name := os.Getenv("TEST_DB_NAME"); name != "" {
		cfg.Database.DBName = name
	}

	db, err := NewConnection(&cfg.Database)
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log, _ := test.NewNullLogger()
	require.NoError(t, db.Migrate("up", "file://../../migrations", log))
	return db
}

func TestPostgres_ProfileLifecycle(t *testing.T) {
	db := setupPostgres(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()
	now := time.Now().UTC()

	p := &models.Profile{
		UserID:     "it-" + uuid.NewString(),
		Kind:       models.KindCandidate,
		Status:     models.ProfilePending,
		Visibility: models.VisibilityPublic,
		Email:      "jane@example.com",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, repo.CreateProfile(ctx, p))
	assert.NotZero(t, p.ID)

	dup := *p
	assert.ErrorIs(t, repo.CreateProfile(ctx, &dup), ErrDuplicate)

	require.NoError(t, repo.UpdateProfileStatus(ctx, p.ID, models.ProfilePending, models.ProfileApproved, nil))
	err := repo.UpdateProfileStatus(ctx, p.ID, models.ProfilePending, models.ProfileRejected, nil)
	assert.ErrorIs(t, err, ErrConflict)

	stored, err := repo.GetProfileByUser(ctx, p.UserID, models.KindCandidate)
	require.NoError(t, err)
	assert.Equal(t, models.ProfileApproved, stored.Status)
}

func TestPostgres_ApplicationStatus(t *testing.T) {
	db := setupPostgres(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()
	now := time.Now().UTC()

	job := &models.JobOffer{ClientID: "client-" + uuid.NewString(), Title: "Backend Engineer", CreatedAt: now}
	require.NoError(t, repo.CreateJobOffer(ctx, job))

	app := &models.Application{
		JobOfferID:  job.ID,
		CandidateID: "cand-" + uuid.NewString(),
		Status:      models.ApplicationSubmitted,
		AppliedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, repo.CreateApplication(ctx, app))

	again := *app
	assert.ErrorIs(t, repo.CreateApplication(ctx, &again), ErrDuplicate)

	old, err := repo.UpdateApplicationStatus(ctx, app.ID, models.ApplicationAccepted)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationSubmitted, old)

	old, err = repo.UpdateApplicationStatus(ctx, app.ID, models.ApplicationAccepted)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationAccepted, old)

	_, err = repo.UpdateApplicationStatus(ctx, -1, models.ApplicationAccepted)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgres_NotificationInbox(t *testing.T) {
	db := setupPostgres(t)
	repo := NewNotificationRepository(db.DB)
	ctx := context.Background()

	userID := "it-" + uuid.NewString()
	email := uuid.NewString() + "@example.com"
	base := time.Now().UTC().Truncate(time.Second)

	byUser := &models.Notification{UserID: &userID, Email: email, Title: "first", State: models.NotificationUnread, CreatedAt: base}
	byEmail := &models.Notification{Email: email, Title: "second", State: models.NotificationUnread, CreatedAt: base.Add(time.Minute)}
	require.NoError(t, repo.Create(ctx, byUser))
	require.NoError(t, repo.Create(ctx, byEmail))

	list, err := repo.ListByEmail(ctx, email)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Title)

	count, err := repo.CountUnread(ctx, userID, email)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, repo.MarkRead(ctx, byUser.ID))
	require.NoError(t, repo.MarkRead(ctx, byUser.ID))

	count, err = repo.CountUnread(ctx, userID, "")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	assert.ErrorIs(t, repo.MarkRead(ctx, -1), ErrNotFound)
}
