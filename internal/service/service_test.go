package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bacembenakkari/TalentCloud/internal/database"
	"github.com/bacembenakkari/TalentCloud/internal/events"
	"github.com/bacembenakkari/TalentCloud/internal/guard"
	"github.com/bacembenakkari/TalentCloud/internal/identity"
	"github.com/bacembenakkari/TalentCloud/internal/models"
	"github.com/bacembenakkari/TalentCloud/internal/notification"
)

// memoryRepo is an in-memory stand-in for database.Repository.
type memoryRepo struct {
	mu           sync.Mutex
	profiles     map[int64]*models.Profile
	jobs         map[int64]*models.JobOffer
	applications map[int64]*models.Application
	nextID       int64
	failWrites   error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		profiles:     make(map[int64]*models.Profile),
		jobs:         make(map[int64]*models.JobOffer),
		applications: make(map[int64]*models.Application),
	}
}

func (r *memoryRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *memoryRepo) CreateProfile(ctx context.Context, p *models.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites != nil {
		return r.failWrites
	}
	for _, existing := range r.profiles {
		if existing.UserID == p.UserID && existing.Kind == p.Kind {
			return database.ErrDuplicate
		}
	}
	p.ID = r.id()
	cp := *p
	r.profiles[p.ID] = &cp
	return nil
}

func (r *memoryRepo) GetProfile(ctx context.Context, id int64) (*models.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memoryRepo) GetProfileByUser(ctx context.Context, userID string, kind models.ProfileKind) (*models.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.profiles {
		if p.UserID == userID && p.Kind == kind {
			cp := *p
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (r *memoryRepo) UpdateProfileStatus(ctx context.Context, id int64, from, to models.ProfileStatus, reason *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites != nil {
		return r.failWrites
	}
	p, ok := r.profiles[id]
	if !ok || p.Status != from {
		return database.ErrConflict
	}
	p.Status = to
	p.RejectionReason = reason
	return nil
}

func (r *memoryRepo) UpdateProfileVisibility(ctx context.Context, id int64, visibility models.Visibility, blocked bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return database.ErrNotFound
	}
	p.Visibility = visibility
	p.Blocked = blocked
	return nil
}

func (r *memoryRepo) CreateJobOffer(ctx context.Context, j *models.JobOffer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites != nil {
		return r.failWrites
	}
	j.ID = r.id()
	cp := *j
	r.jobs[j.ID] = &cp
	return nil
}

func (r *memoryRepo) GetJobOffer(ctx context.Context, id int64) (*models.JobOffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *memoryRepo) CreateApplication(ctx context.Context, a *models.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.applications {
		if existing.JobOfferID == a.JobOfferID && existing.CandidateID == a.CandidateID {
			return database.ErrDuplicate
		}
	}
	a.ID = r.id()
	cp := *a
	r.applications[a.ID] = &cp
	return nil
}

func (r *memoryRepo) GetApplication(ctx context.Context, id int64) (*models.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.applications[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memoryRepo) UpdateApplicationStatus(ctx context.Context, id int64, status models.ApplicationStatus) (models.ApplicationStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.applications[id]
	if !ok {
		return "", database.ErrNotFound
	}
	old := a.Status
	a.Status = status
	return old, nil
}

type capturingPublisher struct {
	mu        sync.Mutex
	err       error
	published []*events.Outgoing
}

func (p *capturingPublisher) Publish(ctx context.Context, topic, key string, env *events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, &events.Outgoing{Topic: topic, Key: key, Envelope: env})
	return nil
}

func (p *capturingPublisher) last(t *testing.T) *events.Outgoing {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.published)
	return p.published[len(p.published)-1]
}

type staticResolver map[string]string

func (r staticResolver) ResolveEmail(ctx context.Context, userID, embedded string) string {
	if embedded != "" {
		return embedded
	}
	if email, ok := r[userID]; ok {
		return email
	}
	return identity.Fallback(userID, "talentcloud.com")
}

type harness struct {
	repo         *memoryRepo
	publisher    *capturingPublisher
	hook         *test.Hook
	profiles     *ProfileService
	applications *ApplicationService
	jobs         *JobOfferService
}

func newHarness(resolver EmailResolver) *harness {
	log, hook := test.NewNullLogger()
	repo := newMemoryRepo()
	pub := &capturingPublisher{}
	g := guard.New(pub, log, nil)
	return &harness{
		repo:         repo,
		publisher:    pub,
		hook:         hook,
		profiles:     NewProfileService(repo, g, resolver, log),
		applications: NewApplicationService(repo, repo, repo, g, resolver, log),
		jobs:         NewJobOfferService(repo, g, log),
	}
}

func (h *harness) seedProfile(t *testing.T, userID string, kind models.ProfileKind, status models.ProfileStatus, email string) *models.Profile {
	t.Helper()
	p := &models.Profile{UserID: userID, Kind: kind, Status: status, Email: email, FirstName: "Ada", LastName: "Lovelace"}
	require.NoError(t, h.repo.CreateProfile(context.Background(), p))
	return p
}

func TestCreateProfile_PublishesByKind(t *testing.T) {
	h := newHarness(staticResolver{})
	ctx := context.Background()

	p, err := h.profiles.CreateProfile(ctx, CreateProfileInput{
		UserID: "cand-1", Kind: models.KindCandidate, FirstName: "Jane", Email: " Jane@Example.com ", JobTitle: "Backend Engineer",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ProfilePending, p.Status)
	assert.Equal(t, "jane@example.com", p.Email)

	out := h.publisher.last(t)
	assert.Equal(t, events.TopicProfileCreated, out.Topic)
	assert.Equal(t, "cand-1", out.Key)
	created := out.Envelope.Payload.(events.ProfileCreated)
	assert.Equal(t, p.ID, created.ProfileID)
	assert.Equal(t, "jane@example.com", created.Email)
	assert.Equal(t, "PENDING", created.Status)

	_, err = h.profiles.CreateProfile(ctx, CreateProfileInput{UserID: "client-1", Kind: models.KindClient})
	require.NoError(t, err)
	assert.Equal(t, events.TopicClientProfileCreated, h.publisher.last(t).Topic)
}

func TestCreateProfile_Errors(t *testing.T) {
	h := newHarness(staticResolver{})
	ctx := context.Background()

	_, err := h.profiles.CreateProfile(ctx, CreateProfileInput{UserID: "u-1", Kind: "ADMIN"})
	assert.ErrorIs(t, err, ErrUnknownProfileKind)

	_, err = h.profiles.CreateProfile(ctx, CreateProfileInput{Kind: models.KindCandidate})
	assert.ErrorIs(t, err, ErrUserIDRequired)

	_, err = h.profiles.CreateProfile(ctx, CreateProfileInput{UserID: "u-1", Kind: models.KindCandidate})
	require.NoError(t, err)
	_, err = h.profiles.CreateProfile(ctx, CreateProfileInput{UserID: "u-1", Kind: models.KindCandidate})
	assert.ErrorIs(t, err, ErrProfileExists)
	assert.Len(t, h.publisher.published, 1)
}

func TestCreateProfile_CommitFailurePublishesNothing(t *testing.T) {
	h := newHarness(staticResolver{})
	h.repo.failWrites = errors.New("connection reset by peer")

	_, err := h.profiles.CreateProfile(context.Background(), CreateProfileInput{UserID: "u-1", Kind: models.KindCandidate})

	assert.Error(t, err)
	assert.Empty(t, h.publisher.published)
}

func TestApprove_BrokerDownKeepsApproval(t *testing.T) {
	h := newHarness(staticResolver{})
	h.publisher.err = errors.New("kafka: client has run out of available brokers to talk to")
	reason := "old reason"
	seeded := h.seedProfile(t, "cand-1", models.KindCandidate, models.ProfilePending, "jane@example.com")
	h.repo.profiles[seeded.ID].RejectionReason = &reason

	p, err := h.profiles.Approve(context.Background(), seeded.ID)

	require.NoError(t, err)
	assert.Equal(t, models.ProfileApproved, p.Status)
	assert.Nil(t, p.RejectionReason)

	stored, _ := h.repo.GetProfile(context.Background(), seeded.ID)
	assert.Equal(t, models.ProfileApproved, stored.Status)
	assert.Nil(t, stored.RejectionReason)

	var entry *logrus.Entry
	for _, e := range h.hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			entry = e
		}
	}
	require.NotNil(t, entry, "expected the lost event to be logged")
	assert.Equal(t, events.TopicCandidateProfileStatus, entry.Data["topic"])
	assert.Contains(t, entry.Data["payload"], `"profileStatus":"APPROVED"`)
}

func TestApprove_IdentityServerErrorStillApproves(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	log, _ := test.NewNullLogger()
	resolver := identity.NewResolver(identity.NewHTTPClient(srv.URL, time.Second), "talentcloud.com", log, nil)
	h := newHarness(resolver)
	seeded := h.seedProfile(t, "abcdefghijk", models.KindClient, models.ProfilePending, "")

	p, err := h.profiles.Approve(context.Background(), seeded.ID)

	require.NoError(t, err)
	assert.Equal(t, models.ProfileApproved, p.Status)

	out := h.publisher.last(t)
	assert.Equal(t, events.TopicClientProfileStatus, out.Topic)
	changed := out.Envelope.Payload.(events.ProfileStatusChanged)
	assert.Equal(t, "pending-user-abcdefgh@talentcloud.com", changed.UserEmail)
	assert.Equal(t, "CLIENT", changed.UserType)
	assert.Equal(t, ApprovalMessage, changed.Message)
}

func TestReject(t *testing.T) {
	h := newHarness(staticResolver{})
	seeded := h.seedProfile(t, "cand-1", models.KindCandidate, models.ProfilePending, "jane@example.com")

	_, err := h.profiles.Reject(context.Background(), seeded.ID, "   ")
	assert.ErrorIs(t, err, ErrRejectionReasonRequired)

	p, err := h.profiles.Reject(context.Background(), seeded.ID, "missing CV")
	require.NoError(t, err)
	assert.Equal(t, models.ProfileRejected, p.Status)
	require.NotNil(t, p.RejectionReason)
	assert.Equal(t, "missing CV", *p.RejectionReason)

	changed := h.publisher.last(t).Envelope.Payload.(events.ProfileStatusChanged)
	assert.Equal(t, "REJECTED", changed.ProfileStatus)
	assert.Equal(t, "❌ Your profile has been rejected. Reason: missing CV", changed.Message)

	_, err = h.profiles.Approve(context.Background(), seeded.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestResetToPending(t *testing.T) {
	h := newHarness(staticResolver{})
	seeded := h.seedProfile(t, "cand-1", models.KindCandidate, models.ProfileRejected, "jane@example.com")

	p, err := h.profiles.ResetToPending(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProfilePending, p.Status)
	assert.Nil(t, p.RejectionReason)
	assert.Empty(t, h.publisher.published)

	_, err = h.profiles.Approve(context.Background(), seeded.ID)
	assert.NoError(t, err)

	_, err = h.profiles.ResetToPending(context.Background(), 999)
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestSetVisibilityAndBlock(t *testing.T) {
	h := newHarness(staticResolver{})
	seeded := h.seedProfile(t, "cand-1", models.KindCandidate, models.ProfileApproved, "")

	p, err := h.profiles.SetVisibility(context.Background(), seeded.ID, "PRIVATE")
	require.NoError(t, err)
	assert.Equal(t, models.VisibilityPrivate, p.Visibility)
	assert.False(t, p.Blocked)

	p, err = h.profiles.SetVisibility(context.Background(), seeded.ID, "RESTRICTED")
	require.NoError(t, err)
	assert.True(t, p.Blocked)

	_, err = h.profiles.SetVisibility(context.Background(), seeded.ID, "SECRET")
	assert.ErrorIs(t, err, ErrInvalidVisibility)

	p, err = h.profiles.Block(context.Background(), seeded.ID, false)
	require.NoError(t, err)
	assert.False(t, p.Blocked)
	assert.Equal(t, models.VisibilityRestricted, p.Visibility)
	assert.Empty(t, h.publisher.published)
}

func TestApply(t *testing.T) {
	h := newHarness(staticResolver{"client-1": "owner@acme.io"})
	ctx := context.Background()
	h.seedProfile(t, "cand-1", models.KindCandidate, models.ProfileApproved, "jane@example.com")
	h.seedProfile(t, "cand-2", models.KindCandidate, models.ProfilePending, "")
	job, err := h.jobs.Create(ctx, CreateJobOfferInput{ClientID: "client-1", Title: "Backend Engineer"})
	require.NoError(t, err)

	app, err := h.applications.Apply(ctx, "cand-1", job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationSubmitted, app.Status)

	out := h.publisher.last(t)
	assert.Equal(t, events.TopicApplicationSubmitted, out.Topic)
	submitted := out.Envelope.Payload.(events.ApplicationSubmitted)
	assert.Equal(t, out.Key, submitted.AggregateID())
	assert.Equal(t, "owner@acme.io", submitted.ClientEmail)
	assert.Equal(t, "jane@example.com", submitted.CandidateEmail)
	assert.Equal(t, "Ada Lovelace", submitted.CandidateName)
	assert.Equal(t, "Backend Engineer", submitted.JobTitle)

	_, err = h.applications.Apply(ctx, "cand-1", job.ID)
	assert.ErrorIs(t, err, ErrApplicationExists)

	_, err = h.applications.Apply(ctx, "cand-2", job.ID)
	assert.ErrorIs(t, err, ErrProfileNotApproved)

	_, err = h.applications.Apply(ctx, "ghost", job.ID)
	assert.ErrorIs(t, err, ErrProfileNotFound)

	_, err = h.applications.Apply(ctx, "cand-1", 999)
	assert.ErrorIs(t, err, ErrJobOfferNotFound)
}

func TestUpdateStatus_AlwaysAnnounces(t *testing.T) {
	h := newHarness(staticResolver{})
	ctx := context.Background()
	h.seedProfile(t, "cand-1", models.KindCandidate, models.ProfileApproved, "jane@example.com")
	h.seedProfile(t, "client-1", models.KindClient, models.ProfileApproved, "owner@acme.io")
	job, err := h.jobs.Create(ctx, CreateJobOfferInput{ClientID: "client-1", Title: "Backend Engineer"})
	require.NoError(t, err)
	app, err := h.applications.Apply(ctx, "cand-1", job.ID)
	require.NoError(t, err)

	_, err = h.applications.UpdateStatus(ctx, app.ID, models.ApplicationAccepted)
	require.NoError(t, err)
	_, err = h.applications.UpdateStatus(ctx, app.ID, models.ApplicationAccepted)
	require.NoError(t, err)

	require.Len(t, h.publisher.published, 4)
	first := h.publisher.published[2].Envelope.Payload.(events.ApplicationStatusChanged)
	second := h.publisher.published[3].Envelope.Payload.(events.ApplicationStatusChanged)
	assert.Equal(t, "SUBMITTED", first.OldStatus)
	assert.Equal(t, "ACCEPTED", first.NewStatus)
	assert.Equal(t, "ACCEPTED", second.OldStatus)
	assert.Equal(t, "ACCEPTED", second.NewStatus)
	assert.Equal(t, "jane@example.com", first.CandidateEmail)
	assert.Equal(t, "Ada Lovelace", first.ClientName)
	assert.Equal(t, events.TopicApplicationStatusChanged, h.publisher.published[3].Topic)

	_, err = h.applications.UpdateStatus(ctx, app.ID, "MAYBE")
	assert.ErrorIs(t, err, ErrInvalidApplicationState)
	_, err = h.applications.UpdateStatus(ctx, 999, models.ApplicationRefused)
	assert.ErrorIs(t, err, ErrApplicationNotFound)
}

func TestJobOfferCreate(t *testing.T) {
	h := newHarness(staticResolver{})

	_, err := h.jobs.Create(context.Background(), CreateJobOfferInput{ClientID: "client-1"})
	assert.ErrorIs(t, err, ErrJobTitleRequired)

	job, err := h.jobs.Create(context.Background(), CreateJobOfferInput{ClientID: "client-1", Title: "Backend Engineer", Location: "Remote"})
	require.NoError(t, err)

	out := h.publisher.last(t)
	assert.Equal(t, events.TopicJobCreated, out.Topic)
	created := out.Envelope.Payload.(events.JobOfferCreated)
	assert.Equal(t, job.ID, created.JobOfferID)
	assert.Equal(t, "Remote", created.Location)
	assert.False(t, created.CreatedAt.IsZero())
}

// flakyJobs serves job offers until broken is set.
type flakyJobs struct {
	*memoryRepo
	broken bool
}

func (j *flakyJobs) GetJobOffer(ctx context.Context, id int64) (*models.JobOffer, error) {
	if j.broken {
		return nil, errors.New("pq: canceling statement due to statement timeout")
	}
	return j.memoryRepo.GetJobOffer(ctx, id)
}

func TestUpdateStatus_JobLookupFailureStillAnnounces(t *testing.T) {
	h := newHarness(staticResolver{})
	ctx := context.Background()
	h.seedProfile(t, "cand-1", models.KindCandidate, models.ProfileApproved, "jane@example.com")
	job, err := h.jobs.Create(ctx, CreateJobOfferInput{ClientID: "client-1", Title: "Backend Engineer"})
	require.NoError(t, err)

	log, hook := test.NewNullLogger()
	jobs := &flakyJobs{memoryRepo: h.repo}
	applications := NewApplicationService(h.repo, jobs, h.repo, guard.New(h.publisher, log, nil), staticResolver{}, log)
	app, err := applications.Apply(ctx, "cand-1", job.ID)
	require.NoError(t, err)

	jobs.broken = true
	before := len(h.publisher.published)
	updated, err := applications.UpdateStatus(ctx, app.ID, models.ApplicationAccepted)

	require.NoError(t, err)
	assert.Equal(t, models.ApplicationAccepted, updated.Status)
	require.Len(t, h.publisher.published, before+1)

	out := h.publisher.last(t)
	assert.Equal(t, events.TopicApplicationStatusChanged, out.Topic)
	assert.Equal(t, out.Key, out.Envelope.Payload.AggregateID())
	changed := out.Envelope.Payload.(events.ApplicationStatusChanged)
	assert.Equal(t, app.ID, changed.ApplicationID)
	assert.Equal(t, job.ID, changed.JobOfferID)
	assert.Equal(t, "ACCEPTED", changed.NewStatus)
	assert.Equal(t, "jane@example.com", changed.CandidateEmail)
	assert.Empty(t, changed.ClientID)
	assert.Empty(t, changed.ClientName)

	var warned bool
	for _, e := range hook.AllEntries() {
		assert.NotEqual(t, logrus.ErrorLevel, e.Level, e.Message)
		if e.Level == logrus.WarnLevel && e.Data["application_id"] == app.ID {
			warned = true
		}
	}
	assert.True(t, warned, "expected the failed job lookup to be logged")
}

type inboxRows struct {
	mu   sync.Mutex
	rows []*models.Notification
}

func (s *inboxRows) Create(ctx context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *n
	s.rows = append(s.rows, &cp)
	return nil
}

type countingSender struct {
	mu    sync.Mutex
	sends int
}

func (s *countingSender) Send(ctx context.Context, to, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends++
	return nil
}

func TestCreateProfile_UnknownEmailReachesInboxAsFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	log, _ := test.NewNullLogger()
	resolver := identity.NewResolver(identity.NewHTTPClient(srv.URL, time.Second), "talentcloud.com", log, nil)
	h := newHarness(resolver)

	_, err := h.profiles.CreateProfile(context.Background(), CreateProfileInput{
		UserID: "3f2a9c71-5d0e-4b8a-9e61-0c2d7f4a8b19", Kind: models.KindCandidate, FirstName: "Jane", Email: "  ",
	})
	require.NoError(t, err)

	out := h.publisher.last(t)
	assert.Equal(t, events.TopicProfileCreated, out.Topic)
	created := out.Envelope.Payload.(events.ProfileCreated)
	assert.Equal(t, "pending-user-3f2a9c71@talentcloud.com", created.Email)

	// What the notifier reads off the topic.
	data, err := json.Marshal(out.Envelope)
	require.NoError(t, err)
	env, err := events.Decode(data, "")
	require.NoError(t, err)

	store := &inboxRows{}
	sender := &countingSender{}
	executor := notification.NewExecutor(store, sender, "talentcloud.com", time.Second, log, nil)
	handlers := notification.NewHandlers(resolver, executor, log)

	require.NoError(t, handlers.OnProfileCreated(context.Background(), env))

	require.Len(t, store.rows, 1)
	assert.Equal(t, models.NotificationUnread, store.rows[0].State)
	assert.Equal(t, "pending-user-3f2a9c71@talentcloud.com", store.rows[0].Email)
	assert.Zero(t, sender.sends)
}
