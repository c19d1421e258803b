package service

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/bacembenakkari/TalentCloud/internal/database"
	"github.com/bacembenakkari/TalentCloud/internal/events"
	"github.com/bacembenakkari/TalentCloud/internal/guard"
	"github.com/bacembenakkari/TalentCloud/internal/models"
)

type ApplicationService struct {
	applications ApplicationStore
	jobs         JobOfferStore
	profiles     ProfileStore
	guard        *guard.Guard
	resolver     EmailResolver
	log          logrus.FieldLogger
}

func NewApplicationService(applications ApplicationStore, jobs JobOfferStore, profiles ProfileStore, g *guard.Guard, resolver EmailResolver, log logrus.FieldLogger) *ApplicationService {
	return &ApplicationService{
		applications: applications,
		jobs:         jobs,
		profiles:     profiles,
		guard:        g,
		resolver:     resolver,
		log:          log,
	}
}

// Apply submits candidateID's application to a job offer. Only candidates
// with an APPROVED profile may apply, once per offer.
func (s *ApplicationService) Apply(ctx context.Context, candidateID string, jobOfferID int64) (*models.Application, error) {
	candidateID = strings.TrimSpace(candidateID)
	if candidateID == "" {
		return nil, ErrUserIDRequired
	}

	candidate, err := s.profiles.GetProfileByUser(ctx, candidateID, models.KindCandidate)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load candidate profile")
	}
	if candidate.Status != models.ProfileApproved {
		return nil, ErrProfileNotApproved
	}

	job, err := s.getJobOffer(ctx, jobOfferID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	app := &models.Application{
		JobOfferID:  job.ID,
		CandidateID: candidateID,
		Status:      models.ApplicationSubmitted,
		AppliedAt:   now,
		UpdatedAt:   now,
	}

	err = s.guard.WithStateChange(ctx, func(ctx context.Context) error {
		err := s.applications.CreateApplication(ctx, app)
		if errors.Is(err, database.ErrDuplicate) {
			return ErrApplicationExists
		}
		return errors.Wrap(err, "failed to create application")
	}, func(ctx context.Context) (*events.Outgoing, error) {
		client := s.clientProfile(ctx, job.ClientID)
		return events.Route(events.New(events.ApplicationSubmitted{
			ApplicationID:  app.ID,
			JobOfferID:     job.ID,
			CandidateID:    candidateID,
			CandidateName:  candidate.FullName(),
			CandidateEmail: s.resolver.ResolveEmail(ctx, candidateID, candidate.Email),
			ClientID:       job.ClientID,
			ClientEmail:    s.resolver.ResolveEmail(ctx, job.ClientID, client.Email),
			JobTitle:       job.Title,
		}))
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"application_id": app.ID,
		"job_offer_id":   job.ID,
		"user_id":        candidateID,
	}).Info("Application submitted")
	return app, nil
}

// UpdateStatus records the job owner's decision. Every call is announced,
// including one that writes the current status again.
func (s *ApplicationService) UpdateStatus(ctx context.Context, applicationID int64, status models.ApplicationStatus) (*models.Application, error) {
	if !status.Valid() {
		return nil, errors.Wrapf(ErrInvalidApplicationState, "status %q", status)
	}

	app, err := s.applications.GetApplication(ctx, applicationID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrApplicationNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load application")
	}

	var old models.ApplicationStatus
	err = s.guard.WithStateChange(ctx, func(ctx context.Context) error {
		var err error
		old, err = s.applications.UpdateApplicationStatus(ctx, app.ID, status)
		if errors.Is(err, database.ErrNotFound) {
			return ErrApplicationNotFound
		}
		if err != nil {
			return errors.Wrap(err, "failed to update application status")
		}
		app.Status = status
		app.UpdatedAt = time.Now().UTC()
		return nil
	}, func(ctx context.Context) (*events.Outgoing, error) {
		// The status is committed; a missing job only thins the event.
		job, err := s.jobs.GetJobOffer(ctx, app.JobOfferID)
		if err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"application_id": app.ID,
				"job_offer_id":   app.JobOfferID,
			}).Warn("Failed to load job offer for event, announcing without it")
			job = &models.JobOffer{ID: app.JobOfferID}
		}
		client := &models.Profile{Kind: models.KindClient}
		if job.ClientID != "" {
			client = s.clientProfile(ctx, job.ClientID)
		}

		candidateEmail := ""
		if candidate, err := s.profiles.GetProfileByUser(ctx, app.CandidateID, models.KindCandidate); err == nil {
			candidateEmail = candidate.Email
		}

		return events.Route(events.New(events.ApplicationStatusChanged{
			ApplicationID:  app.ID,
			JobOfferID:     job.ID,
			CandidateID:    app.CandidateID,
			CandidateEmail: s.resolver.ResolveEmail(ctx, app.CandidateID, candidateEmail),
			ClientID:       job.ClientID,
			ClientName:     client.FullName(),
			JobTitle:       job.Title,
			OldStatus:      string(old),
			NewStatus:      string(status),
		}))
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"application_id": app.ID,
		"old_status":     old,
		"new_status":     status,
	}).Info("Application status updated")
	return app, nil
}

// clientProfile returns the client's profile, or an empty one when it
// cannot be loaded. Events still go out with whatever is known.
func (s *ApplicationService) clientProfile(ctx context.Context, clientID string) *models.Profile {
	p, err := s.profiles.GetProfileByUser(ctx, clientID, models.KindClient)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			s.log.WithError(err).WithField("user_id", clientID).Warn("Failed to load client profile")
		}
		return &models.Profile{UserID: clientID, Kind: models.KindClient}
	}
	return p
}

func (s *ApplicationService) getJobOffer(ctx context.Context, id int64) (*models.JobOffer, error) {
	job, err := s.jobs.GetJobOffer(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrJobOfferNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load job offer")
	}
	return job, nil
}
