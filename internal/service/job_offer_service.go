package service

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/bacembenakkari/TalentCloud/internal/events"
	"github.com/bacembenakkari/TalentCloud/internal/guard"
	"github.com/bacembenakkari/TalentCloud/internal/models"
)

type JobOfferService struct {
	jobs  JobOfferStore
	guard *guard.Guard
	log   logrus.FieldLogger
}

func NewJobOfferService(jobs JobOfferStore, g *guard.Guard, log logrus.FieldLogger) *JobOfferService {
	return &JobOfferService{
		jobs:  jobs,
		guard: g,
		log:   log,
	}
}

type CreateJobOfferInput struct {
	ClientID       string
	Title          string
	Description    string
	Location       string
	EmploymentType string
}

func (s *JobOfferService) Create(ctx context.Context, in CreateJobOfferInput) (*models.JobOffer, error) {
	if strings.TrimSpace(in.ClientID) == "" {
		return nil, ErrUserIDRequired
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, ErrJobTitleRequired
	}

	job := &models.JobOffer{
		ClientID:       strings.TrimSpace(in.ClientID),
		Title:          strings.TrimSpace(in.Title),
		Description:    in.Description,
		Location:       in.Location,
		EmploymentType: in.EmploymentType,
		CreatedAt:      time.Now().UTC(),
	}

	err := s.guard.WithStateChange(ctx, func(ctx context.Context) error {
		return errors.Wrap(s.jobs.CreateJobOffer(ctx, job), "failed to create job offer")
	}, func(ctx context.Context) (*events.Outgoing, error) {
		return events.Route(events.New(events.JobOfferCreated{
			JobOfferID:     job.ID,
			ClientID:       job.ClientID,
			JobTitle:       job.Title,
			JobDescription: job.Description,
			Location:       job.Location,
			EmploymentType: job.EmploymentType,
			CreatedAt:      job.CreatedAt,
		}))
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"job_offer_id": job.ID,
		"user_id":      job.ClientID,
	}).Info("Job offer created")
	return job, nil
}
