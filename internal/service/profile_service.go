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

type ProfileService struct {
	profiles ProfileStore
	guard    *guard.Guard
	resolver EmailResolver
	log      logrus.FieldLogger
}

func NewProfileService(profiles ProfileStore, g *guard.Guard, resolver EmailResolver, log logrus.FieldLogger) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		guard:    g,
		resolver: resolver,
		log:      log,
	}
}

type CreateProfileInput struct {
	UserID    string
	Kind      models.ProfileKind
	FirstName string
	LastName  string
	Email     string
	JobTitle  string
}

// CreateProfile stores a new PENDING profile and announces it.
func (s *ProfileService) CreateProfile(ctx context.Context, in CreateProfileInput) (*models.Profile, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return nil, ErrUserIDRequired
	}
	if !in.Kind.Valid() {
		return nil, errors.Wrapf(ErrUnknownProfileKind, "kind %q", in.Kind)
	}

	now := time.Now().UTC()
	p := &models.Profile{
		UserID:     strings.TrimSpace(in.UserID),
		Kind:       in.Kind,
		Status:     models.ProfilePending,
		Visibility: models.VisibilityPublic,
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		Email:      models.NormalizeEmail(in.Email),
		JobTitle:   in.JobTitle,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := s.guard.WithStateChange(ctx, func(ctx context.Context) error {
		err := s.profiles.CreateProfile(ctx, p)
		if errors.Is(err, database.ErrDuplicate) {
			return ErrProfileExists
		}
		return errors.Wrap(err, "failed to create profile")
	}, func(ctx context.Context) (*events.Outgoing, error) {
		return events.Route(events.New(events.ProfileCreated{
			UserID:      p.UserID,
			Email:       s.resolver.ResolveEmail(ctx, p.UserID, p.Email),
			FirstName:   p.FirstName,
			LastName:    p.LastName,
			ProfileType: string(p.Kind),
			Status:      string(p.Status),
			ProfileID:   p.ID,
			JobTitle:    p.JobTitle,
			CreatedAt:   p.CreatedAt,
		}))
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"user_id":    p.UserID,
		"profile_id": p.ID,
		"kind":       p.Kind,
	}).Info("Profile created")
	return p, nil
}

// Approve moves a PENDING profile to APPROVED and clears any rejection
// reason in the same write.
func (s *ProfileService) Approve(ctx context.Context, profileID int64) (*models.Profile, error) {
	return s.review(ctx, profileID, models.ProfileApproved, nil, ApprovalMessage)
}

// Reject moves a PENDING profile to REJECTED. The reason is stored and sent
// to the owner.
func (s *ProfileService) Reject(ctx context.Context, profileID int64, reason string) (*models.Profile, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrRejectionReasonRequired
	}
	return s.review(ctx, profileID, models.ProfileRejected, &reason, rejectionMessagePrefix+reason)
}

func (s *ProfileService) review(ctx context.Context, profileID int64, to models.ProfileStatus, reason *string, message string) (*models.Profile, error) {
	p, err := s.getProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if !p.Status.CanTransitionTo(to) {
		return nil, errors.Wrapf(ErrInvalidTransition, "%s to %s", p.Status, to)
	}
	from := p.Status

	err = s.guard.WithStateChange(ctx, func(ctx context.Context) error {
		err := s.profiles.UpdateProfileStatus(ctx, p.ID, from, to, reason)
		if errors.Is(err, database.ErrConflict) {
			return errors.Wrap(ErrInvalidTransition, "profile was reviewed concurrently")
		}
		if err != nil {
			return errors.Wrap(err, "failed to update profile status")
		}
		p.Status = to
		p.RejectionReason = reason
		p.UpdatedAt = time.Now().UTC()
		return nil
	}, func(ctx context.Context) (*events.Outgoing, error) {
		return events.Route(events.New(events.ProfileStatusChanged{
			UserID:        p.UserID,
			UserEmail:     s.resolver.ResolveEmail(ctx, p.UserID, p.Email),
			UserType:      string(p.Kind),
			ProfileStatus: string(to),
			Message:       message,
		}))
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"user_id":    p.UserID,
		"profile_id": p.ID,
		"status":     to,
	}).Info("Profile reviewed")
	return p, nil
}

// ResetToPending puts a reviewed profile back into review after its owner
// edits it. It announces nothing.
func (s *ProfileService) ResetToPending(ctx context.Context, profileID int64) (*models.Profile, error) {
	p, err := s.getProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if p.Status == models.ProfilePending {
		return p, nil
	}

	err = s.profiles.UpdateProfileStatus(ctx, p.ID, p.Status, models.ProfilePending, nil)
	if errors.Is(err, database.ErrConflict) {
		return nil, errors.Wrap(ErrInvalidTransition, "profile changed while resetting")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to reset profile")
	}

	p.Status = models.ProfilePending
	p.RejectionReason = nil
	return p, nil
}

// SetVisibility applies a visibility setting. RESTRICTED also blocks the
// profile.
func (s *ProfileService) SetVisibility(ctx context.Context, profileID int64, setting string) (*models.Profile, error) {
	v, err := models.ParseVisibility(setting)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidVisibility, err.Error())
	}

	p, err := s.getProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}

	updated := models.ApplyVisibility(*p, v)
	if err := s.saveVisibility(ctx, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Block sets or clears the blocked flag without touching status or
// visibility.
func (s *ProfileService) Block(ctx context.Context, profileID int64, blocked bool) (*models.Profile, error) {
	p, err := s.getProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}

	p.Blocked = blocked
	if err := s.saveVisibility(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProfileService) saveVisibility(ctx context.Context, p *models.Profile) error {
	err := s.profiles.UpdateProfileVisibility(ctx, p.ID, p.Visibility, p.Blocked)
	if errors.Is(err, database.ErrNotFound) {
		return ErrProfileNotFound
	}
	return errors.Wrap(err, "failed to update profile visibility")
}

func (s *ProfileService) getProfile(ctx context.Context, id int64) (*models.Profile, error) {
	p, err := s.profiles.GetProfile(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load profile")
	}
	return p, nil
}
