// Package service implements the profile, application and job offer
// lifecycles. Every state change commits first and is announced on Kafka
// afterwards; a failed announcement never undoes the change.
package service

import (
	"context"

	"github.com/pkg/errors"

	"github.com/bacembenakkari/TalentCloud/internal/models"
)

var (
	ErrProfileNotFound         = errors.New("profile not found")
	ErrProfileExists           = errors.New("profile already exists for this user")
	ErrUnknownProfileKind      = errors.New("unknown profile kind")
	ErrInvalidTransition       = errors.New("invalid profile status transition")
	ErrRejectionReasonRequired = errors.New("rejection reason is required")
	ErrProfileNotApproved      = errors.New("candidate profile is not approved")
	ErrInvalidVisibility       = errors.New("unknown visibility setting")
	ErrUserIDRequired          = errors.New("user id is required")
	ErrApplicationExists       = errors.New("candidate already applied to this job offer")
	ErrApplicationNotFound     = errors.New("application not found")
	ErrInvalidApplicationState = errors.New("unknown application status")
	ErrJobOfferNotFound        = errors.New("job offer not found")
	ErrJobTitleRequired        = errors.New("job title is required")
)

// Messages carried by ProfileStatusChanged events.
const (
	ApprovalMessage        = "🎉 Your profile is approved. You can now apply for jobs."
	rejectionMessagePrefix = "❌ Your profile has been rejected. Reason: "
)

// ProfileStore is the persistence the profile lifecycle needs.
type ProfileStore interface {
	CreateProfile(ctx context.Context, p *models.Profile) error
	GetProfile(ctx context.Context, id int64) (*models.Profile, error)
	GetProfileByUser(ctx context.Context, userID string, kind models.ProfileKind) (*models.Profile, error)
	UpdateProfileStatus(ctx context.Context, id int64, from, to models.ProfileStatus, reason *string) error
	UpdateProfileVisibility(ctx context.Context, id int64, visibility models.Visibility, blocked bool) error
}

type JobOfferStore interface {
	CreateJobOffer(ctx context.Context, j *models.JobOffer) error
	GetJobOffer(ctx context.Context, id int64) (*models.JobOffer, error)
}

type ApplicationStore interface {
	CreateApplication(ctx context.Context, a *models.Application) error
	GetApplication(ctx context.Context, id int64) (*models.Application, error)
	UpdateApplicationStatus(ctx context.Context, id int64, status models.ApplicationStatus) (models.ApplicationStatus, error)
}

// EmailResolver resolves the address put on outgoing events.
type EmailResolver interface {
	ResolveEmail(ctx context.Context, userID, embedded string) string
}
