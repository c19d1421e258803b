package models

import (
	"strings"
	"time"
)

// ProfileKind distinguishes the two profile families. The values match the
// profileType and userType fields on the wire.
type ProfileKind string

const (
	KindCandidate ProfileKind = "CANDIDATE"
	KindClient    ProfileKind = "CLIENT"
)

// Valid reports whether k is a known profile kind.
func (k ProfileKind) Valid() bool {
	return k == KindCandidate || k == KindClient
}

// ProfileStatus is the review state of a profile.
type ProfileStatus string

const (
	ProfilePending  ProfileStatus = "PENDING"
	ProfileApproved ProfileStatus = "APPROVED"
	ProfileRejected ProfileStatus = "REJECTED"
)

// CanTransitionTo reports whether an admin review may move a profile from s
// to next. Going back to PENDING is never a review transition; it only
// happens through an owner edit.
func (s ProfileStatus) CanTransitionTo(next ProfileStatus) bool {
	return s == ProfilePending && (next == ProfileApproved || next == ProfileRejected)
}

// Visibility controls who can see a candidate profile.
type Visibility string

const (
	VisibilityPublic     Visibility = "PUBLIC"
	VisibilityPrivate    Visibility = "PRIVATE"
	VisibilityRestricted Visibility = "RESTRICTED"
)

// Profile represents a candidate or client profile
type Profile struct {
	ID              int64         `json:"id" db:"id"`
	UserID          string        `json:"user_id" db:"user_id"`
	Kind            ProfileKind   `json:"kind" db:"kind"`
	Status          ProfileStatus `json:"status" db:"status"`
	RejectionReason *string       `json:"rejection_reason,omitempty" db:"rejection_reason"`
	Blocked         bool          `json:"blocked" db:"blocked"`
	Visibility      Visibility    `json:"visibility" db:"visibility"`
	FirstName       string        `json:"first_name" db:"first_name"`
	LastName        string        `json:"last_name" db:"last_name"`
	Email           string        `json:"email" db:"email"`
	JobTitle        string        `json:"job_title" db:"job_title"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

// FullName joins first and last name, skipping blanks.
func (p *Profile) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
}

// ApplicationStatus is the job owner's decision on an application.
type ApplicationStatus string

const (
	ApplicationSubmitted   ApplicationStatus = "SUBMITTED"
	ApplicationUnderReview ApplicationStatus = "UNDER_REVIEW"
	ApplicationAccepted    ApplicationStatus = "ACCEPTED"
	ApplicationRefused     ApplicationStatus = "REFUSED"
)

// Valid reports whether s is a known application status.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationSubmitted, ApplicationUnderReview, ApplicationAccepted, ApplicationRefused:
		return true
	}
	return false
}

// Application is a candidate's application to a job offer
type Application struct {
	ID          int64             `json:"id" db:"id"`
	JobOfferID  int64             `json:"job_offer_id" db:"job_offer_id"`
	CandidateID string            `json:"candidate_id" db:"candidate_id"`
	Status      ApplicationStatus `json:"status" db:"status"`
	AppliedAt   time.Time         `json:"applied_at" db:"applied_at"`
	UpdatedAt   time.Time         `json:"updated_at" db:"updated_at"`
}

// JobOffer is a position posted by a client
type JobOffer struct {
	ID             int64     `json:"id" db:"id"`
	ClientID       string    `json:"client_id" db:"client_id"`
	Title          string    `json:"title" db:"title"`
	Description    string    `json:"description" db:"description"`
	Location       string    `json:"location" db:"location"`
	EmploymentType string    `json:"employment_type" db:"employment_type"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// NotificationState is UNREAD until the recipient marks it READ.
type NotificationState string

const (
	NotificationUnread NotificationState = "UNREAD"
	NotificationRead   NotificationState = "READ"
)

// Notification is the user-visible record of a delivered event. It is
// derived state: nothing reads it back to make business decisions.
type Notification struct {
	ID        int64             `json:"id" db:"id"`
	UserID    *string           `json:"userId,omitempty" db:"user_id"`
	Email     string            `json:"email" db:"email"`
	Title     string            `json:"title" db:"title"`
	Message   string            `json:"message" db:"message"`
	State     NotificationState `json:"state" db:"state"`
	CreatedAt time.Time         `json:"createdAt" db:"created_at"`
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
