package events

import (
	"strconv"
	"time"
)

// Profile kinds as they appear in profileType and userType fields.
const (
	ProfileTypeCandidate = "CANDIDATE"
	ProfileTypeClient    = "CLIENT"
)

// ProfileCreated is emitted once when a user completes profile creation.
type ProfileCreated struct {
	UserID      string    `json:"userId"`
	Email       string    `json:"email"`
	FirstName   string    `json:"firstName,omitempty"`
	LastName    string    `json:"lastName,omitempty"`
	ProfileType string    `json:"profileType"`
	Status      string    `json:"status"`
	ProfileID   int64     `json:"profileId,omitempty"`
	JobTitle    string    `json:"jobTitle,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (ProfileCreated) EventType() EventType   { return ProfileCreatedType }
func (p ProfileCreated) AggregateID() string { return p.UserID }
func (ProfileCreated) isPayload()             {}

// ProfileStatusChanged is emitted on admin approval or rejection.
type ProfileStatusChanged struct {
	UserID        string `json:"userId"`
	UserEmail     string `json:"userEmail"`
	UserType      string `json:"userType"`
	ProfileStatus string `json:"profileStatus"`
	Message       string `json:"message,omitempty"`
}

func (ProfileStatusChanged) EventType() EventType   { return ProfileStatusChangedType }
func (p ProfileStatusChanged) AggregateID() string { return p.UserID }
func (ProfileStatusChanged) isPayload()             {}

// ApplicationSubmitted is addressed to the client owning the job offer.
type ApplicationSubmitted struct {
	ApplicationID  int64  `json:"applicationId"`
	JobOfferID     int64  `json:"jobOfferId"`
	CandidateID    string `json:"candidateId"`
	CandidateName  string `json:"candidateName"`
	CandidateEmail string `json:"candidateEmail"`
	ClientID       string `json:"clientId,omitempty"`
	ClientEmail    string `json:"clientEmail"`
	JobTitle       string `json:"jobTitle"`
}

func (ApplicationSubmitted) EventType() EventType { return ApplicationSubmittedType }
func (p ApplicationSubmitted) AggregateID() string {
	return strconv.FormatInt(p.ApplicationID, 10)
}
func (ApplicationSubmitted) isPayload() {}

// ApplicationStatusChanged is emitted on every status write, including a
// write of the same status.
type ApplicationStatusChanged struct {
	ApplicationID  int64  `json:"applicationId"`
	JobOfferID     int64  `json:"jobOfferId,omitempty"`
	CandidateID    string `json:"candidateId,omitempty"`
	CandidateEmail string `json:"candidateEmail"`
	ClientID       string `json:"clientId"`
	ClientName     string `json:"clientName,omitempty"`
	JobTitle       string `json:"jobTitle"`
	OldStatus      string `json:"oldStatus"`
	NewStatus      string `json:"newStatus"`
}

func (ApplicationStatusChanged) EventType() EventType { return ApplicationStatusChangedType }
func (p ApplicationStatusChanged) AggregateID() string {
	return strconv.FormatInt(p.ApplicationID, 10)
}
func (ApplicationStatusChanged) isPayload() {}

// JobOfferCreated is fire-and-forget; nothing gates it.
type JobOfferCreated struct {
	JobOfferID     int64     `json:"jobOfferId"`
	ClientID       string    `json:"clientId"`
	JobTitle       string    `json:"jobTitle"`
	JobDescription string    `json:"jobDescription"`
	Location       string    `json:"location"`
	EmploymentType string    `json:"employmentType"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (JobOfferCreated) EventType() EventType { return JobOfferCreatedType }
func (p JobOfferCreated) AggregateID() string {
	return strconv.FormatInt(p.JobOfferID, 10)
}
func (JobOfferCreated) isPayload() {}
