package events

import "fmt"

// Topic names are shared with the non-Go services and must not change.
const (
	TopicProfileCreated           = "profile-created-topic"
	TopicClientProfileCreated     = "client-profile-created-topic"
	TopicCandidateProfileStatus   = "candidate-profile-status-topic"
	TopicClientProfileStatus      = "client-profile-status-topic"
	TopicApplicationSubmitted     = "application-submitted-topic"
	TopicApplicationStatusChanged = "application-status-changed-topic"
	TopicJobCreated               = "job-created-topic"
	TopicJobOfferCreatedAlias     = "job-offer-created-events"
)

// Outgoing is an envelope addressed to a topic and partition key.
type Outgoing struct {
	Topic    string
	Key      string
	Envelope *Envelope
}

// Route addresses env to the topic its payload belongs on, keyed by the
// payload's aggregate id.
func Route(env *Envelope) (*Outgoing, error) {
	if env == nil || env.Payload == nil {
		return nil, fmt.Errorf("cannot route an empty envelope")
	}

	topic, err := TopicFor(env.Payload)
	if err != nil {
		return nil, err
	}

	return &Outgoing{
		Topic:    topic,
		Key:      env.Payload.AggregateID(),
		Envelope: env,
	}, nil
}

// TopicFor returns the topic p is published on. Profile events are split by
// profile kind.
func TopicFor(p Payload) (string, error) {
	switch v := p.(type) {
	case ProfileCreated:
		switch v.ProfileType {
		case ProfileTypeCandidate:
			return TopicProfileCreated, nil
		case ProfileTypeClient:
			return TopicClientProfileCreated, nil
		}
		return "", fmt.Errorf("invalid profile type %q", v.ProfileType)
	case ProfileStatusChanged:
		switch v.UserType {
		case ProfileTypeCandidate:
			return TopicCandidateProfileStatus, nil
		case ProfileTypeClient:
			return TopicClientProfileStatus, nil
		}
		return "", fmt.Errorf("invalid user type %q", v.UserType)
	case ApplicationSubmitted:
		return TopicApplicationSubmitted, nil
	case ApplicationStatusChanged:
		return TopicApplicationStatusChanged, nil
	case JobOfferCreated:
		return TopicJobCreated, nil
	}
	return "", fmt.Errorf("no topic for payload %T", p)
}
