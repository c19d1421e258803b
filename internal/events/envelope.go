// Package events defines the envelope exchanged between TalentCloud services
// and the closed set of payloads it can carry.
package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the payload variant carried by an Envelope.
type EventType string

const (
	ProfileCreatedType           EventType = "ProfileCreated"
	ProfileStatusChangedType     EventType = "ProfileStatusChanged"
	ApplicationSubmittedType     EventType = "ApplicationSubmitted"
	ApplicationStatusChangedType EventType = "ApplicationStatusChanged"
	JobOfferCreatedType          EventType = "JobOfferCreated"
)

// ParseEventType validates s against the known event types.
func ParseEventType(s string) (EventType, error) {
	switch t := EventType(s); t {
	case ProfileCreatedType, ProfileStatusChangedType, ApplicationSubmittedType,
		ApplicationStatusChangedType, JobOfferCreatedType:
		return t, nil
	}
	return "", fmt.Errorf("unknown event type %q", s)
}

// Payload is implemented only by the payload types of this package.
type Payload interface {
	EventType() EventType
	// AggregateID is the partition key: every event about the same
	// profile, application or job offer shares it.
	AggregateID() string
	isPayload()
}

// Envelope wraps a payload with the metadata needed for routing and
// downstream idempotence checks. EventID is assigned once by New and is
// preserved across redeliveries and replays.
type Envelope struct {
	EventID   string
	EventType EventType
	Timestamp time.Time
	Payload   Payload
}

// New wraps p in an envelope with a fresh event id.
func New(p Payload) *Envelope {
	return &Envelope{
		EventID:   uuid.NewString(),
		EventType: p.EventType(),
		Timestamp: time.Now().UTC(),
		Payload:   p,
	}
}

type wireEnvelope struct {
	EventID   string          `json:"eventId"`
	EventType EventType       `json:"eventType"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// MarshalJSON encodes the envelope as {eventId, eventType, timestamp, payload}.
func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Payload == nil {
		return nil, fmt.Errorf("envelope %s has no payload", e.EventID)
	}
	if e.EventType != "" && e.EventType != e.Payload.EventType() {
		return nil, fmt.Errorf("envelope type %s does not match payload type %s",
			e.EventType, e.Payload.EventType())
	}

	raw, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", e.Payload.EventType(), err)
	}

	return json.Marshal(wireEnvelope{
		EventID:   e.EventID,
		EventType: e.Payload.EventType(),
		Timestamp: e.Timestamp,
		Payload:   raw,
	})
}

// UnmarshalJSON decodes an envelope that names its own event type.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	decoded, err := Decode(data, "")
	if err != nil {
		return err
	}
	*e = *decoded
	return nil
}

// Decode parses a message value into an envelope. When the message does not
// carry an eventType, fallback is used instead; consumers pass the type their
// topic is bound to. Messages without a nested payload object are treated as
// flat payloads, which is how the older producers publish.
func Decode(data []byte, fallback EventType) (*Envelope, error) {
	var wire wireEnvelope
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}

	eventType := wire.EventType
	if eventType == "" {
		eventType = fallback
	}
	if eventType == "" {
		return nil, fmt.Errorf("envelope has no event type")
	}
	if _, err := ParseEventType(string(eventType)); err != nil {
		return nil, err
	}

	raw := wire.Payload
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		raw = data
	}

	payload, err := decodePayload(eventType, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", eventType, err)
	}

	return &Envelope{
		EventID:   wire.EventID,
		EventType: eventType,
		Timestamp: wire.Timestamp,
		Payload:   payload,
	}, nil
}

func decodePayload(t EventType, raw json.RawMessage) (Payload, error) {
	switch t {
	case ProfileCreatedType:
		return unmarshalAs[ProfileCreated](raw)
	case ProfileStatusChangedType:
		return unmarshalAs[ProfileStatusChanged](raw)
	case ApplicationSubmittedType:
		return unmarshalAs[ApplicationSubmitted](raw)
	case ApplicationStatusChangedType:
		return unmarshalAs[ApplicationStatusChanged](raw)
	case JobOfferCreatedType:
		return unmarshalAs[JobOfferCreated](raw)
	}
	return nil, fmt.Errorf("unknown event type %q", t)
}

func unmarshalAs[T Payload](raw json.RawMessage) (Payload, error) {
	var p T
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return p, nil
}
