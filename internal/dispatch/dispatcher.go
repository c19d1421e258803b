// Package dispatch turns raw broker messages into typed envelopes and routes
// them to handlers, retrying a bounded number of times before giving up.
//
// A message that still fails after the last attempt is logged with its raw
// payload and dropped. Availability of the partition is preferred over
// completeness: one poison message must not stall every event behind it.
package dispatch

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/bacembenakkari/TalentCloud/internal/events"
	"github.com/bacembenakkari/TalentCloud/internal/metrics"
)

// Outcome tells the transport what to do with the message's offset.
type Outcome int

const (
	// Ack: the side effect completed; commit the offset.
	Ack Outcome = iota
	// RetryLater: processing was interrupted; leave the offset so the
	// message is redelivered.
	RetryLater
	// Drop: retries are exhausted; commit the offset and move on.
	Drop
)

func (o Outcome) String() string {
	switch o {
	case Ack:
		return "ack"
	case RetryLater:
		return "retry_later"
	case Drop:
		return "drop"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// HandlerFunc performs the side effect for one envelope. Handlers must
// tolerate being called again with an envelope they have already seen.
type HandlerFunc func(ctx context.Context, env *events.Envelope) error

// Deduplicator remembers event ids whose side effect already completed.
type Deduplicator interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

type Dispatcher struct {
	handlers   map[events.EventType]HandlerFunc
	topicTypes map[string]events.EventType
	policy     RetryPolicy
	dedupe     Deduplicator
	log        logrus.FieldLogger
	metrics    metrics.Recorder
}

type Option func(*Dispatcher)

// WithDeduplicator skips envelopes whose event id was already handled.
func WithDeduplicator(d Deduplicator) Option {
	return func(disp *Dispatcher) {
		disp.dedupe = d
	}
}

func WithMetrics(rec metrics.Recorder) Option {
	return func(disp *Dispatcher) {
		disp.metrics = rec
	}
}

func New(policy RetryPolicy, log logrus.FieldLogger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		handlers:   make(map[events.EventType]HandlerFunc),
		topicTypes: make(map[string]events.EventType),
		policy:     policy,
		log:        log,
		metrics:    metrics.Noop{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register routes envelopes of type t to h. Registering a type twice
// replaces the earlier handler.
func (d *Dispatcher) Register(t events.EventType, h HandlerFunc) {
	d.handlers[t] = h
}

// BindTopic declares the event type assumed for messages on topic that do
// not carry one.
func (d *Dispatcher) BindTopic(topic string, t events.EventType) {
	d.topicTypes[topic] = t
}

// Handle processes one message from topic and reports what to do with its
// offset. It never returns an error: failures are logged and counted.
func (d *Dispatcher) Handle(ctx context.Context, topic string, raw []byte) Outcome {
	log := d.log.WithField("topic", topic)

	result := Retry(ctx, d.policy, func(ctx context.Context) error {
		return d.process(ctx, topic, raw)
	}, func(attempt int, err error) {
		log.WithError(err).WithField("attempt", attempt).Warn("Failed to handle message")
	})

	switch {
	case result.Err == nil:
		d.metrics.EventConsumed(ctx, topic)
		return Ack
	case result.Cancelled:
		log.WithField("attempts", result.Attempts).Info("Stopped handling message, leaving it for redelivery")
		return RetryLater
	}

	log.WithError(result.Err).WithFields(logrus.Fields{
		"attempts": result.Attempts,
		"payload":  string(raw),
	}).Error("Dropping message after exhausting retries")
	d.metrics.EventDropped(ctx, topic)
	return Drop
}

func (d *Dispatcher) process(ctx context.Context, topic string, raw []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	env, err := events.Decode(raw, d.topicTypes[topic])
	if err != nil {
		return err
	}

	handler, ok := d.handlers[env.EventType]
	if !ok {
		return fmt.Errorf("no handler registered for %s", env.EventType)
	}

	log := d.log.WithFields(logrus.Fields{
		"topic":      topic,
		"event_id":   env.EventID,
		"event_type": env.EventType,
	})

	if d.dedupe != nil && env.EventID != "" {
		seen, err := d.dedupe.Seen(ctx, env.EventID)
		if err != nil {
			log.WithError(err).Warn("Deduplication check failed, handling event anyway")
		} else if seen {
			log.Info("Skipping already handled event")
			d.metrics.DuplicateSkipped(ctx, topic)
			return nil
		}
	}

	if err := handler(ctx, env); err != nil {
		return err
	}

	if d.dedupe != nil && env.EventID != "" {
		if err := d.dedupe.Mark(ctx, env.EventID); err != nil {
			log.WithError(err).Warn("Failed to record handled event")
		}
	}

	log.Debug("Handled event")
	return nil
}
