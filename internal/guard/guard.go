// Package guard separates a committed business write from the event that
// announces it: once the write has committed, nothing that goes wrong while
// publishing can turn the operation into a failure.
package guard

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/bacembenakkari/TalentCloud/internal/events"
	"github.com/bacembenakkari/TalentCloud/internal/metrics"
)

// Publisher hands an envelope to the broker.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, env *events.Envelope) error
}

// BuildFunc builds the event for a committed change. It may return nil when
// the change is not worth announcing.
type BuildFunc func(ctx context.Context) (*events.Outgoing, error)

type Guard struct {
	publisher Publisher
	log       logrus.FieldLogger
	metrics   metrics.Recorder
}

func New(publisher Publisher, log logrus.FieldLogger, rec metrics.Recorder) *Guard {
	if rec == nil {
		rec = metrics.Noop{}
	}
	return &Guard{
		publisher: publisher,
		log:       log,
		metrics:   rec,
	}
}

// WithStateChange runs mutate, which must commit the authoritative change,
// then builds and publishes its event. Only mutate's error is returned.
// Build and publish failures, panics included, are logged with the envelope
// for manual replay and counted.
func (g *Guard) WithStateChange(ctx context.Context, mutate func(ctx context.Context) error, build BuildFunc) error {
	if err := mutate(ctx); err != nil {
		return err
	}

	g.announce(ctx, build)
	return nil
}

func (g *Guard) announce(ctx context.Context, build BuildFunc) {
	var out *events.Outgoing

	defer func() {
		if r := recover(); r != nil {
			g.fail(ctx, out, fmt.Errorf("panic while publishing event: %v", r))
		}
	}()

	out, err := build(ctx)
	if err != nil {
		g.fail(ctx, out, fmt.Errorf("failed to build event: %w", err))
		return
	}
	if out == nil {
		return
	}

	if err := g.publisher.Publish(ctx, out.Topic, out.Key, out.Envelope); err != nil {
		g.fail(ctx, out, fmt.Errorf("failed to publish event: %w", err))
	}
}

func (g *Guard) fail(ctx context.Context, out *events.Outgoing, err error) {
	entry := g.log.WithError(err)
	topic := ""
	if out != nil {
		topic = out.Topic
		fields := logrus.Fields{
			"topic": out.Topic,
			"key":   out.Key,
		}
		if out.Envelope != nil {
			fields["event_id"] = out.Envelope.EventID
			fields["event_type"] = out.Envelope.EventType
			if raw, merr := json.Marshal(out.Envelope); merr == nil {
				fields["payload"] = string(raw)
			}
		}
		entry = entry.WithFields(fields)
	}

	entry.Error("Event not published; state change kept")
	g.metrics.PublishFailed(ctx, topic)
}
