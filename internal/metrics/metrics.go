// Package metrics counts the infrastructure failures that the pipeline
// swallows instead of returning, so that they stay visible to operators.
package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Recorder records pipeline metrics.
// Use New for OTel metrics or Noop{} when metrics are disabled.
type Recorder interface {
	EventPublished(ctx context.Context, topic string)
	PublishFailed(ctx context.Context, topic string)
	EventConsumed(ctx context.Context, topic string)
	EventDropped(ctx context.Context, topic string)
	DuplicateSkipped(ctx context.Context, topic string)
	IdentityFallback(ctx context.Context, reason string)
	NotificationPersisted(ctx context.Context)
	NotificationPersistFailed(ctx context.Context)
	NotificationSendFailed(ctx context.Context)
}

const meterName = "github.com/bacembenakkari/TalentCloud"

type otelRecorder struct {
	published       metric.Int64Counter
	publishFailures metric.Int64Counter
	consumed        metric.Int64Counter
	dropped         metric.Int64Counter
	duplicates      metric.Int64Counter
	fallbacks       metric.Int64Counter
	persisted       metric.Int64Counter
	persistFailures metric.Int64Counter
	sendFailures    metric.Int64Counter
}

// New creates a Recorder on the given provider.
func New(provider metric.MeterProvider) (Recorder, error) {
	meter := provider.Meter(meterName)

	counters := []struct {
		name string
		desc string
	}{
		{"talentcloud.events.published", "Events handed to the broker"},
		{"talentcloud.events.publish_failures", "Events that could not be published"},
		{"talentcloud.events.consumed", "Events handled and acknowledged"},
		{"talentcloud.events.dropped", "Events dropped after exhausting retries"},
		{"talentcloud.events.duplicates", "Redelivered events skipped by deduplication"},
		{"talentcloud.identity.fallbacks", "Email lookups that fell back to a placeholder address"},
		{"talentcloud.notifications.persisted", "Notification records stored"},
		{"talentcloud.notifications.persist_failures", "Notification records that could not be stored"},
		{"talentcloud.notifications.send_failures", "Outbound emails that could not be sent"},
	}

	r := &otelRecorder{}
	targets := []*metric.Int64Counter{
		&r.published, &r.publishFailures, &r.consumed, &r.dropped, &r.duplicates,
		&r.fallbacks, &r.persisted, &r.persistFailures, &r.sendFailures,
	}

	for i := range counters {
		c, err := meter.Int64Counter(counters[i].name, metric.WithDescription(counters[i].desc))
		if err != nil {
			return nil, err
		}
		*targets[i] = c
	}

	return r, nil
}

func topicAttr(topic string) metric.AddOption {
	return metric.WithAttributes(attribute.String("topic", topic))
}

func (r *otelRecorder) EventPublished(ctx context.Context, topic string) {
	r.published.Add(ctx, 1, topicAttr(topic))
}

func (r *otelRecorder) PublishFailed(ctx context.Context, topic string) {
	r.publishFailures.Add(ctx, 1, topicAttr(topic))
}

func (r *otelRecorder) EventConsumed(ctx context.Context, topic string) {
	r.consumed.Add(ctx, 1, topicAttr(topic))
}

func (r *otelRecorder) EventDropped(ctx context.Context, topic string) {
	r.dropped.Add(ctx, 1, topicAttr(topic))
}

func (r *otelRecorder) DuplicateSkipped(ctx context.Context, topic string) {
	r.duplicates.Add(ctx, 1, topicAttr(topic))
}

func (r *otelRecorder) IdentityFallback(ctx context.Context, reason string) {
	r.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (r *otelRecorder) NotificationPersisted(ctx context.Context) {
	r.persisted.Add(ctx, 1)
}

func (r *otelRecorder) NotificationPersistFailed(ctx context.Context) {
	r.persistFailures.Add(ctx, 1)
}

func (r *otelRecorder) NotificationSendFailed(ctx context.Context) {
	r.sendFailures.Add(ctx, 1)
}

// Noop discards all metrics.
type Noop struct{}

func (Noop) EventPublished(context.Context, string)   {}
func (Noop) PublishFailed(context.Context, string)    {}
func (Noop) EventConsumed(context.Context, string)    {}
func (Noop) EventDropped(context.Context, string)     {}
func (Noop) DuplicateSkipped(context.Context, string) {}
func (Noop) IdentityFallback(context.Context, string) {}
func (Noop) NotificationPersisted(context.Context)     {}
func (Noop) NotificationPersistFailed(context.Context) {}
func (Noop) NotificationSendFailed(context.Context)    {}
