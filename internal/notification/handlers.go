package notification

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/bacembenakkari/TalentCloud/internal/dispatch"
	"github.com/bacembenakkari/TalentCloud/internal/events"
)

// EmailResolver fills in a recipient address that the event did not carry.
type EmailResolver interface {
	ResolveEmail(ctx context.Context, userID, embedded string) string
}

// Handlers holds one dispatch handler per event type.
type Handlers struct {
	resolver EmailResolver
	executor *Executor
	log      logrus.FieldLogger
}

func NewHandlers(resolver EmailResolver, executor *Executor, log logrus.FieldLogger) *Handlers {
	return &Handlers{
		resolver: resolver,
		executor: executor,
		log:      log,
	}
}

// Register binds every handler to d.
func (h *Handlers) Register(d *dispatch.Dispatcher) {
	d.Register(events.ProfileCreatedType, h.OnProfileCreated)
	d.Register(events.ProfileStatusChangedType, h.OnProfileStatusChanged)
	d.Register(events.ApplicationSubmittedType, h.OnApplicationSubmitted)
	d.Register(events.ApplicationStatusChangedType, h.OnApplicationStatusChanged)
	d.Register(events.JobOfferCreatedType, h.OnJobOfferCreated)
}

func (h *Handlers) OnProfileCreated(ctx context.Context, env *events.Envelope) error {
	p, ok := env.Payload.(events.ProfileCreated)
	if !ok {
		return payloadMismatch(env)
	}

	msg := ProfileCreatedMessage(p)
	h.deliver(ctx, env, p.UserID, h.resolver.ResolveEmail(ctx, p.UserID, p.Email), msg)
	return nil
}

func (h *Handlers) OnProfileStatusChanged(ctx context.Context, env *events.Envelope) error {
	p, ok := env.Payload.(events.ProfileStatusChanged)
	if !ok {
		return payloadMismatch(env)
	}

	msg := ProfileStatusMessage(p)
	h.deliver(ctx, env, p.UserID, h.resolver.ResolveEmail(ctx, p.UserID, p.UserEmail), msg)
	return nil
}

// OnApplicationSubmitted notifies the client that owns the job offer.
func (h *Handlers) OnApplicationSubmitted(ctx context.Context, env *events.Envelope) error {
	p, ok := env.Payload.(events.ApplicationSubmitted)
	if !ok {
		return payloadMismatch(env)
	}

	msg := ApplicationSubmittedMessage(p)
	h.deliver(ctx, env, p.ClientID, h.resolver.ResolveEmail(ctx, p.ClientID, p.ClientEmail), msg)
	return nil
}

// OnApplicationStatusChanged notifies the candidate.
func (h *Handlers) OnApplicationStatusChanged(ctx context.Context, env *events.Envelope) error {
	p, ok := env.Payload.(events.ApplicationStatusChanged)
	if !ok {
		return payloadMismatch(env)
	}

	msg := ApplicationStatusMessage(p)
	h.deliver(ctx, env, p.CandidateID, h.resolver.ResolveEmail(ctx, p.CandidateID, p.CandidateEmail), msg)
	return nil
}

// OnJobOfferCreated notifies the posting client. The event never carries an
// email, so it is always looked up.
func (h *Handlers) OnJobOfferCreated(ctx context.Context, env *events.Envelope) error {
	p, ok := env.Payload.(events.JobOfferCreated)
	if !ok {
		return payloadMismatch(env)
	}

	msg := JobOfferCreatedMessage(p)
	h.deliver(ctx, env, p.ClientID, h.resolver.ResolveEmail(ctx, p.ClientID, ""), msg)
	return nil
}

func (h *Handlers) deliver(ctx context.Context, env *events.Envelope, userID, email string, msg Message) {
	h.log.WithFields(logrus.Fields{
		"event_id":   env.EventID,
		"event_type": env.EventType,
		"user_id":    userID,
	}).Debug("Delivering notification")

	h.executor.Deliver(ctx, Delivery{
		UserID:  userID,
		Email:   email,
		Subject: msg.Subject,
		Body:    msg.Body,
	})
}

func payloadMismatch(env *events.Envelope) error {
	return fmt.Errorf("event %s: payload %T does not match type %s", env.EventID, env.Payload, env.EventType)
}
