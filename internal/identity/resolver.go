// Package identity resolves user ids to email addresses for event producers
// and consumers alike, falling back to a recognizable placeholder when the
// identity service cannot answer.
package identity

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/bacembenakkari/TalentCloud/internal/metrics"
)

// Reason classifies a failed lookup.
type Reason string

const (
	ReasonNotFound    Reason = "not_found"
	ReasonServerError Reason = "server_error"
	ReasonUnavailable Reason = "unavailable"
	ReasonTimeout     Reason = "timeout"
	ReasonGeneric     Reason = "generic"
)

// Result is the outcome of a lookup: either Ok(email) or Failed(reason).
type Result struct {
	Email  string
	Reason Reason
	Err    error
}

func Ok(email string) Result {
	return Result{Email: email}
}

func Failed(reason Reason, err error) Result {
	return Result{Reason: reason, Err: err}
}

// OK reports whether the lookup produced an address.
func (r Result) OK() bool {
	return r.Reason == "" && r.Email != ""
}

// Lookup asks the identity service for a user's email. Implementations must
// bound their own latency and never return a zero Result on failure.
type Lookup interface {
	LookupEmail(ctx context.Context, userID string) Result
}

const (
	fallbackPrefix   = "pending-user-"
	fallbackIDLength = 8
)

// Fallback builds the placeholder address for userID. It is deterministic so
// that repeated resolution of the same user agrees on both sides of the
// broker.
func Fallback(userID, domain string) string {
	id := []rune(strings.TrimSpace(userID))
	if len(id) > fallbackIDLength {
		id = id[:fallbackIDLength]
	}
	short := string(id)
	if short == "" {
		short = "unknown"
	}
	return fallbackPrefix + short + "@" + domain
}

// IsFallback reports whether email is a placeholder produced by Fallback.
// Placeholder recipients cannot be notified.
func IsFallback(email, domain string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	return strings.HasPrefix(email, fallbackPrefix) && strings.HasSuffix(email, "@"+strings.ToLower(domain))
}

// SelectEmail is the single place where a lookup result turns into an
// address: the looked-up email when there is one, otherwise the placeholder.
func SelectEmail(userID string, r Result, domain string) string {
	if r.OK() {
		return strings.TrimSpace(r.Email)
	}
	return Fallback(userID, domain)
}

// Resolver applies the embedded-first, lookup-second, fallback-last rule.
type Resolver struct {
	lookup  Lookup
	domain  string
	log     logrus.FieldLogger
	metrics metrics.Recorder
}

func NewResolver(lookup Lookup, domain string, log logrus.FieldLogger, rec metrics.Recorder) *Resolver {
	if rec == nil {
		rec = metrics.Noop{}
	}
	return &Resolver{
		lookup:  lookup,
		domain:  domain,
		log:     log,
		metrics: rec,
	}
}

// Domain is the platform domain used for placeholder addresses.
func (r *Resolver) Domain() string {
	return r.domain
}

// ResolveEmail never fails: it returns embedded when it is non-blank, the
// identity service's answer when there is one, and the placeholder otherwise.
func (r *Resolver) ResolveEmail(ctx context.Context, userID, embedded string) string {
	if email := strings.TrimSpace(embedded); email != "" {
		return email
	}

	if strings.TrimSpace(userID) == "" {
		r.log.Warn("No user id to resolve email for, using placeholder address")
		r.metrics.IdentityFallback(ctx, "missing_user_id")
		return Fallback(userID, r.domain)
	}

	result := r.lookup.LookupEmail(ctx, userID)
	email := SelectEmail(userID, result, r.domain)
	if !result.OK() {
		reason := result.Reason
		if reason == "" {
			reason = ReasonGeneric
		}
		entry := r.log.WithFields(logrus.Fields{
			"user_id":  userID,
			"reason":   reason,
			"fallback": email,
		})
		if result.Err != nil {
			entry = entry.WithError(result.Err)
		}
		entry.Warn("Email lookup failed, using placeholder address")
		r.metrics.IdentityFallback(ctx, string(reason))
	}
	return email
}
