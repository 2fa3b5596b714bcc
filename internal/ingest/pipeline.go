// Package ingest turns Strava webhook events into durable session records.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/NickPugin/wattsup-training-tracker-app/internal/domain"
	"github.com/NickPugin/wattsup-training-tracker-app/internal/strava"
)

// OutcomeKind classifies the result of processing one webhook event.
type OutcomeKind string

const (
	// OutcomeProcessed means a new session row was written.
	OutcomeProcessed OutcomeKind = "processed"
	// OutcomeIgnored means the event was received but intentionally skipped:
	// wrong event type, unlinked athlete, ineligible activity, or duplicate.
	OutcomeIgnored OutcomeKind = "ignored"
	// OutcomeFailed means processing broke partway. The event is abandoned;
	// Strava is still acknowledged so it never retries.
	OutcomeFailed OutcomeKind = "failed"
)

// Outcome is the internal result the HTTP layer maps to an acknowledgement.
// Only Failed is logged at error level.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
	Err    error
}

// Processed builds a success outcome.
func Processed() Outcome {
	return Outcome{Kind: OutcomeProcessed}
}

// Ignored builds a skip outcome with the reason.
func Ignored(reason string) Outcome {
	return Outcome{Kind: OutcomeIgnored, Reason: reason}
}

// Failed builds a failure outcome wrapping the error.
func Failed(err error) Outcome {
	return Outcome{Kind: OutcomeFailed, Err: err}
}

// ActivityFetcher retrieves full activity detail from Strava.
type ActivityFetcher interface {
	FetchActivity(ctx context.Context, accessToken string, activityID int64) (*strava.Activity, error)
}

// TokenSource yields a currently-valid access token for a profile.
type TokenSource interface {
	EnsureValidToken(ctx context.Context, userID string, cred domain.Credential) (string, error)
}

// Option configures optional behaviour for the Pipeline.
type Option func(*Pipeline)

// WithLogger overrides the logger used to report progress.
func WithLogger(logger *log.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// Pipeline drives one webhook event through token refresh, activity fetch,
// eligibility filtering, metric derivation, and the idempotent ledger write.
// Each invocation is an independent unit of work; concurrent events for the
// same athlete are tolerated because the write is keyed by Strava's own
// activity id.
type Pipeline struct {
	profiles domain.ProfileRepository
	sessions domain.SessionRepository
	tokens   TokenSource
	fetcher  ActivityFetcher
	logger   *log.Logger
}

// NewPipeline constructs a Pipeline.
func NewPipeline(profiles domain.ProfileRepository, sessions domain.SessionRepository, tokens TokenSource, fetcher ActivityFetcher, opts ...Option) *Pipeline {
	p := &Pipeline{
		profiles: profiles,
		sessions: sessions,
		tokens:   tokens,
		fetcher:  fetcher,
		logger:   log.New(log.Writer(), "[ingest] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process handles a single webhook event and always returns an Outcome; it
// never panics upward and never blocks past the outbound calls it makes (at
// most one refresh and one fetch).
func (p *Pipeline) Process(ctx context.Context, event strava.WebhookEvent) Outcome {
	outcome := p.process(ctx, event)
	recordOutcome(outcome)
	return outcome
}

func (p *Pipeline) process(ctx context.Context, event strava.WebhookEvent) Outcome {
	if !event.Actionable() {
		return Ignored(fmt.Sprintf("event %s/%s is not an activity create", event.ObjectType, event.AspectType))
	}

	profile, err := p.profiles.FindByAthleteID(ctx, event.OwnerID)
	if err != nil {
		return Failed(fmt.Errorf("lookup athlete %d: %w", event.OwnerID, err))
	}
	if !profile.Linked() {
		return Ignored(fmt.Sprintf("no linked profile for athlete %d", event.OwnerID))
	}

	accessToken, err := p.tokens.EnsureValidToken(ctx, profile.ID, *profile.Credential)
	if err != nil {
		return Failed(err)
	}

	activity, err := p.fetcher.FetchActivity(ctx, accessToken, event.ObjectID)
	if err != nil {
		return Failed(err)
	}

	if reason, ok := domain.EligibilityOf(activity.Type, activity.AverageWatts, activity.MovingTime); !ok {
		return Ignored(fmt.Sprintf("activity %d: %s", event.ObjectID, reason))
	}

	metrics := domain.ComputeSessionMetrics(activity.MovingTime, activity.AverageWatts, activity.Start())

	activityID := event.ObjectID
	session := domain.Session{
		ID:               uuid.NewString(),
		UserID:           profile.ID,
		Date:             metrics.Date,
		DurationMinutes:  metrics.DurationMinutes,
		AverageWatts:     metrics.AverageWatts,
		EnergyKWh:        metrics.EnergyKWh,
		StravaActivityID: &activityID,
		Source:           domain.SessionSourceStrava,
		CreatedAt:        time.Now().UTC(),
	}

	if err := p.sessions.Insert(ctx, session); err != nil {
		if errors.Is(err, domain.ErrDuplicateSession) {
			return Ignored(fmt.Sprintf("activity %d already imported", event.ObjectID))
		}
		return Failed(fmt.Errorf("insert session for activity %d: %w", event.ObjectID, err))
	}

	p.logger.Printf("imported strava activity %d for user %s (%.2f kWh)", event.ObjectID, profile.ID, metrics.EnergyKWh)
	return Processed()
}
