package strava

import (
	"time"

	"github.com/NickPugin/wattsup-training-tracker-app/internal/domain"
)

// Webhook event discriminators. Only activity/create events are actionable.
const (
	WebhookObjectTypeActivity = "activity"
	WebhookAspectTypeCreate   = "create"
)

// WebhookEvent is the notification body Strava POSTs to the webhook endpoint.
type WebhookEvent struct {
	ObjectType     string `json:"object_type"`
	AspectType     string `json:"aspect_type"`
	ObjectID       int64  `json:"object_id"`
	OwnerID        int64  `json:"owner_id"`
	SubscriptionID int64  `json:"subscription_id"`
	EventTime      int64  `json:"event_time"`
}

// Actionable reports whether the event describes a newly created activity.
func (e WebhookEvent) Actionable() bool {
	return e.ObjectType == WebhookObjectTypeActivity && e.AspectType == WebhookAspectTypeCreate
}

// Activity is the subset of the Strava activity detail the pipeline consumes.
type Activity struct {
	ID             int64     `json:"id"`
	Type           string    `json:"type"`
	MovingTime     int       `json:"moving_time"`
	AverageWatts   float64   `json:"average_watts"`
	StartDate      time.Time `json:"start_date"`
	StartDateLocal time.Time `json:"start_date_local"`
}

// Start returns the activity start instant, falling back to the local
// timestamp when the UTC one is absent.
func (a Activity) Start() time.Time {
	if !a.StartDate.IsZero() {
		return a.StartDate
	}
	return a.StartDateLocal
}

// TokenResponse mirrors the Strava OAuth token endpoint payload. ExpiresAt is
// epoch seconds.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
	Athlete      struct {
		ID int64 `json:"id"`
	} `json:"athlete"`
}

// Credential converts the token payload into the stored credential triple.
func (t TokenResponse) Credential() domain.Credential {
	return domain.Credential{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    time.Unix(t.ExpiresAt, 0).UTC(),
	}
}
