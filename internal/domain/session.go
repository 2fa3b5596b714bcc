// Package domain defines the business objects and rules for the WattsUp
// training tracker.
package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDuplicateSession is returned by SessionRepository.Insert when a row
	// already exists for the session's Strava activity id. Webhook deliveries
	// are at-least-once, so callers treat this as a normal outcome.
	ErrDuplicateSession = errors.New("session already exists for strava activity id")
	// ErrProfileNotFound is returned when a profile cannot be located.
	ErrProfileNotFound = errors.New("profile not found")
)

// Credential holds a profile's Strava OAuth tokens. Strava rotates the
// refresh token on every use, so all three fields are replaced together.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Profile is a WattsUp user as seen by the ingestion pipeline. FTPWatts is
// rider-reported profile metadata and plays no part in ingestion.
type Profile struct {
	ID              string
	DisplayName     string
	FTPWatts        *int
	StravaAthleteID *int64
	Credential      *Credential
}

// Linked reports whether the profile has a Strava account connected.
func (p *Profile) Linked() bool {
	return p != nil && p.StravaAthleteID != nil && p.Credential != nil
}

// SessionSource distinguishes webhook-imported rows from manual entries.
type SessionSource string

const (
	SessionSourceStrava SessionSource = "strava"
	SessionSourceManual SessionSource = "manual"
)

// Session is the durable training record the leaderboard sums over.
// StravaActivityID is nil for manual entries; for webhook-sourced rows it is
// the sole de-duplication key.
type Session struct {
	ID               string
	UserID           string
	Date             time.Time // UTC calendar day, midnight
	DurationMinutes  int
	AverageWatts     int
	EnergyKWh        float64
	StravaActivityID *int64
	Source           SessionSource
	CreatedAt        time.Time
}

// LeaderboardEntry carries the two aggregates the leaderboard ranks by.
type LeaderboardEntry struct {
	UserID               string
	DisplayName          string
	TotalEnergyKWh       float64
	TotalDurationMinutes int
	Sessions             int
}

// ProfileRepository captures profile and credential persistence.
type ProfileRepository interface {
	// FindByAthleteID returns nil without error when no profile has linked
	// the athlete id.
	FindByAthleteID(ctx context.Context, athleteID int64) (*Profile, error)
	LinkStravaAccount(ctx context.Context, userID string, athleteID int64, cred Credential) error
	UpdateCredential(ctx context.Context, userID string, cred Credential) error
}

// SessionRepository captures session persistence.
type SessionRepository interface {
	// Insert writes the session and returns ErrDuplicateSession when the
	// strava_activity_id unique constraint rejects it.
	Insert(ctx context.Context, session Session) error
	ListByUser(ctx context.Context, userID string, limit int) ([]Session, error)
	LeaderboardTotals(ctx context.Context) ([]LeaderboardEntry, error)
}
