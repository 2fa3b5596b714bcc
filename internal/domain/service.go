package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Service orchestrates the session workflows driven by the HTTP API. The
// webhook pipeline writes through the repository directly and does not pass
// through here.
type Service struct {
	sessions SessionRepository
}

// NewService constructs a Service.
func NewService(sessions SessionRepository) *Service {
	return &Service{sessions: sessions}
}

// CreateSessionInput captures a manual session entry from the API layer.
type CreateSessionInput struct {
	UserID          string
	Date            time.Time
	DurationMinutes int
	AverageWatts    int
}

// CreateSession records a manually entered session. Energy is derived with
// the same calculator the webhook pipeline uses; manual rows carry no Strava
// activity id and are exempt from the de-duplication constraint.
func (s *Service) CreateSession(ctx context.Context, input CreateSessionInput) (*Session, error) {
	if input.DurationMinutes <= 0 {
		return nil, errors.New("duration must be positive")
	}
	if input.AverageWatts <= 0 {
		return nil, errors.New("average watts must be positive")
	}

	metrics := ComputeSessionMetrics(input.DurationMinutes*60, float64(input.AverageWatts), input.Date)

	session := Session{
		ID:              uuid.NewString(),
		UserID:          input.UserID,
		Date:            metrics.Date,
		DurationMinutes: metrics.DurationMinutes,
		AverageWatts:    metrics.AverageWatts,
		EnergyKWh:       metrics.EnergyKWh,
		Source:          SessionSourceManual,
		CreatedAt:       time.Now().UTC(),
	}

	if err := s.sessions.Insert(ctx, session); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListSessions fetches a user's sessions, newest first.
func (s *Service) ListSessions(ctx context.Context, userID string, limit int) ([]Session, error) {
	return s.sessions.ListByUser(ctx, userID, limit)
}

// Leaderboard returns per-user energy and duration totals ranked by energy.
func (s *Service) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	return s.sessions.LeaderboardTotals(ctx)
}
