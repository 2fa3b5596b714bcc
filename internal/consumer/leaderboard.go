package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/NickPugin/wattsup-training-tracker-app/internal/events"
)

// LeaderboardHandler folds session.created events into the
// leaderboard_totals projection. Applications are keyed by session id, so a
// redelivered event is a no-op and the totals never double-count.
type LeaderboardHandler struct {
	pool *pgxpool.Pool
}

// NewLeaderboardHandler constructs a handler backed by the provided pool.
func NewLeaderboardHandler(pool *pgxpool.Pool) *LeaderboardHandler {
	return &LeaderboardHandler{pool: pool}
}

// Handle applies one event to the projection.
func (h *LeaderboardHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != "session.created" {
		return nil
	}

	var evt events.SessionCreated
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		return fmt.Errorf("decode session.created: %w", err)
	}

	tx, err := h.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO leaderboard_applied (session_id) VALUES ($1) ON CONFLICT DO NOTHING`,
		evt.SessionID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Redelivery of an already-applied session.
		return tx.Commit(ctx)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO leaderboard_totals (user_id, total_energy_kwh, total_duration_minutes, sessions, updated_at)
         VALUES ($1,$2,$3,1,NOW())
         ON CONFLICT (user_id) DO UPDATE SET
           total_energy_kwh = leaderboard_totals.total_energy_kwh + EXCLUDED.total_energy_kwh,
           total_duration_minutes = leaderboard_totals.total_duration_minutes + EXCLUDED.total_duration_minutes,
           sessions = leaderboard_totals.sessions + 1,
           updated_at = NOW()`,
		evt.UserID, evt.EnergyKWh, evt.DurationMinutes,
	)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}
