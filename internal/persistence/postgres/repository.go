// Package postgres provides pgx-backed persistence for profiles, sessions,
// and the outbox.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/NickPugin/wattsup-training-tracker-app/internal/domain"
	"github.com/NickPugin/wattsup-training-tracker-app/internal/events"
	"github.com/NickPugin/wattsup-training-tracker-app/internal/observability"
)

// uniqueViolation is the Postgres error code raised when the
// strava_activity_id constraint rejects a duplicate webhook import.
const uniqueViolation = "23505"

// Repository implements domain.ProfileRepository and domain.SessionRepository.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindByAthleteID looks up the profile that linked the given Strava athlete.
// Returns nil without error when no profile matches — the athlete simply has
// not connected an account.
func (r *Repository) FindByAthleteID(ctx context.Context, athleteID int64) (*domain.Profile, error) {
	const query = `SELECT id, display_name, ftp_watts, strava_athlete_id, strava_access_token, strava_refresh_token, strava_token_expires_at
        FROM profiles WHERE strava_athlete_id=$1`

	var (
		profile      domain.Profile
		accessToken  *string
		refreshToken *string
		expiresAt    *time.Time
	)

	row := r.pool.QueryRow(ctx, query, athleteID)
	if err := row.Scan(&profile.ID, &profile.DisplayName, &profile.FTPWatts, &profile.StravaAthleteID, &accessToken, &refreshToken, &expiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if accessToken != nil && refreshToken != nil && expiresAt != nil {
		profile.Credential = &domain.Credential{
			AccessToken:  *accessToken,
			RefreshToken: *refreshToken,
			ExpiresAt:    expiresAt.UTC(),
		}
	}
	return &profile, nil
}

// LinkStravaAccount stores the athlete id and initial token triple after the
// OAuth code exchange.
func (r *Repository) LinkStravaAccount(ctx context.Context, userID string, athleteID int64, cred domain.Credential) error {
	const stmt = `UPDATE profiles
        SET strava_athlete_id=$2, strava_access_token=$3, strava_refresh_token=$4, strava_token_expires_at=$5
        WHERE id=$1`

	tag, err := r.pool.Exec(ctx, stmt, userID, athleteID, cred.AccessToken, cred.RefreshToken, cred.ExpiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

// UpdateCredential replaces the stored token triple after a refresh exchange.
func (r *Repository) UpdateCredential(ctx context.Context, userID string, cred domain.Credential) error {
	const stmt = `UPDATE profiles
        SET strava_access_token=$2, strava_refresh_token=$3, strava_token_expires_at=$4
        WHERE id=$1`

	tag, err := r.pool.Exec(ctx, stmt, userID, cred.AccessToken, cred.RefreshToken, cred.ExpiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

// Insert persists the session and records the session.created outbox event in
// a single transaction. A unique violation on strava_activity_id surfaces as
// domain.ErrDuplicateSession and leaves no row behind.
func (r *Repository) Insert(ctx context.Context, session domain.Session) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const insertSession = `INSERT INTO sessions (id, user_id, date, duration_minutes, average_watts, energy_kwh, strava_activity_id, source, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, insertSession,
		session.ID,
		session.UserID,
		session.Date,
		session.DurationMinutes,
		session.AverageWatts,
		session.EnergyKWh,
		session.StravaActivityID,
		session.Source,
		session.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			err = domain.ErrDuplicateSession
		}
		return err
	}

	if err = insertOutbox(ctx, tx, session); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordSessionPersisted(session.CreatedAt)
	return nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, session domain.Session) error {
	payload := events.SessionCreated{
		SessionID:       session.ID,
		UserID:          session.UserID,
		Date:            session.Date.Format("2006-01-02"),
		DurationMinutes: session.DurationMinutes,
		AverageWatts:    session.AverageWatts,
		EnergyKWh:       session.EnergyKWh,
		Source:          string(session.Source),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`

	dedupeKey := fmt.Sprintf("%s:session.created", session.ID)
	_, err = tx.Exec(ctx, stmt,
		"session",
		session.ID,
		"session.created",
		"session_events",
		session.UserID,
		body,
		dedupeKey,
	)
	return err
}

// ListByUser returns a user's sessions, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Session, error) {
	const query = `SELECT id, user_id, date, duration_minutes, average_watts, energy_kwh, strava_activity_id, source, created_at
        FROM sessions WHERE user_id=$1
        ORDER BY date DESC, created_at DESC
        LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]domain.Session, 0, limit)
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.Date, &s.DurationMinutes, &s.AverageWatts, &s.EnergyKWh, &s.StravaActivityID, &s.Source, &s.CreatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// LeaderboardTotals reads the projection maintained by the consumer, ranked
// by total energy.
func (r *Repository) LeaderboardTotals(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	const query = `SELECT l.user_id, p.display_name, l.total_energy_kwh, l.total_duration_minutes, l.sessions
        FROM leaderboard_totals l
        JOIN profiles p ON p.id = l.user_id
        ORDER BY l.total_energy_kwh DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.LeaderboardEntry, 0)
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.DisplayName, &e.TotalEnergyKWh, &e.TotalDurationMinutes, &e.Sessions); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
