//go:build integration

package postgres

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/NickPugin/wattsup-training-tracker-app/internal/domain"
)

func TestRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()

	pool := startDatabase(t, ctx)
	repo := NewRepository(pool)

	userID := insertProfile(t, ctx, pool, "Nick", 777)

	profile, err := repo.FindByAthleteID(ctx, 777)
	require.NoError(t, err)
	require.NotNil(t, profile)
	require.Equal(t, userID, profile.ID)
	require.True(t, profile.Linked())
	require.Equal(t, "access-1", profile.Credential.AccessToken)

	missing, err := repo.FindByAthleteID(ctx, 12345)
	require.NoError(t, err)
	require.Nil(t, missing)

	activityID := int64(9001)
	session := domain.Session{
		ID:               uuid.NewString(),
		UserID:           userID,
		Date:             time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC),
		DurationMinutes:  60,
		AverageWatts:     200,
		EnergyKWh:        0.20,
		StravaActivityID: &activityID,
		Source:           domain.SessionSourceStrava,
		CreatedAt:        time.Now().UTC(),
	}

	require.NoError(t, repo.Insert(ctx, session))

	// Re-delivery of the same activity must surface as a duplicate, not a row.
	duplicate := session
	duplicate.ID = uuid.NewString()
	err = repo.Insert(ctx, duplicate)
	require.ErrorIs(t, err, domain.ErrDuplicateSession)

	sessions, err := repo.ListByUser(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, session.ID, sessions[0].ID)
	require.InDelta(t, 0.20, sessions[0].EnergyKWh, 1e-9)

	// The successful insert must leave exactly one outbox row behind.
	var outboxRows int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox WHERE aggregate_id=$1 AND event_type='session.created'`,
		session.ID).Scan(&outboxRows))
	require.Equal(t, 1, outboxRows)
}

func TestRepositoryCredentialRotation(t *testing.T) {
	ctx := context.Background()

	pool := startDatabase(t, ctx)
	repo := NewRepository(pool)

	userID := insertProfile(t, ctx, pool, "Ada", 888)

	rotated := domain.Credential{
		AccessToken:  "access-2",
		RefreshToken: "refresh-2",
		ExpiresAt:    time.Now().Add(6 * time.Hour).UTC().Truncate(time.Second),
	}
	require.NoError(t, repo.UpdateCredential(ctx, userID, rotated))

	profile, err := repo.FindByAthleteID(ctx, 888)
	require.NoError(t, err)
	require.NotNil(t, profile.Credential)
	require.Equal(t, "access-2", profile.Credential.AccessToken)
	require.Equal(t, "refresh-2", profile.Credential.RefreshToken)
	require.Equal(t, rotated.ExpiresAt, profile.Credential.ExpiresAt)

	err = repo.UpdateCredential(ctx, uuid.NewString(), rotated)
	require.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestRepositoryLinkStravaAccount(t *testing.T) {
	ctx := context.Background()

	pool := startDatabase(t, ctx)
	repo := NewRepository(pool)

	userID := uuid.NewString()
	_, err := pool.Exec(ctx, `INSERT INTO profiles (id, display_name) VALUES ($1,$2)`, userID, "Linda")
	require.NoError(t, err)

	cred := domain.Credential{
		AccessToken:  "access-3",
		RefreshToken: "refresh-3",
		ExpiresAt:    time.Now().Add(6 * time.Hour).UTC(),
	}
	require.NoError(t, repo.LinkStravaAccount(ctx, userID, 999, cred))

	profile, err := repo.FindByAthleteID(ctx, 999)
	require.NoError(t, err)
	require.NotNil(t, profile)
	require.True(t, profile.Linked())

	err = repo.LinkStravaAccount(ctx, uuid.NewString(), 1000, cred)
	require.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func startDatabase(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("wattsup"),
		postgrescontainer.WithUsername("wattsup"),
		postgrescontainer.WithPassword("wattsup"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, waitForDatabase(ctx, connStr))

	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	return pool
}

func insertProfile(t *testing.T, ctx context.Context, pool *pgxpool.Pool, name string, athleteID int64) string {
	t.Helper()

	userID := uuid.NewString()
	_, err := pool.Exec(ctx,
		`INSERT INTO profiles (id, display_name, strava_athlete_id, strava_access_token, strava_refresh_token, strava_token_expires_at)
         VALUES ($1,$2,$3,$4,$5,$6)`,
		userID, name, athleteID, "access-1", "refresh-1", time.Now().Add(time.Hour).UTC())
	require.NoError(t, err)
	return userID
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	files := []string{
		"../../../db/postgres/migrations/0001_init.up.sql",
	}

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	for _, rel := range files {
		path := resolvePath(t, rel)
		contents, readErr := os.ReadFile(path)
		require.NoError(t, readErr)

		_, execErr := pool.Exec(ctx, string(contents))
		require.NoError(t, execErr)
	}
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
