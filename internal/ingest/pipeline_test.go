package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/NickPugin/wattsup-training-tracker-app/internal/domain"
	"github.com/NickPugin/wattsup-training-tracker-app/internal/strava"
)

type stubProfiles struct {
	profile *domain.Profile
	err     error
}

func (s *stubProfiles) FindByAthleteID(ctx context.Context, athleteID int64) (*domain.Profile, error) {
	return s.profile, s.err
}

func (s *stubProfiles) LinkStravaAccount(ctx context.Context, userID string, athleteID int64, cred domain.Credential) error {
	return nil
}

func (s *stubProfiles) UpdateCredential(ctx context.Context, userID string, cred domain.Credential) error {
	return nil
}

type stubSessions struct {
	inserted  []domain.Session
	insertErr error
}

func (s *stubSessions) Insert(ctx context.Context, session domain.Session) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, session)
	return nil
}

func (s *stubSessions) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Session, error) {
	return s.inserted, nil
}

func (s *stubSessions) LeaderboardTotals(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	return nil, nil
}

type stubTokens struct {
	token string
	err   error
	calls int
}

func (s *stubTokens) EnsureValidToken(ctx context.Context, userID string, cred domain.Credential) (string, error) {
	s.calls++
	return s.token, s.err
}

type stubFetcher struct {
	activity *strava.Activity
	err      error
	gotToken string
	gotID    int64
}

func (s *stubFetcher) FetchActivity(ctx context.Context, accessToken string, activityID int64) (*strava.Activity, error) {
	s.gotToken = accessToken
	s.gotID = activityID
	return s.activity, s.err
}

func linkedProfile() *domain.Profile {
	athleteID := int64(777)
	return &domain.Profile{
		ID:              "user-1",
		DisplayName:     "Nick",
		StravaAthleteID: &athleteID,
		Credential: &domain.Credential{
			AccessToken:  "access",
			RefreshToken: "refresh",
			ExpiresAt:    time.Now().Add(time.Hour),
		},
	}
}

func createEvent() strava.WebhookEvent {
	return strava.WebhookEvent{
		ObjectType: strava.WebhookObjectTypeActivity,
		AspectType: strava.WebhookAspectTypeCreate,
		ObjectID:   9001,
		OwnerID:    777,
	}
}

func TestProcessImportsEligibleRide(t *testing.T) {
	sessions := &stubSessions{}
	tokens := &stubTokens{token: "fresh-access"}
	fetcher := &stubFetcher{activity: &strava.Activity{
		ID:           9001,
		Type:         "Ride",
		MovingTime:   3600,
		AverageWatts: 200,
		StartDate:    time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC),
	}}

	pipeline := NewPipeline(&stubProfiles{profile: linkedProfile()}, sessions, tokens, fetcher)

	outcome := pipeline.Process(context.Background(), createEvent())
	require.Equal(t, OutcomeProcessed, outcome.Kind)

	require.Equal(t, "fresh-access", fetcher.gotToken)
	require.EqualValues(t, 9001, fetcher.gotID)

	require.Len(t, sessions.inserted, 1)
	session := sessions.inserted[0]
	require.Equal(t, "user-1", session.UserID)
	require.Equal(t, 60, session.DurationMinutes)
	require.Equal(t, 200, session.AverageWatts)
	require.InDelta(t, 0.20, session.EnergyKWh, 1e-9)
	require.Equal(t, time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC), session.Date)
	require.Equal(t, domain.SessionSourceStrava, session.Source)
	require.NotNil(t, session.StravaActivityID)
	require.EqualValues(t, 9001, *session.StravaActivityID)
	require.NotEmpty(t, session.ID)
}

func TestProcessIgnoresNonCreateEvents(t *testing.T) {
	sessions := &stubSessions{}
	tokens := &stubTokens{}
	pipeline := NewPipeline(&stubProfiles{profile: linkedProfile()}, sessions, tokens, &stubFetcher{})

	event := createEvent()
	event.AspectType = "update"

	outcome := pipeline.Process(context.Background(), event)
	require.Equal(t, OutcomeIgnored, outcome.Kind)
	require.NotEmpty(t, outcome.Reason)
	require.Zero(t, tokens.calls)
	require.Empty(t, sessions.inserted)

	event = createEvent()
	event.ObjectType = "athlete"
	outcome = pipeline.Process(context.Background(), event)
	require.Equal(t, OutcomeIgnored, outcome.Kind)
}

func TestProcessIgnoresUnlinkedAthlete(t *testing.T) {
	tokens := &stubTokens{}
	pipeline := NewPipeline(&stubProfiles{profile: nil}, &stubSessions{}, tokens, &stubFetcher{})

	outcome := pipeline.Process(context.Background(), createEvent())
	require.Equal(t, OutcomeIgnored, outcome.Kind)
	require.Contains(t, outcome.Reason, "777")
	require.Zero(t, tokens.calls)
}

func TestProcessFailsOnProfileLookupError(t *testing.T) {
	pipeline := NewPipeline(&stubProfiles{err: errors.New("connection reset")}, &stubSessions{}, &stubTokens{}, &stubFetcher{})

	outcome := pipeline.Process(context.Background(), createEvent())
	require.Equal(t, OutcomeFailed, outcome.Kind)
	require.Error(t, outcome.Err)
}

func TestProcessFailsOnTokenRefreshError(t *testing.T) {
	tokens := &stubTokens{err: errors.New("refresh rejected")}
	fetcher := &stubFetcher{}
	pipeline := NewPipeline(&stubProfiles{profile: linkedProfile()}, &stubSessions{}, tokens, fetcher)

	outcome := pipeline.Process(context.Background(), createEvent())
	require.Equal(t, OutcomeFailed, outcome.Kind)
	require.Empty(t, fetcher.gotToken)
}

func TestProcessFailsOnFetchError(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("strava 500")}
	pipeline := NewPipeline(&stubProfiles{profile: linkedProfile()}, &stubSessions{}, &stubTokens{token: "a"}, fetcher)

	outcome := pipeline.Process(context.Background(), createEvent())
	require.Equal(t, OutcomeFailed, outcome.Kind)
}

func TestProcessIgnoresIneligibleActivity(t *testing.T) {
	sessions := &stubSessions{}
	fetcher := &stubFetcher{activity: &strava.Activity{
		ID:           9001,
		Type:         "Run",
		MovingTime:   3600,
		AverageWatts: 200,
		StartDate:    time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC),
	}}
	pipeline := NewPipeline(&stubProfiles{profile: linkedProfile()}, sessions, &stubTokens{token: "a"}, fetcher)

	outcome := pipeline.Process(context.Background(), createEvent())
	require.Equal(t, OutcomeIgnored, outcome.Kind)
	require.Empty(t, sessions.inserted)

	fetcher.activity = &strava.Activity{
		ID:         9001,
		Type:       "Ride",
		MovingTime: 3600,
		StartDate:  time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC),
	}
	outcome = pipeline.Process(context.Background(), createEvent())
	require.Equal(t, OutcomeIgnored, outcome.Kind)
}

func TestProcessTreatsDuplicateInsertAsIgnored(t *testing.T) {
	sessions := &stubSessions{insertErr: domain.ErrDuplicateSession}
	fetcher := &stubFetcher{activity: &strava.Activity{
		ID:           9001,
		Type:         "Ride",
		MovingTime:   3600,
		AverageWatts: 200,
		StartDate:    time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC),
	}}
	pipeline := NewPipeline(&stubProfiles{profile: linkedProfile()}, sessions, &stubTokens{token: "a"}, fetcher)

	outcome := pipeline.Process(context.Background(), createEvent())
	require.Equal(t, OutcomeIgnored, outcome.Kind)
	require.Contains(t, outcome.Reason, "already imported")
}

func TestProcessFailsOnInsertError(t *testing.T) {
	sessions := &stubSessions{insertErr: errors.New("deadlock detected")}
	fetcher := &stubFetcher{activity: &strava.Activity{
		ID:           9001,
		Type:         "Ride",
		MovingTime:   3600,
		AverageWatts: 200,
		StartDate:    time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC),
	}}
	pipeline := NewPipeline(&stubProfiles{profile: linkedProfile()}, sessions, &stubTokens{token: "a"}, fetcher)

	outcome := pipeline.Process(context.Background(), createEvent())
	require.Equal(t, OutcomeFailed, outcome.Kind)
	require.Error(t, outcome.Err)
}
