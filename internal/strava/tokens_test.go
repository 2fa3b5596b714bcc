package strava

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/NickPugin/wattsup-training-tracker-app/internal/domain"
)

type recordingStore struct {
	userID string
	cred   domain.Credential
	calls  int
	err    error
}

func (s *recordingStore) UpdateCredential(ctx context.Context, userID string, cred domain.Credential) error {
	s.calls++
	s.userID = userID
	s.cred = cred
	return s.err
}

func TestEnsureValidTokenFreshTokenSkipsRefresh(t *testing.T) {
	var refreshCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	now := time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)
	store := &recordingStore{}
	manager := NewTokenManager(NewClient(Config{TokenURL: server.URL}), store)
	manager.now = func() time.Time { return now }

	token, err := manager.EnsureValidToken(context.Background(), "user-1", domain.Credential{
		AccessToken:  "still-good",
		RefreshToken: "refresh-1",
		ExpiresAt:    now.Add(time.Hour),
	})
	require.NoError(t, err)
	require.Equal(t, "still-good", token)
	require.Zero(t, refreshCalls)
	require.Zero(t, store.calls)
}

func TestEnsureValidTokenRefreshesInsideBuffer(t *testing.T) {
	var refreshCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"rotated-access","refresh_token":"rotated-refresh","expires_at":1714564800}`))
	}))
	defer server.Close()

	now := time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)
	store := &recordingStore{}
	manager := NewTokenManager(NewClient(Config{TokenURL: server.URL}), store)
	manager.now = func() time.Time { return now }

	// Expires in 4 minutes, inside the 5-minute buffer.
	token, err := manager.EnsureValidToken(context.Background(), "user-1", domain.Credential{
		AccessToken:  "nearly-expired",
		RefreshToken: "refresh-1",
		ExpiresAt:    now.Add(4 * time.Minute),
	})
	require.NoError(t, err)
	require.Equal(t, "rotated-access", token)
	require.Equal(t, 1, refreshCalls)

	require.Equal(t, 1, store.calls)
	require.Equal(t, "user-1", store.userID)
	require.Equal(t, "rotated-access", store.cred.AccessToken)
	require.Equal(t, "rotated-refresh", store.cred.RefreshToken)
	require.EqualValues(t, 1714564800, store.cred.ExpiresAt.Unix())
}

func TestEnsureValidTokenRefreshFailureIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	now := time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)
	store := &recordingStore{}
	manager := NewTokenManager(NewClient(Config{TokenURL: server.URL}), store)
	manager.now = func() time.Time { return now }

	_, err := manager.EnsureValidToken(context.Background(), "user-1", domain.Credential{
		AccessToken:  "expired",
		RefreshToken: "refresh-1",
		ExpiresAt:    now.Add(-time.Minute),
	})
	require.Error(t, err)
	require.Zero(t, store.calls)
}

func TestEnsureValidTokenPersistFailureWithholdsToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"rotated-access","refresh_token":"rotated-refresh","expires_at":1714564800}`))
	}))
	defer server.Close()

	now := time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)
	store := &recordingStore{err: context.DeadlineExceeded}
	manager := NewTokenManager(NewClient(Config{TokenURL: server.URL}), store)
	manager.now = func() time.Time { return now }

	_, err := manager.EnsureValidToken(context.Background(), "user-1", domain.Credential{
		AccessToken:  "expired",
		RefreshToken: "refresh-1",
		ExpiresAt:    now,
	})
	require.Error(t, err)
	require.Equal(t, 1, store.calls)
}
