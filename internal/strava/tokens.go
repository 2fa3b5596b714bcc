package strava

import (
	"context"
	"fmt"
	"time"

	"github.com/NickPugin/wattsup-training-tracker-app/internal/domain"
)

// expiryBuffer is the fixed safety margin against clock skew and in-flight
// request latency. Tokens within this window of expiry are treated as expired.
const expiryBuffer = 5 * time.Minute

// CredentialStore persists refreshed token triples.
type CredentialStore interface {
	UpdateCredential(ctx context.Context, userID string, cred domain.Credential) error
}

// TokenManager hands out currently-valid access tokens, refreshing against
// the Strava token endpoint when the stored one is close to expiry.
type TokenManager struct {
	client *Client
	store  CredentialStore
	now    func() time.Time
}

// NewTokenManager constructs a TokenManager.
func NewTokenManager(client *Client, store CredentialStore) *TokenManager {
	return &TokenManager{client: client, store: store, now: time.Now}
}

// EnsureValidToken returns an access token usable right now. A fresh token is
// returned unchanged with no network call. An expiring one triggers exactly
// one refresh exchange; the rotated triple is persisted before the new token
// is returned, since Strava single-uses refresh tokens. Refresh failure is
// fatal for the calling event — no retry, the caller has a hard deadline.
func (m *TokenManager) EnsureValidToken(ctx context.Context, userID string, cred domain.Credential) (string, error) {
	if m.now().Before(cred.ExpiresAt.Add(-expiryBuffer)) {
		return cred.AccessToken, nil
	}

	token, err := m.client.RefreshToken(ctx, cred.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("refresh token for user %s: %w", userID, err)
	}

	if err := m.store.UpdateCredential(ctx, userID, token.Credential()); err != nil {
		return "", fmt.Errorf("persist refreshed credential for user %s: %w", userID, err)
	}

	recordTokenRefreshed()
	return token.AccessToken, nil
}
