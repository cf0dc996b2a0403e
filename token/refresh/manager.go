package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/go-oidc-session/internal/errors"
	"github.com/jrsteele09/go-oidc-session/oidcclient"
	"github.com/jrsteele09/go-oidc-session/sessions"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// DefaultAccessTokenLifetime is assumed when the provider omits expires_in.
const DefaultAccessTokenLifetime = time.Hour

// Refresher runs the refresh_token grant.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oidcclient.Token, error)
}

// Manager refreshes expired access tokens held in an auth session.
type Manager struct {
	client Refresher
}

// NewManager creates a new refresh manager
func NewManager(client Refresher) *Manager {
	return &Manager{client: client}
}

// IsExpired reports whether the access token has expired. A zero ExpiresAt
// means the expiry is unknown and is never treated as expired.
func IsExpired(auth *sessions.AuthSession) bool {
	return auth != nil && auth.ExpiresAt != 0 && NowTimeFunc().Unix() >= auth.ExpiresAt
}

// Refresh returns a copy of auth carrying a new access token. auth itself is
// never modified. User claims and id_token are preserved; the refresh token
// is replaced only when the provider issued a new one.
func (m *Manager) Refresh(ctx context.Context, auth *sessions.AuthSession) (*sessions.AuthSession, error) {
	if auth == nil || auth.RefreshToken == "" {
		return nil, fmt.Errorf("%w: %w", errors.ErrRefresh, errors.ErrNoRefreshToken)
	}

	token, err := m.client.Refresh(ctx, auth.RefreshToken)
	if err != nil {
		if errors.Is(err, errors.ErrRefresh) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", errors.ErrRefresh, err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: provider returned no access token", errors.ErrRefresh)
	}

	refreshed := auth.Clone()
	refreshed.AccessToken = token.AccessToken
	refreshed.ExpiresAt = token.ExpiresAt
	if refreshed.ExpiresAt == 0 {
		refreshed.ExpiresAt = NowTimeFunc().Add(DefaultAccessTokenLifetime).Unix()
	}
	if token.RefreshToken != "" {
		refreshed.RefreshToken = token.RefreshToken
	}
	refreshed.Error = ""
	return refreshed, nil
}
