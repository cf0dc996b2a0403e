package refresh_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-oidc-session/internal/errors"
	"github.com/jrsteele09/go-oidc-session/oidcclient/clientfake"
	"github.com/jrsteele09/go-oidc-session/sessions"
	"github.com/jrsteele09/go-oidc-session/token/refresh"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func setupTestFixture(t *testing.T) (*clientfake.FakeClient, *refresh.Manager, *sessions.AuthSession) {
	t.Helper()
	refresh.NowTimeFunc = func() time.Time { return fixedNow }
	t.Cleanup(func() { refresh.NowTimeFunc = time.Now })

	client := clientfake.NewFakeClient()
	auth := &sessions.AuthSession{
		User:         map[string]any{"sub": "user-123"},
		AccessToken:  "old-access",
		IDToken:      "id-token",
		RefreshToken: client.IssueRefreshToken(),
		ExpiresAt:    fixedNow.Add(-time.Minute).Unix(),
		Error:        "stale",
	}
	return client, refresh.NewManager(client), auth
}

func TestIsExpired(t *testing.T) {
	refresh.NowTimeFunc = func() time.Time { return fixedNow }
	defer func() { refresh.NowTimeFunc = time.Now }()

	require.False(t, refresh.IsExpired(nil))
	require.False(t, refresh.IsExpired(&sessions.AuthSession{}))
	require.False(t, refresh.IsExpired(&sessions.AuthSession{ExpiresAt: fixedNow.Unix() + 1}))
	require.True(t, refresh.IsExpired(&sessions.AuthSession{ExpiresAt: fixedNow.Unix()}))
	require.True(t, refresh.IsExpired(&sessions.AuthSession{ExpiresAt: fixedNow.Unix() - 1}))
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("success without provider expiry", func(t *testing.T) {
		client, m, auth := setupTestFixture(t)
		refreshed, err := m.Refresh(ctx, auth)
		require.NoError(t, err)

		require.NotEqual(t, "old-access", refreshed.AccessToken)
		require.Equal(t, fixedNow.Add(refresh.DefaultAccessTokenLifetime).Unix(), refreshed.ExpiresAt)
		require.Greater(t, refreshed.ExpiresAt, auth.ExpiresAt)
		require.Equal(t, auth.RefreshToken, refreshed.RefreshToken)
		require.Equal(t, "id-token", refreshed.IDToken)
		require.Equal(t, "user-123", refreshed.Subject())
		require.Empty(t, refreshed.Error)
		require.Equal(t, 1, client.Refreshes())

		require.Equal(t, "old-access", auth.AccessToken)
		require.Equal(t, "stale", auth.Error)
	})

	t.Run("provider expiry and rotation", func(t *testing.T) {
		client, m, auth := setupTestFixture(t)
		client.ExpiresAt = fixedNow.Add(10 * time.Minute).Unix()
		client.RotateRefresh = true

		refreshed, err := m.Refresh(ctx, auth)
		require.NoError(t, err)
		require.Equal(t, client.ExpiresAt, refreshed.ExpiresAt)
		require.NotEqual(t, auth.RefreshToken, refreshed.RefreshToken)
		require.NotEmpty(t, refreshed.RefreshToken)
	})

	t.Run("no refresh token", func(t *testing.T) {
		client, m, auth := setupTestFixture(t)
		auth.RefreshToken = ""
		_, err := m.Refresh(ctx, auth)
		require.ErrorIs(t, err, errors.ErrNoRefreshToken)
		require.ErrorIs(t, err, errors.ErrRefresh)
		require.Zero(t, client.Refreshes())
	})

	t.Run("provider failure", func(t *testing.T) {
		client, m, auth := setupTestFixture(t)
		client.FailRefresh = true
		_, err := m.Refresh(ctx, auth)
		require.ErrorIs(t, err, errors.ErrRefresh)
		require.Equal(t, "old-access", auth.AccessToken)
	})
}
