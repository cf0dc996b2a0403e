package server_test

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/jrsteele09/go-oidc-session/oidcclient/clientfake"
	"github.com/jrsteele09/go-oidc-session/server"
	"github.com/stretchr/testify/require"
)

// startLogout posts to the logout route and returns the end-session redirect.
func (f *testFixture) startLogout() *url.URL {
	f.t.Helper()
	location := f.requireRedirect(f.post(server.RouteAuthLogout, nil))
	require.True(f.t, strings.HasPrefix(location, clientfake.EndSessionURL), location)
	u, err := url.Parse(location)
	require.NoError(f.t, err)
	return u
}

func TestLogout(t *testing.T) {
	t.Run("redirects to end session and keeps the session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signIn("")
		idToken := f.session().Auth.IDToken

		endSession := f.startLogout()
		q := endSession.Query()
		session := f.session()
		require.NotEmpty(t, q.Get("state"))
		require.Equal(t, session.LogoutState, q.Get("state"))
		require.Equal(t, f.server.URL+"/", q.Get("post_logout_redirect_uri"))
		require.Equal(t, idToken, q.Get("id_token_hint"))
		require.True(t, f.isAuthenticated())
	})

	t.Run("callback with matching state clears the session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signIn("")
		state := f.startLogout().Query().Get("state")

		location := f.requireRedirect(f.get(server.RouteAuthLogoutCallback + "?state=" + url.QueryEscape(state)))
		require.Equal(t, server.RouteAuthLogoutSuccess, location)
		require.False(t, f.isAuthenticated())
		require.Empty(t, f.session().LogoutState)
	})

	for name, query := range map[string]string{
		"mismatched state": "?state=forged",
		"missing state":    "",
	} {
		t.Run(name+" leaves the session untouched", func(t *testing.T) {
			f := setupTestFixture(t)
			f.signIn("")
			f.startLogout()
			before := f.session()

			location := f.requireRedirect(f.get(server.RouteAuthLogoutCallback + query))
			u, err := url.Parse(location)
			require.NoError(t, err)
			require.Equal(t, server.RouteAuthLogoutError, u.Path)
			require.Equal(t, "Invalid or missing state parameter.", u.Query().Get("reason"))
			require.Equal(t, before, f.session())
			require.True(t, f.isAuthenticated())
		})
	}

	t.Run("callback without logout in progress", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signIn("")
		location := f.requireRedirect(f.get(server.RouteAuthLogoutCallback + "?state=anything"))
		require.True(t, strings.HasPrefix(location, server.RouteAuthLogoutError), location)
		require.True(t, f.isAuthenticated())
	})

	t.Run("no end session endpoint logs out locally", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signIn("")
		f.fake.NoEndSession = true

		location := f.requireRedirect(f.post(server.RouteAuthLogout, nil))
		require.Equal(t, "/", location)
		require.False(t, f.isAuthenticated())
	})

	t.Run("provider unavailable logs out locally", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signIn("")
		f.fake.FailDiscovery = true

		location := f.requireRedirect(f.post(server.RouteAuthLogout, nil))
		require.Equal(t, "/", location)
		require.False(t, f.isAuthenticated())
	})

	t.Run("anonymous logout still round trips", func(t *testing.T) {
		f := setupTestFixture(t)
		endSession := f.startLogout()
		require.Empty(t, endSession.Query().Get("id_token_hint"))

		location := f.requireRedirect(f.get(server.RouteAuthLogoutCallback + "?state=" + url.QueryEscape(endSession.Query().Get("state"))))
		require.Equal(t, server.RouteAuthLogoutSuccess, location)
	})

	t.Run("htmx logout", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signIn("")
		resp := f.do(http.MethodPost, server.RouteAuthLogout, url.Values{}, "HX-Request", "true")
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
		require.True(t, strings.HasPrefix(resp.Header.Get("HX-Redirect"), clientfake.EndSessionURL))
	})

	t.Run("get is not allowed", func(t *testing.T) {
		f := setupTestFixture(t)
		resp := f.get(server.RouteAuthLogout)
		require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestLogoutPages(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.get(server.RouteAuthLogoutSuccess)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, f.readBody(resp), "You have been signed out successfully.")

	resp = f.get(server.RouteAuthLogoutError + "?reason=" + url.QueryEscape("Invalid or missing state parameter."))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := f.readBody(resp)
	require.Contains(t, body, "Logout failed")
	require.Contains(t, body, "Invalid or missing state parameter.")

	resp = f.get(server.RouteAuthLogoutError)
	require.Contains(t, f.readBody(resp), "An error occurred during logout.")
}
