package sessions_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-oidc-session/internal/errors"
	"github.com/jrsteele09/go-oidc-session/sessions"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testSessionConfig struct{ secure bool }

func (testSessionConfig) GetSessionSecret() string {
	return testSecret
}

func (testSessionConfig) GetSessionDuration() time.Duration {
	return time.Hour
}

func (testSessionConfig) GetSessionCookieName() string {
	return "sessionid"
}

func (c testSessionConfig) GetSecureCookies() bool {
	return c.secure
}

func authenticated() *sessions.SessionData {
	return &sessions.SessionData{
		Auth: &sessions.AuthSession{
			User:         map[string]any{"sub": "user-1", "email": "a@example.com"},
			AccessToken:  "access",
			IDToken:      "id",
			RefreshToken: "refresh",
			ExpiresAt:    1700000000,
		},
	}
}

func TestCodec(t *testing.T) {
	codec, err := sessions.NewCodec(testSecret, time.Hour)
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		value, err := codec.Encode(authenticated())
		require.NoError(t, err)

		data, err := codec.Decode(value)
		require.NoError(t, err)
		require.True(t, data.IsAuthenticated())
		require.Equal(t, "user-1", data.Auth.Subject())
		require.Equal(t, "refresh", data.Auth.RefreshToken)
		require.Equal(t, int64(1700000000), data.Auth.ExpiresAt)
	})

	t.Run("tampered value", func(t *testing.T) {
		value, err := codec.Encode(authenticated())
		require.NoError(t, err)

		parts := strings.Split(value, ".")
		parts[2] = strings.Repeat("A", len(parts[2]))
		_, err = codec.Decode(strings.Join(parts, "."))
		require.ErrorIs(t, err, errors.ErrInvalidSession)
	})

	t.Run("other secret", func(t *testing.T) {
		other, err := sessions.NewCodec(strings.Repeat("x", 32), time.Hour)
		require.NoError(t, err)
		value, err := other.Encode(authenticated())
		require.NoError(t, err)

		_, err = codec.Decode(value)
		require.ErrorIs(t, err, errors.ErrInvalidSession)
	})

	t.Run("expired", func(t *testing.T) {
		value, err := codec.Encode(authenticated())
		require.NoError(t, err)

		sessions.NowTimeFunc = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { sessions.NowTimeFunc = time.Now }()

		_, err = codec.Decode(value)
		require.ErrorIs(t, err, errors.ErrInvalidSession)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := codec.Decode("not-a-cookie")
		require.ErrorIs(t, err, errors.ErrInvalidSession)
	})

	t.Run("invalid construction", func(t *testing.T) {
		_, err := sessions.NewCodec("", time.Hour)
		require.ErrorIs(t, err, errors.ErrConfig)
		_, err = sessions.NewCodec(testSecret, 0)
		require.ErrorIs(t, err, errors.ErrConfig)
	})
}

func TestSessionData(t *testing.T) {
	t.Run("reset keeps post login url", func(t *testing.T) {
		data := authenticated()
		data.CSRFToken = "csrf"
		data.PostLoginURL = "/dashboard"
		data.ResetForLogin()

		require.Nil(t, data.Auth)
		require.Empty(t, data.CSRFToken)
		require.Equal(t, "/dashboard", data.PopPostLoginURL("/profile"))
		require.Equal(t, "/profile", data.PopPostLoginURL("/profile"))
		require.True(t, data.IsEmpty())
	})

	t.Run("empty user is not authenticated", func(t *testing.T) {
		data := &sessions.SessionData{Auth: &sessions.AuthSession{User: map[string]any{}}}
		require.False(t, data.IsAuthenticated())
	})

	t.Run("clone does not share claims", func(t *testing.T) {
		auth := authenticated().Auth
		c := auth.Clone()
		c.User["sub"] = "changed"
		require.Equal(t, "user-1", auth.Subject())
	})
}

func TestManagerMiddleware(t *testing.T) {
	manager, err := sessions.NewManager(testSessionConfig{secure: true})
	require.NoError(t, err)

	serve := func(handler http.HandlerFunc, cookies ...*http.Cookie) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		manager.Middleware(handler)(rec, req)
		return rec
	}

	var issued *http.Cookie
	t.Run("modified session is written before the redirect", func(t *testing.T) {
		rec := serve(func(w http.ResponseWriter, r *http.Request) {
			sessions.FromContext(r.Context()).CSRFToken = "token"
			http.Redirect(w, r, "/next", http.StatusFound)
		})
		require.Equal(t, http.StatusFound, rec.Code)
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		issued = cookies[0]
		require.Equal(t, "sessionid", issued.Name)
		require.True(t, issued.HttpOnly)
		require.True(t, issued.Secure)
		require.Equal(t, http.SameSiteLaxMode, issued.SameSite)
		require.Equal(t, 3600, issued.MaxAge)
		require.Equal(t, "/", issued.Path)
		require.WithinDuration(t, time.Now().Add(time.Hour), issued.Expires, time.Minute)
	})

	t.Run("unchanged session is not rewritten", func(t *testing.T) {
		var seen string
		rec := serve(func(w http.ResponseWriter, r *http.Request) {
			seen = sessions.FromContext(r.Context()).CSRFToken
			w.WriteHeader(http.StatusOK)
		}, issued)
		require.Equal(t, "token", seen)
		require.Empty(t, rec.Result().Cookies())
	})

	t.Run("handler that writes nothing still commits", func(t *testing.T) {
		rec := serve(func(w http.ResponseWriter, r *http.Request) {
			sessions.FromContext(r.Context()).LogoutState = "state"
		})
		require.Len(t, rec.Result().Cookies(), 1)
	})

	t.Run("cleared session deletes the cookie", func(t *testing.T) {
		rec := serve(func(w http.ResponseWriter, r *http.Request) {
			sessions.FromContext(r.Context()).Clear()
			w.WriteHeader(http.StatusOK)
		}, issued)
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		require.Equal(t, -1, cookies[0].MaxAge)
		require.True(t, cookies[0].Expires.Before(time.Now()))
		require.True(t, cookies[0].HttpOnly)
	})

	t.Run("malformed cookie is treated as absent and removed", func(t *testing.T) {
		var authenticated bool
		rec := serve(func(w http.ResponseWriter, r *http.Request) {
			authenticated = sessions.FromContext(r.Context()).IsAuthenticated()
			w.WriteHeader(http.StatusOK)
		}, &http.Cookie{Name: "sessionid", Value: "garbage"})
		require.Equal(t, http.StatusOK, rec.Code)
		require.False(t, authenticated)
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		require.Equal(t, -1, cookies[0].MaxAge)
	})
}
