package server

import (
	"net/http"

	"github.com/jrsteele09/go-oidc-session/sessions"
	"github.com/jrsteele09/go-oidc-session/token/refresh"
	"github.com/rs/zerolog/log"
)

// RequireSessionAuth is middleware for routes that need a signed-in user.
// Anonymous or failed sessions are sent to the sign-in page with the current
// URL as callbackUrl. An expired access token is refreshed once; if that
// fails the session is cleared.
func (s *Server) RequireSessionAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			logger := log.Ctx(r.Context())
			session := sessions.FromContext(r.Context())
			toSignIn := signInURL(r.URL.RequestURI())

			if !session.IsAuthenticated() {
				redirect(w, r, toSignIn)
				return
			}

			if session.Auth.Error != "" {
				logger.Warn().Str("sub", session.Auth.Subject()).Str("error", session.Auth.Error).Msg("Session carries an auth error, signing out")
				session.Clear()
				redirect(w, r, toSignIn)
				return
			}

			if refresh.IsExpired(session.Auth) {
				refreshed, err := s.refresher.Refresh(r.Context(), session.Auth)
				if err != nil {
					logger.Warn().Err(err).Str("sub", session.Auth.Subject()).Msg("Access token refresh failed")
					session.Clear()
					redirect(w, r, toSignIn)
					return
				}
				session.Auth = refreshed
			}

			next(w, r)
		}
	}
}
