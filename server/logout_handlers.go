package server

import (
	"net/http"

	"github.com/jrsteele09/go-oidc-session/internal/errors"
	"github.com/jrsteele09/go-oidc-session/sessions"
	"github.com/rs/zerolog/log"
)

// LogoutHandler starts logout (POST /auth/logout). With a provider
// end-session endpoint the browser is sent there and the session is kept
// until the logout callback confirms the state. Otherwise, or on any error,
// the session is cleared locally.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.Ctx(r.Context())
		session := sessions.FromContext(r.Context())
		postLogoutURL := s.config.GetPostLogoutURL()

		localLogout := func() {
			session.Clear()
			redirect(w, r, postLogoutURL)
		}

		state, err := generateRandomString()
		if err != nil {
			logger.Err(err).Msg("Failed to generate logout state")
			localLogout()
			return
		}
		session.LogoutState = state

		var idTokenHint string
		if session.Auth != nil {
			idTokenHint = session.Auth.IDToken
		}
		endSessionURL, err := s.oidc.EndSessionURL(r.Context(), idTokenHint, absoluteURL(r, postLogoutURL), state)
		if err != nil {
			logger.Err(err).Msg("Failed to resolve end-session url, logging out locally")
			localLogout()
			return
		}
		if endSessionURL == "" {
			localLogout()
			return
		}

		redirect(w, r, endSessionURL)
	}
}

// LogoutCallbackHandler validates the state the provider echoes back
// (GET /auth/logout/callback). A mismatch leaves the session untouched.
func (s *Server) LogoutCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := sessions.FromContext(r.Context())

		if !secureCompare(session.LogoutState, r.URL.Query().Get(paramState)) {
			log.Ctx(r.Context()).Warn().Err(errors.ErrStateMismatch).Msg("Logout callback state does not match")
			redirect(w, r, withQuery(RouteAuthLogoutError, paramReason, invalidLogoutStateReason))
			return
		}

		if session.Auth != nil {
			log.Ctx(r.Context()).Info().Str("sub", session.Auth.Subject()).Msg("User signed out")
		}
		session.Clear()
		redirect(w, r, RouteAuthLogoutSuccess)
	}
}

// LogoutSuccessHandler renders GET /auth/logout/success
func (s *Server) LogoutSuccessHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("message.html")

	return func(w http.ResponseWriter, r *http.Request) {
		renderTemplate(w, r, tmpl, http.StatusOK, PageData{
			AppName:  s.config.GetAppName(),
			Heading:  "Signed out",
			Message:  "You have been signed out successfully.",
			LoginURL: RouteAuthSignIn,
		})
	}
}

// LogoutErrorHandler renders GET /auth/logout/error
func (s *Server) LogoutErrorHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("message.html")

	return func(w http.ResponseWriter, r *http.Request) {
		reason := r.URL.Query().Get(paramReason)
		if reason == "" {
			reason = "An error occurred during logout."
		}
		renderTemplate(w, r, tmpl, http.StatusOK, PageData{
			AppName:  s.config.GetAppName(),
			Heading:  "Logout failed",
			Message:  reason,
			LoginURL: RouteAuthSignIn,
		})
	}
}
