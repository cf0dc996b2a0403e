package server

import (
	"net/http"

	"github.com/jrsteele09/go-oidc-session/internal/errors"
	"github.com/jrsteele09/go-oidc-session/sessions"
	"github.com/rs/zerolog/log"
)

// UserInfoHandler returns fresh claims from the provider (GET /auth/userinfo).
// It runs behind RequireSessionAuth, so the access token has already been
// refreshed if it was expired.
func (s *Server) UserInfoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := sessions.FromContext(r.Context())
		if session.Auth == nil || session.Auth.AccessToken == "" {
			log.Ctx(r.Context()).Warn().Err(errors.ErrNoAccessToken).Msg("Userinfo requested without an access token")
			writeJSONError(w, r, http.StatusUnauthorized, "No access token available")
			return
		}

		claims, err := s.oidc.UserInfo(r.Context(), session.Auth.AccessToken)
		if err != nil {
			log.Ctx(r.Context()).Err(errors.Wrapf(err, "userinfo for %s", session.Auth.Subject())).Msg("Failed to fetch user info")
			writeJSONError(w, r, http.StatusInternalServerError, "Failed to fetch user info")
			return
		}
		writeJSON(w, r, http.StatusOK, claims)
	}
}
