package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-oidc-session/sessions"
	"github.com/rs/zerolog/log"
)

// HomeStatus is the JSON form of the home page.
type HomeStatus struct {
	IsAuthenticated bool   `json:"isAuthenticated"`
	LoginURL        string `json:"loginUrl"`
}

// IndexHandler renders the home page, or its JSON status when asked for JSON.
func (s *Server) IndexHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("index.html")

	return func(w http.ResponseWriter, r *http.Request) {
		authenticated := sessions.FromContext(r.Context()).IsAuthenticated()

		if strings.Contains(r.Header.Get("Accept"), "application/json") {
			writeJSON(w, r, http.StatusOK, HomeStatus{IsAuthenticated: authenticated, LoginURL: RouteAuthSignIn})
			return
		}

		renderTemplate(w, r, tmpl, http.StatusOK, PageData{
			AppName:         s.config.GetAppName(),
			IsAuthenticated: authenticated,
			LoginURL:        RouteAuthSignIn,
			LogoutURL:       RouteAuthLogout,
		})
	}
}

// ProfileHandler renders the signed-in user's claims (GET /profile, guarded).
func (s *Server) ProfileHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("profile.html")

	return func(w http.ResponseWriter, r *http.Request) {
		user := sessions.FromContext(r.Context()).Auth.User

		pretty, err := json.MarshalIndent(user, "", "  ")
		if err != nil {
			log.Ctx(r.Context()).Err(err).Msg("Failed to encode user claims")
			http.Error(w, "Failed to render profile", http.StatusInternalServerError)
			return
		}

		renderTemplate(w, r, tmpl, http.StatusOK, PageData{
			AppName:         s.config.GetAppName(),
			IsAuthenticated: true,
			User:            user,
			UserJSON:        string(pretty),
			LogoutURL:       RouteAuthLogout,
		})
	}
}
