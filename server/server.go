package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-oidc-session/internal/config"
	"github.com/jrsteele09/go-oidc-session/oidcclient"
	"github.com/jrsteele09/go-oidc-session/sessions"
	"github.com/jrsteele09/go-oidc-session/token/refresh"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env       string // Environment (e.g., "DEV", "production")
	mux       *http.ServeMux
	routes    []string
	config    config.Config
	oidc      oidcclient.RelyingParty
	sessions  *sessions.Manager
	refresher *refresh.Manager
	providers []SignInProvider
}

// New wires the handlers. The relying party is injected so tests can swap in a fake.
func New(config config.Config, rp oidcclient.RelyingParty, sessionManager *sessions.Manager) (*Server, error) {
	if rp == nil {
		return nil, fmt.Errorf("[Server New] relying party is required")
	}
	if sessionManager == nil {
		return nil, fmt.Errorf("[Server New] session manager is required")
	}

	s := &Server{
		env:       config.GetEnv(),
		mux:       http.NewServeMux(),
		config:    config,
		oidc:      rp,
		sessions:  sessionManager,
		refresher: refresh.NewManager(rp),
		providers: defaultProviders(),
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Debug().Msgf("[%-19s] %s", colouredMethod(method), path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
