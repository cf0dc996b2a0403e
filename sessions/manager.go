package sessions

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	gsessions "github.com/gorilla/sessions"
	"github.com/jrsteele09/go-oidc-session/internal/config"
	"github.com/rs/zerolog/log"
)

// Browsers drop cookies larger than this.
const maxCookieSize = 4096

type contextKey struct{}

// Manager loads the session from the request cookie and writes it back when
// a handler changed it.
type Manager struct {
	codec   *Codec
	name    string
	options gsessions.Options
}

func NewManager(cfg config.SessionConfig) (*Manager, error) {
	codec, err := NewCodec(cfg.GetSessionSecret(), cfg.GetSessionDuration())
	if err != nil {
		return nil, err
	}
	return &Manager{
		codec: codec,
		name:  cfg.GetSessionCookieName(),
		options: gsessions.Options{
			Path:     "/",
			MaxAge:   int(cfg.GetSessionDuration() / time.Second),
			HttpOnly: true,
			Secure:   cfg.GetSecureCookies(),
			SameSite: http.SameSiteLaxMode,
		},
	}, nil
}

// FromContext returns the request's session. Outside the middleware it
// returns an empty session that is never persisted.
func FromContext(ctx context.Context) *SessionData {
	if s, ok := ctx.Value(contextKey{}).(*SessionData); ok {
		return s
	}
	return &SessionData{}
}

// WithSession attaches data to ctx.
func WithSession(ctx context.Context, data *SessionData) context.Context {
	return context.WithValue(ctx, contextKey{}, data)
}

// Load reads the session cookie. A missing, tampered or expired cookie yields
// an empty session; the boolean reports whether a cookie was present but unusable.
func (m *Manager) Load(r *http.Request) (*SessionData, bool) {
	cookie, err := r.Cookie(m.name)
	if err != nil || cookie.Value == "" {
		return &SessionData{}, false
	}
	data, err := m.codec.Decode(cookie.Value)
	if err != nil {
		log.Debug().Err(err).Str("path", r.URL.Path).Msg("discarding session cookie")
		return &SessionData{}, true
	}
	return data, false
}

// Save writes data as the session cookie, or deletes the cookie when data is empty.
func (m *Manager) Save(w http.ResponseWriter, data *SessionData) error {
	if data.IsEmpty() {
		http.SetCookie(w, m.cookie("", -1))
		return nil
	}
	value, err := m.codec.Encode(data)
	if err != nil {
		return err
	}
	cookie := m.cookie(value, m.options.MaxAge)
	if size := len(cookie.String()); size > maxCookieSize {
		log.Warn().Int("size", size).Msg("session cookie exceeds browser limit")
	}
	http.SetCookie(w, cookie)
	return nil
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	options := m.options
	options.MaxAge = maxAge
	return gsessions.NewCookie(m.name, value, &options)
}

// Middleware makes the session available through FromContext and commits it
// before the first byte of the response is written.
func (m *Manager) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, discarded := m.Load(r)
		before := snapshot(data)

		sw := &sessionWriter{ResponseWriter: w}
		sw.commit = func() {
			if !discarded && bytes.Equal(before, snapshot(data)) {
				return
			}
			if err := m.Save(w, data); err != nil {
				log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to save session")
			}
		}

		next(sw, r.WithContext(WithSession(r.Context(), data)))
		sw.flush()
	}
}

func snapshot(data *SessionData) []byte {
	b, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	return b
}

type sessionWriter struct {
	http.ResponseWriter
	commit    func()
	committed bool
}

func (w *sessionWriter) flush() {
	if w.committed {
		return
	}
	w.committed = true
	w.commit()
}

func (w *sessionWriter) WriteHeader(code int) {
	w.flush()
	w.ResponseWriter.WriteHeader(code)
}

func (w *sessionWriter) Write(b []byte) (int, error) {
	w.flush()
	return w.ResponseWriter.Write(b)
}

func (w *sessionWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
