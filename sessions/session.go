package sessions

// SessionData is the per-browser record carried in the signed session cookie.
// All fields are optional; the zero value is an anonymous session.
type SessionData struct {
	// Single-use token for the sign-in POST
	CSRFToken string `json:"csrf_token,omitempty"`

	// Expected state on the logout callback
	LogoutState string `json:"logout_state,omitempty"`

	// Where to land after the callback
	PostLoginURL string `json:"post_login_url,omitempty"`

	// In-flight authorization request
	Pending *PendingAuthorization `json:"oauth_pending,omitempty"`

	// Present once the user has signed in
	Auth *AuthSession `json:"auth_session,omitempty"`
}

// PendingAuthorization holds the values generated when the user is sent to the
// provider. They are checked when the provider redirects back.
type PendingAuthorization struct {
	State        string `json:"state"`
	Nonce        string `json:"nonce"`
	CodeVerifier string `json:"code_verifier"`
}

// AuthSession is the authenticated part of the session.
type AuthSession struct {
	User         map[string]any `json:"user"`
	AccessToken  string         `json:"access_token,omitempty"`
	IDToken      string         `json:"id_token,omitempty"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	ExpiresAt    int64          `json:"expires_at,omitempty"` // Seconds since epoch, 0 when unknown
	Error        string         `json:"error,omitempty"`      // Set when the session must not be trusted
}

// Subject returns the user's sub claim or "".
func (a *AuthSession) Subject() string {
	if a == nil || a.User == nil {
		return ""
	}
	sub, _ := a.User["sub"].(string)
	return sub
}

// Clone returns a copy that shares no maps with the receiver.
func (a *AuthSession) Clone() *AuthSession {
	if a == nil {
		return nil
	}
	c := *a
	if a.User != nil {
		c.User = make(map[string]any, len(a.User))
		for k, v := range a.User {
			c.User[k] = v
		}
	}
	return &c
}

// IsAuthenticated reports whether a user with a non-empty subject is attached.
func (s *SessionData) IsAuthenticated() bool {
	return s != nil && s.Auth != nil && len(s.Auth.User) > 0 && s.Auth.Subject() != ""
}

// Clear drops everything, leaving an anonymous session.
func (s *SessionData) Clear() {
	*s = SessionData{}
}

// ResetForLogin clears the session but keeps the post-login redirect so the
// callback can still honour it.
func (s *SessionData) ResetForLogin() {
	postLogin := s.PostLoginURL
	*s = SessionData{PostLoginURL: postLogin}
}

// PopPostLoginURL returns the stored redirect target, or fallback, and removes it.
func (s *SessionData) PopPostLoginURL(fallback string) string {
	target := s.PostLoginURL
	s.PostLoginURL = ""
	if target == "" {
		return fallback
	}
	return target
}

// IsEmpty reports whether nothing needs to be persisted.
func (s *SessionData) IsEmpty() bool {
	return s.CSRFToken == "" && s.LogoutState == "" && s.PostLoginURL == "" && s.Pending == nil && s.Auth == nil
}
