package server

import (
	"net/http"

	"github.com/jrsteele09/go-oidc-session/internal/errors"
	"github.com/jrsteele09/go-oidc-session/oidcclient"
	"github.com/jrsteele09/go-oidc-session/sessions"
	"github.com/rs/zerolog/log"
)

// SignInPageData contains data for rendering the sign-in page
type SignInPageData struct {
	AppName     string
	Providers   []SignInProvider
	CallbackURL string
	CSRFToken   string
	Error       string
	Message     Message
}

// ensureCSRFToken returns the session's csrf token, creating one if needed.
func ensureCSRFToken(session *sessions.SessionData) (string, error) {
	if session.CSRFToken != "" {
		return session.CSRFToken, nil
	}
	token, err := generateRandomString()
	if err != nil {
		return "", err
	}
	session.CSRFToken = token
	return token, nil
}

// CSRFHandler issues the sign-in csrf token (GET /auth/csrf). Repeated calls
// return the same token until it is consumed.
func (s *Server) CSRFHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := ensureCSRFToken(sessions.FromContext(r.Context()))
		if err != nil {
			log.Ctx(r.Context()).Err(err).Msg("Failed to generate csrf token")
			writeJSONError(w, r, http.StatusInternalServerError, "Failed to generate csrf token")
			return
		}
		writeJSON(w, r, http.StatusOK, map[string]string{paramCSRFToken: token})
	}
}

// SignInPageHandler renders the provider list (GET /auth/signin)
func (s *Server) SignInPageHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("signin.html")

	return func(w http.ResponseWriter, r *http.Request) {
		session := sessions.FromContext(r.Context())
		token, err := ensureCSRFToken(session)
		if err != nil {
			log.Ctx(r.Context()).Err(err).Msg("Failed to generate csrf token")
			http.Error(w, "Failed to render sign-in page", http.StatusInternalServerError)
			return
		}

		errorCode := r.URL.Query().Get(paramError)
		data := SignInPageData{
			AppName:     s.config.GetAppName(),
			Providers:   s.providers,
			CallbackURL: localRedirectPath(r.URL.Query().Get(paramCallbackURL), s.config.GetPostLoginURL()),
			CSRFToken:   token,
			Error:       errorCode,
		}
		if errorCode != "" {
			data.Message = getMessage(errorCode, messageCategorySignIn)
		}
		renderTemplate(w, r, tmpl, http.StatusOK, data)
	}
}

// SignInProviderHandler verifies the csrf token and sends the browser to the
// provider (POST /auth/signin/{provider}).
func (s *Server) SignInProviderHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.Ctx(r.Context())
		if _, ok := s.provider(r.PathValue("provider")); !ok {
			http.NotFound(w, r)
			return
		}

		session := sessions.FromContext(r.Context())
		if err := r.ParseForm(); err != nil || !secureCompare(session.CSRFToken, r.PostForm.Get(paramCSRFToken)) {
			logger.Warn().Err(errors.ErrVerification).Msg("Sign-in csrf check failed")
			redirect(w, r, withQuery(RouteAuthSignIn, paramError, errorVerification))
			return
		}

		state, err := generateRandomString()
		if err != nil {
			logger.Err(err).Msg("Failed to generate state")
			redirect(w, r, withQuery(RouteAuthSignIn, paramError, errorSignIn))
			return
		}
		nonce, err := generateRandomString()
		if err != nil {
			logger.Err(err).Msg("Failed to generate nonce")
			redirect(w, r, withQuery(RouteAuthSignIn, paramError, errorSignIn))
			return
		}
		verifier := oidcclient.NewVerifier()

		authURL, err := s.oidc.AuthorizationURL(r.Context(), state, nonce, verifier)
		if err != nil {
			logger.Err(err).Msg("Failed to build authorization url")
			redirect(w, r, withQuery(RouteAuthSignIn, paramError, errorSignIn))
			return
		}

		session.CSRFToken = ""
		session.PostLoginURL = localRedirectPath(r.PostForm.Get(paramCallbackURL), s.config.GetPostLoginURL())
		session.Pending = &sessions.PendingAuthorization{
			State:        state,
			Nonce:        nonce,
			CodeVerifier: verifier,
		}
		redirect(w, r, authURL)
	}
}

// OAuthCallbackHandler completes the code flow (GET /auth/callback). Any
// failure leaves the session as it was.
func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.Ctx(r.Context())
		fail := func(err error, msg string) {
			logger.Warn().Err(err).Msg(msg)
			redirect(w, r, withQuery(RouteAuthError, paramError, errorCallback))
		}

		query := r.URL.Query()
		if providerError := query.Get(paramError); providerError != "" {
			fail(errors.Wrapf(errors.ErrTokenExchange, "provider returned %q: %s", providerError, query.Get("error_description")), "Provider rejected the authorization request")
			return
		}

		session := sessions.FromContext(r.Context())
		pending := session.Pending
		if pending == nil {
			fail(errors.ErrNoPending, "Callback without a pending authorization")
			return
		}
		if !secureCompare(pending.State, query.Get(paramState)) {
			fail(errors.ErrStateMismatch, "Callback state does not match")
			return
		}
		code := query.Get(paramCode)
		if code == "" {
			fail(errors.ErrMissingCode, "Callback without authorization code")
			return
		}

		token, err := s.oidc.Exchange(r.Context(), code, pending.CodeVerifier, pending.Nonce)
		if err != nil {
			fail(err, "Token exchange failed")
			return
		}
		user, err := s.oidc.UserInfo(r.Context(), token.AccessToken)
		if err != nil {
			fail(err, "Userinfo request failed")
			return
		}
		if sub, _ := user["sub"].(string); sub == "" {
			fail(errors.ErrMissingSubject, "Userinfo has no subject")
			return
		}

		session.ResetForLogin()
		session.Auth = &sessions.AuthSession{
			User:         user,
			AccessToken:  token.AccessToken,
			IDToken:      token.IDToken,
			RefreshToken: token.RefreshToken,
			ExpiresAt:    token.ExpiresAt,
		}
		target := session.PopPostLoginURL(s.config.GetPostLoginURL())

		logger.Info().Str("sub", session.Auth.Subject()).Msg("User signed in")
		redirect(w, r, target)
	}
}

// AuthErrorPageHandler renders GET /auth/error
func (s *Server) AuthErrorPageHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("message.html")

	return func(w http.ResponseWriter, r *http.Request) {
		message := getMessage(r.URL.Query().Get(paramError), messageCategoryAuth)
		renderTemplate(w, r, tmpl, http.StatusOK, PageData{
			AppName:  s.config.GetAppName(),
			Heading:  message.Heading,
			Message:  message.Message,
			LoginURL: RouteAuthSignIn,
		})
	}
}
