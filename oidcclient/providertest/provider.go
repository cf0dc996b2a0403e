// Package providertest runs an in-process OpenID provider for tests. It
// implements discovery, authorize (with PKCE), token, userinfo, JWKS and
// end-session well enough to drive a real client through the code flow.
package providertest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	EndSessionPath = "/oidc/v1/end_session"
	keyID          = "test-key"
)

type authRequest struct {
	nonce       string
	challenge   string
	redirectURI string
}

// Provider is a disposable OpenID provider backed by httptest.
type Provider struct {
	httpServer *httptest.Server
	key        *rsa.PrivateKey

	mu                  sync.Mutex
	clientID            string
	clientSecret        string
	subject             string
	userinfo            map[string]any
	expiresIn           int
	rotateRefreshTokens bool
	endSession          bool
	failToken           bool
	failRefresh         bool
	failUserinfo        bool
	codes               map[string]authRequest
	accessTokens        map[string]bool
	refreshTokens       map[string]bool
	discoveryCount      int
	refreshCount        int
	lastRefreshAuth     string

	t testing.TB
}

// Start creates a provider and stops it when the test ends.
func Start(t testing.TB) *Provider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	p := &Provider{
		key:           key,
		clientID:      "test-client",
		clientSecret:  "test-secret",
		subject:       "user-123",
		expiresIn:     3600,
		endSession:    true,
		codes:         map[string]authRequest{},
		accessTokens:  map[string]bool{},
		refreshTokens: map[string]bool{},
		t:             t,
	}
	p.userinfo = map[string]any{"email": "alice@example.com", "name": "Alice"}
	p.httpServer = httptest.NewServer(p)
	t.Cleanup(p.httpServer.Close)
	return p
}

func (p *Provider) Issuer() string { return p.httpServer.URL }

func (p *Provider) ClientID() string { return p.clientID }

func (p *Provider) ClientSecret() string { return p.clientSecret }

func (p *Provider) Subject() string { return p.subject }

// HTTPClient returns a client that trusts the provider.
func (p *Provider) HTTPClient() *http.Client { return p.httpServer.Client() }

func (p *Provider) SetClientCreds(clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID, p.clientSecret = clientID, clientSecret
}

// SetExpiresIn sets the expires_in returned with tokens. Zero omits it.
func (p *Provider) SetExpiresIn(seconds int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expiresIn = seconds
}

func (p *Provider) SetRotateRefreshTokens(rotate bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rotateRefreshTokens = rotate
}

// SetEndSession toggles end_session_endpoint in the discovery document.
func (p *Provider) SetEndSession(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endSession = enabled
}

func (p *Provider) SetFailToken(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failToken = fail
}

func (p *Provider) SetFailRefresh(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failRefresh = fail
}

func (p *Provider) SetFailUserinfo(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failUserinfo = fail
}

func (p *Provider) DiscoveryCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.discoveryCount
}

func (p *Provider) RefreshCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshCount
}

// LastRefreshAuthorization is the Authorization header of the last refresh request.
func (p *Provider) LastRefreshAuthorization() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRefreshAuth
}

// IssueRefreshToken registers a refresh token the token endpoint will accept.
func (p *Provider) IssueRefreshToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	rt := "rt-" + uuid.NewString()
	p.refreshTokens[rt] = true
	return rt
}

// ServeHTTP implements the provider endpoints.
func (p *Provider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch req.URL.Path {
	case "/.well-known/openid-configuration":
		p.discoveryCount++
		reply := map[string]any{
			"issuer":                                p.Issuer(),
			"authorization_endpoint":                p.Issuer() + "/oauth/v2/authorize",
			"token_endpoint":                        p.Issuer() + "/oauth/v2/token",
			"userinfo_endpoint":                     p.Issuer() + "/oidc/v1/userinfo",
			"jwks_uri":                              p.Issuer() + "/oauth/v2/keys",
			"response_types_supported":              []string{"code"},
			"subject_types_supported":               []string{"public"},
			"id_token_signing_alg_values_supported": []string{"RS256"},
			"code_challenge_methods_supported":      []string{"S256"},
		}
		if p.endSession {
			reply["end_session_endpoint"] = p.Issuer() + EndSessionPath
		}
		p.writeJSON(w, http.StatusOK, reply)

	case "/oauth/v2/keys":
		p.writeJSON(w, http.StatusOK, map[string]any{"keys": []map[string]string{{
			"kty": "RSA",
			"kid": keyID,
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(p.key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(p.key.E)).Bytes()),
		}}})

	case "/oauth/v2/authorize":
		p.authorize(w, req)

	case "/oauth/v2/token":
		p.token(w, req)

	case "/oidc/v1/userinfo":
		token := strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
		if p.failUserinfo {
			p.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server_error"})
			return
		}
		if !p.accessTokens[token] {
			p.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_token"})
			return
		}
		claims := map[string]any{"sub": p.subject}
		for k, v := range p.userinfo {
			claims[k] = v
		}
		p.writeJSON(w, http.StatusOK, claims)

	case EndSessionPath:
		q := req.URL.Query()
		target, err := url.Parse(q.Get("post_logout_redirect_uri"))
		if err != nil || target.String() == "" || q.Get("client_id") != p.clientID {
			http.Error(w, "invalid end session request", http.StatusBadRequest)
			return
		}
		tq := target.Query()
		tq.Set("state", q.Get("state"))
		target.RawQuery = tq.Encode()
		http.Redirect(w, req, target.String(), http.StatusFound)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (p *Provider) authorize(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	switch {
	case q.Get("response_type") != "code",
		q.Get("client_id") != p.clientID,
		q.Get("code_challenge_method") != "S256",
		q.Get("code_challenge") == "",
		q.Get("redirect_uri") == "",
		!strings.Contains(" "+q.Get("scope")+" ", " openid "):
		http.Error(w, "invalid authorization request", http.StatusBadRequest)
		return
	}

	code := "code-" + uuid.NewString()
	p.codes[code] = authRequest{
		nonce:       q.Get("nonce"),
		challenge:   q.Get("code_challenge"),
		redirectURI: q.Get("redirect_uri"),
	}

	target, _ := url.Parse(q.Get("redirect_uri"))
	tq := target.Query()
	tq.Set("code", code)
	tq.Set("state", q.Get("state"))
	target.RawQuery = tq.Encode()
	http.Redirect(w, req, target.String(), http.StatusFound)
}

func (p *Provider) token(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	clientID, clientSecret, ok := req.BasicAuth()
	if !ok || clientID != p.clientID || clientSecret != p.clientSecret {
		p.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}

	switch req.FormValue("grant_type") {
	case "authorization_code":
		if p.failToken {
			p.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		code := req.FormValue("code")
		ar, ok := p.codes[code]
		delete(p.codes, code)
		sum := sha256.Sum256([]byte(req.FormValue("code_verifier")))
		switch {
		case !ok,
			ar.redirectURI != req.FormValue("redirect_uri"),
			base64.RawURLEncoding.EncodeToString(sum[:]) != ar.challenge:
			p.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		reply := p.newTokens(true)
		reply["id_token"] = p.signIDToken(ar.nonce)
		p.writeJSON(w, http.StatusOK, reply)

	case "refresh_token":
		p.refreshCount++
		p.lastRefreshAuth = req.Header.Get("Authorization")
		rt := req.FormValue("refresh_token")
		if p.failRefresh || !p.refreshTokens[rt] {
			p.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		if p.rotateRefreshTokens {
			delete(p.refreshTokens, rt)
		}
		p.writeJSON(w, http.StatusOK, p.newTokens(p.rotateRefreshTokens))

	default:
		p.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
	}
}

func (p *Provider) newTokens(withRefresh bool) map[string]any {
	at := "at-" + uuid.NewString()
	p.accessTokens[at] = true
	reply := map[string]any{
		"access_token": at,
		"token_type":   "Bearer",
	}
	if p.expiresIn > 0 {
		reply["expires_in"] = p.expiresIn
	}
	if withRefresh {
		rt := "rt-" + uuid.NewString()
		p.refreshTokens[rt] = true
		reply["refresh_token"] = rt
	}
	return reply
}

func (p *Provider) signIDToken(nonce string) string {
	now := time.Now()
	claims := jwtlib.MapClaims{
		"iss": p.Issuer(),
		"sub": p.subject,
		"aud": p.clientID,
		"iat": now.Unix(),
		"exp": now.Add(5 * time.Minute).Unix(),
	}
	if nonce != "" {
		claims["nonce"] = nonce
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims)
	token.Header["kid"] = keyID
	signed, err := token.SignedString(p.key)
	if err != nil {
		p.t.Errorf("sign id_token: %v", err)
	}
	return signed
}

func (p *Provider) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		p.t.Errorf("encode response: %v", err)
	}
}
