package clientfake

import (
	"context"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-oidc-session/internal/errors"
	"github.com/jrsteele09/go-oidc-session/oidcclient"
)

var _ oidcclient.RelyingParty = (*FakeClient)(nil)

const (
	AuthorizeURL  = "https://idp.example/oauth/v2/authorize"
	EndSessionURL = "https://idp.example/oidc/v1/end_session"
)

type grant struct {
	nonce    string
	verifier string
}

// FakeClient is an in-memory relying party. Codes are minted with IssueCode
// (or taken from the last authorization URL) and exchanged for tokens with a
// fixed subject.
type FakeClient struct {
	lock sync.Mutex

	Subject       string
	UserClaims    map[string]any
	ExpiresAt     int64
	NoEndSession  bool
	FailDiscovery bool
	FailExchange  bool
	FailUserInfo  bool
	FailRefresh   bool
	RotateRefresh bool

	RefreshCalls int
	LastState    string

	// LastToken is a copy of the token returned by the latest Exchange or Refresh.
	LastToken *oidcclient.Token

	codes         map[string]grant
	accessTokens  map[string]bool
	refreshTokens map[string]bool
}

func NewFakeClient() *FakeClient {
	return &FakeClient{
		Subject:       "user-123",
		UserClaims:    map[string]any{"email": "alice@example.com"},
		codes:         make(map[string]grant),
		accessTokens:  make(map[string]bool),
		refreshTokens: make(map[string]bool),
	}
}

func (f *FakeClient) AuthorizationURL(_ context.Context, state, nonce, codeVerifier string) (string, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.FailDiscovery {
		return "", errors.ErrDiscovery
	}
	f.LastState = state
	code := "code-" + uuid.NewString()
	f.codes[code] = grant{nonce: nonce, verifier: codeVerifier}

	q := url.Values{}
	q.Set("state", state)
	q.Set("nonce", nonce)
	q.Set("code", code)
	return AuthorizeURL + "?" + q.Encode(), nil
}

func (f *FakeClient) Exchange(_ context.Context, code, codeVerifier, nonce string) (*oidcclient.Token, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	g, ok := f.codes[code]
	delete(f.codes, code)
	if f.FailExchange || !ok || g.verifier != codeVerifier || g.nonce != nonce {
		return nil, errors.ErrTokenExchange
	}
	token := f.newToken(true, "id-"+uuid.NewString())
	f.record(token)
	return token, nil
}

func (f *FakeClient) UserInfo(_ context.Context, accessToken string) (map[string]any, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.FailUserInfo || !f.accessTokens[accessToken] {
		return nil, errors.ErrUserinfo
	}
	claims := map[string]any{}
	for k, v := range f.UserClaims {
		claims[k] = v
	}
	if f.Subject != "" {
		claims["sub"] = f.Subject
	}
	return claims, nil
}

func (f *FakeClient) Refresh(_ context.Context, refreshToken string) (*oidcclient.Token, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.RefreshCalls++
	if refreshToken == "" {
		return nil, errors.ErrNoRefreshToken
	}
	if f.FailRefresh || !f.refreshTokens[refreshToken] {
		return nil, errors.ErrRefresh
	}
	token := f.newToken(f.RotateRefresh, "")
	if f.RotateRefresh {
		delete(f.refreshTokens, refreshToken)
	} else {
		token.RefreshToken = refreshToken
	}
	f.record(token)
	return token, nil
}

func (f *FakeClient) EndSessionURL(_ context.Context, idTokenHint, postLogoutRedirectURI, state string) (string, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.FailDiscovery {
		return "", errors.ErrDiscovery
	}
	if f.NoEndSession {
		return "", nil
	}
	q := url.Values{}
	q.Set("post_logout_redirect_uri", postLogoutRedirectURI)
	q.Set("client_id", "fake-client")
	q.Set("state", state)
	if idTokenHint != "" {
		q.Set("id_token_hint", idTokenHint)
	}
	return EndSessionURL + "?" + q.Encode(), nil
}

// IssueRefreshToken registers a refresh token that Refresh will accept.
func (f *FakeClient) IssueRefreshToken() string {
	f.lock.Lock()
	defer f.lock.Unlock()
	rt := "rt-" + uuid.NewString()
	f.refreshTokens[rt] = true
	return rt
}

// IssueAccessToken registers an access token that UserInfo will accept.
func (f *FakeClient) IssueAccessToken() string {
	f.lock.Lock()
	defer f.lock.Unlock()
	at := "at-" + uuid.NewString()
	f.accessTokens[at] = true
	return at
}

func (f *FakeClient) Refreshes() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.RefreshCalls
}

func (f *FakeClient) record(token *oidcclient.Token) {
	issued := *token
	f.LastToken = &issued
}

func (f *FakeClient) newToken(withRefresh bool, idToken string) *oidcclient.Token {
	token := &oidcclient.Token{
		AccessToken: "at-" + uuid.NewString(),
		IDToken:     idToken,
		ExpiresAt:   f.ExpiresAt,
	}
	f.accessTokens[token.AccessToken] = true
	if withRefresh {
		token.RefreshToken = "rt-" + uuid.NewString()
		f.refreshTokens[token.RefreshToken] = true
	}
	return token
}
