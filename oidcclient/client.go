// Package oidcclient talks to the OpenID provider: discovery, the authorization
// redirect, code exchange, userinfo, refresh and end-session.
package oidcclient

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/jrsteele09/go-oidc-session/internal/config"
	"github.com/jrsteele09/go-oidc-session/internal/errors"
	"golang.org/x/oauth2"
)

// Metadata is the subset of the discovery document the session layer uses.
type Metadata struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	EndSessionEndpoint    string `json:"end_session_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

// Token is the result of a code exchange or refresh.
type Token struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
	ExpiresAt    int64 // Seconds since epoch, 0 when the provider sent no expires_in
}

// RelyingParty is the set of provider operations the session layer needs.
type RelyingParty interface {
	AuthorizationURL(ctx context.Context, state, nonce, codeVerifier string) (string, error)
	Exchange(ctx context.Context, code, codeVerifier, nonce string) (*Token, error)
	UserInfo(ctx context.Context, accessToken string) (map[string]any, error)
	Refresh(ctx context.Context, refreshToken string) (*Token, error)
	EndSessionURL(ctx context.Context, idTokenHint, postLogoutRedirectURI, state string) (string, error)
}

var _ RelyingParty = (*Client)(nil)

type discovery struct {
	provider *oidc.Provider
	metadata Metadata
}

// Client is safe for concurrent use. Discovery happens on first use and is
// kept for the life of the process.
type Client struct {
	issuer       string
	clientID     string
	clientSecret string
	redirectURI  string
	scopes       []string
	httpClient   *http.Client

	discovered atomic.Pointer[discovery]
}

// New builds a client from the provider configuration. No network calls are made.
func New(cfg config.ProviderConfig) *Client {
	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = cfg.GetProviderTimeout()
	return NewWithHTTPClient(cfg, httpClient)
}

func NewWithHTTPClient(cfg config.ProviderConfig, httpClient *http.Client) *Client {
	return &Client{
		issuer:       cfg.GetDomain(),
		clientID:     cfg.GetClientID(),
		clientSecret: cfg.GetClientSecret(),
		redirectURI:  cfg.GetCallbackURL(),
		scopes:       cfg.GetScopes(),
		httpClient:   httpClient,
	}
}

func (c *Client) context(ctx context.Context) context.Context {
	return oidc.ClientContext(ctx, c.httpClient)
}

// Discover returns the provider metadata, fetching it on first use. Two
// concurrent first calls may both fetch; the last one stored wins.
func (c *Client) Discover(ctx context.Context) (*Metadata, error) {
	d, err := c.discover(ctx)
	if err != nil {
		return nil, err
	}
	m := d.metadata
	return &m, nil
}

func (c *Client) discover(ctx context.Context) (*discovery, error) {
	if d := c.discovered.Load(); d != nil {
		return d, nil
	}

	provider, err := oidc.NewProvider(c.context(ctx), c.issuer)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrDiscovery, err)
	}
	d := &discovery{provider: provider}
	if err := provider.Claims(&d.metadata); err != nil {
		return nil, fmt.Errorf("%w: decode metadata: %w", errors.ErrDiscovery, err)
	}
	c.discovered.Store(d)
	return d, nil
}

func (c *Client) oauth2Config(d *discovery) *oauth2.Config {
	endpoint := d.provider.Endpoint()
	endpoint.AuthStyle = oauth2.AuthStyleInHeader
	return &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		RedirectURL:  c.redirectURI,
		Endpoint:     endpoint,
		Scopes:       c.scopes,
	}
}

// AuthorizationURL builds the provider redirect for the code flow with a S256
// PKCE challenge derived from codeVerifier.
func (c *Client) AuthorizationURL(ctx context.Context, state, nonce, codeVerifier string) (string, error) {
	d, err := c.discover(ctx)
	if err != nil {
		return "", err
	}
	return c.oauth2Config(d).AuthCodeURL(state,
		oidc.Nonce(nonce),
		oauth2.S256ChallengeOption(codeVerifier),
	), nil
}

// Exchange redeems an authorization code and verifies the returned id_token,
// including its nonce.
func (c *Client) Exchange(ctx context.Context, code, codeVerifier, nonce string) (*Token, error) {
	d, err := c.discover(ctx)
	if err != nil {
		return nil, err
	}
	ctx = c.context(ctx)

	oauth2Token, err := c.oauth2Config(d).Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrTokenExchange, err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("%w: %w", errors.ErrTokenExchange, errors.ErrMissingIDToken)
	}
	idToken, err := d.provider.Verifier(&oidc.Config{ClientID: c.clientID}).Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: verify id_token: %w", errors.ErrTokenExchange, err)
	}
	if idToken.Nonce != nonce {
		return nil, fmt.Errorf("%w: id_token nonce: %w", errors.ErrTokenExchange, errors.ErrStateMismatch)
	}

	token := toToken(oauth2Token)
	token.IDToken = rawIDToken
	return token, nil
}

// UserInfo fetches the current claims for accessToken.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (map[string]any, error) {
	d, err := c.discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrUserinfo, err)
	}
	info, err := d.provider.UserInfo(c.context(ctx), oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrUserinfo, err)
	}
	claims := map[string]any{}
	if err := info.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: decode claims: %w", errors.ErrUserinfo, err)
	}
	return claims, nil
}

// Refresh runs the refresh_token grant. When the provider does not rotate
// the refresh token the one passed in is returned.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	if refreshToken == "" {
		return nil, errors.ErrNoRefreshToken
	}
	d, err := c.discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrRefresh, err)
	}

	oauth2Token, err := c.oauth2Config(d).TokenSource(c.context(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrRefresh, err)
	}
	token := toToken(oauth2Token)
	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}
	if rawIDToken, ok := oauth2Token.Extra("id_token").(string); ok {
		token.IDToken = rawIDToken
	}
	return token, nil
}

// EndSessionURL returns the provider logout URL, or "" when the provider does
// not advertise an end_session_endpoint.
func (c *Client) EndSessionURL(ctx context.Context, idTokenHint, postLogoutRedirectURI, state string) (string, error) {
	d, err := c.discover(ctx)
	if err != nil {
		return "", err
	}
	if d.metadata.EndSessionEndpoint == "" {
		return "", nil
	}
	u, err := url.Parse(d.metadata.EndSessionEndpoint)
	if err != nil {
		return "", fmt.Errorf("%w: end_session_endpoint: %w", errors.ErrDiscovery, err)
	}
	q := u.Query()
	q.Set("post_logout_redirect_uri", postLogoutRedirectURI)
	q.Set("client_id", c.clientID)
	q.Set("state", state)
	if idTokenHint != "" {
		q.Set("id_token_hint", idTokenHint)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func toToken(t *oauth2.Token) *Token {
	token := &Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
	}
	if !t.Expiry.IsZero() {
		token.ExpiresAt = t.Expiry.Unix()
	}
	return token
}

// RandomString returns n random bytes, base64url encoded without padding.
func RandomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate random string: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewVerifier returns a PKCE code verifier.
func NewVerifier() string {
	return oauth2.GenerateVerifier()
}
