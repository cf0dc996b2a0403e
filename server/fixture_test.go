package server_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jrsteele09/go-oidc-session/internal/config"
	"github.com/jrsteele09/go-oidc-session/oidcclient/clientfake"
	"github.com/jrsteele09/go-oidc-session/server"
	"github.com/jrsteele09/go-oidc-session/sessions"
	"github.com/stretchr/testify/require"
)

const testSessionSecret = "0123456789abcdef0123456789abcdef"

type testFixture struct {
	t      *testing.T
	fake   *clientfake.FakeClient
	server *httptest.Server
	client *http.Client
	codec  *sessions.Codec
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	cfg, err := config.Load(env.Options{Environment: map[string]string{
		"ZITADEL_DOMAIN":        "https://idp.example",
		"ZITADEL_CLIENT_ID":     "client-id",
		"ZITADEL_CLIENT_SECRET": "client-secret",
		"ZITADEL_CALLBACK_URL":  "http://localhost/auth/callback",
		"SESSION_SECRET":        testSessionSecret,
		"ENV":                   "test",
	}})
	require.NoError(t, err)

	sessionManager, err := sessions.NewManager(cfg)
	require.NoError(t, err)
	fake := clientfake.NewFakeClient()
	srv, err := server.New(cfg, fake, sessionManager)
	require.NoError(t, err)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	codec, err := sessions.NewCodec(testSessionSecret, time.Hour)
	require.NoError(t, err)

	return &testFixture{
		t:      t,
		fake:   fake,
		server: ts,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		codec: codec,
	}
}

func (f *testFixture) do(method, path string, form url.Values, headers ...string) *http.Response {
	f.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, f.server.URL+path, body)
	require.NoError(f.t, err)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := f.client.Do(req)
	require.NoError(f.t, err)
	f.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *testFixture) get(path string, headers ...string) *http.Response {
	return f.do(http.MethodGet, path, nil, headers...)
}

func (f *testFixture) post(path string, form url.Values) *http.Response {
	if form == nil {
		form = url.Values{}
	}
	return f.do(http.MethodPost, path, form)
}

func (f *testFixture) readBody(resp *http.Response) string {
	f.t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(f.t, err)
	return string(b)
}

func (f *testFixture) decodeJSON(resp *http.Response, v any) {
	f.t.Helper()
	require.NoError(f.t, json.NewDecoder(resp.Body).Decode(v))
}

// requireRedirect checks for a 302 and returns the Location.
func (f *testFixture) requireRedirect(resp *http.Response) string {
	f.t.Helper()
	require.Equal(f.t, http.StatusFound, resp.StatusCode)
	return resp.Header.Get("Location")
}

func (f *testFixture) csrfToken() string {
	f.t.Helper()
	resp := f.get(server.RouteAuthCSRF)
	require.Equal(f.t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	f.decodeJSON(resp, &body)
	require.NotEmpty(f.t, body["csrfToken"])
	return body["csrfToken"]
}

// session decodes the session cookie currently held by the browser.
func (f *testFixture) session() *sessions.SessionData {
	f.t.Helper()
	u, err := url.Parse(f.server.URL)
	require.NoError(f.t, err)
	for _, c := range f.client.Jar.Cookies(u) {
		if c.Name == "sessionid" {
			data, err := f.codec.Decode(c.Value)
			require.NoError(f.t, err)
			return data
		}
	}
	return &sessions.SessionData{}
}

// setSession replaces the browser's session cookie with data.
func (f *testFixture) setSession(data *sessions.SessionData) {
	f.t.Helper()
	value, err := f.codec.Encode(data)
	require.NoError(f.t, err)
	f.setRawCookie(value)
}

func (f *testFixture) setRawCookie(value string) {
	f.t.Helper()
	u, err := url.Parse(f.server.URL)
	require.NoError(f.t, err)
	f.client.Jar.SetCookies(u, []*http.Cookie{{Name: "sessionid", Value: value, Path: "/"}})
}

// startSignIn posts the sign-in form and returns the provider redirect.
func (f *testFixture) startSignIn(callbackURL string) *url.URL {
	f.t.Helper()
	form := url.Values{"csrfToken": {f.csrfToken()}}
	if callbackURL != "" {
		form.Set("callbackUrl", callbackURL)
	}
	location := f.requireRedirect(f.post("/auth/signin/zitadel", form))
	require.True(f.t, strings.HasPrefix(location, clientfake.AuthorizeURL), location)
	u, err := url.Parse(location)
	require.NoError(f.t, err)
	return u
}

// callback simulates the provider redirecting back with code and state.
func (f *testFixture) callback(code, state string) *http.Response {
	return f.get("/auth/callback?" + url.Values{"code": {code}, "state": {state}}.Encode())
}

// signIn runs the whole flow and returns where the callback redirected to.
func (f *testFixture) signIn(callbackURL string) string {
	f.t.Helper()
	authURL := f.startSignIn(callbackURL)
	q := authURL.Query()
	return f.requireRedirect(f.callback(q.Get("code"), q.Get("state")))
}

func (f *testFixture) isAuthenticated() bool {
	f.t.Helper()
	resp := f.get("/", "Accept", "application/json")
	require.Equal(f.t, http.StatusOK, resp.StatusCode)
	var status server.HomeStatus
	f.decodeJSON(resp, &status)
	return status.IsAuthenticated
}
