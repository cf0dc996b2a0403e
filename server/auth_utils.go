package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-oidc-session/oidcclient"
	"github.com/rs/zerolog/log"
)

// tokenLength is the number of random bytes behind csrf tokens, state and nonce values.
const tokenLength = 32

// generateRandomString creates a random base64url string
func generateRandomString() (string, error) {
	return oidcclient.RandomString(tokenLength)
}

// secureCompare compares two secrets in constant time. An empty expected
// value never matches.
func secureCompare(expected, given string) bool {
	if expected == "" || given == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(given)) == 1
}

// localRedirectPath accepts only same-origin paths so a form value cannot
// turn the post-login redirect into an open redirect.
func localRedirectPath(target, fallback string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return target
}

// signInURL builds /auth/signin?callbackUrl=<target>. Slashes are left
// unescaped; they are legal in a query component.
func signInURL(target string) string {
	return RouteAuthSignIn + "?" + paramCallbackURL + "=" + strings.ReplaceAll(url.QueryEscape(target), "%2F", "/")
}

func withQuery(path, key, value string) string {
	return path + "?" + url.Values{key: []string{value}}.Encode()
}

// absoluteURL resolves a configured path against the request's origin.
func absoluteURL(r *http.Request, target string) string {
	u, err := url.Parse(target)
	if err != nil || u.IsAbs() {
		return target
	}
	base := &url.URL{Scheme: getScheme(r), Host: r.Host}
	return base.ResolveReference(u).String()
}

// redirect helper for htmx-aware redirects
func redirect(w http.ResponseWriter, r *http.Request, path string) {
	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent) // 204 - no content, just redirect instruction
		return
	}
	http.Redirect(w, r, path, http.StatusFound)
}

// isHTMXRequest checks if the request was initiated by HTMX
func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Ctx(r.Context()).Err(err).Msg("Failed to encode JSON response")
	}
}

func writeJSONError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, map[string]string{"error": message})
}
