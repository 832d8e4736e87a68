package hubproxy

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/zeebo/blake3"
)

// Target is one upstream service: its base URL and the bearer token the
// server injects on admin routes. Targets are built once at startup.
type Target struct {
	// Name is "hub" or "gateway".
	Name string
	// TokenEnv names the variable an operator sets to provide Token.
	TokenEnv string
	// URLEnv names the variable an operator sets to provide the base URL.
	URLEnv string

	baseURL *url.URL
	token   string
}

// NewTarget parses rawURL (trailing slashes trimmed). An empty rawURL yields
// an unconfigured target whose calls fail with ErrTargetNotConfigured.
func NewTarget(name, rawURL, token, urlEnv, tokenEnv string) (*Target, error) {
	t := &Target{Name: name, URLEnv: urlEnv, TokenEnv: tokenEnv, token: token}

	rawURL = strings.TrimRight(rawURL, "/")
	if rawURL == "" {
		return t, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid %s URL: %w", name, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid %s URL %q: must be absolute http(s)", name, rawURL)
	}
	t.baseURL = u
	return t, nil
}

// Configured reports whether the target has a base URL.
func (t *Target) Configured() bool {
	return t.baseURL != nil
}

// BaseURL returns the base URL as configured, or "".
func (t *Target) BaseURL() string {
	if t.baseURL == nil {
		return ""
	}
	return t.baseURL.String()
}

// HasToken reports whether a bearer token is configured.
func (t *Target) HasToken() bool {
	return t.token != ""
}

// Fingerprint identifies the configured token in logs without revealing it.
func (t *Target) Fingerprint() string {
	if t.token == "" {
		return "(none)"
	}
	sum := blake3.Sum256([]byte(t.token))
	return hex.EncodeToString(sum[:6])
}

// endpoint resolves an already escaped upstream path against the base URL.
func (t *Target) endpoint(escapedPath, rawQuery string) (*url.URL, error) {
	if t.baseURL == nil {
		return nil, &StatusError{
			Status: http.StatusInternalServerError,
			Err:    fmt.Errorf("%w: %s URL is not set (set %s)", ErrTargetNotConfigured, t.Name, t.URLEnv),
		}
	}
	joined := strings.TrimRight(t.baseURL.EscapedPath(), "/") + "/" + strings.TrimLeft(escapedPath, "/")
	unescaped, err := url.PathUnescape(joined)
	if err != nil {
		return nil, &StatusError{
			Status: http.StatusInternalServerError,
			Err:    fmt.Errorf("invalid %s path %q: %w", t.Name, escapedPath, err),
		}
	}

	u := *t.baseURL
	u.Path = unescaped
	u.RawPath = joined
	u.RawQuery = rawQuery
	u.Fragment = ""
	return &u, nil
}

// requireToken returns the bearer token or a 500 StatusError naming the
// variable to set. Admin routes never fall back to unauthenticated calls.
func (t *Target) requireToken() (string, error) {
	if t.token == "" {
		return "", &StatusError{
			Status: http.StatusInternalServerError,
			Err: fmt.Errorf("%w: %s is not set on the server; admin endpoints are protected upstream, set %s for matrixhub-admin (operator-only deployment)",
				ErrMissingToken, t.TokenEnv, t.TokenEnv),
		}
	}
	return t.token, nil
}
