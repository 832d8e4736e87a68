// Package console is the session layer in front of the proxy routes:
// credentials login, cookie sessions and path access rules.
package console

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/agent-matrix/matrixhub-admin/pkg/hubproxy"
	"github.com/agent-matrix/matrixhub-admin/pkg/ratelimit"
	"github.com/agent-matrix/matrixhub-admin/pkg/rules"
	"github.com/agent-matrix/matrixhub-admin/pkg/shared/logging"
)

// Error kinds returned by the console endpoints and guard
const (
	KindInvalidCredentials = "invalid_credentials"
	KindUnauthorized       = "unauthorized"
	KindForbidden          = "forbidden"
	KindRateLimited        = "rate_limited"
	KindBadRequest         = "bad_request"
	KindSessionError       = "session_error"
)

// Console routes
const (
	LoginPath   = "/api/auth/login"
	LogoutPath  = "/api/auth/logout"
	SessionPath = "/api/auth/session"
)

const maxLoginBodyBytes = 64 * 1024

// CookieOptions configures the session cookie
type CookieOptions struct {
	Name     string
	Secure   bool
	SameSite http.SameSite
}

// Options configures a Console
type Options struct {
	// Enabled false turns the guard into a pass-through.
	Enabled     bool
	Credentials *Credentials
	Sessions    *SessionStore
	Rules       *rules.Evaluator
	// Limiter throttles login attempts per client IP. Nil disables throttling.
	Limiter *ratelimit.Limiter
	Cookie  CookieOptions
	// Routes lets a wrong method on a known route reach next, which answers
	// 405, ahead of the session check. Deny rules still win. Nil skips the lookup.
	Routes RouteMethods
}

// RouteMethods reports the methods a downstream route accepts.
type RouteMethods interface {
	Allows(r *http.Request) (allowed []string, known bool)
}

// Console serves /api/auth/* and guards everything else.
type Console struct {
	enabled     bool
	credentials *Credentials
	sessions    *SessionStore
	rules       *rules.Evaluator
	limiter     *ratelimit.Limiter
	cookie      CookieOptions
	routes      RouteMethods
	logger      logging.Logger
}

// New creates a Console
func New(opts Options, logger logging.Logger) (*Console, error) {
	if opts.Enabled {
		if opts.Credentials == nil {
			return nil, errors.New("console: credentials are required when auth is enabled")
		}
		if opts.Sessions == nil {
			return nil, errors.New("console: session store is required when auth is enabled")
		}
	}
	if opts.Rules == nil {
		ev, err := rules.NewEvaluator(nil)
		if err != nil {
			return nil, err
		}
		opts.Rules = ev
	}
	if opts.Cookie.Name == "" {
		opts.Cookie.Name = "_matrixhub_admin"
	}
	if opts.Cookie.SameSite == 0 {
		opts.Cookie.SameSite = http.SameSiteLaxMode
	}

	return &Console{
		enabled:     opts.Enabled,
		credentials: opts.Credentials,
		sessions:    opts.Sessions,
		rules:       opts.Rules,
		limiter:     opts.Limiter,
		cookie:      opts.Cookie,
		routes:      opts.Routes,
		logger:      logger.WithModule("console"),
	}, nil
}

// Wrap returns a handler that serves the auth endpoints and applies the
// access rules before calling next.
func (c *Console) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case LoginPath:
			c.handleLogin(w, r)
			return
		case LogoutPath:
			c.handleLogout(w, r)
			return
		case SessionPath:
			c.handleSession(w, r)
			return
		}

		if !c.enabled {
			next.ServeHTTP(w, r)
			return
		}

		switch c.rules.Evaluate(r.URL.Path) {
		case rules.ActionAllow:
			next.ServeHTTP(w, r)
		case rules.ActionDeny:
			c.logger.Debug("Denied by access rule", "path", r.URL.Path)
			hubproxy.WriteError(w, http.StatusForbidden, KindForbidden, "access to this path is denied")
		default:
			if c.wrongMethod(r) {
				next.ServeHTTP(w, r)
				return
			}
			if _, err := c.currentSession(r); err != nil {
				hubproxy.WriteError(w, http.StatusUnauthorized, KindUnauthorized, "login required")
				return
			}
			next.ServeHTTP(w, r)
		}
	})
}

// wrongMethod reports whether r targets a known route with a method it does
// not accept. Such a request carries nothing to protect.
func (c *Console) wrongMethod(r *http.Request) bool {
	if c.routes == nil {
		return false
	}
	allowed, known := c.routes.Allows(r)
	return known && !slices.Contains(allowed, r.Method)
}

func (c *Console) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		hubproxy.WriteMethodNotAllowed(w, []string{http.MethodPost})
		return
	}
	if !c.enabled {
		hubproxy.WriteJSON(w, http.StatusOK, sessionResponse{User: c.anonymousUser()})
		return
	}

	ip := clientIP(r)
	if c.limiter != nil && !c.limiter.Allow(ip) {
		retry := c.limiter.RetryAfter(ip)
		w.Header().Set("Retry-After", strconv.Itoa(int((retry+time.Second-1)/time.Second)))
		c.logger.Warn("Login rate limited", "client", ip)
		hubproxy.WriteError(w, http.StatusTooManyRequests, KindRateLimited, "too many login attempts, try again later")
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLoginBodyBytes)).Decode(&req); err != nil {
		hubproxy.WriteError(w, http.StatusBadRequest, KindBadRequest, "invalid login request")
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		hubproxy.WriteError(w, http.StatusBadRequest, KindBadRequest, "username and password are required")
		return
	}

	if !c.credentials.Verify(req.Username, req.Password) {
		c.logger.Warn("Invalid login attempt", "client", ip, "username", req.Username)
		hubproxy.WriteError(w, http.StatusUnauthorized, KindInvalidCredentials, "invalid username or password")
		return
	}

	sess, err := c.sessions.Create(r.Context(), c.credentials.User())
	if err != nil {
		c.logger.Error("Failed to create session", "error", err)
		hubproxy.WriteError(w, http.StatusInternalServerError, KindSessionError, "failed to create session")
		return
	}
	if c.limiter != nil {
		c.limiter.Reset(ip)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     c.cookie.Name,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(c.sessions.TTL().Seconds()),
		Secure:   c.cookie.Secure,
		HttpOnly: true,
		SameSite: c.cookie.SameSite,
	})

	c.logger.Info("Login successful", "username", sess.User.Username, "client", ip)
	hubproxy.WriteJSON(w, http.StatusOK, sessionResponse{User: sess.User, ExpiresAt: &sess.ExpiresAt})
}

func (c *Console) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		hubproxy.WriteMethodNotAllowed(w, []string{http.MethodPost})
		return
	}

	if cookie, err := r.Cookie(c.cookie.Name); err == nil && c.sessions != nil {
		if err := c.sessions.Delete(r.Context(), cookie.Value); err != nil {
			c.logger.Error("Failed to delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     c.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   c.cookie.Secure,
		HttpOnly: true,
		SameSite: c.cookie.SameSite,
	})
	hubproxy.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (c *Console) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		hubproxy.WriteMethodNotAllowed(w, []string{http.MethodGet})
		return
	}
	if !c.enabled {
		hubproxy.WriteJSON(w, http.StatusOK, sessionResponse{User: c.anonymousUser()})
		return
	}

	sess, err := c.currentSession(r)
	if err != nil {
		hubproxy.WriteError(w, http.StatusUnauthorized, KindUnauthorized, "no active session")
		return
	}
	hubproxy.WriteJSON(w, http.StatusOK, sessionResponse{User: sess.User, ExpiresAt: &sess.ExpiresAt})
}

// currentSession resolves the session cookie of r.
func (c *Console) currentSession(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(c.cookie.Name)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	sess, err := c.sessions.Get(r.Context(), cookie.Value)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			c.logger.Error("Failed to load session", "error", err)
		}
		return nil, err
	}
	return sess, nil
}

func (c *Console) anonymousUser() User {
	if c.credentials != nil {
		return c.credentials.User()
	}
	return User{Username: "anonymous"}
}

// ActiveSessions returns the number of live sessions, or 0 when auth is disabled.
func (c *Console) ActiveSessions(ctx context.Context) (int, error) {
	if c.sessions == nil {
		return 0, nil
	}
	return c.sessions.Count(ctx)
}

type sessionResponse struct {
	User      User       `json:"user"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// clientIP is the peer address of r; forwarding headers are not trusted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ParseSameSite maps a configuration value to http.SameSite
func ParseSameSite(s string) http.SameSite {
	switch strings.ToLower(s) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
