// Package config holds the matrixhub-admin configuration: upstream targets,
// the console session layer, storage and logging.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/agent-matrix/matrixhub-admin/pkg/rules"
	sharedconfig "github.com/agent-matrix/matrixhub-admin/pkg/shared/config"
	"github.com/agent-matrix/matrixhub-admin/pkg/shared/kvs"
	"golang.org/x/crypto/bcrypt"
)

// Config is the root configuration
type Config struct {
	Server        ServerConfig  `yaml:"server" json:"server"`
	Hub           HubConfig     `yaml:"hub" json:"hub"`
	Gateway       GatewayConfig `yaml:"gateway" json:"gateway"`
	Auth          AuthConfig    `yaml:"auth" json:"auth"`
	AccessControl rules.Config  `yaml:"access_control" json:"access_control"`
	KVS           kvs.Config    `yaml:"kvs" json:"kvs"`
	Logging       LoggingConfig `yaml:"logging" json:"logging"`
}

// ServerConfig contains listener and forwarding limits
type ServerConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`

	// MaxBodyBytes caps admin request bodies. Default: 10 MiB.
	MaxBodyBytes int64 `yaml:"max_body_bytes" json:"max_body_bytes"`

	// UpstreamTimeout bounds a single outbound call ("30s"). Empty means no timeout.
	UpstreamTimeout string `yaml:"upstream_timeout" json:"upstream_timeout"`
}

// GetUpstreamTimeout parses UpstreamTimeout; empty yields zero.
func (s ServerConfig) GetUpstreamTimeout() (time.Duration, error) {
	if s.UpstreamTimeout == "" {
		return 0, nil
	}
	return time.ParseDuration(s.UpstreamTimeout)
}

// UpstreamConfig is the base URL and bearer token of one backend service.
type UpstreamConfig struct {
	URL   string `yaml:"url" json:"url"`
	Token string `yaml:"token" json:"token"`
}

// HubConfig configures the Matrix Hub upstream
type HubConfig struct {
	UpstreamConfig `yaml:",inline"`
	Paths          HubPaths `yaml:"paths" json:"paths"`
}

// HubPaths are the upstream endpoints the console routes map to.
// Deployments disagree on /catalog/remotes vs /remotes, hence configurable.
type HubPaths struct {
	Catalog     string `yaml:"catalog" json:"catalog"`
	Search      string `yaml:"search" json:"search"`
	Entities    string `yaml:"entities" json:"entities"`
	Install     string `yaml:"install" json:"install"`
	Ingest      string `yaml:"ingest" json:"ingest"`
	Remotes     string `yaml:"remotes" json:"remotes"`
	RemotesSync string `yaml:"remotes_sync" json:"remotes_sync"`
	Health      string `yaml:"health" json:"health"`
}

// Registration payload shapes accepted by the gateway
const (
	RegistrationStructured = "structured"
	RegistrationFlat       = "flat"
)

// GatewayConfig configures the MCP gateway upstream
type GatewayConfig struct {
	UpstreamConfig `yaml:",inline"`
	Paths          GatewayPaths `yaml:"paths" json:"paths"`

	// RegistrationFormat is "structured" (default) or "flat".
	RegistrationFormat string `yaml:"registration_format" json:"registration_format"`
}

// GatewayPaths are the gateway endpoints used by the console
type GatewayPaths struct {
	Register string `yaml:"register" json:"register"`
	Health   string `yaml:"health" json:"health"`
}

// AuthConfig configures console login and sessions
type AuthConfig struct {
	// Enabled defaults to true when omitted.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	Username string `yaml:"username" json:"username"`
	// Password is compared in constant time. Ignored when PasswordHash is set.
	Password string `yaml:"password" json:"password"`
	// PasswordHash is a bcrypt hash produced by "matrixhub-admin hash-password".
	PasswordHash string `yaml:"password_hash" json:"password_hash"`
	Email        string `yaml:"email" json:"email"`

	Cookie         CookieConfig    `yaml:"cookie" json:"cookie"`
	LoginRateLimit RateLimitConfig `yaml:"login_rate_limit" json:"login_rate_limit"`
}

// IsEnabled reports whether the console guard is active
func (a AuthConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// CookieConfig contains session cookie settings
type CookieConfig struct {
	Name     string `yaml:"name" json:"name"`
	Expire   string `yaml:"expire" json:"expire"`
	Secure   bool   `yaml:"secure" json:"secure"`
	SameSite string `yaml:"same_site" json:"same_site"`
}

// GetExpireDuration parses the cookie expiration duration
func (c CookieConfig) GetExpireDuration() (time.Duration, error) {
	if c.Expire == "" {
		return 24 * time.Hour, nil
	}
	return time.ParseDuration(c.Expire)
}

// RateLimitConfig is a token bucket: Requests per Interval.
type RateLimitConfig struct {
	Requests int    `yaml:"requests" json:"requests"`
	Interval string `yaml:"interval" json:"interval"`
}

// GetInterval parses Interval; empty means one minute.
func (r RateLimitConfig) GetInterval() (time.Duration, error) {
	if r.Interval == "" {
		return time.Minute, nil
	}
	return time.ParseDuration(r.Interval)
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level string             `yaml:"level" json:"level"`
	Color bool               `yaml:"color" json:"color"`
	File  *FileLoggingConfig `yaml:"file,omitempty" json:"file,omitempty"`
}

// FileLoggingConfig enables rotated file output in addition to stdout
type FileLoggingConfig struct {
	Path       string `yaml:"path" json:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// Validate checks the configuration and returns a *ValidationError listing
// every problem, or nil.
func (c *Config) Validate() error {
	verr := NewValidationError()

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		verr.Add(fmt.Errorf("%w: got %d", ErrInvalidPort, c.Server.Port))
	}
	if _, err := c.Server.GetUpstreamTimeout(); err != nil {
		verr.Add(fmt.Errorf("%w: server.upstream_timeout %q", ErrInvalidDuration, c.Server.UpstreamTimeout))
	}

	verr.Add(validateUpstreamURL("hub.url", c.Hub.URL))
	if c.Gateway.URL != "" {
		verr.Add(validateUpstreamURL("gateway.url", c.Gateway.URL))
	}

	switch c.Gateway.RegistrationFormat {
	case RegistrationStructured, RegistrationFlat:
	default:
		verr.Add(fmt.Errorf("%w: got %q", ErrInvalidRegistrationFormat, c.Gateway.RegistrationFormat))
	}

	if c.Auth.IsEnabled() {
		if c.Auth.Username == "" {
			verr.Add(ErrUsernameRequired)
		}
		if c.Auth.PasswordHash != "" {
			if _, err := bcrypt.Cost([]byte(c.Auth.PasswordHash)); err != nil {
				verr.Add(ErrInvalidPasswordHash)
			}
		}
	}
	if _, err := c.Auth.Cookie.GetExpireDuration(); err != nil {
		verr.Add(fmt.Errorf("%w: auth.cookie.expire %q", ErrInvalidDuration, c.Auth.Cookie.Expire))
	}
	switch strings.ToLower(c.Auth.Cookie.SameSite) {
	case "", "lax", "strict", "none":
	default:
		verr.Add(fmt.Errorf("%w: got %q", ErrInvalidSameSite, c.Auth.Cookie.SameSite))
	}
	if c.Auth.LoginRateLimit.Requests < 0 {
		verr.Add(ErrInvalidRateLimit)
	}
	if _, err := c.Auth.LoginRateLimit.GetInterval(); err != nil {
		verr.Add(fmt.Errorf("%w: auth.login_rate_limit.interval %q", ErrInvalidDuration, c.Auth.LoginRateLimit.Interval))
	}

	if err := c.AccessControl.Validate(); err != nil {
		verr.Add(fmt.Errorf("access_control: %w", err))
	}

	if !kvs.ValidType(c.KVS.Type) {
		verr.Add(fmt.Errorf("%w: got %q", ErrInvalidKVSType, c.KVS.Type))
	}

	return verr.ErrorOrNil()
}

func validateUpstreamURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s %q", ErrInvalidUpstreamURL, field, raw)
	}
	return nil
}

// Environment variables that override file values when non-empty
const (
	EnvHubURL           = "HUB_URL"
	EnvHubURLPublic     = "NEXT_PUBLIC_HUB_URL"
	EnvHubToken         = "HUB_API_TOKEN"
	EnvGatewayURL       = "GW_URL"
	EnvGatewayURLPublic = "NEXT_PUBLIC_GW_URL"
	EnvGatewayToken     = "GW_API_TOKEN"
	EnvAdminUser        = "ADMIN_USER"
	EnvAdminPassword    = "ADMIN_PASS"
)

// ApplyEnv overlays the process environment onto cfg.
func ApplyEnv(cfg *Config) {
	if v, ok := sharedconfig.LookupFirst(EnvHubURL, EnvHubURLPublic); ok {
		cfg.Hub.URL = v
	}
	if v, ok := sharedconfig.LookupFirst(EnvHubToken); ok {
		cfg.Hub.Token = v
	}
	if v, ok := sharedconfig.LookupFirst(EnvGatewayURL, EnvGatewayURLPublic); ok {
		cfg.Gateway.URL = v
	}
	if v, ok := sharedconfig.LookupFirst(EnvGatewayToken); ok {
		cfg.Gateway.Token = v
	}
	if v, ok := sharedconfig.LookupFirst(EnvAdminUser); ok {
		cfg.Auth.Username = v
	}
	if v, ok := sharedconfig.LookupFirst(EnvAdminPassword); ok {
		cfg.Auth.Password = v
	}
}
