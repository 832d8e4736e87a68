package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sharedconfig "github.com/agent-matrix/matrixhub-admin/pkg/shared/config"
	"github.com/agent-matrix/matrixhub-admin/pkg/shared/kvs"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Default values
const (
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 3000
	DefaultMaxBodyBytes    = 10 << 20
	DefaultHubURL          = "http://127.0.0.1:8000"
	DefaultUsername        = "admin"
	DefaultPassword        = "admin123"
	DefaultEmail           = "admin@matrixhub.io"
	DefaultCookieName      = "_matrixhub_admin"
	DefaultCookieExpire    = "24h"
	DefaultLoginRequests   = 10
	DefaultLoginInterval   = "1m"
	DefaultKVSNamespace    = "sessions"
	DefaultLogLevel        = "info"
	DefaultRegisterPath    = "/gateways"
	DefaultHealthPath      = "/health"
	DefaultCatalogPath     = "/catalog"
	DefaultSearchPath      = "/catalog/search"
	DefaultEntitiesPath    = "/catalog/entities"
	DefaultInstallPath     = "/catalog/install"
	DefaultIngestPath      = "/catalog/ingest"
	DefaultRemotesPath     = "/catalog/remotes"
	DefaultRemotesSyncPath = "/remotes/sync"
)

// Loader is an interface for loading configuration
type Loader interface {
	Load() (*Config, error)
}

// FileLoader loads configuration from a YAML, JSON or JSONC file
type FileLoader struct {
	path string
}

// NewFileLoader creates a new FileLoader
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: path}
}

// Path returns the file the loader reads
func (l *FileLoader) Path() string {
	return l.path
}

// Load reads and parses the configuration file.
// The format is detected from the extension (.yaml, .yml, .json, .jsonc).
// ${VAR} and ${VAR:-default} are expanded before parsing, environment
// overrides and defaults are applied after. The result is not validated.
func (l *FileLoader) Load() (*Config, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, l.path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data, filepath.Ext(l.path))
	if err != nil {
		return nil, err
	}

	ApplyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

// Parse decodes data according to ext after environment expansion.
func Parse(data []byte, ext string) (*Config, error) {
	data = sharedconfig.ExpandEnvBytes(data)

	var cfg Config
	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config file: %w", err)
		}
	case ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSONC config file: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json, .jsonc)", ext)
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given:
// defaults plus environment overrides.
func Default() *Config {
	cfg := &Config{}
	ApplyEnv(cfg)
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for optional fields
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		cfg.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}

	if cfg.Hub.URL == "" {
		cfg.Hub.URL = DefaultHubURL
	}
	cfg.Hub.URL = strings.TrimRight(cfg.Hub.URL, "/")
	cfg.Gateway.URL = strings.TrimRight(cfg.Gateway.URL, "/")

	p := &cfg.Hub.Paths
	setDefault(&p.Catalog, DefaultCatalogPath)
	setDefault(&p.Search, DefaultSearchPath)
	setDefault(&p.Entities, DefaultEntitiesPath)
	setDefault(&p.Install, DefaultInstallPath)
	setDefault(&p.Ingest, DefaultIngestPath)
	setDefault(&p.Remotes, DefaultRemotesPath)
	setDefault(&p.RemotesSync, DefaultRemotesSyncPath)
	setDefault(&p.Health, DefaultHealthPath)
	setDefault(&cfg.Gateway.Paths.Register, DefaultRegisterPath)
	setDefault(&cfg.Gateway.Paths.Health, DefaultHealthPath)
	if cfg.Gateway.RegistrationFormat == "" {
		cfg.Gateway.RegistrationFormat = RegistrationStructured
	}

	setDefault(&cfg.Auth.Username, DefaultUsername)
	if cfg.Auth.PasswordHash == "" {
		setDefault(&cfg.Auth.Password, DefaultPassword)
	}
	setDefault(&cfg.Auth.Email, DefaultEmail)
	setDefault(&cfg.Auth.Cookie.Name, DefaultCookieName)
	setDefault(&cfg.Auth.Cookie.Expire, DefaultCookieExpire)
	setDefault(&cfg.Auth.Cookie.SameSite, "lax")
	if cfg.Auth.LoginRateLimit.Requests == 0 {
		cfg.Auth.LoginRateLimit.Requests = DefaultLoginRequests
	}
	setDefault(&cfg.Auth.LoginRateLimit.Interval, DefaultLoginInterval)

	setDefault(&cfg.KVS.Type, kvs.TypeMemory)
	setDefault(&cfg.KVS.Namespace, DefaultKVSNamespace)

	setDefault(&cfg.Logging.Level, DefaultLogLevel)
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// UsesDefaultPassword reports whether console login still accepts the
// built-in fallback password.
func (c *Config) UsesDefaultPassword() bool {
	return c.Auth.IsEnabled() && c.Auth.PasswordHash == "" && c.Auth.Password == DefaultPassword
}
