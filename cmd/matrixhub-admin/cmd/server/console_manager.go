package server

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agent-matrix/matrixhub-admin/pkg/config"
	"github.com/agent-matrix/matrixhub-admin/pkg/console"
	"github.com/agent-matrix/matrixhub-admin/pkg/ratelimit"
	"github.com/agent-matrix/matrixhub-admin/pkg/rules"
	"github.com/agent-matrix/matrixhub-admin/pkg/shared/filewatcher"
	"github.com/agent-matrix/matrixhub-admin/pkg/shared/kvs"
	"github.com/agent-matrix/matrixhub-admin/pkg/shared/logging"
)

// ConsoleManager owns the console guard and swaps it when the config file
// changes. Upstreams, listener, store, logging and the login limiter are
// fixed for the life of the process; edits to them are reported as
// requiring a restart.
type ConsoleManager struct {
	console    atomic.Pointer[console.Console]
	configPath string
	store      kvs.Store
	routes     console.RouteMethods
	limiter    *ratelimit.Limiter
	interval   time.Duration
	logger     logging.Logger

	mu      sync.Mutex
	current *config.Config
}

// NewConsoleManager builds the initial console from cfg. configPath may be
// empty when running on defaults. routes, usually the proxy, lets wrong-method
// requests reach their 405 ahead of the session check; it may be nil.
func NewConsoleManager(configPath string, cfg *config.Config, store kvs.Store, routes console.RouteMethods, logger logging.Logger) (*ConsoleManager, error) {
	if logger == nil {
		logger = logging.NewSimpleLogger("console-manager", logging.LevelInfo, true)
	}

	interval, err := cfg.Auth.LoginRateLimit.GetInterval()
	if err != nil {
		return nil, fmt.Errorf("%w: auth.login_rate_limit.interval", config.ErrInvalidDuration)
	}

	m := &ConsoleManager{
		configPath: configPath,
		store:      store,
		routes:     routes,
		interval:   interval,
		logger:     logger,
		current:    cfg,
	}
	if cfg.Auth.LoginRateLimit.Requests > 0 {
		m.limiter = ratelimit.NewLimiter(cfg.Auth.LoginRateLimit.Requests, interval)
	}

	c, err := m.buildConsole(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build initial console: %w", err)
	}
	m.console.Store(c)

	logger.Info("Console manager initialized",
		"config_path", configPath,
		"auth_enabled", cfg.Auth.IsEnabled(),
		"rules", len(cfg.AccessControl.Rules),
		"active_sessions", m.activeSessions(c))
	return m, nil
}

// buildConsole builds a console from cfg over the shared store and limiter.
func (m *ConsoleManager) buildConsole(cfg *config.Config) (*console.Console, error) {
	evaluator, err := rules.NewEvaluator(&cfg.AccessControl)
	if err != nil {
		return nil, fmt.Errorf("invalid access rules: %w", err)
	}
	ttl, err := cfg.Auth.Cookie.GetExpireDuration()
	if err != nil {
		return nil, fmt.Errorf("%w: auth.cookie.expire", config.ErrInvalidDuration)
	}

	return console.New(console.Options{
		Enabled:     cfg.Auth.IsEnabled(),
		Credentials: console.NewCredentials(cfg.Auth.Username, cfg.Auth.Password, cfg.Auth.PasswordHash, cfg.Auth.Email),
		Sessions:    console.NewSessionStore(m.store, ttl),
		Rules:       evaluator,
		Limiter:     m.limiter,
		Routes:      m.routes,
		Cookie: console.CookieOptions{
			Name:     cfg.Auth.Cookie.Name,
			Secure:   cfg.Auth.Cookie.Secure,
			SameSite: console.ParseSameSite(cfg.Auth.Cookie.SameSite),
		},
	}, m.logger)
}

// Console returns the active console
func (m *ConsoleManager) Console() *console.Console {
	return m.console.Load()
}

// Wrap implements Guard. Each request uses the console active when it arrives.
func (m *ConsoleManager) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.console.Load().Wrap(next).ServeHTTP(w, r)
	})
}

// RunLimiterCleanup drops idle login buckets until ctx is done.
func (m *ConsoleManager) RunLimiterCleanup(ctx context.Context) {
	if m.limiter == nil {
		return
	}
	// An idle bucket is full again after one interval.
	m.limiter.RunCleanup(ctx, m.interval, m.interval)
}

// OnFileChange implements filewatcher.ChangeListener
func (m *ConsoleManager) OnFileChange(event filewatcher.ChangeEvent) {
	if event.Error != nil {
		m.logger.Error("File change event error", "error", event.Error)
		return
	}

	m.logger.Info("Config content change detected, starting reload", "path", event.Path, "component", "console")
	m.reload(event.Path)
}

// reload re-reads the config file and swaps the console. A file that fails
// to load or validate leaves the current console in place.
func (m *ConsoleManager) reload(configPath string) {
	cfg, err := config.NewFileLoader(configPath).Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		m.logger.Error("Failed to reload console", "error", err, "path", configPath)
		m.logger.Error("Keeping current console configuration")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Listener flags were already merged into current; compare file values only.
	cfg.Server.Host = m.current.Server.Host
	cfg.Server.Port = m.current.Server.Port
	for _, section := range restartOnlyChanges(m.current, cfg) {
		m.logger.Warn("Configuration change requires a restart, ignoring", "section", section)
	}

	c, err := m.buildConsole(cfg)
	if err != nil {
		m.logger.Error("Failed to reload console", "error", err, "path", configPath)
		m.logger.Error("Keeping current console configuration")
		return
	}

	m.console.Store(c)
	m.current = cfg
	m.logger.Info("Configuration reloaded successfully",
		"component", "console",
		"auth_enabled", cfg.Auth.IsEnabled(),
		"rules", len(cfg.AccessControl.Rules),
		"active_sessions", m.activeSessions(c))
}

// activeSessions counts the sessions c will honour. Sessions live in the
// shared store, so they carry over a reload. -1 means the store failed.
func (m *ConsoleManager) activeSessions(c *console.Console) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := c.ActiveSessions(ctx)
	if err != nil {
		m.logger.Warn("Failed to count active sessions", "error", err)
		return -1
	}
	return n
}

// restartOnlyChanges names the sections of next that differ from prev and
// cannot be applied while running.
func restartOnlyChanges(prev, next *config.Config) []string {
	var changed []string
	if !reflect.DeepEqual(prev.Server, next.Server) {
		changed = append(changed, "server")
	}
	if !reflect.DeepEqual(prev.Hub, next.Hub) {
		changed = append(changed, "hub")
	}
	if !reflect.DeepEqual(prev.Gateway, next.Gateway) {
		changed = append(changed, "gateway")
	}
	if !reflect.DeepEqual(prev.KVS, next.KVS) {
		changed = append(changed, "kvs")
	}
	if !reflect.DeepEqual(prev.Logging, next.Logging) {
		changed = append(changed, "logging")
	}
	if !reflect.DeepEqual(prev.Auth.LoginRateLimit, next.Auth.LoginRateLimit) {
		changed = append(changed, "auth.login_rate_limit")
	}
	return changed
}
