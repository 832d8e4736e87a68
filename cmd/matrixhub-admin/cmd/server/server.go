package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/agent-matrix/matrixhub-admin/pkg/config"
	"github.com/agent-matrix/matrixhub-admin/pkg/hubproxy"
	"github.com/agent-matrix/matrixhub-admin/pkg/shared/filewatcher"
	"github.com/agent-matrix/matrixhub-admin/pkg/shared/kvs"
	"github.com/agent-matrix/matrixhub-admin/pkg/shared/logging"
)

// Config represents the configuration for running the server
type Config struct {
	ConfigPath string
	Host       string // From command-line flag
	Port       int    // From command-line flag
	HostSet    bool   // Whether host was explicitly set via flag
	PortSet    bool   // Whether port was explicitly set via flag
	Logger     logging.Logger
	Version    string
}

// ResolvedConfig represents the final resolved listener address
type ResolvedConfig struct {
	Host string
	Port int
}

const shutdownTimeout = 30 * time.Second

// Run starts the server with the given configuration and blocks until a
// shutdown signal arrives or ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewSimpleLogger("main", logging.LevelInfo, true)
	}

	logger.Info("Starting matrixhub-admin", "version", cfg.Version)

	configPath := cfg.ConfigPath
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			logger.Warn("Config file not found, using default configuration", "path", configPath)
			configPath = ""
		}
	} else {
		logger.Warn("No config file specified, using default configuration")
	}

	var appCfg *config.Config
	if configPath == "" {
		logDefaultConfigWarnings(logger)
		appCfg = DefaultConfig()
	} else {
		loaded, err := config.NewFileLoader(configPath).Load()
		if err != nil {
			return formatConfigError("configuration", err)
		}
		appCfg = loaded
	}

	resolved := resolveServerConfig(cfg, appCfg.Server, logger)
	appCfg.Server.Host = resolved.Host
	appCfg.Server.Port = resolved.Port

	if err := appCfg.Validate(); err != nil {
		return formatConfigError("configuration", err)
	}

	proxy, err := NewProxy(appCfg, cfg.Version, logger)
	if err != nil {
		return formatConfigError("proxy", err)
	}
	logger.Info("Proxy initialized successfully")

	store, err := kvs.New(appCfg.KVS)
	if err != nil {
		return formatConfigError("session store", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close session store", "error", err)
		}
	}()
	logger.Info("Session store opened", "type", appCfg.KVS.Type, "namespace", appCfg.KVS.Namespace)

	consoleManager, err := NewConsoleManager(configPath, appCfg, store, proxy, logger)
	if err != nil {
		return formatConfigError("console", err)
	}
	if appCfg.UsesDefaultPassword() {
		logger.Warn("Console login accepts the default password, set auth.password_hash or ADMIN_PASS")
	}

	app := NewApp(proxy, consoleManager, logger)

	// Hot reload (100ms debounce) only when a config file is in use
	var watcher *filewatcher.Watcher
	if configPath != "" {
		watcher, err = filewatcher.NewWatcher(configPath, 100*time.Millisecond)
		if err != nil {
			logger.Error("Failed to create file watcher", "error", err)
			return fmt.Errorf("failed to create file watcher: %w", err)
		}
		defer func() { _ = watcher.Close() }()

		watcher.AddListener(consoleManager)
		logger.Info("File watcher initialized for hot reload", "config_file", configPath)
	}

	addr := fmt.Sprintf("%s:%d", resolved.Host, resolved.Port)

	sigCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	if watcher != nil {
		go func() {
			if err := watcher.Start(sigCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("File watcher error", "error", err)
			}
		}()
	}
	go consoleManager.RunLimiterCleanup(sigCtx)

	server := &http.Server{
		Addr:              addr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Starting server", "addr", addr)

	errChan := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		} else {
			errChan <- nil
		}
	}()

	select {
	case <-stop:
		logger.Info("Shutdown signal received, stopping server...")
	case <-ctx.Done():
		logger.Info("Context cancelled, stopping server...")
	case err := <-errChan:
		if err != nil {
			logger.Error("Server stopped with error", "error", err)
		}
		return err
	}

	cancel()
	app.SetDraining()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	if err := <-errChan; err != nil {
		logger.Error("Server stopped with error", "error", err)
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// resolveServerConfig resolves the final host and port
// Priority: Command-line flags > Config file > Default values
func resolveServerConfig(cfg Config, fileCfg config.ServerConfig, logger logging.Logger) ResolvedConfig {
	resolved := ResolvedConfig{
		Host: fileCfg.Host,
		Port: fileCfg.Port,
	}

	if cfg.HostSet {
		resolved.Host = cfg.Host
		logger.Info("Using host from command-line flag", "host", resolved.Host)
	} else if resolved.Host == "" {
		resolved.Host = cfg.Host
	}

	if cfg.PortSet {
		resolved.Port = cfg.Port
		logger.Info("Using port from command-line flag", "port", resolved.Port)
	} else if resolved.Port == 0 {
		resolved.Port = cfg.Port
	}

	return resolved
}

// NewProxy builds the upstream targets and the proxy routes from cfg.
func NewProxy(cfg *config.Config, version string, logger logging.Logger) (*hubproxy.Proxy, error) {
	hub, err := hubproxy.NewTarget("hub", cfg.Hub.URL, cfg.Hub.Token, config.EnvHubURL, config.EnvHubToken)
	if err != nil {
		return nil, err
	}
	gateway, err := hubproxy.NewTarget("gateway", cfg.Gateway.URL, cfg.Gateway.Token, config.EnvGatewayURL, config.EnvGatewayToken)
	if err != nil {
		return nil, err
	}
	timeout, err := cfg.Server.GetUpstreamTimeout()
	if err != nil {
		return nil, err
	}

	userAgent := "matrixhub-admin"
	if version != "" {
		userAgent += "/" + version
	}

	hp := cfg.Hub.Paths
	gp := cfg.Gateway.Paths
	proxy, err := hubproxy.New(hubproxy.Config{
		Hub:     hub,
		Gateway: gateway,
		HubPaths: hubproxy.HubPaths{
			Catalog:     hp.Catalog,
			Search:      hp.Search,
			Entities:    hp.Entities,
			Install:     hp.Install,
			Ingest:      hp.Ingest,
			Remotes:     hp.Remotes,
			RemotesSync: hp.RemotesSync,
			Health:      hp.Health,
		},
		GatewayPaths: hubproxy.GatewayPaths{
			Register: gp.Register,
			Health:   gp.Health,
		},
		RegistrationFormat: cfg.Gateway.RegistrationFormat,
		MaxBodyBytes:       cfg.Server.MaxBodyBytes,
		UpstreamTimeout:    timeout,
		UserAgent:          userAgent,
	}, logger)
	if err != nil {
		return nil, err
	}

	for _, t := range []*hubproxy.Target{hub, gateway} {
		logTarget(logger, t)
	}
	return proxy, nil
}

func logTarget(logger logging.Logger, t *hubproxy.Target) {
	if !t.Configured() {
		logger.Warn("Upstream not configured, its routes will fail", "target", t.Name, "env", t.URLEnv)
		return
	}
	logger.Info("Upstream configured", "target", t.Name, "url", t.BaseURL(), "token", t.Fingerprint())
	if !t.HasToken() {
		logger.Warn("Admin routes will fail until the token is set", "target", t.Name, "env", t.TokenEnv)
	}
}

// formatConfigError formats configuration errors with helpful messages
func formatConfigError(component string, err error) error {
	var validationErr *config.ValidationError
	if errors.As(err, &validationErr) {
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Configuration validation failed for %s with %d error(s):\n\n", component, len(validationErr.Errors)))
		for i, e := range validationErr.Errors {
			sb.WriteString(fmt.Sprintf("  %d. %v\n", i+1, e))
		}
		sb.WriteString("\nPlease fix the errors above in your configuration file.")
		return errors.New(sb.String())
	}

	if errors.Is(err, config.ErrConfigFileNotFound) {
		return fmt.Errorf("configuration file not found: %v - please create a configuration file or specify the correct path with --config flag", err)
	}

	if errors.Is(err, config.ErrInvalidUpstreamURL) ||
		errors.Is(err, config.ErrInvalidRegistrationFormat) ||
		errors.Is(err, config.ErrInvalidDuration) ||
		errors.Is(err, config.ErrInvalidKVSType) {
		return fmt.Errorf("configuration validation error in %s: %v - please check your configuration file and fix the issue above", component, err)
	}

	if strings.Contains(err.Error(), "failed to parse") {
		return fmt.Errorf("configuration file could not be parsed: %v - please check the file syntax", err)
	}

	return fmt.Errorf("failed to initialize %s: %v", component, err)
}
