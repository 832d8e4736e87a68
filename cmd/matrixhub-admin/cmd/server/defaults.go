package server

import (
	"github.com/agent-matrix/matrixhub-admin/pkg/config"
	"github.com/agent-matrix/matrixhub-admin/pkg/shared/logging"
)

// DefaultConfig returns the configuration used when no config file is
// available: built-in defaults plus environment overrides.
func DefaultConfig() *config.Config {
	return config.Default()
}

// logDefaultConfigWarnings logs warnings about default configuration values
// These warnings are important to remind users that default values are for development only
func logDefaultConfigWarnings(logger logging.Logger) {
	logger.Warn("========================================")
	logger.Warn("WARNING: Using default configuration")
	logger.Warn("DO NOT USE IN PRODUCTION")
	logger.Warn("========================================")
	logger.Warn("Default values in use:")
	logger.Warn("  - Hub: " + config.DefaultHubURL + " unless HUB_URL is set")
	logger.Warn("  - Console login: '" + config.DefaultUsername + "' / '" + config.DefaultPassword + "' unless ADMIN_USER / ADMIN_PASS are set")
	logger.Warn("  - Sessions: in memory, lost on restart")
	logger.Warn("========================================")
}
