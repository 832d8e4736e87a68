package logging

import (
	"io"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation defaults used when FileRotationConfig leaves a field at zero.
const (
	defaultMaxSizeMB  = 100
	defaultMaxBackups = 3
	defaultMaxAgeDays = 28
)

// FileRotationConfig contains file logging rotation settings
type FileRotationConfig struct {
	Path       string // Log file path (required)
	MaxSizeMB  int    // Maximum size in megabytes before rotation (default: 100)
	MaxBackups int    // Maximum number of old log files to retain (default: 3)
	MaxAge     int    // Maximum number of days to retain old log files (default: 28)
	Compress   bool   // Whether to compress rotated log files (default: false)
}

// rotatingWriter builds the lumberjack writer for cfg with defaults filled in.
func rotatingWriter(cfg *FileRotationConfig) *lumberjack.Logger {
	w := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	if w.MaxSize == 0 {
		w.MaxSize = defaultMaxSizeMB
	}
	if w.MaxBackups == 0 {
		w.MaxBackups = defaultMaxBackups
	}
	if w.MaxAge == 0 {
		w.MaxAge = defaultMaxAgeDays
	}
	return w
}

// NewLoggerWithFile creates a logger that writes to stdout and, when fileConfig
// has a path, to a rotated log file as well. Colors are dropped whenever a file
// is involved so the file never contains ANSI escapes.
func NewLoggerWithFile(module string, level Level, useColors bool, fileConfig *FileRotationConfig) (*SimpleLogger, error) {
	if fileConfig == nil || fileConfig.Path == "" {
		return NewSimpleLogger(module, level, useColors), nil
	}

	out := io.MultiWriter(os.Stdout, rotatingWriter(fileConfig))
	return NewSimpleLoggerWithWriter(module, level, false, out), nil
}
