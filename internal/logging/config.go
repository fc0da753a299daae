package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/plotfit/plotfit/internal/config"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewFromConfig creates a logger from configuration
func NewFromConfig(cfg config.LoggingConfig) (*Logger, error) {
	// Parse level
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	// Configure output writer
	var output io.Writer
	switch cfg.OutputPath {
	case "stdout", "":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		// File output - ensure parent directory exists
		logDir := filepath.Dir(cfg.OutputPath)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}
		output = newRotatingFile(cfg)
	}

	// Configure format
	if cfg.Format == "console" || cfg.Format == "pretty" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: getTimeFormat(cfg.TimeFormat),
			NoColor:    cfg.OutputPath != "stdout" && cfg.OutputPath != "stderr" && cfg.OutputPath != "",
		}
	}

	// The level is process-wide so SetLevel can adjust it after a config reload
	zerolog.SetGlobalLevel(level)
	zl := zerolog.New(output).
		Level(zerolog.TraceLevel).
		With().
		Timestamp().
		Logger()

	return &Logger{zl: zl}, nil
}

// newRotatingFile returns a size-rotated log file writer
func newRotatingFile(cfg config.LoggingConfig) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   cfg.OutputPath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
}

// SetLevel changes the minimum level for every logger in the process.
// Unknown levels are rejected and leave the current level untouched.
func SetLevel(level string) error {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(parsed)
	return nil
}

// getTimeFormat converts string to time format
func getTimeFormat(format string) string {
	switch format {
	case "RFC3339", "":
		return time.RFC3339
	case "RFC3339Nano":
		return time.RFC3339Nano
	case "Unix":
		return time.UnixDate
	case "Kitchen":
		return time.Kitchen
	default:
		return format
	}
}
