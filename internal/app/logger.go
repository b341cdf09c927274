package app

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/charlesng35/backoffice/pkg/logger"
)

// ConfigureLogging installs the global logger. An empty level means info; a
// misspelled level is rejected so the server does not silently log at the
// wrong verbosity.
func ConfigureLogging(level string) error {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		level = "info"
	}
	if _, err := zapcore.ParseLevel(level); err != nil {
		return fmt.Errorf("server.log_level: %w", err)
	}
	return logger.Init(level)
}
