// Package logger builds the logharbour logger used across the service and
// maps the deployment environment to a log priority.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/remiges-tech/logharbour/logharbour"
)

// Deployment environments recognized by NewLoggerContext.
const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"
)

// NewLoggerContext returns a logger context whose minimum priority depends on
// env: development logs everything down to Debug2, test only warnings and
// above, and every other environment Info and above.
func NewLoggerContext(env string) *logharbour.LoggerContext {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case EnvDevelopment:
		return logharbour.NewLoggerContext(logharbour.Debug2)
	case EnvTest:
		return logharbour.NewLoggerContext(logharbour.Warn)
	default:
		return logharbour.NewLoggerContext(logharbour.Info)
	}
}

// New creates a logger for appName writing JSON records to w.
// A nil writer falls back to stdout.
func New(appName, env string, w io.Writer) *logharbour.Logger {
	if w == nil {
		w = os.Stdout
	}
	return logharbour.NewLogger(NewLoggerContext(env), appName, w)
}
