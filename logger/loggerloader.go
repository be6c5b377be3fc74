package logger

import (
	"os"

	"github.com/remiges-tech/logharbour/logharbour"
)

// LoadLogger creates the process logger. Records go to stdout, with stdout
// also serving as the fallback writer.
func LoadLogger(appName, env string) *logharbour.Logger {
	fallbackWriter := logharbour.NewFallbackWriter(os.Stdout, os.Stdout)
	return logharbour.NewLogger(NewLoggerContext(env), appName, fallbackWriter)
}
