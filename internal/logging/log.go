// Package logging configures the leveled console logger used by the rcon command.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pterm/pterm"
)

// EnvLogLevel selects the log level when set, e.g. RCON_LOG_LEVEL=debug.
const EnvLogLevel = "RCON_LOG_LEVEL"

func init() {
	pterm.DefaultLogger.ShowTime = true
	pterm.DefaultLogger.TimeFormat = "02 Jan 15:04:05"
	pterm.DefaultLogger.MaxWidth = 1000
	pterm.DefaultLogger.Writer = os.Stderr
}

// Debugf logs a debug message formatted with [fmt.Sprintf].
func Debugf(format string, args ...any) {
	pterm.DefaultLogger.Debug(fmt.Sprintf(format, args...))
}

// Infof logs an info message formatted with [fmt.Sprintf].
func Infof(format string, args ...any) {
	pterm.DefaultLogger.Info(fmt.Sprintf(format, args...))
}

// Warnf logs a warning message formatted with [fmt.Sprintf].
func Warnf(format string, args ...any) {
	pterm.DefaultLogger.Warn(fmt.Sprintf(format, args...))
}

// Errorf logs an error message formatted with [fmt.Sprintf].
func Errorf(format string, args ...any) {
	pterm.DefaultLogger.Error(fmt.Sprintf(format, args...))
}

// EnableDebug configures the logger to show debug messages.
func EnableDebug() {
	pterm.DefaultLogger.Level = pterm.LogLevelDebug
}

// ConfigureFromEnv applies [EnvLogLevel] if it holds a recognized level.
func ConfigureFromEnv() {
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		pterm.DefaultLogger.Level = lvl
	}
}

// SetOutput redirects log output to w.
func SetOutput(w io.Writer) {
	pterm.DefaultLogger.Writer = w
}

// Slog returns a [slog.Logger] that writes through the pterm default logger, for packages that
// accept a standard structured logger.
func Slog() *slog.Logger {
	return slog.New(pterm.NewSlogHandler(&pterm.DefaultLogger))
}

// ParseLevel maps a level name to a pterm level. The second result is false for empty or unknown
// names.
func ParseLevel(raw string) (pterm.LogLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return pterm.LogLevelTrace, true
	case "debug":
		return pterm.LogLevelDebug, true
	case "info":
		return pterm.LogLevelInfo, true
	case "warn", "warning":
		return pterm.LogLevelWarn, true
	case "error":
		return pterm.LogLevelError, true
	case "disabled", "off", "none":
		return pterm.LogLevelDisabled, true
	default:
		return pterm.LogLevelInfo, false
	}
}
