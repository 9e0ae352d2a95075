package slogobs

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Format selects the slog handler used by the Observer.
type Format string

const (
	// FormatText emits logfmt-style key=value lines.
	FormatText Format = "text"

	// FormatJSON emits one JSON object per record.
	FormatJSON Format = "json"
)

// LevelTrace sits below slog.LevelDebug and is used by Observer.Trace.
const LevelTrace = slog.LevelDebug - 4

const (
	envLogFormat = "FINAGENT_LOG_FORMAT"
	envLogLevel  = "FINAGENT_LOG_LEVEL"
)

// ParseFormat parses a format name. Unknown values yield FormatText.
func ParseFormat(s string) Format {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "json":
		return FormatJSON
	default:
		return FormatText
	}
}

// FormatFromEnv reads FINAGENT_LOG_FORMAT and falls back to LOG_FORMAT.
func FormatFromEnv() Format {
	if format := os.Getenv(envLogFormat); format != "" {
		return ParseFormat(format)
	}
	return ParseFormat(os.Getenv("LOG_FORMAT"))
}

// String returns the format name.
func (f Format) String() string {
	return string(f)
}

// LevelFromEnv reads FINAGENT_LOG_LEVEL and falls back to LOG_LEVEL.
// Default: INFO
func LevelFromEnv() slog.Level {
	level := os.Getenv(envLogLevel)
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if level == "" {
		return slog.LevelInfo
	}
	return ParseLogLevel(level)
}

// ParseLogLevel parses TRACE, DEBUG, INFO, WARN, WARNING or ERROR
// (case-insensitive). Unknown values yield INFO.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogLevelString returns a human-readable name for level.
func LogLevelString(level slog.Level) string {
	switch level {
	case LevelTrace:
		return "TRACE"
	case slog.LevelDebug:
		return "DEBUG"
	case slog.LevelInfo:
		return "INFO"
	case slog.LevelWarn:
		return "WARN"
	case slog.LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", level)
	}
}
