// Package logging configures the process-wide structured logger and
// redacts credential material from log attributes.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogFormat represents the output format for logs.
type LogFormat string

const (
	// FormatJSON outputs logs in JSON format.
	FormatJSON LogFormat = "json"
	// FormatText outputs logs in plain text format.
	FormatText LogFormat = "text"
)

// Config contains configuration for the logger.
type Config struct {
	// Level is the minimum log level ("debug", "info", "warn", "error")
	Level string

	// Format is the output format ("json", "text")
	Format string

	// AddSource includes file and line number in logs
	AddSource bool

	// Writer is the output writer (defaults to os.Stdout)
	Writer io.Writer
}

// Setup builds the logger from the configuration and installs it as the
// slog default.
func Setup(cfg Config) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	writer := cfg.Writer
	if writer == nil {
		writer = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   cfg.AddSource,
		ReplaceAttr: redactAttr,
	}

	var handler slog.Handler
	switch LogFormat(cfg.Format) {
	case FormatText:
		handler = slog.NewTextHandler(writer, opts)
	case FormatJSON, "":
		handler = slog.NewJSONHandler(writer, opts)
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log level %q", level)
}

// secretKeys are attribute names whose values never reach the log.
var secretKeys = map[string]bool{
	"api_key":       true,
	"authorization": true,
	"credential":    true,
	"credentials":   true,
	"password":      true,
	"secret":        true,
	"token":         true,
}

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if secretKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, "[REDACTED]")
	}
	if s, ok := a.Value.Any().(string); ok {
		if redacted, hit := RedactSecrets(s); hit {
			return slog.String(a.Key, redacted)
		}
	}
	return a
}

// RedactSecrets masks credential-shaped substrings in s, returning the
// redacted string and whether anything was masked. It catches bearer
// tokens and vendor API key prefixes that leak through error messages.
func RedactSecrets(s string) (string, bool) {
	hit := false
	for _, prefix := range []string{"Bearer ", "sk-ant-", "sk-"} {
		for {
			idx := strings.Index(s, prefix)
			if idx < 0 {
				break
			}
			end := idx + len(prefix)
			for end < len(s) && isTokenChar(s[end]) {
				end++
			}
			if end == idx+len(prefix) {
				break
			}
			s = s[:idx] + "[REDACTED]" + s[end:]
			hit = true
		}
	}
	return s, hit
}

func isTokenChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_'
}
