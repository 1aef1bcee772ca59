// Package logger builds the JSON slog logger shared by every binary.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/viban-reconciler/internal/config"
)

// Account identifiers are masked in log output; the audit log keeps them in full
var maskedKeys = map[string]bool{
	"iban":             true,
	"beneficiary_iban": true,
	"sender_iban":      true,
}

var redactedKeys = map[string]bool{
	"secret":        true,
	"api_key":       true,
	"authorization": true,
}

// NewLogger creates a JSON slog.Logger at the configured level, tagged with the
// application name and environment.
func NewLogger(cfg *config.Config) *slog.Logger {
	return newLogger(os.Stdout, cfg)
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level := parseLevel(cfg.Logging.Level)

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		AddSource:   level == slog.LevelDebug,
		ReplaceAttr: sanitize,
	})
	logger := slog.New(handler)
	if cfg.Application.Name != "" {
		logger = logger.With("app", cfg.Application.Name, "env", cfg.Application.Env)
	}

	logger.Info("logger initialized", "level", level)

	return logger
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func sanitize(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	switch {
	case redactedKeys[key]:
		return slog.String(a.Key, "[REDACTED]")
	case maskedKeys[key] && a.Value.Kind() == slog.KindString:
		return slog.String(a.Key, MaskIBAN(a.Value.String()))
	}
	return a
}

// MaskIBAN keeps the country code and the last four characters
func MaskIBAN(iban string) string {
	if len(iban) <= 6 {
		return iban
	}
	return iban[:2] + strings.Repeat("*", len(iban)-6) + iban[len(iban)-4:]
}
