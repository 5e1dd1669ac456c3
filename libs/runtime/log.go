package runtime

import (
	"log/slog"
	"os"
	"strings"

	"github.com/md-rashed-zaman/apptslots/libs/config"
)

// NewLogger returns a JSON logger tagged with the service name. LOG_LEVEL selects the
// minimum level (debug, info, warn, error); unknown values fall back to info.
func NewLogger(service string) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: ParseLevel(config.String("LOG_LEVEL", "info")),
	})
	return slog.New(h).With("service", service)
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
