package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide logger. Deployments on the factory floor
// ship JSON lines to the log collector; everything else gets the readable
// text handler for terminals and local runs.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler).With(slog.String("service", "weighline"))
}
