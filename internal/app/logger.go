package app

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger builds the process logger. Every record carries the service
// name and environment so server, worker and CLI output can be told apart.
func NewLogger(cfg *Config) *slog.Logger {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg *Config, out io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	env := "development"
	if cfg != nil && cfg.AppEnv != "" {
		env = cfg.AppEnv
	}
	if !cfg.IsProduction() {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler = slog.NewTextHandler(out, opts)
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(out, opts)
	}
	return slog.New(handler).With(slog.String("service", "obligations"), slog.String("env", env))
}
