// Package logger owns the process-wide slog logger the authorization
// runtime's components log through, each tagged with a component
// attribute via WithComponent.
package logger

import (
	"log/slog"
	"os"
	"sync"
)

var (
	instance *slog.Logger
	once     sync.Once
)

// Config holds logger configuration, env-overridable so an embedding
// process can retune logging without code changes.
type Config struct {
	Level     string // debug, info, warn, error
	Format    string // json, text
	AddSource bool   // include source file/line
}

// DefaultConfig reads LOG_LEVEL, LOG_FORMAT, and LOG_SOURCE with
// info/json/off defaults.
func DefaultConfig() Config {
	return Config{
		Level:     getEnv("LOG_LEVEL", "info"),
		Format:    getEnv("LOG_FORMAT", "json"),
		AddSource: getEnv("LOG_SOURCE", "false") == "true",
	}
}

// Init initializes the global logger. Only the first call takes effect;
// later calls (including the implicit one from Get) are no-ops.
func Init(cfg Config) {
	once.Do(func() {
		var level slog.Level
		switch cfg.Level {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		opts := &slog.HandlerOptions{
			Level:     level,
			AddSource: cfg.AddSource,
		}

		var handler slog.Handler
		if cfg.Format == "text" {
			handler = slog.NewTextHandler(os.Stdout, opts)
		} else {
			handler = slog.NewJSONHandler(os.Stdout, opts)
		}

		instance = slog.New(handler)
		slog.SetDefault(instance)
	})
}

// Get returns the global logger, initializing it with defaults if Init
// was never called.
func Get() *slog.Logger {
	if instance == nil {
		Init(DefaultConfig())
	}
	return instance
}

// WithComponent returns a logger tagged with the given component name,
// the per-package handle every runtime component logs through.
func WithComponent(component string) *slog.Logger {
	return Get().With("component", component)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
