package logger

import (
	"sync"
	"testing"
)

func reset() {
	instance = nil
	once = sync.Once{}
}

func TestInit(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "default config", cfg: DefaultConfig()},
		{name: "debug level", cfg: Config{Level: "debug", Format: "text"}},
		{name: "json format", cfg: Config{Level: "info", Format: "json"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reset()
			Init(tt.cfg)
			if Get() == nil {
				t.Error("Expected logger to be initialized")
			}
		})
	}
}

func TestInit_FirstCallWins(t *testing.T) {
	reset()
	Init(Config{Level: "debug", Format: "text"})
	first := Get()
	Init(Config{Level: "error", Format: "json"})
	if Get() != first {
		t.Error("second Init replaced the logger; it must be a no-op")
	}
}

func TestWithComponent(t *testing.T) {
	reset()
	Init(DefaultConfig())

	log := WithComponent("store")
	if log == nil {
		t.Fatal("Expected logger with component")
	}
	// Must not panic and must be usable without further setup.
	log.Info("component logger ready")
}

func TestGet_InitializesLazily(t *testing.T) {
	reset()
	if Get() == nil {
		t.Error("Get must initialize with defaults when Init was never called")
	}
}
