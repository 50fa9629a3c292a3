package hooks

import "context"

// Hook represents a handler that can be executed when an event occurs.
type Hook interface {
	Execute(ctx context.Context, event Event) error
	Type() string
	ID() string
}

// Config configures a Manager.
type Config struct {
	// Timeout bounds how long Manager.Close waits for in-flight hook
	// executions (default: 30s). Each hook carries its own execution timeout.
	Timeout string `json:"timeout"`
	// Concurrency caps simultaneous hook executions (default: 10).
	Concurrency int `json:"concurrency"`
	// StdioFormat enables structured stdio output: "json", "env", or "".
	StdioFormat string `json:"stdio_format"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{Timeout: "30s", Concurrency: 10}
}
