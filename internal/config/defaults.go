package config

import "time"

const (
	// DefaultCloseTimeout bounds how long a single connection close may take.
	DefaultCloseTimeout = 5 * time.Second

	// DefaultShutdownTimeout bounds the whole teardown sequence at exit.
	DefaultShutdownTimeout = 10 * time.Second

	// DefaultToolRetries is how many attempts the agent facade makes for a
	// failing tool invocation.
	DefaultToolRetries = 2
)

// GetDefaultConfig returns the built-in configuration that user and project
// files are layered on top of.
func GetDefaultConfig() Config {
	return Config{
		Agent: AgentSettings{
			Name:            "agentdk",
			LogLevel:        "info",
			CloseTimeout:    DefaultCloseTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
			ToolRetries:     DefaultToolRetries,
		},
	}
}
