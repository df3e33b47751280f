package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure for agentdk.
type Config struct {
	Agent   AgentSettings `yaml:"agent"`
	Servers []ServerSpec  `yaml:"servers"`
}

// AgentSettings holds tunables for the agent runtime.
type AgentSettings struct {
	Name            string        `yaml:"name,omitempty"`            // Agent display name (default: "agentdk")
	LogLevel        string        `yaml:"logLevel,omitempty"`        // "debug", "info", "warn", "error"
	CloseTimeout    time.Duration `yaml:"closeTimeout,omitempty"`    // Per-connection close budget, e.g. "5s" (default: 5s)
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout,omitempty"` // Global teardown budget, e.g. "10s" (default: 10s)
	ToolRetries     int           `yaml:"toolRetries,omitempty"`     // Tool invocation attempts (default: 2)
}

// UnmarshalYAML decodes the settings block, accepting human-readable duration
// strings ("5s", "1m30s") for the timeout fields alongside the raw integer
// nanoseconds yaml.v3 would otherwise require.
func (s *AgentSettings) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Name            string    `yaml:"name"`
		LogLevel        string    `yaml:"logLevel"`
		CloseTimeout    yaml.Node `yaml:"closeTimeout"`
		ShutdownTimeout yaml.Node `yaml:"shutdownTimeout"`
		ToolRetries     int       `yaml:"toolRetries"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	s.Name = raw.Name
	s.LogLevel = raw.LogLevel
	s.ToolRetries = raw.ToolRetries

	var err error
	if s.CloseTimeout, err = decodeDuration(&raw.CloseTimeout, "closeTimeout"); err != nil {
		return err
	}
	if s.ShutdownTimeout, err = decodeDuration(&raw.ShutdownTimeout, "shutdownTimeout"); err != nil {
		return err
	}
	return nil
}

func decodeDuration(node *yaml.Node, field string) (time.Duration, error) {
	if node.IsZero() {
		return 0, nil
	}
	var ns int64
	if err := node.Decode(&ns); err == nil {
		return time.Duration(ns), nil
	}
	var text string
	if err := node.Decode(&text); err != nil {
		return 0, fmt.Errorf("agent.%s: expected a duration like \"5s\"", field)
	}
	d, err := time.ParseDuration(text)
	if err != nil {
		return 0, fmt.Errorf("agent.%s: %w", field, err)
	}
	return d, nil
}

// TransportType identifies how a tool server is reached.
type TransportType string

const (
	// TransportStdio launches the server as a subprocess and speaks MCP
	// over its stdin/stdout pipes.
	TransportStdio TransportType = "stdio"
)

// ServerSpec describes how to launch one MCP tool server.
type ServerSpec struct {
	Name      string            `yaml:"name"`                // Unique logical name, e.g. "mysql", "filesystem"
	Transport TransportType     `yaml:"transport,omitempty"` // Only "stdio" is supported (default)
	Command   string            `yaml:"command"`             // Executable to launch
	Args      []string          `yaml:"args,omitempty"`      // Arguments for the executable
	Env       map[string]string `yaml:"env,omitempty"`       // Extra environment variables
}

// Validate checks a fully merged configuration for problems that would only
// surface later as confusing launch failures.
func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Servers))
	for i, spec := range c.Servers {
		if spec.Name == "" {
			return fmt.Errorf("servers[%d]: name is required", i)
		}
		if _, dup := seen[spec.Name]; dup {
			return fmt.Errorf("servers[%d]: duplicate server name %q", i, spec.Name)
		}
		seen[spec.Name] = struct{}{}
		if spec.Command == "" {
			return fmt.Errorf("server %q: command is required", spec.Name)
		}
		if spec.Transport != "" && spec.Transport != TransportStdio {
			return fmt.Errorf("server %q: unsupported transport %q", spec.Name, spec.Transport)
		}
	}
	if c.Agent.CloseTimeout < 0 {
		return fmt.Errorf("agent.closeTimeout must not be negative")
	}
	if c.Agent.ShutdownTimeout < 0 {
		return fmt.Errorf("agent.shutdownTimeout must not be negative")
	}
	return nil
}

// Server returns the spec for a named server, if configured.
func (c *Config) Server(name string) (ServerSpec, bool) {
	for _, spec := range c.Servers {
		if spec.Name == name {
			return spec, true
		}
	}
	return ServerSpec{}, false
}
