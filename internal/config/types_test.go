package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:   "empty config is valid",
			config: Config{},
		},
		{
			name: "valid stdio servers",
			config: Config{
				Servers: []ServerSpec{
					{Name: "mysql", Command: "mcp-mysql", Transport: TransportStdio},
					{Name: "filesystem", Command: "mcp-fs"},
				},
			},
		},
		{
			name: "missing server name",
			config: Config{
				Servers: []ServerSpec{{Command: "mcp-fs"}},
			},
			wantErr: "name is required",
		},
		{
			name: "duplicate server name",
			config: Config{
				Servers: []ServerSpec{
					{Name: "mysql", Command: "a"},
					{Name: "mysql", Command: "b"},
				},
			},
			wantErr: "duplicate server name",
		},
		{
			name: "missing command",
			config: Config{
				Servers: []ServerSpec{{Name: "mysql"}},
			},
			wantErr: "command is required",
		},
		{
			name: "unsupported transport",
			config: Config{
				Servers: []ServerSpec{{Name: "mysql", Command: "mcp-mysql", Transport: "sse"}},
			},
			wantErr: "unsupported transport",
		},
		{
			name: "negative close timeout",
			config: Config{
				Agent: AgentSettings{CloseTimeout: -time.Second},
			},
			wantErr: "closeTimeout must not be negative",
		},
		{
			name: "negative shutdown timeout",
			config: Config{
				Agent: AgentSettings{ShutdownTimeout: -time.Second},
			},
			wantErr: "shutdownTimeout must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestConfigServerLookup(t *testing.T) {
	config := Config{
		Servers: []ServerSpec{{Name: "mysql", Command: "mcp-mysql"}},
	}

	spec, ok := config.Server("mysql")
	assert.True(t, ok)
	assert.Equal(t, "mcp-mysql", spec.Command)

	_, ok = config.Server("missing")
	assert.False(t, ok)
}

func TestGetDefaultConfig(t *testing.T) {
	defaults := GetDefaultConfig()
	assert.Equal(t, DefaultCloseTimeout, defaults.Agent.CloseTimeout)
	assert.Equal(t, DefaultShutdownTimeout, defaults.Agent.ShutdownTimeout)
	assert.Equal(t, DefaultToolRetries, defaults.Agent.ToolRetries)
	assert.NoError(t, defaults.Validate())
}
