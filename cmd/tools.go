package cmd

import (
	"context"
	"fmt"
	"os"

	"agentdk/internal/agent"
	"agentdk/pkg/logging"

	"github.com/spf13/cobra"
)

var toolsNoColor bool

// toolsCmd lists the tools exposed by the configured servers, one-shot.
var toolsCmd = &cobra.Command{
	Use:   "tools [server]",
	Short: "List tools exposed by the configured servers",
	Long: `Launches the configured MCP tool servers, lists the tools each one
exposes, and shuts the connections down again. With a server name argument,
only that server is queried.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTools,
}

func init() {
	rootCmd.AddCommand(toolsCmd)

	toolsCmd.Flags().BoolVar(&toolsNoColor, "no-color", false, "Disable colored output")
}

func runTools(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	servers := cfg.Servers
	if len(args) == 1 {
		spec, ok := cfg.Server(args[0])
		if !ok {
			return fmt.Errorf("no tool server named %q is configured", args[0])
		}
		servers = servers[:0:0]
		servers = append(servers, spec)
	}
	if len(servers) == 0 {
		return fmt.Errorf("no tool servers configured; add a servers section to your config file")
	}
	cfg.Servers = servers

	logging.Init(logging.ParseLevel(cfg.Agent.LogLevel), os.Stderr)

	coordinator, manager := buildSessionStack(cfg)
	logger := agent.NewLogger(false, !toolsNoColor)
	ag := agent.New(cfg.Agent.Name, manager, logger, cfg.Agent.ToolRetries)

	ctx, cleanup := watchSignals(cmd.Context(), coordinator)
	defer cleanup()
	defer coordinator.Trigger(context.Background())

	if err := ag.EnsureReady(ctx); err != nil {
		return fmt.Errorf("failed to start tool sessions: %w", err)
	}

	for _, spec := range servers {
		tools, err := ag.ListTools(ctx, spec.Name)
		if err != nil {
			logger.Error("%s: %v", spec.Name, err)
			continue
		}
		logger.Success("%s (%d tools):", spec.Name, len(tools))
		for _, tool := range tools {
			logger.Info("  %s - %s", tool.Name, tool.Description)
		}
	}

	return nil
}
