package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"agentdk/internal/agent"
	"agentdk/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"
)

var callNoColor bool

// callCmd invokes a single tool, one-shot.
var callCmd = &cobra.Command{
	Use:   "call <server> <tool> [json-arguments]",
	Short: "Invoke a single tool on a configured server",
	Long: `Launches the named MCP tool server, invokes one tool with the given
JSON arguments, prints the result, and shuts the connection down again.

Example:
  agentdk call filesystem read_file '{"path": "/tmp/notes.txt"}'`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runCall,
}

func init() {
	rootCmd.AddCommand(callCmd)

	callCmd.Flags().BoolVar(&callNoColor, "no-color", false, "Disable colored output")
}

func runCall(cmd *cobra.Command, args []string) error {
	server, tool := args[0], args[1]

	toolArgs := map[string]interface{}{}
	if len(args) == 3 {
		if err := json.Unmarshal([]byte(args[2]), &toolArgs); err != nil {
			return fmt.Errorf("invalid JSON arguments: %w", err)
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	spec, ok := cfg.Server(server)
	if !ok {
		return fmt.Errorf("no tool server named %q is configured", server)
	}
	cfg.Servers = cfg.Servers[:0:0]
	cfg.Servers = append(cfg.Servers, spec)

	logging.Init(logging.ParseLevel(cfg.Agent.LogLevel), os.Stderr)

	coordinator, manager := buildSessionStack(cfg)
	logger := agent.NewLogger(false, !callNoColor)
	ag := agent.New(cfg.Agent.Name, manager, logger, cfg.Agent.ToolRetries)

	ctx, cleanup := watchSignals(cmd.Context(), coordinator)
	defer cleanup()
	defer coordinator.Trigger(context.Background())

	if err := ag.EnsureReady(ctx); err != nil {
		return fmt.Errorf("failed to start tool sessions: %w", err)
	}

	result, err := ag.ExecuteTool(ctx, server, tool, toolArgs)
	if err != nil {
		return err
	}

	for _, content := range result.Content {
		if textContent, ok := mcp.AsTextContent(content); ok {
			fmt.Println(textContent.Text)
		} else {
			encoded, err := json.MarshalIndent(content, "", "  ")
			if err != nil {
				fmt.Printf("%+v\n", content)
				continue
			}
			fmt.Println(string(encoded))
		}
	}

	if result.IsError {
		return fmt.Errorf("tool %q reported an error", tool)
	}

	return nil
}
