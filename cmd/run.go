package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"agentdk/internal/agent"
	"agentdk/internal/config"
	"agentdk/internal/session"
	"agentdk/pkg/logging"

	"github.com/spf13/cobra"
)

var (
	runVerbose bool
	runNoColor bool
)

// runCmd starts an interactive agent session.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start an interactive agent session",
	Long: `Starts an interactive session against the configured MCP tool servers.

Each configured server is launched once, on startup, and its connection is
reused for every tool call in the session. Leaving the session via the
'exit' command, Ctrl+C, Ctrl+D, or a termination signal triggers exactly
one shutdown sequence that closes every connection before the process exits.

Configure tool servers in ~/.config/agentdk/config.yaml or
./.agentdk/config.yaml:

  servers:
    - name: filesystem
      command: npx
      args: ["-y", "@modelcontextprotocol/server-filesystem", "/tmp"]`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runVerbose, "verbose", false, "Show request and response payloads")
	runCmd.Flags().BoolVar(&runNoColor, "no-color", false, "Disable colored output")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Servers) == 0 {
		return fmt.Errorf("no tool servers configured; add a servers section to your config file")
	}

	logging.Init(logging.ParseLevel(cfg.Agent.LogLevel), os.Stderr)

	registry := session.NewConnectionRegistry()
	coordinator := session.NewCoordinator(registry, cfg.Agent.ShutdownTimeout)
	manager := session.NewManager(cfg.Servers, session.DialStdio, registry, coordinator, cfg.Agent.CloseTimeout)
	logger := agent.NewLogger(runVerbose, !runNoColor)
	ag := agent.New(cfg.Agent.Name, manager, logger, cfg.Agent.ToolRetries)

	ctx, cleanup := watchSignals(cmd.Context(), coordinator)
	defer cleanup()

	if err := ag.EnsureReady(ctx); err != nil {
		return fmt.Errorf("failed to start tool sessions: %w", err)
	}

	serverNames := make([]string, 0, len(cfg.Servers))
	for _, spec := range cfg.Servers {
		serverNames = append(serverNames, spec.Name)
	}

	repl := agent.NewREPL(ag, coordinator, logger, serverNames)

	replDone := make(chan error, 1)
	go func() { replDone <- repl.Run(ctx) }()

	var replErr error
	select {
	case replErr = <-replDone:
		// The REPL returned: exit command, end of input, or an error.
	case <-coordinator.StopRequested():
		// Stop arrived from the signal path while the REPL was blocked.
	}

	// Second phase of the shutdown handoff: the teardown runs here, on the
	// workload goroutine, and the process does not exit until it finishes
	// or the coordinator's budget runs out.
	coordinator.Trigger(context.Background())

	return replErr
}

// watchSignals wires the first phase of the shutdown handoff: termination
// signals only record a stop request with the coordinator, and the returned
// context is cancelled once any stop has been requested so in-flight work
// unwinds. The actual teardown is never run from the signal path.
func watchSignals(parent context.Context, coordinator *session.Coordinator) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for sig := range sigChan {
			coordinator.RequestStop(fmt.Sprintf("received signal %s", sig))
		}
	}()

	go func() {
		select {
		case <-coordinator.StopRequested():
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		close(sigChan)
		cancel()
	}
}

// buildSessionStack assembles the session layer for the one-shot commands.
func buildSessionStack(cfg config.Config) (*session.Coordinator, *session.Manager) {
	registry := session.NewConnectionRegistry()
	coordinator := session.NewCoordinator(registry, cfg.Agent.ShutdownTimeout)
	manager := session.NewManager(cfg.Servers, session.DialStdio, registry, coordinator, cfg.Agent.CloseTimeout)
	return coordinator, manager
}
