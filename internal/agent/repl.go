package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"agentdk/internal/session"

	"github.com/chzyer/readline"
	"github.com/mark3labs/mcp-go/mcp"
)

// REPL is the interactive front end. Its exit command and Ctrl+C/Ctrl+D
// handling never perform teardown themselves: they funnel a stop request
// into the Coordinator and return, and the caller drives the actual
// shutdown.
type REPL struct {
	agent       *Agent
	coordinator *session.Coordinator
	logger      *Logger
	servers     []string
	rl          *readline.Instance
}

// NewREPL creates a REPL over the given agent. servers is the list of
// configured tool server names, used for tab completion.
func NewREPL(a *Agent, coordinator *session.Coordinator, logger *Logger, servers []string) *REPL {
	return &REPL{
		agent:       a,
		coordinator: coordinator,
		logger:      logger,
		servers:     servers,
	}
}

// Run reads and executes commands until the user exits, input ends, or a
// stop is requested elsewhere.
func (r *REPL) Run(ctx context.Context) error {
	completer := r.createCompleter()
	historyFile := filepath.Join(os.TempDir(), ".agentdk_history")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            fmt.Sprintf("%s> ", r.agent.Name()),
		HistoryFile:       historyFile,
		AutoComplete:      completer,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline instance: %w", err)
	}
	defer rl.Close()
	r.rl = rl

	r.logger.Info("Interactive session started. Type 'help' for available commands, 'exit' to quit.")

	for {
		select {
		case <-r.coordinator.StopRequested():
			return nil
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			r.coordinator.RequestStop("interrupt")
			return nil
		}
		if err == io.EOF {
			r.coordinator.RequestStop("end of input")
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if done := r.execute(ctx, line); done {
			return nil
		}
	}
}

// execute runs one command line; it returns true once the REPL should stop.
func (r *REPL) execute(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "exit", "quit":
		r.coordinator.RequestStop("exit command")
		return true
	case "help":
		r.printHelp()
	case "tools":
		r.cmdTools(ctx, args)
	case "call":
		r.cmdCall(ctx, args)
	case "status":
		r.cmdStatus()
	default:
		r.logger.Error("Unknown command %q. Type 'help' for available commands.", cmd)
	}
	return false
}

func (r *REPL) printHelp() {
	r.logger.Info("Available commands:")
	r.logger.Info("  tools [server]              List tools (all servers, or one)")
	r.logger.Info("  call <server> <tool> [json] Invoke a tool with JSON arguments")
	r.logger.Info("  status                      Show connection states")
	r.logger.Info("  help                        Show this help")
	r.logger.Info("  exit                        Leave the session")
}

func (r *REPL) cmdTools(ctx context.Context, args []string) {
	servers := r.servers
	if len(args) > 0 {
		servers = args[:1]
	}
	for _, server := range servers {
		tools, err := r.agent.ListTools(ctx, server)
		if err != nil {
			r.logger.Error("%s: %v", server, err)
			continue
		}
		r.logger.Success("%s (%d tools):", server, len(tools))
		for _, tool := range tools {
			r.logger.Info("  %s - %s", tool.Name, tool.Description)
		}
	}
}

func (r *REPL) cmdCall(ctx context.Context, args []string) {
	if len(args) < 2 {
		r.logger.Error("Usage: call <server> <tool> [json-arguments]")
		return
	}
	server, tool := args[0], args[1]

	toolArgs := map[string]interface{}{}
	if len(args) > 2 {
		raw := strings.Join(args[2:], " ")
		if err := json.Unmarshal([]byte(raw), &toolArgs); err != nil {
			r.logger.Error("Invalid JSON arguments: %v", err)
			return
		}
	}

	result, err := r.agent.ExecuteTool(ctx, server, tool, toolArgs)
	if err != nil {
		r.logger.Error("Tool call failed: %v", err)
		return
	}

	for _, content := range result.Content {
		if textContent, ok := mcp.AsTextContent(content); ok {
			r.logger.Success("%s", textContent.Text)
		} else {
			r.logger.Success("%s", prettyJSON(content))
		}
	}
}

func (r *REPL) cmdStatus() {
	conns := r.agent.Sessions().Connections()
	r.logger.Info("Session %s is %s (%d connections):", r.agent.Sessions().OwnerID(), r.agent.Sessions().State(), len(conns))
	for name, conn := range conns {
		r.logger.Info("  %s: %s", name, conn.State())
	}
}

func (r *REPL) createCompleter() readline.AutoCompleter {
	serverItems := make([]readline.PrefixCompleterInterface, 0, len(r.servers))
	for _, server := range r.servers {
		serverItems = append(serverItems, readline.PcItem(server))
	}
	return readline.NewPrefixCompleter(
		readline.PcItem("tools", serverItems...),
		readline.PcItem("call", serverItems...),
		readline.PcItem("status"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
		readline.PcItem("quit"),
	)
}
