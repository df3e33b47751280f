package cmd

import (
	"os"

	"agentdk/internal/config"

	"github.com/spf13/cobra"
)

// cfgFile overrides the layered config lookup when set via --config.
var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "agentdk",
	Short: "Run LLM agents with persistent MCP tool sessions",
	Long: `agentdk runs LLM agents against MCP tool servers.

Tool servers are launched as subprocesses and their connections are kept
alive across many tool calls instead of being re-established per call.
On exit, whether by the exit command, Ctrl+C, or process termination,
every connection is torn down exactly once within a bounded time budget.`,
	// SilenceUsage prevents printing the usage message on errors we handle
	// ourselves (e.g. failed tool server launches).
	SilenceUsage: true,
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "agentdk version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/agentdk/config.yaml layered with ./.agentdk/config.yaml)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}

// loadConfig resolves the effective configuration, honoring --config.
func loadConfig() (config.Config, error) {
	if cfgFile != "" {
		return config.LoadConfigFile(cfgFile)
	}
	return config.LoadConfig()
}
