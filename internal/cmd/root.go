// Package cmd implements the quill command line. The CLI runs the engine
// in-process against the configured data directory; there is no server to
// talk to.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rzbill/quill/internal/config"
	"github.com/rzbill/quill/internal/runtime"
	"github.com/rzbill/quill/pkg/log"
)

// NewRoot constructs the root command with every subcommand registered.
func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "quill",
		Short:         "quill message queue CLI",
		Long:          "quill is an embeddable message queue engine. The CLI operates on queues declared in the config file, directly against the data directory.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", os.Getenv("QUILL_CONFIG"), "Path to config file (YAML or JSON)")
	root.PersistentFlags().String("data-dir", "", "Data directory override")
	root.PersistentFlags().String("log-level", "", "Log level: debug|info|warn|error")

	root.AddCommand(newSendCommand())
	root.AddCommand(newReceiveCommand())
	root.AddCommand(newAckCommand())
	root.AddCommand(newDelayCommand())
	root.AddCommand(newStatsCommand())
	root.AddCommand(newQueuesCommand())
	return root
}

// Execute runs the CLI and returns a process exit code.
func Execute() int {
	root := NewRoot()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

// openRuntime builds a runtime from the persistent flags.
func openRuntime(cmd *cobra.Command) (*runtime.Runtime, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		cfg.DataDir = dir
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	// CLI output goes to stdout; keep logs readable on stderr
	cfg.Log.Format = "text"
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = log.WarnLevel
	}
	logger := log.NewLogger(log.WithLevel(level), log.WithFormatter(&log.TextFormatter{}))
	return runtime.New(runtime.Options{Config: cfg, Logger: logger})
}

// printJSON renders command results for scripting.
func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
