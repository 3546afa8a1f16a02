package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tasknerd/internal/config"
	"tasknerd/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "tasknerd",
	Short: "tasknerd - natural-language task manager",
	Long: `tasknerd manages tasks, projects, users and tags from plain sentences.

  tasknerd ask "create task 'Review code' with high priority"
  tasknerd chat
  tasknerd serve --addr :8000

Every request goes through the same pipeline: the language model extracts
an intent, names and dates are resolved against the store, and the plan
runs in a single transaction. Destructive bulk requests always ask for
confirmation first.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		opts := cfg.Logging.Options()
		if verbose {
			opts.Level = "debug"
		}
		logger, err = logging.Initialize(opts)
		if err != nil {
			return err
		}
		logging.BootDebug("config loaded from %s", configPath)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
