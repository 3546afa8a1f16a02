package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tasknerd/cmd/tasknerd/ui"
	"tasknerd/internal/config"
)

var initForce bool

// initCmd writes a default config and creates the database
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file and create the task database",
	Long: `Writes the default configuration to --config (tasknerd.yaml unless
given) and creates the SQLite database with its default user.

An existing config file is kept unless --force is given. The API key is
never written; set OPENAI_API_KEY or GEMINI_API_KEY instead.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	styles := ui.DefaultStyles()

	_, statErr := os.Stat(configPath)
	switch {
	case statErr == nil && !initForce:
		fmt.Fprintln(out, styles.Muted.Render("keeping existing "+configPath))
	default:
		def := config.DefaultConfig()
		// Keep the paths the user may have overridden through the environment.
		def.Store.Path = cfg.Store.Path
		def.Server.Addr = cfg.Server.Addr
		if err := def.Save(configPath); err != nil {
			return err
		}
		fmt.Fprintln(out, styles.Success.Render("✓ ")+"wrote "+configPath)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	fmt.Fprintln(out, styles.Success.Render("✓ ")+"database ready at "+st.Path())
	return nil
}
