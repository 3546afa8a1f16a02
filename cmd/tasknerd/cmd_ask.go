package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"tasknerd/cmd/tasknerd/ui"
	"tasknerd/internal/interpreter"
)

var (
	askConfirm bool
	askJSON    bool
	askTimeout time.Duration
)

// askCmd runs one utterance against the local store
var askCmd = &cobra.Command{
	Use:   "ask [utterance]",
	Short: "Run a single request against the local store",
	Long: `Runs one request in a fresh session and prints the reply.

Bulk deletes and updates are held for confirmation; pass --yes to confirm
them in the same call.

Examples:
  tasknerd ask "show tasks"
  tasknerd ask --yes "delete all tasks"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVarP(&askConfirm, "yes", "y", false, "Confirm bulk operations")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the raw reply as JSON")
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 2*time.Minute, "Request timeout")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), askTimeout)
	defer cancel()

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	reply, err := a.stack.Handle(ctx, interpreter.Request{
		SessionID: "cli-" + uuid.NewString(),
		Text:      strings.Join(args, " "),
		Confirm:   askConfirm,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if askJSON {
		return printJSON(out, reply)
	}
	fmt.Fprint(out, ui.RenderReply(ui.DefaultStyles(), reply))
	return nil
}
