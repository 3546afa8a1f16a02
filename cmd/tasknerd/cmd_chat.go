package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/net/websocket"

	"tasknerd/cmd/tasknerd/ui"
	"tasknerd/internal/interpreter"
	"tasknerd/internal/types"
)

var chatURL string

// chatCmd is a line-based conversation, local or against a server
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start a conversation (type 'exit' to leave)",
	Long: `Reads one request per line and prints each reply. The whole chat is
one session, so "the first one", "these" and follow-up answers refer to
earlier turns.

With --url the chat talks to a running server over its websocket instead
of opening the local store.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatURL, "url", "", "Websocket URL of a running server, e.g. ws://localhost:8000/ws")
}

// turnFunc sends one line and returns the reply.
type turnFunc func(ctx context.Context, text string) (types.Reply, error)

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var turn turnFunc
	if chatURL != "" {
		ws, err := dialServer(chatURL)
		if err != nil {
			return err
		}
		defer ws.Close()
		turn = func(_ context.Context, text string) (types.Reply, error) {
			if err := websocket.Message.Send(ws, text); err != nil {
				return types.Reply{}, err
			}
			var reply types.Reply
			err := websocket.JSON.Receive(ws, &reply)
			return reply, err
		}
	} else {
		a, err := openApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		session := "chat-" + uuid.NewString()
		turn = func(ctx context.Context, text string) (types.Reply, error) {
			return a.stack.Handle(ctx, interpreter.Request{SessionID: session, Text: text})
		}
	}

	return chatLoop(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), turn)
}

func dialServer(raw string) (*websocket.Conn, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid --url: %w", err)
	}
	origin := "http://" + u.Host
	if u.Scheme == "wss" {
		origin = "https://" + u.Host
	}
	ws, err := websocket.Dial(raw, "", origin)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", raw, err)
	}
	return ws, nil
}

func chatLoop(ctx context.Context, in io.Reader, out io.Writer, turn turnFunc) error {
	styles := ui.DefaultStyles()
	fmt.Fprintln(out, styles.Title.Render("tasknerd")+styles.Muted.Render("  type 'exit' to leave"))

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, styles.Prompt.Render("› "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit", "bye":
			return nil
		}

		reply, err := turn(ctx, line)
		if err != nil {
			fmt.Fprintln(out, styles.Error.Render("error: ")+err.Error())
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		fmt.Fprint(out, ui.RenderReply(styles, reply))
	}
}
