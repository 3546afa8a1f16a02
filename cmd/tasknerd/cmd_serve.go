package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tasknerd/internal/config"
	"tasknerd/internal/logging"
	"tasknerd/internal/server"
)

var serveAddr string

// serveCmd runs the HTTP + websocket server
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and the /ws websocket",
	Long: `Starts the server. Routes:

  GET    /health             liveness
  POST   /api/query          {"session_id", "message", "confirm"}
  DELETE /api/sessions/:id   end a session
  POST   /tasks              {"title", "description"}
  GET    /ws                 one session per connection

The config file is watched; log level, fuzzy thresholds, fast paths and
rephrasing are applied without a restart.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := os.Stat(configPath); err == nil {
		if w, err := watchConfig(ctx, a); err != nil {
			logging.Get(logging.CategoryConfig).Warn("config hot reload disabled: %v", err)
		} else {
			defer w.Stop()
		}
	}

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	srv := server.New(a.stack, server.Options{
		Addr:            addr,
		Mode:            cfg.Server.Mode,
		ShutdownTimeout: cfg.GetShutdownTimeout(),
		SweepInterval:   cfg.GetSweepInterval(),
	})
	return srv.Run(ctx)
}

func watchConfig(ctx context.Context, a *app) (*config.Watcher, error) {
	w, err := config.NewWatcher(configPath)
	if err != nil {
		return nil, err
	}
	w.Subscribe(a.stack.Apply)
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	logging.Boot("watching %s for changes", configPath)
	return w, nil
}
