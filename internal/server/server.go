// Package server exposes the interpreter over HTTP and websocket.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
	"golang.org/x/sync/errgroup"

	"tasknerd/internal/interpreter"
	"tasknerd/internal/logging"
	"tasknerd/internal/session"
	"tasknerd/internal/types"
)

// Interpreter is the turn handler the transport drives.
type Interpreter interface {
	Handle(ctx context.Context, req interpreter.Request) (types.Reply, error)
	Tracker() *session.Tracker
}

// Options configures a Server.
type Options struct {
	Addr            string
	Mode            string // gin mode; empty keeps gin's default
	ShutdownTimeout time.Duration
	SweepInterval   time.Duration
}

// Server is the tasknerd HTTP server.
type Server struct {
	in     Interpreter
	opts   Options
	router *gin.Engine
}

// New creates a server and registers its routes.
func New(in Interpreter, opts Options) *Server {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestID(), accessLog())

	s := &Server{in: in, opts: opts, router: router}

	router.GET("/health", s.handleHealth)
	router.POST("/tasks", s.handleCreateTask)
	router.GET("/ws", gin.WrapH(websocket.Server{Handler: s.serveWS}))

	api := router.Group("/api")
	{
		api.POST("/query", s.handleQuery)
		api.DELETE("/sessions/:id", s.handleDeleteSession)
	}

	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on opts.Addr and sweeps idle sessions until ctx is done,
// then drains in-flight requests for up to ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Server("listening on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return s.in.Tracker().RunSweeper(gctx, s.opts.SweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		logging.Server("shutting down (drain %v)", s.opts.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// requestID tags every request with an X-Request-ID.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.ServerDebug("%s %s %d %v request_id=%s", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start), c.GetString("request_id"))
	}
}
