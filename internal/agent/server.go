package agent

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// StartOpts holds configuration for the agent HTTP server.
type StartOpts struct {
	Engine  *Engine
	Port    int
	Version string
	Out     io.Writer
}

// Start runs the agent server. It blocks until ctx is cancelled, then shuts
// down gracefully. In-flight launches are cancelled on shutdown so the
// process exits promptly.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Engine == nil {
		return fmt.Errorf("agent: engine is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	registerRoutes(router, opts.Engine, opts.Version)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		opts.Engine.Cancel()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Agent listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("agent: %w", err)
	}
	return nil
}
