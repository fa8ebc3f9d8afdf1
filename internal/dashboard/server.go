// Package dashboard is the controller-side HTTP surface: fleet status,
// start/stop, and live log streaming for a driving layer or operator UI.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/YpS-YpS/katana/internal/controller"
	"github.com/YpS-YpS/katana/internal/logstream"
	"github.com/gin-gonic/gin"
)

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	Manager *controller.Manager
	Logs    *logstream.Router
	// StartJob starts a job on the named SUT in the given mode; shared with
	// the cron scheduler.
	StartJob func(sut, mode string) error
	Port     int
	Out      io.Writer
}

// Start launches the dashboard HTTP server. It blocks until ctx is
// cancelled, then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Manager == nil {
		return fmt.Errorf("dashboard: manager is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8090
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	registerRoutes(router, opts)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Dashboard API at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
