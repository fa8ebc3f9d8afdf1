package dashboard

import (
	"errors"
	"net/http"
	"time"

	"github.com/YpS-YpS/katana/internal/controller"
	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	api := router.Group("/api")

	api.GET("/suts", handleSUTList(opts.Manager))
	api.POST("/suts/:name/start", handleStart(opts))
	api.POST("/suts/:name/stop", handleStop(opts.Manager))
	api.GET("/suts/:name/logs", handleLogs(opts))
	api.GET("/events", handleEvents(opts.Manager))
}

func handleSUTList(m *controller.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"suts": m.Snapshots()})
	}
}

func handleStart(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		if opts.StartJob == nil {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "job starts not configured"})
			return
		}

		var req struct {
			Mode string `json:"mode"`
		}
		c.ShouldBindJSON(&req) // empty body means campaign mode
		if req.Mode == "" {
			req.Mode = "campaign"
		}

		name := c.Param("name")
		if err := opts.StartJob(name, req.Mode); err != nil {
			status := http.StatusConflict
			if errors.Is(err, controller.ErrEmptyJob) {
				status = http.StatusBadRequest
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "started", "sut": name, "mode": req.Mode})
	}
}

func handleStop(m *controller.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		ctl, ok := m.Get(name)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown SUT " + name})
			return
		}
		ctl.Stop()
		c.JSON(http.StatusOK, gin.H{"status": "stopping", "sut": name})
	}
}

// handleLogs streams a SUT's log feed as SSE: retained entries first, then
// live ones until the client goes away or the feed closes.
func handleLogs(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		if opts.Logs == nil {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "log streaming not configured"})
			return
		}
		feed, ok := opts.Logs.Feed(name)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active log feed for " + name})
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		for _, e := range feed.Recent() {
			writeSSE(c.Writer, "log", e)
		}
		c.Writer.Flush()

		entries, cancel := feed.Subscribe()
		defer cancel()

		ctx := c.Request.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-entries:
				if !ok {
					return
				}
				writeSSE(c.Writer, "log", e)
				c.Writer.Flush()
			}
		}
	}
}

// handleEvents is the fleet-wide SSE status stream: a snapshot every few
// seconds plus heartbeats so proxies keep the connection alive.
func handleEvents(m *controller.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
		c.Writer.Flush()

		ctx := c.Request.Context()
		ticker := time.NewTicker(3 * time.Second)
		heartbeat := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case <-ticker.C:
				writeSSE(c.Writer, "status", gin.H{"suts": m.Snapshots()})
				c.Writer.Flush()
			}
		}
	}
}
