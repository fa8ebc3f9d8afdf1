package agent

import (
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all agent routes on the Gin router.
func registerRoutes(router *gin.Engine, engine *Engine, version string) {
	router.POST("/launch", handleLaunch(engine))
	router.POST("/cancel_launch", handleCancelLaunch(engine))
	router.POST("/kill_process", handleKillProcess(engine))
	router.POST("/check_process", handleCheckProcess(engine))
	router.GET("/status", handleStatus(engine, version))
	router.GET("/health", handleHealth())
}

// handleLaunch runs the full launch sequence synchronously; the caller
// holds the connection open for the duration. Phase failures come back as
// 200 with an error-status body, so the result always carries the detail.
func handleLaunch(engine *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req Request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, Result{Status: StatusError, Error: "invalid request: " + err.Error()})
			return
		}
		if req.Path == "" {
			c.JSON(http.StatusBadRequest, Result{Status: StatusError, Error: "path is required"})
			return
		}

		res := engine.Launch(req)
		if res.Error == ErrLaunchInProgress.Error() {
			c.JSON(http.StatusConflict, res)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func handleCancelLaunch(engine *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		engine.Cancel()
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	}
}

func handleKillProcess(engine *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			ProcessName string `json:"process_name"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.ProcessName == "" {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "process_name is required"})
			return
		}

		killed, err := engine.opts.Processes.Terminate(req.ProcessName)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "killed": killed})
	}
}

func handleCheckProcess(engine *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			ProcessName string `json:"process_name"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.ProcessName == "" {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "process_name is required"})
			return
		}

		info, err := engine.opts.Processes.Find(req.ProcessName)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
			return
		}
		if info == nil {
			c.JSON(http.StatusOK, gin.H{"status": "success", "running": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"running": true,
			"pid":     info.PID,
			"name":    info.Name,
		})
	}
}

func handleStatus(engine *Engine, version string) gin.HandlerFunc {
	capabilities := []string{"launch", "cancel_launch", "kill_process", "check_process"}
	if runtime.GOOS == "windows" {
		capabilities = append(capabilities, "window_foreground", "steam_resolve")
	}
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":       "ok",
			"version":      version,
			"game_process": engine.Tracked(),
			"capabilities": capabilities,
		})
	}
}

func handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
