// Package transport is the HTTP/JSON client for the SUT agent endpoints.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Launch outcome tags returned by the agent.
const (
	StatusSuccess   = "success"
	StatusWarning   = "warning"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// LaunchTimeout bounds a single /launch call. The agent's own phase budget
// (detect 60s + visible 120s + ready 30s + 5 foreground retries at 10s) fits
// inside with room for resolution and network slop.
const LaunchTimeout = 6 * time.Minute

// LaunchRequest asks the agent to start a game.
type LaunchRequest struct {
	Path        string `json:"path"`
	ProcessID   string `json:"process_id,omitempty"`
	StartupWait int    `json:"startup_wait,omitempty"`
}

// LaunchResult is the agent's report of a launch attempt. Immutable once
// returned.
type LaunchResult struct {
	Status              string `json:"status"`
	ResolvedPath        string `json:"resolved_path,omitempty"`
	LaunchMethod        string `json:"launch_method,omitempty"`
	SubprocessPID       int    `json:"subprocess_pid,omitempty"`
	SubprocessStatus    string `json:"subprocess_status,omitempty"`
	GameProcessPID      int32  `json:"game_process_pid,omitempty"`
	GameProcessName     string `json:"game_process_name,omitempty"`
	ForegroundConfirmed bool   `json:"foreground_confirmed"`
	WindowReady         bool   `json:"window_ready_detected"`
	Warning             string `json:"warning,omitempty"`
	Error               string `json:"error,omitempty"`
}

// ProcessStatus is the agent's answer to a check_process call.
type ProcessStatus struct {
	Status  string `json:"status"`
	Running bool   `json:"running"`
	PID     int32  `json:"pid,omitempty"`
	Name    string `json:"name,omitempty"`
}

// AgentStatus is the agent's /status report.
type AgentStatus struct {
	Status       string   `json:"status"`
	Version      string   `json:"version"`
	GameProcess  string   `json:"game_process,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// Client talks to one SUT agent.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client for the agent at addr (host:port).
func New(addr string) *Client {
	return &Client{
		baseURL: "http://" + addr,
		http:    &http.Client{},
	}
}

// Launch sends a launch request and waits for the full multi-phase result.
// The context bounds the wait; pass one derived from the worker's job
// context so a local stop abandons the call.
func (c *Client) Launch(ctx context.Context, req LaunchRequest) (*LaunchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, LaunchTimeout)
	defer cancel()

	var res LaunchResult
	if err := c.post(ctx, "/launch", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CancelLaunch arms the agent's cancellation token. Best-effort with a short
// deadline: a stop must never hang on an unreachable agent.
func (c *Client) CancelLaunch(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.post(ctx, "/cancel_launch", struct{}{}, nil)
}

// KillProcess terminates the named process on the SUT. Returns whether
// anything was actually killed.
func (c *Client) KillProcess(ctx context.Context, processName string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	body := map[string]string{"process_name": processName}
	var res struct {
		Status string `json:"status"`
		Killed bool   `json:"killed"`
	}
	if err := c.post(ctx, "/kill_process", body, &res); err != nil {
		return false, err
	}
	return res.Killed, nil
}

// CheckProcess reports whether the named process is running on the SUT.
func (c *Client) CheckProcess(ctx context.Context, processName string) (*ProcessStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	body := map[string]string{"process_name": processName}
	var res ProcessStatus
	if err := c.post(ctx, "/check_process", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Status fetches the agent's capability report.
func (c *Client) Status(ctx context.Context) (*AgentStatus, error) {
	var res AgentStatus
	if err := c.get(ctx, "/status", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Health probes agent liveness.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("transport: marshal %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("transport: build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, path, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("transport: build %s request: %w", path, err)
	}
	return c.do(req, path, out)
}

// do executes the request and decodes the JSON body. Agent handlers return
// their JSON payload on error statuses too, so the body is decoded whenever
// it parses; otherwise the HTTP status is the error.
func (c *Client) do(req *http.Request, path string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("transport: %s %s: %w", req.Method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("transport: read %s response: %w", path, err)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			if resp.StatusCode >= 400 {
				return fmt.Errorf("transport: %s returned %d", path, resp.StatusCode)
			}
			return fmt.Errorf("transport: decode %s response: %w", path, err)
		}
		return nil
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("transport: %s returned %d", path, resp.StatusCode)
	}
	return nil
}
