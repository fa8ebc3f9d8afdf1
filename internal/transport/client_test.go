package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// newTestClient points a Client at an httptest server.
func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(strings.TrimPrefix(srv.URL, "http://"))
}

func TestLaunch_DecodesResult(t *testing.T) {
	var gotReq LaunchRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/launch" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(LaunchResult{
			Status:              StatusSuccess,
			GameProcessPID:      4242,
			GameProcessName:     "RDR2.exe",
			ForegroundConfirmed: true,
			WindowReady:         true,
		})
	}))

	res, err := c.Launch(context.Background(), LaunchRequest{Path: "1174180", ProcessID: "RDR2.exe"})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if gotReq.Path != "1174180" || gotReq.ProcessID != "RDR2.exe" {
		t.Errorf("agent saw %+v", gotReq)
	}
	if res.Status != StatusSuccess || res.GameProcessPID != 4242 || !res.ForegroundConfirmed {
		t.Errorf("result = %+v", res)
	}
}

func TestLaunch_ErrorBodyStillDecoded(t *testing.T) {
	// Agent handlers return their JSON payload alongside error statuses.
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(LaunchResult{Status: StatusError, Error: "launch already in progress"})
	}))

	res, err := c.Launch(context.Background(), LaunchRequest{Path: "game.exe"})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if res.Status != StatusError || res.Error != "launch already in progress" {
		t.Errorf("result = %+v", res)
	}
}

func TestLaunch_ConnectionRefused(t *testing.T) {
	c := New("127.0.0.1:1") // nothing listens here
	if _, err := c.Launch(context.Background(), LaunchRequest{Path: "game.exe"}); err == nil {
		t.Fatal("expected a connection error")
	}
}

func TestKillProcess(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["process_name"] != "RDR2.exe" {
			t.Errorf("process_name = %q", body["process_name"])
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "success", "killed": true})
	}))

	killed, err := c.KillProcess(context.Background(), "RDR2.exe")
	if err != nil {
		t.Fatalf("KillProcess: %v", err)
	}
	if !killed {
		t.Error("killed = false, want true")
	}
}

func TestCheckProcess(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ProcessStatus{Status: "success", Running: true, PID: 77, Name: "RDR2.exe"})
	}))

	st, err := c.CheckProcess(context.Background(), "rdr2")
	if err != nil {
		t.Fatalf("CheckProcess: %v", err)
	}
	if !st.Running || st.PID != 77 {
		t.Errorf("status = %+v", st)
	}
}

func TestStatus(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(AgentStatus{
			Status:       "online",
			Version:      "1.2.0",
			Capabilities: []string{"process_detection", "window_foreground"},
		})
	}))

	st, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Version != "1.2.0" || len(st.Capabilities) != 2 {
		t.Errorf("status = %+v", st)
	}
}

func TestHealth(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}))
	if err := c.Health(context.Background()); err != nil {
		t.Errorf("Health: %v", err)
	}
}

func TestHealth_DownReportsStatusCode(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
	}))
	err := c.Health(context.Background())
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("err = %v, want a 503 error", err)
	}
}

func TestCancelLaunch_BestEffort(t *testing.T) {
	var called bool
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if r.URL.Path != "/cancel_launch" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "success"})
	}))

	if err := c.CancelLaunch(context.Background()); err != nil {
		t.Errorf("CancelLaunch: %v", err)
	}
	if !called {
		t.Error("agent never saw the cancel")
	}
}

func TestDo_GarbageOn500(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("<html>nginx error</html>"))
	}))

	_, err := c.Status(context.Background())
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Errorf("err = %v, want the HTTP status surfaced", err)
	}
}
