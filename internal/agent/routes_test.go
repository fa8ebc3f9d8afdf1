package agent

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func testRouter(t *testing.T, engine *Engine) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	registerRoutes(router, engine, "test")
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return w, out
}

func TestRoutes_LaunchMissingPath(t *testing.T) {
	engine := NewEngine(testOptions(&fakeProcs{}, &fakeWindows{}, &fakeLauncher{}))
	router := testRouter(t, engine)

	w, out := doJSON(t, router, http.MethodPost, "/launch", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if out["status"] != StatusError {
		t.Errorf("body status = %v, want error", out["status"])
	}
}

func TestRoutes_LaunchSuccess(t *testing.T) {
	procs := &fakeProcs{proc: &ProcessInfo{PID: 77, Name: "game.exe"}}
	engine := NewEngine(testOptions(procs, happyWindows(77), &fakeLauncher{}))
	router := testRouter(t, engine)

	w, out := doJSON(t, router, http.MethodPost, "/launch", `{"path":"C:\\Games\\game.exe"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	if out["status"] != StatusSuccess {
		t.Errorf("body status = %v, want success", out["status"])
	}
	if out["game_process_name"] != "game.exe" {
		t.Errorf("game_process_name = %v, want game.exe", out["game_process_name"])
	}
}

func TestRoutes_CancelLaunch(t *testing.T) {
	engine := NewEngine(testOptions(&fakeProcs{}, &fakeWindows{}, &fakeLauncher{}))
	router := testRouter(t, engine)

	w, out := doJSON(t, router, http.MethodPost, "/cancel_launch", `{}`)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if out["status"] != "success" {
		t.Errorf("body status = %v, want success", out["status"])
	}
	if !engine.token.Armed() {
		t.Error("token not armed after cancel_launch")
	}
}

func TestRoutes_CheckProcess(t *testing.T) {
	procs := &fakeProcs{proc: &ProcessInfo{PID: 77, Name: "game.exe"}}
	engine := NewEngine(testOptions(procs, &fakeWindows{}, &fakeLauncher{}))
	router := testRouter(t, engine)

	w, out := doJSON(t, router, http.MethodPost, "/check_process", `{"process_name":"game.exe"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if out["status"] != "success" || out["running"] != true {
		t.Errorf("body = %v/%v, want success/true", out["status"], out["running"])
	}

	w, out = doJSON(t, router, http.MethodPost, "/check_process", `{"process_name":"other.exe"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if out["running"] != false {
		t.Errorf("running = %v, want false", out["running"])
	}

	w, _ = doJSON(t, router, http.MethodPost, "/check_process", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing name status = %d, want 400", w.Code)
	}
}

func TestRoutes_KillProcess(t *testing.T) {
	procs := &fakeProcs{}
	engine := NewEngine(testOptions(procs, &fakeWindows{}, &fakeLauncher{}))
	router := testRouter(t, engine)

	w, out := doJSON(t, router, http.MethodPost, "/kill_process", `{"process_name":"game.exe"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if out["status"] != "success" || out["killed"] != false {
		t.Errorf("body = %v/%v, want success/false", out["status"], out["killed"])
	}

	procs.mu.Lock()
	terminated := append([]string(nil), procs.terminated...)
	procs.mu.Unlock()
	if len(terminated) != 1 || terminated[0] != "game.exe" {
		t.Errorf("terminated = %v, want [game.exe]", terminated)
	}
}

func TestRoutes_StatusAndHealth(t *testing.T) {
	engine := NewEngine(testOptions(&fakeProcs{}, &fakeWindows{}, &fakeLauncher{}))
	router := testRouter(t, engine)

	w, out := doJSON(t, router, http.MethodGet, "/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if out["version"] != "test" {
		t.Errorf("version = %v, want test", out["version"])
	}

	w, out = doJSON(t, router, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK || out["status"] != "ok" {
		t.Errorf("health = %d/%v, want 200/ok", w.Code, out["status"])
	}
}
