package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/YpS-YpS/katana/internal/controller"
	"github.com/YpS-YpS/katana/internal/logstream"
	"github.com/gin-gonic/gin"
)

func TestStart_NilManager(t *testing.T) {
	err := Start(context.Background(), StartOpts{})
	if err == nil {
		t.Fatal("expected error for nil manager")
	}
	if !strings.Contains(err.Error(), "manager is required") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "manager is required")
	}
}

func testRouter(t *testing.T, opts StartOpts) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	registerRoutes(router, opts)
	return router
}

func TestRoutes_SUTList(t *testing.T) {
	m := controller.NewManager()
	router := testRouter(t, StartOpts{Manager: m})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/suts", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var out struct {
		SUTs []controller.Progress `json:"suts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.SUTs) != 0 {
		t.Errorf("suts = %v, want empty", out.SUTs)
	}
}

func TestRoutes_StartConflict(t *testing.T) {
	m := controller.NewManager()
	opts := StartOpts{
		Manager: m,
		StartJob: func(sut, mode string) error {
			return controller.ErrAlreadyRunning
		},
	}
	router := testRouter(t, opts)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/suts/rig-01/start", strings.NewReader(`{"mode":"single"}`)))

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestRoutes_StartDefaultsToCampaign(t *testing.T) {
	var gotSUT, gotMode string
	opts := StartOpts{
		Manager: controller.NewManager(),
		StartJob: func(sut, mode string) error {
			gotSUT, gotMode = sut, mode
			return nil
		},
	}
	router := testRouter(t, opts)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/suts/rig-01/start", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	if gotSUT != "rig-01" || gotMode != "campaign" {
		t.Errorf("started %s/%s, want rig-01/campaign", gotSUT, gotMode)
	}
}

func TestRoutes_StartEmptyJob(t *testing.T) {
	opts := StartOpts{
		Manager: controller.NewManager(),
		StartJob: func(sut, mode string) error {
			return controller.ErrEmptyJob
		},
	}
	router := testRouter(t, opts)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/suts/rig-01/start", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for an empty job", w.Code)
	}
}

func TestRoutes_StopUnknownSUT(t *testing.T) {
	router := testRouter(t, StartOpts{Manager: controller.NewManager()})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/suts/nope/stop", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRoutes_LogsNoFeed(t *testing.T) {
	router := testRouter(t, StartOpts{
		Manager: controller.NewManager(),
		Logs:    logstream.NewRouter(nil),
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/suts/rig-01/logs", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 without an active feed", w.Code)
	}
}

func TestRoutes_LogsStreamsRecent(t *testing.T) {
	logs := logstream.NewRouter(nil)
	feed := logs.Open("rig-01")
	feed.Logger().Printf("hello from the worker")
	feed.Close() // closed feed: recent entries flush, stream ends

	router := testRouter(t, StartOpts{Manager: controller.NewManager(), Logs: logs})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/suts/rig-01/logs", nil))
	// A closed feed is detached, so this is a 404; reopen and keep it live.
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 after close", w.Code)
	}

	feed = logs.Open("rig-01")
	feed.Logger().Printf("hello again")

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/suts/rig-01/logs", nil).WithContext(ctx)
	w = httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		router.ServeHTTP(w, req)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond) // let the handler subscribe
	feed.Close()                      // ends the live stream
	<-done

	if !strings.Contains(w.Body.String(), "hello again") {
		t.Errorf("stream body %q missing retained entry", w.Body.String())
	}
	cancel()
}
