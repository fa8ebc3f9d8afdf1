package logstream

import (
	"strings"
	"testing"
	"time"

	"github.com/YpS-YpS/katana/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.RunLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestFeed_Isolation(t *testing.T) {
	r := NewRouter(nil)
	a := r.Open("sut-a")
	b := r.Open("sut-b")
	defer a.Close()
	defer b.Close()

	a.Logger().Printf("alpha line")
	b.Logger().Printf("beta line")

	for _, e := range a.Recent() {
		if strings.Contains(e.Line, "beta") {
			t.Errorf("feed a leaked line from b: %q", e.Line)
		}
	}
	if len(a.Recent()) != 1 || len(b.Recent()) != 1 {
		t.Errorf("recent lengths = %d/%d, want 1/1", len(a.Recent()), len(b.Recent()))
	}
}

func TestFeed_Subscribe(t *testing.T) {
	r := NewRouter(nil)
	f := r.Open("sut-a")
	defer f.Close()

	ch, cancel := f.Subscribe()
	defer cancel()

	f.Logger().Printf("hello %d", 42)

	select {
	case e := <-ch:
		if !strings.Contains(e.Line, "hello 42") {
			t.Errorf("entry = %q, want to contain hello 42", e.Line)
		}
		if e.Time.IsZero() {
			t.Error("entry has zero timestamp")
		}
	case <-time.After(time.Second):
		t.Fatal("no entry delivered")
	}
}

func TestFeed_SlowSubscriberNeverBlocks(t *testing.T) {
	r := NewRouter(nil)
	f := r.Open("sut-a")
	defer f.Close()

	_, cancel := f.Subscribe() // never read
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subBuffer*3; i++ {
			f.Logger().Printf("line %d", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("writer blocked on a slow subscriber")
	}
}

func TestFeed_RecentBounded(t *testing.T) {
	r := NewRouter(nil)
	f := r.Open("sut-a")
	defer f.Close()

	for i := 0; i < feedDepth+50; i++ {
		f.Logger().Printf("line %d", i)
	}

	recent := f.Recent()
	if len(recent) != feedDepth {
		t.Errorf("recent length = %d, want %d", len(recent), feedDepth)
	}
	if !strings.Contains(recent[len(recent)-1].Line, "line 549") {
		t.Errorf("last entry = %q, want the newest line", recent[len(recent)-1].Line)
	}
}

func TestFeed_CloseIdempotentAndDetaches(t *testing.T) {
	r := NewRouter(nil)
	f := r.Open("sut-a")

	ch, _ := f.Subscribe()
	f.Close()
	f.Close() // must not panic

	if _, ok := <-ch; ok {
		t.Error("subscriber channel still open after Close")
	}
	if _, ok := r.Feed("sut-a"); ok {
		t.Error("feed still registered after Close")
	}
}

func TestRouter_ReopenReplacesFeed(t *testing.T) {
	r := NewRouter(nil)
	old := r.Open("sut-a")
	neu := r.Open("sut-a")
	defer neu.Close()

	got, ok := r.Feed("sut-a")
	if !ok || got != neu {
		t.Error("router does not serve the newest feed")
	}

	// The replaced feed must be closed, not leaked.
	old.Logger().Printf("into the void")
	if len(old.Recent()) != 0 {
		t.Error("writes to a replaced feed were retained")
	}
}

func TestFeed_DBTee(t *testing.T) {
	db := testDB(t)
	r := NewRouter(db)
	f := r.Open("sut-a")

	f.Logger().Printf("persisted line one")
	f.Logger().Printf("persisted line two")
	f.Close() // final flush

	var rows []models.RunLog
	if err := db.Find(&rows).Error; err != nil {
		t.Fatalf("query run_logs: %v", err)
	}
	if len(rows) == 0 {
		t.Fatal("no run_logs rows after close")
	}
	all := ""
	for _, row := range rows {
		if row.SUTName != "sut-a" {
			t.Errorf("row sut name = %q, want sut-a", row.SUTName)
		}
		all += row.Content
	}
	if !strings.Contains(all, "persisted line one") || !strings.Contains(all, "persisted line two") {
		t.Errorf("flushed content missing lines: %q", all)
	}
}
