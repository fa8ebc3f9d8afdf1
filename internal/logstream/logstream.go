// Package logstream routes worker log output. Each worker owns a Feed it
// writes to through a standard *log.Logger; readers subscribe to a feed's
// channel, so isolation comes from explicit message passing rather than from
// inspecting who wrote a line. A feed optionally tees its output to the
// history database in periodic batches.
package logstream

import (
	"bytes"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/YpS-YpS/katana/internal/models"
	"gorm.io/gorm"
)

const (
	// feedDepth is how many recent entries a feed retains for late readers.
	feedDepth = 500
	// subBuffer is each subscriber channel's capacity. A slow subscriber
	// loses oldest entries; the worker never blocks on a reader.
	subBuffer = 64
	// flushInterval is how often a feed's DB tee persists buffered output.
	flushInterval = 5 * time.Second
)

// Entry is one timestamped log line from a single worker.
type Entry struct {
	Time time.Time `json:"time"`
	Line string    `json:"line"`
}

// Router hands out feeds by worker name. If a DB is set, every feed tees
// its output into run_logs.
type Router struct {
	db *gorm.DB

	mu    sync.Mutex
	feeds map[string]*Feed
}

// NewRouter creates a Router. db may be nil to disable persistence.
func NewRouter(db *gorm.DB) *Router {
	return &Router{db: db, feeds: make(map[string]*Feed)}
}

// Open creates the feed for name, closing any previous feed under the same
// name first. The worker calls this before starting and Close in its defer.
func (r *Router) Open(name string) *Feed {
	f := &Feed{
		name:   name,
		router: r,
		subs:   make(map[chan Entry]struct{}),
		stop:   make(chan struct{}),
	}
	f.logger = log.New(f, "", log.LstdFlags)

	if r.db != nil {
		f.flushFn = func(content string) error {
			return r.db.Create(&models.RunLog{SUTName: name, Content: content}).Error
		}
		go f.flushLoop(flushInterval)
	}

	r.mu.Lock()
	prev := r.feeds[name]
	r.feeds[name] = f
	r.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	return f
}

// Feed returns the live feed for name, if any.
func (r *Router) Feed(name string) (*Feed, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.feeds[name]
	return f, ok
}

func (r *Router) detach(f *Feed) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.feeds[f.name] == f {
		delete(r.feeds, f.name)
	}
}

// Feed is one worker's private log channel.
type Feed struct {
	name   string
	router *Router
	logger *log.Logger

	mu     sync.Mutex
	recent []Entry
	subs   map[chan Entry]struct{}
	buf    bytes.Buffer // pending DB tee content
	closed bool

	flushFn func(content string) error
	stop    chan struct{}
}

// Logger returns the worker's logger. All worker output goes through it.
func (f *Feed) Logger() *log.Logger {
	return f.logger
}

// Name returns the worker name this feed belongs to.
func (f *Feed) Name() string {
	return f.name
}

// Write implements io.Writer for the feed's logger. Each call is one log
// message; trailing newlines are stripped for the entry form but kept for
// the DB tee so flushed chunks stay line-oriented.
func (f *Feed) Write(p []byte) (int, error) {
	entry := Entry{Time: time.Now(), Line: strings.TrimRight(string(p), "\n")}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return len(p), nil
	}
	f.recent = append(f.recent, entry)
	if len(f.recent) > feedDepth {
		f.recent = f.recent[len(f.recent)-feedDepth:]
	}
	if f.flushFn != nil {
		f.buf.Write(p)
	}
	subs := make([]chan Entry, 0, len(f.subs))
	for ch := range f.subs {
		subs = append(subs, ch)
	}
	f.mu.Unlock()

	for _, ch := range subs {
		send(ch, entry)
	}
	return len(p), nil
}

// send delivers without blocking: on a full channel the oldest entry is
// dropped to make room.
func send(ch chan Entry, e Entry) {
	for {
		select {
		case ch <- e:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Recent returns a copy of the retained entries.
func (f *Feed) Recent() []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Entry, len(f.recent))
	copy(out, f.recent)
	return out
}

// Subscribe registers a reader. The returned cancel func must be called
// when the reader is done.
func (f *Feed) Subscribe() (<-chan Entry, func()) {
	ch := make(chan Entry, subBuffer)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subs[ch]; ok {
			delete(f.subs, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Close detaches the feed from its router, closes subscriber channels and
// flushes any pending DB tee content. Idempotent.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	subs := f.subs
	f.subs = make(map[chan Entry]struct{})
	f.mu.Unlock()

	close(f.stop)
	for ch := range subs {
		close(ch)
	}
	f.flush()
	if f.router != nil {
		f.router.detach(f)
	}
}

// flush persists buffered tee content, if any.
func (f *Feed) flush() {
	if f.flushFn == nil {
		return
	}

	f.mu.Lock()
	if f.buf.Len() == 0 {
		f.mu.Unlock()
		return
	}
	content := f.buf.String()
	f.buf.Reset()
	f.mu.Unlock()

	if err := f.flushFn(content); err != nil {
		log.Printf("logstream: flush %s: %v", f.name, err)
	}
}

func (f *Feed) flushLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-f.stop:
			return
		case <-ticker.C:
			f.flush()
		}
	}
}
