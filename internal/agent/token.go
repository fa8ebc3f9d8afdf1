package agent

import (
	"sync"
	"time"
)

// Token is the agent's single launch-cancellation signal. The cancel
// endpoint arms it at any time; every bounded wait inside the launch
// sequence blocks on it so cancellation latency is the wait interval, not
// the full phase timeout. Launch clears it on entry, so a stale cancel
// never bleeds into a later launch.
type Token struct {
	mu    sync.Mutex
	ch    chan struct{}
	armed bool
}

// NewToken returns a cleared token.
func NewToken() *Token {
	return &Token{ch: make(chan struct{})}
}

// Arm sets the token, waking every pending Wait. Idempotent.
func (t *Token) Arm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.armed {
		t.armed = true
		close(t.ch)
	}
}

// Clear resets the token for a new launch.
func (t *Token) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.armed {
		t.armed = false
		t.ch = make(chan struct{})
	}
}

// Armed reports whether the token is set.
func (t *Token) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed
}

// Wait blocks for up to d, returning true immediately if the token is (or
// becomes) armed. This is the only sleep primitive the launch phases use.
func (t *Token) Wait(d time.Duration) bool {
	t.mu.Lock()
	ch := t.ch
	armed := t.armed
	t.mu.Unlock()

	if armed {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	}
}
