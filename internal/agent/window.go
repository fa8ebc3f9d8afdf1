package agent

import (
	"errors"
	"time"
)

// Handle is an opaque OS window identifier.
type Handle uintptr

// ErrNoWindow reports that a process has no usable top-level window yet.
var ErrNoWindow = errors.New("agent: no top-level window")

// Windows is the OS window-automation capability behind the launch engine.
// The retry and timeout orchestration stays OS-agnostic and only calls this
// interface; window_windows.go implements it with user32, other platforms
// get the unsupported stub, and tests inject a fake.
type Windows interface {
	// TopWindow returns the main top-level window owned by pid.
	TopWindow(pid int32) (Handle, error)
	// IsVisible reports whether the window is currently shown.
	IsVisible(h Handle) bool
	// IsReady reports whether the window's input queue is idle, i.e. the
	// application has finished loading enough to respond to input.
	IsReady(h Handle) bool
	// SetFocus is the high-level focus request.
	SetFocus(h Handle) error
	// ForceForeground applies the low-level foreground workaround sequence.
	ForceForeground(h Handle) error
	// Foreground returns the current foreground window and its owning PID.
	Foreground() (Handle, int32)
}

// waitWindowReady runs the two readiness sub-phases: wait for the process's
// top-level window to become visible, then for its input queue to go idle.
// Readiness failure is non-fatal; the caller proceeds with whatever
// visibility was achieved. cancelled is true if the token fired mid-wait.
func waitWindowReady(w Windows, tok *Token, pid int32, poll, visibleTimeout, readyTimeout time.Duration) (h Handle, visible, cancelled bool) {
	deadline := time.Now().Add(visibleTimeout)
	for {
		if wh, err := w.TopWindow(pid); err == nil {
			h = wh
			if w.IsVisible(wh) {
				visible = true
				break
			}
		}
		if time.Now().After(deadline) {
			return h, false, false
		}
		if tok.Wait(poll) {
			return h, false, true
		}
	}

	deadline = time.Now().Add(readyTimeout)
	for !w.IsReady(h) {
		if time.Now().After(deadline) {
			// Not idle within budget; window is at least visible.
			return h, true, false
		}
		if tok.Wait(poll) {
			return h, true, true
		}
	}
	return h, true, false
}

// ensureForeground tries to put the process's window in the foreground:
// the high-level focus request first, then the low-level workaround
// sequence. Confirmation accepts either an exact handle match or any window
// of the same process, which covers child/owner-window mismatches.
func ensureForeground(w Windows, pid int32) bool {
	h, err := w.TopWindow(pid)
	if err != nil {
		return false
	}

	if err := w.SetFocus(h); err == nil && foregroundMatches(w, h, pid) {
		return true
	}

	if err := w.ForceForeground(h); err != nil {
		return false
	}
	return foregroundMatches(w, h, pid)
}

func foregroundMatches(w Windows, h Handle, pid int32) bool {
	fg, fgPID := w.Foreground()
	if fg == 0 {
		return false
	}
	return fg == h || fgPID == pid
}
