// Package notify sends job terminal-state notifications.
package notify

import (
	"context"
	"fmt"
	"strings"
)

// Event describes one job reaching a terminal state.
type Event struct {
	SUT         string
	Job         string // game or campaign name
	State       string // completed / failed / stopped / error
	TotalRuns   int
	FailedGames []string
}

// Notifier delivers terminal-state events to one destination.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Multi fans an event out to every notifier, collecting errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev Event) error {
	var errs []string
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Format renders the operator-facing message for an event.
func Format(ev Event) string {
	var b strings.Builder
	icon := "✅"
	switch ev.State {
	case "failed", "error":
		icon = "❌"
	case "stopped":
		icon = "⏹️"
	}
	fmt.Fprintf(&b, "%s [%s] %s: %s", icon, ev.SUT, ev.Job, ev.State)
	if ev.TotalRuns > 0 {
		fmt.Fprintf(&b, " (%d runs)", ev.TotalRuns)
	}
	if len(ev.FailedGames) > 0 {
		fmt.Fprintf(&b, "\nFailed: %s", strings.Join(ev.FailedGames, ", "))
	}
	return b.String()
}
