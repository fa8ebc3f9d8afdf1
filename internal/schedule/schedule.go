// Package schedule starts jobs on SUTs from cron expressions.
package schedule

import (
	"fmt"
	"log"

	"github.com/YpS-YpS/katana/internal/config"
	"github.com/robfig/cron/v3"
)

// Starter launches a job on the named SUT in the given mode ("single" or
// "campaign"). A busy SUT returns an error; the schedule skips that fire.
type Starter func(sut, mode string) error

// Manager owns the cron runner.
type Manager struct {
	cron  *cron.Cron
	start Starter
}

// New creates a Manager with standard 5-field cron expressions.
func New(start Starter) *Manager {
	return &Manager{cron: cron.New(), start: start}
}

// Add registers one schedule entry. Invalid cron specs are rejected.
func (m *Manager) Add(sc config.ScheduleConfig) error {
	if sc.SUT == "" {
		return fmt.Errorf("schedule: sut is required")
	}
	mode := sc.Mode
	if mode == "" {
		mode = "campaign"
	}
	if mode != "single" && mode != "campaign" {
		return fmt.Errorf("schedule: mode %q: want single or campaign", mode)
	}

	_, err := m.cron.AddFunc(sc.Cron, func() {
		if err := m.start(sc.SUT, mode); err != nil {
			log.Printf("schedule: %s %s: %v", sc.SUT, mode, err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule: cron %q: %w", sc.Cron, err)
	}
	return nil
}

// Start begins firing schedules.
func (m *Manager) Start() {
	m.cron.Start()
}

// Stop halts the runner. Jobs already started keep running.
func (m *Manager) Stop() {
	m.cron.Stop()
}
