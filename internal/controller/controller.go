// Package controller runs automation jobs against one SUT. Each controller
// owns one worker at a time; the worker walks the job's games and runs in
// order, delegating each launch to the remote agent and each automation run
// to the injected executor.
package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/YpS-YpS/katana/internal/fleet"
	"github.com/YpS-YpS/katana/internal/logstream"
	"github.com/YpS-YpS/katana/internal/models"
	"github.com/YpS-YpS/katana/internal/notify"
	"github.com/YpS-YpS/katana/internal/transport"
	"gorm.io/gorm"
)

// State is a controller's lifecycle state. Idle is initial; the four
// terminal states hold until a new job starts.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateStopped   State = "stopped"
	StateError     State = "error"
)

var (
	// ErrAlreadyRunning rejects a start while a worker is active. The
	// running job is left untouched.
	ErrAlreadyRunning = errors.New("controller: a job is already running")
	// ErrEmptyJob rejects a structurally empty job.
	ErrEmptyJob = errors.New("controller: job has no work")

	// errStopped aborts a run because of a local stop or remote cancel.
	errStopped = errors.New("controller: stopped")
	// errConnection marks a transport failure; the job fails immediately,
	// transport errors are never retried here.
	errConnection = errors.New("controller: agent unreachable")
)

// Agent is the remote launch surface the controller drives.
// *transport.Client implements it.
type Agent interface {
	Launch(ctx context.Context, req transport.LaunchRequest) (*transport.LaunchResult, error)
	CancelLaunch(ctx context.Context) error
	KillProcess(ctx context.Context, processName string) (bool, error)
}

// Executor performs the automation steps of one run after a successful
// launch. A nil executor makes runs launch-only.
type Executor interface {
	ExecuteRun(ctx context.Context, sut fleet.SUT, game fleet.GameEntry, run int) error
}

// Progress is a point-in-time snapshot of a controller.
type Progress struct {
	SUT           string   `json:"sut"`
	State         State    `json:"state"`
	Job           string   `json:"job,omitempty"`
	CurrentGame   string   `json:"current_game,omitempty"`
	CurrentRun    int      `json:"current_run"`
	RunCount      int      `json:"run_count"`
	CompletedRuns int      `json:"completed_runs"`
	TotalRuns     int      `json:"total_runs"`
	FailedGames   []string `json:"failed_games,omitempty"`
}

// Opts holds everything a controller needs. Agent is required; the rest is
// optional (nil disables the concern).
type Opts struct {
	SUT      fleet.SUT
	Agent    Agent
	Executor Executor
	Logs     *logstream.Router
	DB       *gorm.DB
	Notifier notify.Notifier
	// RequireForeground fails a run whose launch came back warning-grade
	// (foreground unconfirmed or process undetected).
	RequireForeground bool
}

// Controller is the per-SUT lifecycle state machine.
type Controller struct {
	sut               fleet.SUT
	agent             Agent
	executor          Executor
	logs              *logstream.Router
	db                *gorm.DB
	notifier          notify.Notifier
	requireForeground bool

	mu            sync.Mutex
	state         State
	stopRequested bool
	cancel        context.CancelFunc
	done          chan struct{}
	tracked       string // process name of the last launch, kill target
	progress      Progress
}

// New creates an idle controller for one SUT.
func New(opts Opts) *Controller {
	return &Controller{
		sut:               opts.SUT,
		agent:             opts.Agent,
		executor:          opts.Executor,
		logs:              opts.Logs,
		db:                opts.DB,
		notifier:          opts.Notifier,
		requireForeground: opts.RequireForeground,
		state:             StateIdle,
		progress:          Progress{SUT: opts.SUT.Name, State: StateIdle},
	}
}

// Start validates the job and spawns the worker. A start while a worker is
// active fails without touching the running job; an empty job fails and
// parks the controller in the error state.
func (c *Controller) Start(job Job) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateRunning {
		return ErrAlreadyRunning
	}
	if job.empty() {
		c.state = StateError
		c.progress.State = StateError
		return ErrEmptyJob
	}

	p := job.plan()
	ctx, cancel := context.WithCancel(context.Background())

	c.stopRequested = false
	c.cancel = cancel
	c.state = StateRunning
	c.done = make(chan struct{})
	c.tracked = ""
	c.progress = Progress{
		SUT:       c.sut.Name,
		State:     StateRunning,
		Job:       p.label,
		TotalRuns: p.totalRuns(),
	}

	go c.work(ctx, p, c.done)
	return nil
}

// Stop requests a cooperative stop: the local signal aborts the worker at
// its next check (at most one second into any delay), and the agent's
// cancel endpoint releases an in-flight launch wait. Idempotent.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.stopRequested {
		c.mu.Unlock()
		return
	}
	c.stopRequested = true
	if c.cancel != nil {
		c.cancel()
	}
	running := c.state == StateRunning
	if running {
		c.state = StateStopped
		c.progress.State = StateStopped
	}
	c.mu.Unlock()

	if running && c.agent != nil {
		if err := c.agent.CancelLaunch(context.Background()); err != nil {
			log.Printf("controller: %s: remote cancel: %v", c.sut.Name, err)
		}
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Progress returns a snapshot of the current job.
func (c *Controller) Progress() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.progress
	p.FailedGames = append([]string(nil), c.progress.FailedGames...)
	return p
}

// Wait blocks until the current worker exits. Returns immediately if no
// worker has been started.
func (c *Controller) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// SUT returns the controller's target machine definition.
func (c *Controller) SUT() fleet.SUT {
	return c.sut
}

// work is the worker body: the ordered game/run walk of the job plan.
func (c *Controller) work(ctx context.Context, p plan, done chan struct{}) {
	defer close(done)

	logger := log.New(io.Discard, "", 0)
	if c.logs != nil {
		feed := c.logs.Open(c.sut.Name)
		defer feed.Close()
		logger = feed.Logger()
	}

	logger.Printf("job %q started: %d games, %d total runs", p.label, len(p.games), p.totalRuns())

	outcome := StateCompleted
	var failed []string

walk:
	for gi, game := range p.games {
		if c.stopping(ctx) {
			outcome = StateStopped
			break
		}
		c.updateProgress(func(pr *Progress) {
			pr.CurrentGame = game.GameName
			pr.RunCount = game.RunCount
			pr.CurrentRun = 0
		})

		for run := 1; run <= game.RunCount; run++ {
			if c.stopping(ctx) {
				outcome = StateStopped
				break walk
			}
			c.updateProgress(func(pr *Progress) { pr.CurrentRun = run })

			err := c.runOnce(ctx, logger, p, game, run)
			if err != nil {
				if errors.Is(err, errStopped) {
					outcome = StateStopped
					break walk
				}

				entry := fmt.Sprintf("%s (Run %d)", game.GameName, run)
				failed = append(failed, entry)
				c.updateProgress(func(pr *Progress) { pr.FailedGames = append(pr.FailedGames, entry) })
				logger.Printf("run failed: %s: %v", entry, err)
				c.killTracked(logger, game)

				if errors.Is(err, errConnection) || !p.continueOnFailure {
					outcome = StateFailed
					break walk
				}
				// Skip this game's remaining runs, move on.
				break
			}

			c.updateProgress(func(pr *Progress) { pr.CompletedRuns++ })
			logger.Printf("run %d/%d of %s completed", run, game.RunCount, game.GameName)

			if run < game.RunCount && !c.delay(ctx, game.RunDelay) {
				outcome = StateStopped
				break walk
			}
		}

		if gi < len(p.games)-1 && !c.delay(ctx, p.delayBetweenGames) {
			outcome = StateStopped
			break walk
		}
	}

	if c.stopping(ctx) {
		outcome = StateStopped
	}

	// A finished job leaves the game running for inspection; a failed or
	// stopped one cleans up.
	if outcome != StateCompleted {
		c.killTracked(logger, fleet.GameEntry{})
	}

	c.mu.Lock()
	c.state = outcome
	c.progress.State = outcome
	c.progress.FailedGames = failed
	totalRuns := c.progress.TotalRuns
	c.mu.Unlock()

	logger.Printf("job %q finished: %s (%d failed)", p.label, outcome, len(failed))
	c.notifyTerminal(p.label, outcome, totalRuns, failed)
}

// runOnce launches the game remotely, verifies the outcome, then hands the
// run to the executor.
func (c *Controller) runOnce(ctx context.Context, logger *log.Logger, p plan, game fleet.GameEntry, run int) error {
	logger.Printf("launching %s (run %d/%d)", game.GameName, run, game.RunCount)
	started := time.Now()

	res, err := c.agent.Launch(ctx, transport.LaunchRequest{Path: game.GamePath})
	if err != nil {
		if ctx.Err() != nil {
			return errStopped
		}
		c.recordRun(p, game, run, "failed", err.Error(), started)
		return fmt.Errorf("%w: %v", errConnection, err)
	}

	c.recordLaunch(game, res, started)
	if res.GameProcessName != "" {
		c.mu.Lock()
		c.tracked = res.GameProcessName
		c.mu.Unlock()
	}

	switch res.Status {
	case transport.StatusCancelled:
		c.recordRun(p, game, run, "stopped", "", started)
		return errStopped
	case transport.StatusError:
		c.recordRun(p, game, run, "failed", res.Error, started)
		return fmt.Errorf("launch error: %s", res.Error)
	case transport.StatusWarning:
		if c.requireForeground {
			c.recordRun(p, game, run, "failed", res.Warning, started)
			return fmt.Errorf("launch warning: %s", res.Warning)
		}
		logger.Printf("launch warning (proceeding): %s", res.Warning)
	}

	if c.executor != nil {
		if err := c.executor.ExecuteRun(ctx, c.sut, game, run); err != nil {
			if ctx.Err() != nil {
				c.recordRun(p, game, run, "stopped", "", started)
				return errStopped
			}
			c.recordRun(p, game, run, "failed", err.Error(), started)
			return fmt.Errorf("execute run: %w", err)
		}
	}

	c.recordRun(p, game, run, "success", "", started)
	return nil
}

// stopping reports whether the worker should abort.
func (c *Controller) stopping(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopRequested
}

// delay sleeps for the given number of seconds, checking the stop signal at
// one-second granularity. Returns false if interrupted.
func (c *Controller) delay(ctx context.Context, seconds int) bool {
	for i := 0; i < seconds; i++ {
		if c.stopping(ctx) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Second):
		}
	}
	return !c.stopping(ctx)
}

// killTracked terminates the tracked remote process, falling back to the
// game's expected process when nothing was tracked yet.
func (c *Controller) killTracked(logger *log.Logger, game fleet.GameEntry) {
	c.mu.Lock()
	name := c.tracked
	c.mu.Unlock()
	if name == "" {
		name = fallbackProcess(game)
	}
	if name == "" || c.agent == nil {
		return
	}

	killed, err := c.agent.KillProcess(context.Background(), name)
	if err != nil {
		logger.Printf("kill %s: %v", name, err)
		return
	}
	if killed {
		logger.Printf("killed %s", name)
	}
}

func (c *Controller) updateProgress(fn func(*Progress)) {
	c.mu.Lock()
	fn(&c.progress)
	c.mu.Unlock()
}

func (c *Controller) notifyTerminal(label string, outcome State, totalRuns int, failed []string) {
	if c.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ev := notify.Event{
		SUT:         c.sut.Name,
		Job:         label,
		State:       string(outcome),
		TotalRuns:   totalRuns,
		FailedGames: failed,
	}
	if err := c.notifier.Notify(ctx, ev); err != nil {
		log.Printf("controller: %s: notify: %v", c.sut.Name, err)
	}
}

func (c *Controller) recordRun(p plan, game fleet.GameEntry, run int, status, reason string, started time.Time) {
	if c.db == nil {
		return
	}
	rec := models.RunRecord{
		SUTName:    c.sut.Name,
		GameName:   game.GameName,
		RunNumber:  run,
		TotalRuns:  game.RunCount,
		Campaign:   p.campaign,
		Status:     status,
		FailReason: reason,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if err := c.db.Create(&rec).Error; err != nil {
		log.Printf("controller: %s: record run: %v", c.sut.Name, err)
	}
}

func (c *Controller) recordLaunch(game fleet.GameEntry, res *transport.LaunchResult, started time.Time) {
	if c.db == nil {
		return
	}
	detail := res.Warning
	if res.Error != "" {
		detail = res.Error
	}
	rec := models.LaunchRecord{
		SUTName:             c.sut.Name,
		Target:              game.GamePath,
		Status:              res.Status,
		LaunchMethod:        res.LaunchMethod,
		ResolvedPath:        res.ResolvedPath,
		GameProcessPID:      res.GameProcessPID,
		GameProcessName:     res.GameProcessName,
		ForegroundConfirmed: res.ForegroundConfirmed,
		Detail:              detail,
		DurationMS:          time.Since(started).Milliseconds(),
	}
	if err := c.db.Create(&rec).Error; err != nil {
		log.Printf("controller: %s: record launch: %v", c.sut.Name, err)
	}
}
