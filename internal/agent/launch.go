// Package agent is the SUT-resident launch engine: it starts a game from a
// path, Steam app ID or steam:// URI, then verifies the game process is
// running with a visible, focused window before reporting back.
package agent

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/YpS-YpS/katana/internal/steam"
)

// Launch outcome tags.
const (
	StatusSuccess   = "success"
	StatusWarning   = "warning"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// Launch methods reported in results.
const (
	methodDirect        = "direct"
	methodSteamProtocol = "steam_protocol"
)

// ErrLaunchInProgress reports that another launch currently holds the engine.
var ErrLaunchInProgress = errors.New("agent: launch already in progress")

// Request describes one launch.
type Request struct {
	// Path is the launch target: an absolute executable path, a bare Steam
	// app ID, or a steam:// URI.
	Path string `json:"path"`
	// ProcessID optionally names the game process to detect when it differs
	// from the launched executable (launcher re-spawns, wrappers).
	ProcessID string `json:"process_id,omitempty"`
	// StartupWait overrides the initial post-spawn wait, in seconds.
	StartupWait int `json:"startup_wait,omitempty"`
}

// Result is the full report of a launch attempt.
type Result struct {
	Status              string `json:"status"`
	ResolvedPath        string `json:"resolved_path,omitempty"`
	LaunchMethod        string `json:"launch_method,omitempty"`
	SubprocessPID       int    `json:"subprocess_pid,omitempty"`
	SubprocessStatus    string `json:"subprocess_status,omitempty"`
	GameProcessPID      int32  `json:"game_process_pid,omitempty"`
	GameProcessName     string `json:"game_process_name,omitempty"`
	ForegroundConfirmed bool   `json:"foreground_confirmed"`
	WindowReady         bool   `json:"window_ready_detected"`
	Warning             string `json:"warning,omitempty"`
	Error               string `json:"error,omitempty"`
}

// Options configures an Engine. Zero values select live system capabilities
// and the stock timeouts.
type Options struct {
	Processes Processes
	Windows   Windows
	Launcher  Launcher
	Resolver  *steam.Resolver

	// StartupWait is the default pause after spawning before detection
	// begins, overridable per request.
	StartupWait time.Duration
	// DetectTimeout bounds the process-detection phase; DetectPoll is its
	// re-check interval.
	DetectTimeout time.Duration
	DetectPoll    time.Duration
	// VisibleTimeout and ReadyTimeout bound the two window phases;
	// WindowPoll is their re-check interval.
	VisibleTimeout time.Duration
	ReadyTimeout   time.Duration
	WindowPoll     time.Duration
	// ForegroundRetries and RetryInterval shape the focus phase.
	ForegroundRetries int
	RetryInterval     time.Duration
}

func (o *Options) applyDefaults() {
	if o.Processes == nil {
		o.Processes = SystemProcesses{}
	}
	if o.Windows == nil {
		o.Windows = NewWindows()
	}
	if o.Launcher == nil {
		o.Launcher = SystemLauncher{}
	}
	if o.Resolver == nil {
		o.Resolver = &steam.Resolver{Root: steam.DefaultRoot()}
	}
	if o.StartupWait == 0 {
		o.StartupWait = 3 * time.Second
	}
	if o.DetectTimeout == 0 {
		o.DetectTimeout = 60 * time.Second
	}
	if o.DetectPoll == 0 {
		o.DetectPoll = 3 * time.Second
	}
	if o.VisibleTimeout == 0 {
		o.VisibleTimeout = 120 * time.Second
	}
	if o.ReadyTimeout == 0 {
		o.ReadyTimeout = 30 * time.Second
	}
	if o.WindowPoll == 0 {
		o.WindowPoll = 2 * time.Second
	}
	if o.ForegroundRetries == 0 {
		o.ForegroundRetries = 5
	}
	if o.RetryInterval == 0 {
		o.RetryInterval = 10 * time.Second
	}
}

// Engine runs launches one at a time. A second Launch while one is in
// flight is rejected rather than queued; the controller serializes its own
// requests, so overlap means operator error or a stuck run.
type Engine struct {
	opts  Options
	token *Token

	mu        sync.Mutex
	launching bool
	tracked   string   // process name of the current/last launch
	spawned   *Spawned // direct-exec subprocess, if any

	lastMu  sync.Mutex
	lastReq *Request
	lastRes *Result
}

// NewEngine creates an Engine with opts.
func NewEngine(opts Options) *Engine {
	opts.applyDefaults()
	return &Engine{opts: opts, token: NewToken()}
}

// Cancel arms the cancellation token. The in-flight launch, if any, aborts
// at its next wait point. Safe to call with no launch running.
func (e *Engine) Cancel() {
	e.token.Arm()
}

// Tracked returns the process name of the current or most recent launch.
func (e *Engine) Tracked() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracked
}

// LastResult returns the most recent launch request and result.
func (e *Engine) LastResult() (*Request, *Result) {
	e.lastMu.Lock()
	defer e.lastMu.Unlock()
	return e.lastReq, e.lastRes
}

// Launch runs the full sequence: resolve the target, reap leftovers from a
// previous launch, spawn, then verify process, window and foreground. Every
// wait goes through the cancellation token, so Cancel aborts within one poll
// interval. The returned Result is always non-nil.
func (e *Engine) Launch(req Request) *Result {
	e.mu.Lock()
	if e.launching {
		e.mu.Unlock()
		return &Result{Status: StatusError, Error: ErrLaunchInProgress.Error()}
	}
	e.launching = true
	e.mu.Unlock()

	// A cancel always targets the launch that comes after it was observed,
	// never a future one.
	e.token.Clear()

	res := e.run(req)

	e.mu.Lock()
	e.launching = false
	e.mu.Unlock()

	e.lastMu.Lock()
	e.lastReq = &req
	e.lastRes = res
	e.lastMu.Unlock()
	return res
}

func (e *Engine) run(req Request) *Result {
	res := &Result{}

	target, resolvedPath, processName, method, err := e.resolve(req)
	if err != nil {
		res.Status = StatusError
		res.Error = err.Error()
		return res
	}
	res.ResolvedPath = resolvedPath
	res.LaunchMethod = method
	res.GameProcessName = processName
	if processName == "" {
		res.Status = StatusError
		res.Error = "agent: cannot determine process name to detect; set process_id"
		return res
	}

	e.reapPrevious(processName)

	e.mu.Lock()
	e.tracked = processName
	e.mu.Unlock()

	if err := e.spawn(target, method, res); err != nil {
		res.Status = StatusError
		res.Error = err.Error()
		return res
	}

	startupWait := e.opts.StartupWait
	if req.StartupWait > 0 {
		startupWait = time.Duration(req.StartupWait) * time.Second
	}
	if e.token.Wait(startupWait) {
		res.Status = StatusCancelled
		return res
	}

	info, cancelled := e.detectProcess(processName)
	if cancelled {
		res.Status = StatusCancelled
		return res
	}
	if info == nil {
		// The launch command itself succeeded; some titles never match the
		// expected name, so this is a warning rather than a failure.
		res.Status = StatusWarning
		res.Warning = fmt.Sprintf("process %s not detected within %s", processName, e.opts.DetectTimeout)
		e.fillSubprocess(res)
		return res
	}
	res.GameProcessPID = info.PID
	res.GameProcessName = info.Name
	e.fillSubprocess(res)

	_, visible, cancelled := waitWindowReady(e.opts.Windows, e.token, info.PID, e.opts.WindowPoll, e.opts.VisibleTimeout, e.opts.ReadyTimeout)
	if cancelled {
		res.Status = StatusCancelled
		return res
	}
	res.WindowReady = visible

	confirmed, info, cancelled := e.foregroundWithRetries(processName, info)
	if cancelled {
		res.Status = StatusCancelled
		return res
	}
	if info == nil {
		res.Status = StatusError
		res.Error = fmt.Sprintf("agent: process %s exited during foreground verification", processName)
		return res
	}
	res.GameProcessPID = info.PID
	res.ForegroundConfirmed = confirmed

	switch {
	case confirmed && visible:
		res.Status = StatusSuccess
	case confirmed:
		res.Status = StatusWarning
		res.Warning = "window never reported ready"
	default:
		res.Status = StatusWarning
		res.Warning = "could not confirm game window in foreground"
	}
	return res
}

// resolve turns the launch target into a spawnable target, the resolved
// executable path it reports, the process name to detect, and the launch
// method. Steam IDs go through the protocol URL so the Steam client handles
// startup; the installed executable is still resolved for the report and to
// learn the process name.
func (e *Engine) resolve(req Request) (target, resolvedPath, processName, method string, err error) {
	processName = req.ProcessID

	if appID, ok := steam.ParseAppID(req.Path); ok {
		exePath, rerr := e.opts.Resolver.AppPath(appID, req.ProcessID)
		if rerr != nil {
			if processName == "" {
				return "", "", "", "", fmt.Errorf("agent: resolve steam app %s: %w", appID, rerr)
			}
			// The hint names the process; Steam can still launch the app
			// even though the executable was not located.
			log.Printf("agent: steam app %s not resolved, relying on process_id: %v", appID, rerr)
		}
		if processName == "" {
			processName = filepath.Base(exePath)
		}
		return steam.ProtocolURL(appID), exePath, processName, methodSteamProtocol, nil
	}

	if processName == "" {
		processName = filepath.Base(strings.ReplaceAll(req.Path, `\`, `/`))
	}
	return req.Path, req.Path, processName, methodDirect, nil
}

// reapPrevious kills leftovers before spawning: the subprocess of the prior
// launch and any running process with the target's name. A stale instance
// would otherwise satisfy detection and poison the verification result.
func (e *Engine) reapPrevious(processName string) {
	e.mu.Lock()
	prev := e.tracked
	spawned := e.spawned
	e.spawned = nil
	e.mu.Unlock()

	if spawned != nil && spawned.Running() {
		if err := e.opts.Processes.TerminatePID(int32(spawned.PID)); err != nil {
			log.Printf("agent: terminate previous subprocess %d: %v", spawned.PID, err)
		}
	}
	if prev != "" && !nameMatches(prev, processName) {
		if _, err := e.opts.Processes.Terminate(prev); err != nil {
			log.Printf("agent: terminate previous process %s: %v", prev, err)
		}
	}
	if stopped, err := e.opts.Processes.Terminate(processName); err != nil {
		log.Printf("agent: terminate stale %s: %v", processName, err)
	} else if stopped {
		log.Printf("agent: terminated stale instance of %s", processName)
	}
}

func (e *Engine) spawn(target, method string, res *Result) error {
	if method == methodSteamProtocol {
		return e.opts.Launcher.Open(target)
	}

	sp, err := e.opts.Launcher.Start(target)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.spawned = sp
	e.mu.Unlock()
	res.SubprocessPID = sp.PID
	return nil
}

// fillSubprocess records the direct-exec subprocess state. A launcher that
// spawned the real game and exited is normal, so this is informational.
func (e *Engine) fillSubprocess(res *Result) {
	e.mu.Lock()
	sp := e.spawned
	e.mu.Unlock()
	if sp == nil {
		return
	}
	res.SubprocessPID = sp.PID
	res.SubprocessStatus = sp.Status()
}

// detectProcess polls for the target process until it appears, the timeout
// lapses, or the token fires.
func (e *Engine) detectProcess(processName string) (info *ProcessInfo, cancelled bool) {
	deadline := time.Now().Add(e.opts.DetectTimeout)
	for {
		p, err := e.opts.Processes.Find(processName)
		if err != nil {
			log.Printf("agent: find %s: %v", processName, err)
		} else if p != nil {
			return p, false
		}
		if time.Now().After(deadline) {
			return nil, false
		}
		if e.token.Wait(e.opts.DetectPoll) {
			return nil, true
		}
	}
}

// foregroundWithRetries drives the focus phase. Each attempt re-finds the
// process first: games re-exec themselves (launcher stubs, anti-cheat
// wrappers), so the PID that passed detection may be gone while the game
// lives on under a new one. A vanished process ends the phase with nil info.
func (e *Engine) foregroundWithRetries(processName string, info *ProcessInfo) (confirmed bool, current *ProcessInfo, cancelled bool) {
	current = info
	for attempt := 0; attempt < e.opts.ForegroundRetries; attempt++ {
		if attempt > 0 {
			if e.token.Wait(e.opts.RetryInterval) {
				return false, current, true
			}
			p, err := e.opts.Processes.Find(processName)
			if err != nil {
				log.Printf("agent: find %s: %v", processName, err)
				continue
			}
			if p == nil {
				return false, nil, false
			}
			current = p
		}

		if ensureForeground(e.opts.Windows, current.PID) {
			return true, current, false
		}
	}
	return false, current, false
}
