package agent

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessInfo describes one matched process.
type ProcessInfo struct {
	PID  int32
	Name string
	Exe  string
}

// Processes abstracts process enumeration and termination so the launch
// engine is testable without a live system.
type Processes interface {
	// Find returns the first process whose name matches target exactly
	// (case-insensitive), or nil if none is running.
	Find(target string) (*ProcessInfo, error)
	// Terminate stops every process matching name, escalating to kill if a
	// process ignores the initial request. Reports whether any was stopped.
	Terminate(name string) (bool, error)
	// TerminatePID stops a single process by PID.
	TerminatePID(pid int32) error
}

// nameMatches reports an exact case-insensitive match between a process
// name and the target, tolerating a missing .exe suffix on either side.
// Substring matches are deliberately rejected: a launcher named
// PlayRDR2.exe must never satisfy a search for RDR2.exe.
func nameMatches(target, name string) bool {
	if target == "" || name == "" {
		return false
	}
	return strings.EqualFold(trimExe(target), trimExe(name))
}

func trimExe(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".exe") {
		return name[:len(name)-4]
	}
	return name
}

// SystemProcesses implements Processes against the live process table.
type SystemProcesses struct{}

// Find scans the process table for an exact name match, comparing both the
// reported process name and the executable's file name.
func (SystemProcesses) Find(target string) (*ProcessInfo, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("agent: list processes: %w", err)
	}

	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue
		}
		exe, _ := p.Exe()
		exeBase := ""
		if exe != "" {
			exeBase = filepath.Base(exe)
		}

		if nameMatches(target, name) || nameMatches(target, exeBase) {
			return &ProcessInfo{PID: p.Pid, Name: name, Exe: exe}, nil
		}
	}
	return nil, nil
}

// Terminate stops every process matching name. Each one gets a graceful
// terminate first, then a kill after terminateGrace if it is still running.
func (SystemProcesses) Terminate(name string) (bool, error) {
	procs, err := process.Processes()
	if err != nil {
		return false, fmt.Errorf("agent: list processes: %w", err)
	}

	stopped := false
	for _, p := range procs {
		pname, err := p.Name()
		if err != nil {
			continue
		}
		exe, _ := p.Exe()
		exeBase := ""
		if exe != "" {
			exeBase = filepath.Base(exe)
		}
		if !nameMatches(name, pname) && !nameMatches(name, exeBase) {
			continue
		}

		if err := stopProcess(p); err != nil {
			continue
		}
		stopped = true
	}
	return stopped, nil
}

// TerminatePID stops a single process by PID.
func (SystemProcesses) TerminatePID(pid int32) error {
	p, err := process.NewProcess(pid)
	if err != nil {
		return fmt.Errorf("agent: process %d: %w", pid, err)
	}
	return stopProcess(p)
}

// terminateGrace is how long a process gets to exit after a graceful
// terminate before it is killed.
const terminateGrace = 5 * time.Second

func stopProcess(p *process.Process) error {
	if err := p.Terminate(); err != nil {
		return p.Kill()
	}

	deadline := time.Now().Add(terminateGrace)
	for time.Now().Before(deadline) {
		running, err := p.IsRunning()
		if err != nil || !running {
			return nil
		}
		time.Sleep(250 * time.Millisecond)
	}
	return p.Kill()
}
