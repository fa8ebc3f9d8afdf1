package agent

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"sync"
)

// Launcher abstracts the two spawn paths: direct executable start and
// OS-level URL dispatch for steam:// targets.
type Launcher interface {
	// Start launches an executable directly and returns a tracking handle.
	Start(path string) (*Spawned, error)
	// Open hands a URL to the OS protocol handler.
	Open(url string) error
}

// Spawned tracks a directly-launched subprocess.
type Spawned struct {
	PID int

	mu      sync.Mutex
	done    bool
	exitErr error
}

// Running reports whether the subprocess is still alive. A launcher binary
// that exits after spawning the real game makes this false without meaning
// failure.
func (s *Spawned) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.done
}

// Status renders the subprocess state for launch reports.
func (s *Spawned) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case !s.done:
		return "running"
	case s.exitErr != nil:
		return fmt.Sprintf("exited: %v", s.exitErr)
	default:
		return "exited"
	}
}

func (s *Spawned) markDone(err error) {
	s.mu.Lock()
	s.done = true
	s.exitErr = err
	s.mu.Unlock()
}

// SystemLauncher implements Launcher with os/exec and the OS URL handler.
type SystemLauncher struct{}

// Start runs the executable with its own directory as working directory;
// games commonly resolve assets relative to the binary.
func (SystemLauncher) Start(path string) (*Spawned, error) {
	cmd := exec.Command(path)
	cmd.Dir = filepath.Dir(path)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("agent: start %s: %w", path, err)
	}

	sp := &Spawned{PID: cmd.Process.Pid}
	go func() {
		sp.markDone(cmd.Wait())
	}()
	return sp, nil
}

// Open dispatches the URL to the platform handler (openURL is per-OS).
func (SystemLauncher) Open(url string) error {
	if err := openURL(url); err != nil {
		return fmt.Errorf("agent: open %s: %w", url, err)
	}
	return nil
}
