//go:build !windows

package agent

import "errors"

var errUnsupported = errors.New("agent: window automation not supported on this platform")

// stubAutomation is the non-Windows capability: every query fails, so
// launches report warning-grade results instead of foreground confirmation.
type stubAutomation struct{}

// NewWindows returns the window automation capability for this platform.
func NewWindows() Windows {
	return stubAutomation{}
}

func (stubAutomation) TopWindow(int32) (Handle, error) { return 0, errUnsupported }
func (stubAutomation) IsVisible(Handle) bool           { return false }
func (stubAutomation) IsReady(Handle) bool             { return false }
func (stubAutomation) SetFocus(Handle) error           { return errUnsupported }
func (stubAutomation) ForceForeground(Handle) error    { return errUnsupported }
func (stubAutomation) Foreground() (Handle, int32)     { return 0, 0 }
