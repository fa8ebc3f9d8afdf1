//go:build windows

package agent

import (
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procEnumWindows              = user32.NewProc("EnumWindows")
	procGetWindowThreadProcessID = user32.NewProc("GetWindowThreadProcessId")
	procIsWindowVisible          = user32.NewProc("IsWindowVisible")
	procGetWindowTextLengthW     = user32.NewProc("GetWindowTextLengthW")
	procGetForegroundWindow      = user32.NewProc("GetForegroundWindow")
	procSetForegroundWindow      = user32.NewProc("SetForegroundWindow")
	procBringWindowToTop         = user32.NewProc("BringWindowToTop")
	procShowWindow               = user32.NewProc("ShowWindow")
	procIsIconic                 = user32.NewProc("IsIconic")
	procAttachThreadInput        = user32.NewProc("AttachThreadInput")
	procAllowSetForeground       = user32.NewProc("AllowSetForegroundWindow")
	procSendInput                = user32.NewProc("SendInput")
	procSendMessageTimeoutW      = user32.NewProc("SendMessageTimeoutW")
	procGetCurrentThreadID       = kernel32.NewProc("GetCurrentThreadId")
)

const (
	swShow    = 5
	swRestore = 9

	asfwAny = ^uintptr(0) // ASFW_ANY (-1): any process may take foreground

	vkMenu         = 0x12 // Alt
	inputKeyboard  = 1
	keyeventfKeyup = 0x0002

	smtoAbortIfHung = 0x0002
)

// keybdInput mirrors the Win32 INPUT struct for keyboard events. The
// trailing padding matches the size of the MOUSEINPUT union arm.
type keybdInput struct {
	typ         uint32
	_           uint32 // alignment
	wVk         uint16
	wScan       uint16
	dwFlags     uint32
	time        uint32
	dwExtraInfo uintptr
	_           [8]byte
}

// winAutomation implements Windows against user32.
type winAutomation struct{}

// NewWindows returns the native window automation capability.
func NewWindows() Windows {
	return winAutomation{}
}

// TopWindow enumerates top-level windows and returns the first visible,
// titled one owned by pid.
func (winAutomation) TopWindow(pid int32) (Handle, error) {
	var found Handle
	cb := syscall.NewCallback(func(hwnd uintptr, _ uintptr) uintptr {
		var windowPID uint32
		procGetWindowThreadProcessID.Call(hwnd, uintptr(unsafe.Pointer(&windowPID)))
		if int32(windowPID) != pid {
			return 1 // continue
		}
		if visible, _, _ := procIsWindowVisible.Call(hwnd); visible == 0 {
			return 1
		}
		if length, _, _ := procGetWindowTextLengthW.Call(hwnd); length == 0 {
			return 1
		}
		found = Handle(hwnd)
		return 0 // stop
	})
	procEnumWindows.Call(cb, 0)

	if found == 0 {
		return 0, ErrNoWindow
	}
	return found, nil
}

func (winAutomation) IsVisible(h Handle) bool {
	visible, _, _ := procIsWindowVisible.Call(uintptr(h))
	return visible != 0
}

// IsReady probes the window's input queue with a zero-timeout-tolerant
// WM_NULL; a hung or still-loading queue fails the call.
func (winAutomation) IsReady(h Handle) bool {
	ret, _, _ := procSendMessageTimeoutW.Call(
		uintptr(h), 0 /* WM_NULL */, 0, 0,
		smtoAbortIfHung, 1000, 0,
	)
	return ret != 0
}

// SetFocus is the plain foreground request. It fails silently under the
// OS foreground lock; ForceForeground is the workaround path.
func (winAutomation) SetFocus(h Handle) error {
	ret, _, _ := procSetForegroundWindow.Call(uintptr(h))
	if ret == 0 {
		return fmt.Errorf("agent: SetForegroundWindow refused")
	}
	return nil
}

// ForceForeground applies the foreground-lock workaround sequence: a
// synthetic Alt press marks the user as active, foreground changes are
// explicitly permitted, the calling thread's input state is attached to the
// window's owning thread, the window is restored/shown, raised and
// foregrounded, and the threads are detached again.
func (winAutomation) ForceForeground(h Handle) error {
	pressAlt()

	procAllowSetForeground.Call(asfwAny)

	currentTID, _, _ := procGetCurrentThreadID.Call()
	targetTID, _, _ := procGetWindowThreadProcessID.Call(uintptr(h), 0)

	attached := false
	if currentTID != targetTID {
		if ok, _, _ := procAttachThreadInput.Call(currentTID, targetTID, 1); ok != 0 {
			attached = true
		}
	}
	defer func() {
		if attached {
			procAttachThreadInput.Call(currentTID, targetTID, 0)
		}
	}()

	if iconic, _, _ := procIsIconic.Call(uintptr(h)); iconic != 0 {
		procShowWindow.Call(uintptr(h), swRestore)
	} else {
		procShowWindow.Call(uintptr(h), swShow)
	}

	procBringWindowToTop.Call(uintptr(h))
	if ret, _, _ := procSetForegroundWindow.Call(uintptr(h)); ret == 0 {
		return fmt.Errorf("agent: SetForegroundWindow refused after attach")
	}
	return nil
}

func (winAutomation) Foreground() (Handle, int32) {
	hwnd, _, _ := procGetForegroundWindow.Call()
	if hwnd == 0 {
		return 0, 0
	}
	var pid uint32
	procGetWindowThreadProcessID.Call(hwnd, uintptr(unsafe.Pointer(&pid)))
	return Handle(hwnd), int32(pid)
}

// pressAlt synthesizes an Alt press and release. The OS treats recent
// keyboard input as user activity, which unlocks foreground switching.
func pressAlt() {
	down := keybdInput{typ: inputKeyboard, wVk: vkMenu}
	up := keybdInput{typ: inputKeyboard, wVk: vkMenu, dwFlags: keyeventfKeyup}

	procSendInput.Call(1, uintptr(unsafe.Pointer(&down)), unsafe.Sizeof(down))
	procSendInput.Call(1, uintptr(unsafe.Pointer(&up)), unsafe.Sizeof(up))
}
