//go:build !windows

package agent

import (
	"os/exec"
	"runtime"
)

func openURL(url string) error {
	opener := "xdg-open"
	if runtime.GOOS == "darwin" {
		opener = "open"
	}
	return exec.Command(opener, url).Start()
}
