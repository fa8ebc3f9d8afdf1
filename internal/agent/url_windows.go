//go:build windows

package agent

import "os/exec"

// openURL routes the URL through the shell so the registered steam://
// protocol handler picks it up.
func openURL(url string) error {
	return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
}
