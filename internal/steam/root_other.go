//go:build !windows

package steam

import (
	"os"
	"path/filepath"
)

// DefaultRoot returns the first conventional Steam install location that
// exists. Non-Windows agents are mainly used in development and tests.
func DefaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	candidates := []string{
		filepath.Join(home, ".steam", "steam"),
		filepath.Join(home, ".local", "share", "Steam"),
		filepath.Join(home, "Library", "Application Support", "Steam"),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}
