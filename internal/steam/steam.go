// Package steam resolves Steam app IDs to installed executables by reading
// the library and manifest files Steam maintains on disk.
package steam

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrNotInstalled reports that no install manifest exists for an app ID in
// any known library folder.
var ErrNotInstalled = errors.New("steam: app not installed")

var (
	appIDPattern      = regexp.MustCompile(`^\d+$`)
	protocolIDPattern = regexp.MustCompile(`run(?:gameid)?/(\d+)`)
	libraryPattern    = regexp.MustCompile(`"path"\s+"([^"]+)"`)
	installDirPattern = regexp.MustCompile(`"installdir"\s+"([^"]+)"`)
)

// ParseAppID extracts a Steam app ID from a launch target: either a bare
// numeric ID or a steam:// URI embedding one. ok is false for plain paths.
func ParseAppID(target string) (appID string, ok bool) {
	if appIDPattern.MatchString(target) {
		return target, true
	}
	if strings.HasPrefix(target, "steam://") {
		if m := protocolIDPattern.FindStringSubmatch(target); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// ProtocolURL builds the steam:// URL that launches an app through the
// Steam client (starting the client first if it is not running).
func ProtocolURL(appID string) string {
	return "steam://rungameid/" + appID
}

// Resolver locates installed apps under a Steam installation root.
// Root is discovered per-OS by DefaultRoot; tests point it at a fixture tree.
type Resolver struct {
	Root string
}

// AppPath resolves an app ID to its game executable. processHint, when set,
// names the executable to prefer (with or without the .exe suffix).
func (r *Resolver) AppPath(appID, processHint string) (string, error) {
	if r.Root == "" {
		return "", fmt.Errorf("steam: installation root not found")
	}

	libraries := r.libraries()

	manifestName := fmt.Sprintf("appmanifest_%s.acf", appID)
	var manifestPath, library string
	for _, lib := range libraries {
		p := filepath.Join(lib, "steamapps", manifestName)
		if _, err := os.Stat(p); err == nil {
			manifestPath = p
			library = lib
			break
		}
	}
	if manifestPath == "" {
		return "", fmt.Errorf("steam: app %s: %w", appID, ErrNotInstalled)
	}

	content, err := os.ReadFile(manifestPath)
	if err != nil {
		return "", fmt.Errorf("steam: read manifest %s: %w", manifestPath, err)
	}
	m := installDirPattern.FindSubmatch(content)
	if m == nil {
		return "", fmt.Errorf("steam: manifest %s has no installdir", manifestPath)
	}
	installDir := string(m[1])

	gameDir := filepath.Join(library, "steamapps", "common", installDir)
	if _, err := os.Stat(gameDir); err != nil {
		return "", fmt.Errorf("steam: game folder %s: %w", gameDir, err)
	}

	return selectExecutable(gameDir, installDir, processHint)
}

// libraries returns every Steam library folder: the parsed
// libraryfolders.vdf entries, or just the root if the file is absent or
// unparseable.
func (r *Resolver) libraries() []string {
	vdfPath := filepath.Join(r.Root, "steamapps", "libraryfolders.vdf")
	content, err := os.ReadFile(vdfPath)
	if err != nil {
		return []string{r.Root}
	}

	var libs []string
	for _, m := range libraryPattern.FindAllSubmatch(content, -1) {
		lib := strings.ReplaceAll(string(m[1]), `\\`, `\`)
		libs = append(libs, lib)
	}
	if len(libs) == 0 {
		return []string{r.Root}
	}
	return libs
}

// selectExecutable picks the game binary inside gameDir, in order of
// preference: the hinted process name, an executable named after the
// install directory, then the largest .exe found by recursive scan.
func selectExecutable(gameDir, installDir, processHint string) (string, error) {
	if processHint != "" {
		name := processHint
		if !strings.HasSuffix(strings.ToLower(name), ".exe") {
			name += ".exe"
		}
		if p := filepath.Join(gameDir, name); exists(p) {
			return p, nil
		}
		if p := findByName(gameDir, name); p != "" {
			return p, nil
		}
	}

	if p := filepath.Join(gameDir, installDir+".exe"); exists(p) {
		return p, nil
	}

	if p := largestExe(gameDir); p != "" {
		return p, nil
	}
	return "", fmt.Errorf("steam: no executable found in %s", gameDir)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// findByName walks gameDir for a file matching name (case-insensitive).
func findByName(gameDir, name string) string {
	var found string
	filepath.WalkDir(gameDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if strings.EqualFold(d.Name(), name) {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	return found
}

// largestExe returns the biggest .exe under gameDir. Heuristic of last
// resort: the main binary of a game is almost always its largest executable.
func largestExe(gameDir string) string {
	var best string
	var bestSize int64
	filepath.WalkDir(gameDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".exe") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() > bestSize {
			best = path
			bestSize = info.Size()
		}
		return nil
	})
	return best
}
