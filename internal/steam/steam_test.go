package steam

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fixtureLibrary builds a Steam library tree with one installed app and
// returns its root.
func fixtureLibrary(t *testing.T, appID, installDir string, exes map[string]int) string {
	t.Helper()
	root := t.TempDir()

	manifest := fmt.Sprintf("\"AppState\"\n{\n\t\"appid\"\t\t\"%s\"\n\t\"installdir\"\t\t\"%s\"\n}\n", appID, installDir)
	writeFile(t, filepath.Join(root, "steamapps", "appmanifest_"+appID+".acf"), manifest)

	gameDir := filepath.Join(root, "steamapps", "common", installDir)
	for name, size := range exes {
		writeFile(t, filepath.Join(gameDir, name), strings.Repeat("x", size))
	}
	return root
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestParseAppID(t *testing.T) {
	tests := []struct {
		target string
		want   string
		ok     bool
	}{
		{"1091500", "1091500", true},
		{"steam://rungameid/1174180", "1174180", true},
		{"steam://run/440", "440", true},
		{`C:\Games\RDR2\RDR2.exe`, "", false},
		{"steam://open/library", "", false},
		{"12ab", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseAppID(tt.target)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseAppID(%q) = %q, %v, want %q, %v", tt.target, got, ok, tt.want, tt.ok)
		}
	}
}

func TestProtocolURL(t *testing.T) {
	if got := ProtocolURL("1091500"); got != "steam://rungameid/1091500" {
		t.Errorf("ProtocolURL = %q", got)
	}
}

func TestAppPath_InstallDirExecutable(t *testing.T) {
	root := fixtureLibrary(t, "1091500", "Cyberpunk 2077", map[string]int{
		"Cyberpunk 2077.exe": 10,
		"setup.exe":          9000,
	})
	r := &Resolver{Root: root}

	got, err := r.AppPath("1091500", "")
	if err != nil {
		t.Fatalf("AppPath: %v", err)
	}
	if filepath.Base(got) != "Cyberpunk 2077.exe" {
		t.Errorf("resolved %q, want the installdir-named executable", got)
	}
}

func TestAppPath_HintBeatsInstallDir(t *testing.T) {
	root := fixtureLibrary(t, "1174180", "Red Dead Redemption 2", map[string]int{
		"Red Dead Redemption 2.exe": 100,
		"RDR2.exe":                  50,
	})
	r := &Resolver{Root: root}

	got, err := r.AppPath("1174180", "RDR2")
	if err != nil {
		t.Fatalf("AppPath: %v", err)
	}
	if filepath.Base(got) != "RDR2.exe" {
		t.Errorf("resolved %q, want the hinted executable", got)
	}
}

func TestAppPath_HintFoundByWalk(t *testing.T) {
	root := fixtureLibrary(t, "271590", "Grand Theft Auto V", map[string]int{
		"PlayGTAV.exe":          10,
		"bin/GTA5.exe":          5,
		"Grand Theft Auto V.exe": 1,
	})
	r := &Resolver{Root: root}

	got, err := r.AppPath("271590", "GTA5.exe")
	if err != nil {
		t.Fatalf("AppPath: %v", err)
	}
	if filepath.Base(got) != "GTA5.exe" {
		t.Errorf("resolved %q, want the hint found in a subdirectory", got)
	}
}

func TestAppPath_LargestExeFallback(t *testing.T) {
	root := fixtureLibrary(t, "570", "dota 2 beta", map[string]int{
		"uninstall.exe":    10,
		"game/dota2.exe":   5000,
		"tools/helper.exe": 200,
	})
	r := &Resolver{Root: root}

	got, err := r.AppPath("570", "")
	if err != nil {
		t.Fatalf("AppPath: %v", err)
	}
	if filepath.Base(got) != "dota2.exe" {
		t.Errorf("resolved %q, want the largest executable", got)
	}
}

func TestAppPath_SearchesSecondaryLibraries(t *testing.T) {
	// App lives in a secondary library named by libraryfolders.vdf.
	secondary := fixtureLibrary(t, "292030", "The Witcher 3", map[string]int{
		"The Witcher 3.exe": 42,
	})
	root := t.TempDir()
	vdf := fmt.Sprintf("\"libraryfolders\"\n{\n\t\"0\"\n\t{\n\t\t\"path\"\t\t\"%s\"\n\t}\n\t\"1\"\n\t{\n\t\t\"path\"\t\t\"%s\"\n\t}\n}\n", root, secondary)
	writeFile(t, filepath.Join(root, "steamapps", "libraryfolders.vdf"), vdf)

	r := &Resolver{Root: root}
	got, err := r.AppPath("292030", "")
	if err != nil {
		t.Fatalf("AppPath: %v", err)
	}
	if !strings.HasPrefix(got, secondary) {
		t.Errorf("resolved %q, want a path under the secondary library %q", got, secondary)
	}
}

func TestAppPath_NotInstalled(t *testing.T) {
	r := &Resolver{Root: t.TempDir()}
	_, err := r.AppPath("99999", "")
	if !errors.Is(err, ErrNotInstalled) {
		t.Errorf("err = %v, want ErrNotInstalled", err)
	}
}

func TestAppPath_NoRoot(t *testing.T) {
	r := &Resolver{}
	if _, err := r.AppPath("440", ""); err == nil {
		t.Error("empty root should fail")
	}
}

func TestAppPath_NoExecutables(t *testing.T) {
	root := fixtureLibrary(t, "440", "Team Fortress 2", map[string]int{
		"readme.txt": 10,
	})
	r := &Resolver{Root: root}
	_, err := r.AppPath("440", "")
	if err == nil || !strings.Contains(err.Error(), "no executable") {
		t.Errorf("err = %v, want no-executable error", err)
	}
}
