package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// writeTestConfig writes a minimal config pointing the state file into dir.
func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()
	cfgPath := filepath.Join(dir, "katana.yaml")
	content := fmt.Sprintf("state_file: %s\n", filepath.Join(dir, "suts.json"))
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return cfgPath
}

func TestVersionCmd(t *testing.T) {
	out, err := runCommand(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "katana") {
		t.Errorf("output = %q, want to contain katana", out)
	}
}

func TestSUTAddListRemove(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir())

	out, err := runCommand(t, "sut", "add", "rig-01", "--addr", "10.0.0.5", "-c", cfgPath)
	if err != nil {
		t.Fatalf("sut add: %v\n%s", err, out)
	}
	if !strings.Contains(out, "rig-01") {
		t.Errorf("add output = %q, want SUT name", out)
	}
	// Bare host gets the default agent port.
	if !strings.Contains(out, ":8080") {
		t.Errorf("add output = %q, want default port appended", out)
	}

	out, err = runCommand(t, "sut", "list", "-c", cfgPath)
	if err != nil {
		t.Fatalf("sut list: %v", err)
	}
	if !strings.Contains(out, "rig-01") || !strings.Contains(out, "10.0.0.5:8080") {
		t.Errorf("list output = %q, want the registered SUT", out)
	}

	if _, err = runCommand(t, "sut", "add", "rig-01", "--addr", "10.0.0.5", "-c", cfgPath); err == nil {
		t.Error("duplicate add should fail")
	}

	out, err = runCommand(t, "sut", "remove", "rig-01", "-c", cfgPath)
	if err != nil {
		t.Fatalf("sut remove: %v\n%s", err, out)
	}

	out, err = runCommand(t, "sut", "list", "-c", cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No SUTs registered") {
		t.Errorf("list after remove = %q, want empty fleet", out)
	}
}

func TestSUTRemove_Unknown(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir())
	if _, err := runCommand(t, "sut", "remove", "ghost", "-c", cfgPath); err == nil {
		t.Error("removing an unknown SUT should fail")
	}
}

func TestStart_NoSUTs(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir())
	_, err := runCommand(t, "start", "-c", cfgPath)
	if err == nil {
		t.Fatal("start with an empty fleet should fail")
	}
	if !strings.Contains(err.Error(), "no SUTs registered") {
		t.Errorf("error = %q, want empty-fleet message", err)
	}
}
