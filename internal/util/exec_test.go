package util

import (
	"runtime"
	"strings"
	"testing"
)

func TestExecWithOutputTrimsStdout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell differences")
	}
	out, err := ExecWithOutput(".", "echo", "hello")
	if err != nil {
		t.Fatalf("ExecWithOutput: %v", err)
	}
	if out != "hello" {
		t.Errorf("output = %q, want hello without trailing newline", out)
	}
}

func TestExecWithOutputRespectsWorkDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell differences")
	}
	dir := t.TempDir()
	out, err := ExecWithOutput(dir, "pwd")
	if err != nil {
		t.Fatalf("ExecWithOutput: %v", err)
	}
	// macOS tempdirs resolve through /private; containment either way.
	if !strings.Contains(out, dir) && !strings.Contains(dir, out) {
		t.Errorf("pwd = %q, want it under %q", out, dir)
	}
}

func TestExecErrorCarriesStderr(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell differences")
	}
	_, err := ExecWithOutput(".", "sh", "-c", "echo 'index.lock held' >&2; exit 1")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "index.lock held") {
		t.Errorf("err = %q, want the stderr text as the message", err)
	}
}

func TestExecRun(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell differences")
	}
	if err := ExecRun(".", "true"); err != nil {
		t.Fatalf("ExecRun: %v", err)
	}
	if err := ExecRun(".", "false"); err == nil {
		t.Error("expected error for failing command")
	}
}
