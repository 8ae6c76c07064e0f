package util

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// ExecWithOutput runs cmd in workDir and returns trimmed stdout. On
// failure the trimmed stderr becomes the error text, so git and tmux
// failures surface their own diagnostics instead of "exit status 1".
// The git layer depends on that contract to spot index.lock contention
// and rebase conflicts in the message.
func ExecWithOutput(workDir, cmd string, args ...string) (string, error) {
	c := exec.Command(cmd, args...) //nolint:gosec // G204: callers validate args
	c.Dir = workDir

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	if err := c.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s", msg)
		}
		return "", err
	}
	return strings.TrimSpace(stdout.String()), nil
}

// ExecRun runs cmd in workDir, discarding stdout. Errors carry stderr
// per the ExecWithOutput contract.
func ExecRun(workDir, cmd string, args ...string) error {
	_, err := ExecWithOutput(workDir, cmd, args...)
	return err
}
