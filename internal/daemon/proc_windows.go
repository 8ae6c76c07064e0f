//go:build windows

package daemon

import (
	"os"
	"os/exec"
)

// setSysProcAttr sets platform-specific process attributes.
// On Windows the spawned process already runs independently.
func setSysProcAttr(cmd *exec.Cmd) {
}

// isProcessAlive checks if a process is still running.
func isProcessAlive(p *os.Process) bool {
	// Signal(0) is not supported on Windows; signaling a dead process is
	// the closest liveness probe available.
	return p.Signal(os.Signal(nil)) == nil
}

// sendTermSignal requests termination. Windows has no SIGTERM, so this
// is a hard kill.
func sendTermSignal(p *os.Process) error {
	return p.Kill()
}
