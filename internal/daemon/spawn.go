package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/steveyegge/muster/internal/constants"
)

// StartDetached re-execs the current binary as a background daemon for
// the depot and waits briefly for it to come up. Returns the daemon PID.
func StartDetached(root string) (int, error) {
	if running, pid := IsRunning(root); running {
		return 0, fmt.Errorf("daemon already running (pid %d)", pid)
	}

	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("locating muster binary: %w", err)
	}

	cmd := exec.Command(exe, "up", "--foreground")
	cmd.Dir = root
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	setSysProcAttr(cmd)
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("starting daemon: %w", err)
	}
	childPID := cmd.Process.Pid
	// The child outlives us; Release avoids a zombie if we exit first.
	_ = cmd.Process.Release()

	deadline := time.Now().Add(constants.StopWaitTimeout)
	for time.Now().Before(deadline) {
		if running, pid := IsRunning(root); running {
			return pid, nil
		}
		time.Sleep(constants.PollInterval)
	}
	return childPID, fmt.Errorf("daemon did not report ready within %s; check %s", constants.StopWaitTimeout, constants.FileDaemonLog)
}
