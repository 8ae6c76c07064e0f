//go:build unix

package daemon

import (
	"os"
	"os/exec"
	"syscall"
)

// setSysProcAttr detaches the spawned daemon into its own process group
// so it survives the CLI invocation that launched it.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// isProcessAlive checks if a process is still running.
func isProcessAlive(p *os.Process) bool {
	return p.Signal(syscall.Signal(0)) == nil
}

// sendTermSignal sends SIGTERM for graceful shutdown.
func sendTermSignal(p *os.Process) error {
	return p.Signal(syscall.SIGTERM)
}
