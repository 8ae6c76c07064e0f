//go:build !windows

package daemon

import (
	"os"
	"syscall"
)

// Signals returns the signals that stop a foreground daemon.
func Signals() []os.Signal {
	return []os.Signal{
		syscall.SIGINT,
		syscall.SIGTERM,
	}
}
