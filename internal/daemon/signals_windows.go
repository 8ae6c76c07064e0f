//go:build windows

package daemon

import "os"

// Signals returns the signals that stop a foreground daemon.
func Signals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
