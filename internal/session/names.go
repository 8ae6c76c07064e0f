// Package session derives tmux session names for Muster workers.
package session

import (
	"strings"

	"github.com/steveyegge/muster/internal/constants"
)

// WorkerSessionName returns the tmux session name for a worker.
// Names are deterministic so a restarted daemon can rediscover sessions,
// and prefixed so `tmux list-sessions` output is filterable.
func WorkerSessionName(worker string) string {
	return constants.SessionPrefix + worker
}

// IsWorkerSession reports whether a tmux session name belongs to Muster.
func IsWorkerSession(name string) bool {
	return strings.HasPrefix(name, constants.SessionPrefix)
}

// WorkerFromSession extracts the worker name from a session name.
// Returns "" if the session is not a Muster session.
func WorkerFromSession(name string) string {
	if !IsWorkerSession(name) {
		return ""
	}
	return strings.TrimPrefix(name, constants.SessionPrefix)
}
