// Package worker implements the worker lifecycle state machine and the
// prompts delivered into worker sessions.
package worker

import (
	"time"

	"github.com/steveyegge/muster/internal/state"
)

// validTransitions maps each status to the set of statuses it may enter.
// Every status may enter Error (unrecoverable local conditions can strike
// anywhere) and every status may enter Rebasing, since an unresolved
// rebase can be discovered during accept, mid-review, or in an Offline
// worker's worktree at startup.
var validTransitions = map[state.WorkerStatus][]state.WorkerStatus{
	state.StatusOffline: {
		state.StatusIdle,
		state.StatusRebasing,
		state.StatusError,
	},
	state.StatusIdle: {
		state.StatusWorking,
		state.StatusRebasing,
		state.StatusError,
		state.StatusOffline,
	},
	state.StatusWorking: {
		state.StatusNeedsReview,
		state.StatusNoChanges,
		state.StatusRebasing,
		state.StatusError,
		state.StatusOffline,
	},
	state.StatusNeedsReview: {
		state.StatusIdle,
		state.StatusRebasing,
		state.StatusError,
		state.StatusOffline,
	},
	state.StatusNoChanges: {
		state.StatusIdle,
		state.StatusRebasing,
		state.StatusError,
		state.StatusOffline,
	},
	state.StatusRebasing: {
		state.StatusIdle,
		state.StatusError,
		state.StatusOffline,
	},
	state.StatusError: {
		state.StatusOffline,
	},
}

// CanTransition reports whether a status change is legal.
// Self-transitions are legal no-ops.
func CanTransition(from, to state.WorkerStatus) bool {
	if from == to {
		return true
	}
	for _, t := range validTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Transition moves a worker to a new status and stamps activity time.
//
// An illegal pair does not abort: the daemon must never crash on a state
// anomaly, so the status is set directly and the anomaly is reported
// through logf. Callers watching logs can spot drift between the recorded
// state and reality without the fleet going down.
func Transition(w *state.WorkerRecord, to state.WorkerStatus, now time.Time, logf func(format string, args ...interface{})) {
	if !CanTransition(w.Status, to) && logf != nil {
		logf("worker %s: invalid transition %s -> %s, setting directly", w.Name, w.Status, to)
	}
	w.Status = to
	w.LastActivityUnix = now.Unix()
}

// RecordCrash bumps the crash bookkeeping used for restart cooldowns.
func RecordCrash(w *state.WorkerRecord, now time.Time) {
	w.CrashCount++
	w.LastCrashUnix = now.Unix()
}

// MaybeResetCrashCount clears crash bookkeeping after a quiet day.
// A worker that crashed last week should not still pay an inflated
// cooldown for a fresh, unrelated failure.
func MaybeResetCrashCount(w *state.WorkerRecord, now time.Time, quiet time.Duration) {
	if w.CrashCount == 0 || w.LastCrashUnix == 0 {
		return
	}
	if now.Sub(time.Unix(w.LastCrashUnix, 0)) >= quiet {
		w.CrashCount = 0
		w.LastCrashUnix = 0
	}
}

// ErrorCooldown returns how long an errored worker must wait before the
// patrol loop moves it back to Offline for a restart attempt. The cooldown
// doubles with each crash and caps at 30 minutes:
// 60, 120, 240, 480, 960, 1800 seconds for crash counts 0..5+.
func ErrorCooldown(crashCount int) time.Duration {
	exp := crashCount
	if exp > 5 {
		exp = 5
	}
	secs := 60 * (1 << uint(exp))
	if secs > 1800 {
		secs = 1800
	}
	return time.Duration(secs) * time.Second
}
