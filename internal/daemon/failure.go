package daemon

import (
	"errors"
	"fmt"

	"github.com/steveyegge/muster/internal/constants"
	"github.com/steveyegge/muster/internal/state"
)

// HardFailure is terminal for the daemon: the main loop begins graceful
// shutdown, persists state, and the process exits non-zero. Everything
// below this severity is logged and retried, never fatal.
type HardFailure struct {
	Reason string
}

func (f *HardFailure) Error() string {
	return "hard failure: " + f.Reason
}

func hardFailuref(format string, args ...interface{}) *HardFailure {
	return &HardFailure{Reason: fmt.Sprintf(format, args...)}
}

// IsHardFailure reports whether an error is (or wraps) a HardFailure.
func IsHardFailure(err error) bool {
	var h *HardFailure
	return errors.As(err, &h)
}

// TransientKind names a recoverable worker symptom.
type TransientKind string

// Transient failure kinds.
const (
	// SessionCrash means the agent process died inside a live session.
	SessionCrash TransientKind = "session_crash"

	// TmuxSessionMissing means the worker's tmux session disappeared.
	TmuxSessionMissing TransientKind = "tmux_session_missing"
)

// TransientFailure names a worker and a recoverable symptom. Computed
// fresh each patrol pass from state, never persisted.
type TransientFailure struct {
	Kind   TransientKind
	Worker string
}

func (f TransientFailure) String() string {
	switch f.Kind {
	case SessionCrash:
		return fmt.Sprintf("session crash for worker %q", f.Worker)
	case TmuxSessionMissing:
		return fmt.Sprintf("tmux session missing for worker %q", f.Worker)
	}
	return fmt.Sprintf("%s for worker %q", f.Kind, f.Worker)
}

// RecoveryResult is the outcome of one recovery attempt.
type RecoveryResult interface {
	recoveryResult()
}

// Recovered means the worker can continue.
type Recovered struct{}

// RetryNeeded means the attempt failed and the next patrol pass should
// try again, if attempts remain.
type RetryNeeded struct{}

// EscalateToHardFailure means recovery is exhausted or impossible.
type EscalateToHardFailure struct {
	Failure *HardFailure
}

func (Recovered) recoveryResult()             {}
func (RetryNeeded) recoveryResult()           {}
func (EscalateToHardFailure) recoveryResult() {}

// detectTransientFailures scans the fleet for workers that hold work and
// have lost their session. Idle workers are excluded: with nothing in
// flight, a vanished session is handled by the patrol loop re-deriving
// Offline rather than by the recovery engine.
func (d *Daemon) detectTransientFailures(st *state.State) []TransientFailure {
	var failures []TransientFailure
	for _, name := range st.WorkerNames() {
		w := st.Workers[name]
		switch w.Status {
		case state.StatusWorking, state.StatusNeedsReview, state.StatusNoChanges, state.StatusRebasing:
		default:
			continue
		}
		if !d.sessions.SessionExists(w.SessionID) {
			failures = append(failures, TransientFailure{Kind: TmuxSessionMissing, Worker: name})
		}
	}
	return failures
}

// attemptRecovery tries to recover one transient failure by restarting
// the worker's session. The retry budget is checked before the attempt;
// exhausting it escalates to a hard failure, per the two-tier taxonomy.
func (d *Daemon) attemptRecovery(st *state.State, failure TransientFailure) RecoveryResult {
	w := st.Worker(failure.Worker)
	if w == nil {
		return EscalateToHardFailure{Failure: hardFailuref("worker %q not found during recovery", failure.Worker)}
	}

	attempts := w.RetryCount
	w.RetryCount++
	if attempts >= constants.MaxRetryAttempts {
		return EscalateToHardFailure{Failure: hardFailuref(
			"worker %q retries exhausted after %d attempts (%s)", failure.Worker, attempts, failure)}
	}

	d.logf("worker %s: attempting recovery from %s (attempt %d/%d)",
		failure.Worker, failure, attempts+1, constants.MaxRetryAttempts)

	if err := d.startSession(w); err != nil {
		d.logf("worker %s: recovery attempt failed: %v", failure.Worker, err)
		return RetryNeeded{}
	}

	w.RetryCount = 0
	// The fresh agent announces readiness through the session-ready hook;
	// any pending prompt is delivered then.
	if w.CurrentPrompt != "" && w.PendingTaskPrompt == "" {
		w.PendingTaskPrompt = w.CurrentPrompt
	}
	d.logf("worker %s: session restarted", failure.Worker)
	return Recovered{}
}

// runFailureRecovery detects and recovers transient failures, returning a
// hard failure if any recovery escalates.
func (d *Daemon) runFailureRecovery(st *state.State) error {
	for _, failure := range d.detectTransientFailures(st) {
		switch res := d.attemptRecovery(st, failure).(type) {
		case Recovered:
		case RetryNeeded:
			d.logf("worker %s: recovery retry needed (%s)", failure.Worker, failure)
		case EscalateToHardFailure:
			return res.Failure
		}
	}
	return nil
}
