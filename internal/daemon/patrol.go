package daemon

import (
	"time"

	"github.com/steveyegge/muster/internal/constants"
	"github.com/steveyegge/muster/internal/events"
	"github.com/steveyegge/muster/internal/state"
	"github.com/steveyegge/muster/internal/worker"
)

// applyEvent applies one hook-delivered lifecycle event to the fleet.
// Events for unknown workers are logged and dropped; hooks can outlive
// the worker they belonged to.
func (d *Daemon) applyEvent(st *state.State, ev events.LifecycleEvent) {
	w := st.Worker(ev.Worker)
	if w == nil {
		d.logf("event %s for unknown worker %q, ignoring", ev.Type, ev.Worker)
		return
	}
	now := d.now()

	switch ev.Type {
	case events.LifecycleSessionReady:
		if w.Status == state.StatusOffline {
			worker.Transition(w, state.StatusIdle, now, d.logf)
			d.logf("worker %s: session ready", w.Name)
		}
		if w.PendingTaskPrompt != "" {
			if err := d.sessions.SendText(w.SessionID, w.PendingTaskPrompt); err != nil {
				d.logf("worker %s: delivering pending prompt: %v", w.Name, err)
				return
			}
			w.CurrentPrompt = w.PendingTaskPrompt
			w.PendingTaskPrompt = ""
			w.PendingRebasePrompt = false
			w.LastActivityUnix = now.Unix()
			d.logf("worker %s: delivered pending prompt", w.Name)
		}

	case events.LifecycleTaskDone:
		if w.Status != state.StatusWorking {
			d.logf("worker %s: task-done in status %s, ignoring", w.Name, w.Status)
			return
		}
		sha, err := d.git.HeadCommit(w.WorktreePath)
		if err != nil {
			d.logf("worker %s: reading result commit: %v", w.Name, err)
		} else {
			w.CommitSHA = sha
		}
		worker.Transition(w, state.StatusNeedsReview, now, d.logf)
		d.logf("worker %s: finished, result %s", w.Name, w.CommitSHA)

	case events.LifecycleNoChanges:
		if w.Status != state.StatusWorking {
			d.logf("worker %s: no-changes in status %s, ignoring", w.Name, w.Status)
			return
		}
		worker.Transition(w, state.StatusNoChanges, now, d.logf)
		d.logf("worker %s: finished with no changes", w.Name)

	case events.LifecycleStopped:
		d.logf("worker %s: agent stopped in status %s", w.Name, w.Status)
		d.handleCrash(st, w)

	default:
		d.logf("worker %s: unknown event type %q, ignoring", w.Name, ev.Type)
	}
}

// handleCrash records an unexpected agent death and returns the worker to
// Offline so the main loop can restart it. Any claimed task goes back to
// the pool: the fresh agent will have no memory of it.
func (d *Daemon) handleCrash(st *state.State, w *state.WorkerRecord) {
	now := d.now()
	worker.RecordCrash(w, now)

	if w.ActiveTaskID != "" {
		if err := d.tasks.Release(w.ActiveTaskID); err != nil {
			d.logf("worker %s: releasing task %s after crash: %v", w.Name, w.ActiveTaskID, err)
		} else {
			_ = events.Log(d.root, events.TypeRelease, w.Name, events.TaskPayload(w.Name, w.ActiveTaskID))
		}
		w.ActiveTaskID = ""
	}
	w.PendingTaskPrompt = ""
	w.CurrentPrompt = ""
	w.CommitSHA = ""

	if d.sessions.SessionExists(w.SessionID) {
		_ = d.sessions.KillSession(w.SessionID)
	}
	// Rebasing survives a crash: the worktree still holds the half-done
	// rebase and startup validation will route the worker back into it.
	if w.Status != state.StatusRebasing {
		worker.Transition(w, state.StatusOffline, now, d.logf)
	}
}

// patrol is the slower health pass layered over the per-tick work:
// session-existence re-derivation, error cooldowns, stall nudges, and
// crash bookkeeping decay. Event draining happens every tick in the main
// loop; failure recovery runs right after patrol at the same cadence.
func (d *Daemon) patrol(st *state.State) {
	now := d.now()

	for _, name := range st.WorkerNames() {
		w := st.Workers[name]

		switch w.Status {
		case state.StatusIdle:
			if !d.sessions.SessionExists(w.SessionID) {
				d.logf("worker %s: session disappeared, marking offline", w.Name)
				worker.RecordCrash(w, now)
				worker.Transition(w, state.StatusOffline, now, d.logf)
			}

		case state.StatusRebasing:
			d.checkRebaseResolved(st, w, now)

		case state.StatusError:
			cooldown := worker.ErrorCooldown(w.CrashCount)
			if now.Sub(time.Unix(w.LastActivityUnix, 0)) >= cooldown {
				d.logf("worker %s: error cooldown elapsed, allowing restart", w.Name)
				w.ErrorReason = ""
				w.RetryCount = 0
				worker.Transition(w, state.StatusOffline, now, d.logf)
			}

		case state.StatusWorking:
			d.maybeNudge(w, now)
		}

		worker.MaybeResetCrashCount(w, now, constants.CrashCountResetAfter)
	}
}

// checkRebaseResolved watches a Rebasing worker's worktree. Once the
// rebase is finished and the copy is clean, the worker re-enters the
// pipeline: back to NeedsReview if a result is still pending, otherwise
// Idle.
func (d *Daemon) checkRebaseResolved(st *state.State, w *state.WorkerRecord, now time.Time) {
	inProgress, err := d.git.IsRebaseInProgress(w.WorktreePath)
	if err != nil {
		d.logf("worker %s: checking rebase state: %v", w.Name, err)
		return
	}
	if inProgress {
		return
	}
	clean, err := d.git.IsWorktreeClean(w.WorktreePath)
	if err != nil || !clean {
		return
	}

	if w.ActiveTaskID != "" || w.CommitSHA != "" {
		worker.Transition(w, state.StatusNeedsReview, now, d.logf)
		d.logf("worker %s: rebase resolved, result pending review", w.Name)
		return
	}
	worker.Transition(w, state.StatusIdle, now, d.logf)
	d.logf("worker %s: rebase resolved", w.Name)
}

// maybeNudge re-sends the current prompt to a Working worker whose
// session is alive but has been silent too long. A swallowed Enter after
// a paste is the usual cause; one nudge per cooldown keeps this from
// spamming a genuinely busy agent.
func (d *Daemon) maybeNudge(w *state.WorkerRecord, now time.Time) {
	if w.CurrentPrompt == "" || w.PendingTaskPrompt != "" {
		return
	}
	if now.Sub(time.Unix(w.LastActivityUnix, 0)) < constants.StallNudgeAfter {
		return
	}
	if w.LastNudgeUnix != 0 && now.Sub(time.Unix(w.LastNudgeUnix, 0)) < constants.StallNudgeCooldown {
		return
	}
	if !d.sessions.SessionExists(w.SessionID) {
		return
	}
	if err := d.sessions.SendText(w.SessionID, w.CurrentPrompt); err != nil {
		d.logf("worker %s: nudge failed: %v", w.Name, err)
		return
	}
	w.LastNudgeUnix = now.Unix()
	d.logf("worker %s: nudged stalled session", w.Name)
	_ = events.Log(d.root, events.TypeNudge, w.Name, events.WorkerPayload(w.Name))
}
