package daemon

import (
	"fmt"

	"github.com/steveyegge/muster/internal/constants"
	"github.com/steveyegge/muster/internal/events"
	"github.com/steveyegge/muster/internal/state"
	"github.com/steveyegge/muster/internal/worker"
)

// startOfflineWorkers attempts to bring every Offline worker online.
// Startup validates the worktree first; what it finds there decides the
// worker's fate:
//   - missing worktree: recreated from the worker's branch
//   - rebase in progress: the worker resumes Rebasing (preserved state
//     from before a shutdown or crash)
//   - uncommitted changes: Error, the operator must intervene
//
// A session start failure consumes one retry; exhausting the budget puts
// the worker in Error rather than hard-failing, since a single worker
// that cannot start does not threaten state integrity.
func (d *Daemon) startOfflineWorkers(st *state.State) {
	now := d.now()

	for _, name := range st.WorkerNames() {
		w := st.Workers[name]
		if w.Status != state.StatusOffline {
			continue
		}
		if d.sessions.SessionExists(w.SessionID) {
			// Session already up (left over or externally created); wait
			// for its ready event.
			continue
		}

		if err := d.validateWorktree(st, w); err != nil {
			d.logf("worker %s: worktree validation failed: %v", w.Name, err)
			w.ErrorReason = err.Error()
			worker.RecordCrash(w, now)
			worker.Transition(w, state.StatusError, now, d.logf)
			continue
		}
		if w.Status != state.StatusOffline {
			// Validation rerouted the worker (e.g. into Rebasing).
			continue
		}

		if err := d.startSession(w); err != nil {
			w.RetryCount++
			d.logf("worker %s: session start failed (attempt %d): %v", w.Name, w.RetryCount, err)
			if w.RetryCount > constants.MaxRetryAttempts {
				w.ErrorReason = fmt.Sprintf("repeated session start failures: %v", err)
				worker.RecordCrash(w, now)
				worker.Transition(w, state.StatusError, now, d.logf)
				w.RetryCount = 0
			}
			continue
		}
		w.RetryCount = 0
		d.logf("worker %s: session started", w.Name)
		_ = events.Log(d.root, events.TypeSpawn, w.Name, events.WorkerPayload(w.Name))
	}
}

// validateWorktree checks an Offline worker's working copy before a
// session start, recreating or rerouting as needed.
func (d *Daemon) validateWorktree(st *state.State, w *state.WorkerRecord) error {
	if !d.git.WorktreeExists(w.WorktreePath) {
		d.logf("worker %s: worktree missing, recreating", w.Name)
		if err := d.git.CreateWorktree(w.WorktreePath, w.Branch); err != nil {
			return fmt.Errorf("recreating worktree: %w", err)
		}
		return nil
	}

	rebasing, err := d.git.IsRebaseInProgress(w.WorktreePath)
	if err != nil {
		return fmt.Errorf("checking rebase state: %w", err)
	}
	if rebasing {
		// Unresolved repository state from before a restart. Route the
		// worker back into Rebasing instead of starting fresh over it.
		worker.Transition(w, state.StatusRebasing, d.now(), d.logf)
		w.PendingRebasePrompt = true
		return nil
	}

	dirty, err := d.git.HasUncommittedChanges(w.WorktreePath)
	if err != nil {
		return fmt.Errorf("checking worktree: %w", err)
	}
	if dirty {
		return fmt.Errorf("uncommitted changes in %s", w.WorktreePath)
	}
	return nil
}

// startSession launches the agent session for a worker.
func (d *Daemon) startSession(w *state.WorkerRecord) error {
	env := map[string]string{
		constants.EnvWorker: w.Name,
		constants.EnvDepot:  d.root,
	}
	return d.sessions.StartSession(w.SessionID, w.WorktreePath, d.cfg.Fleet.AgentCommand, env)
}
