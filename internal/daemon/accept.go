package daemon

import (
	"fmt"
	"os/exec"
	"time"

	"github.com/steveyegge/muster/internal/config"
	"github.com/steveyegge/muster/internal/constants"
	"github.com/steveyegge/muster/internal/events"
	"github.com/steveyegge/muster/internal/state"
	"github.com/steveyegge/muster/internal/worker"
)

// AcceptResult is the outcome of one merge attempt. Exactly one variant
// comes back from acceptWorker; call sites switch exhaustively.
type AcceptResult interface {
	acceptResult()
}

// Accepted means the result was squashed onto the default branch.
type Accepted struct {
	CommitSHA string
}

// AcceptedWithCleanupFailure means the merge succeeded but resetting the
// worker's branch afterward failed. Non-fatal: the worker needs operator
// attention but other workers must not be blocked.
type AcceptedWithCleanupFailure struct {
	CommitSHA  string
	CleanupErr string
}

// AcceptNoChanges means there was nothing to merge.
type AcceptNoChanges struct{}

// SourceRepoDirty means the destination checkout has uncommitted changes
// and cannot take a merge. Drives the global backoff gate.
type SourceRepoDirty struct{}

// RebaseConflict means rebasing the worker's branch onto the default
// branch stopped on conflicts, which are left in the worktree for the
// worker to resolve.
type RebaseConflict struct {
	Conflicts []string
}

func (Accepted) acceptResult()                   {}
func (AcceptedWithCleanupFailure) acceptResult() {}
func (AcceptNoChanges) acceptResult()            {}
func (SourceRepoDirty) acceptResult()            {}
func (RebaseConflict) acceptResult()             {}

// nextDirtyBackoff returns the backoff after another dirty-source
// occurrence: 60s the first time, doubling each time, capped at an hour.
func nextDirtyBackoff(current int64) int64 {
	if current <= 0 {
		return constants.DirtyBackoffInitialSecs
	}
	next := current * 2
	if next > constants.DirtyBackoffMaxSecs {
		next = constants.DirtyBackoffMaxSecs
	}
	return next
}

// clearDirtyBackoff resets the dirty-source bookkeeping after any
// successful accept.
func clearDirtyBackoff(st *state.State) {
	st.SourceRepoDirtyRetryAfterUnix = 0
	st.SourceRepoDirtyBackoffSecs = 0
	st.SourceRepoDirtyRetryCount = 0
}

// acceptWorker attempts to merge one finished worker's result.
func (d *Daemon) acceptWorker(w *state.WorkerRecord) (AcceptResult, error) {
	clean, err := d.git.SourceClean()
	if err != nil {
		return nil, fmt.Errorf("checking source repository: %w", err)
	}
	if !clean {
		return SourceRepoDirty{}, nil
	}

	defaultBranch, err := d.git.DefaultBranch()
	if err != nil {
		return nil, fmt.Errorf("resolving default branch: %w", err)
	}

	if w.Status == state.StatusNoChanges {
		// Nothing to merge; just reposition the branch for the next task.
		if err := d.git.ResetHard(w.WorktreePath, defaultBranch); err != nil {
			d.logf("worker %s: post-accept branch reset failed: %v", w.Name, err)
		}
		return AcceptNoChanges{}, nil
	}

	conflicts, err := d.git.Rebase(w.WorktreePath, defaultBranch)
	if err != nil {
		return nil, fmt.Errorf("rebasing %s onto %s: %w", w.Branch, defaultBranch, err)
	}
	if len(conflicts) > 0 {
		return RebaseConflict{Conflicts: conflicts}, nil
	}

	ahead, err := d.git.CountAhead(defaultBranch, w.Branch)
	if err != nil {
		return nil, fmt.Errorf("counting commits on %s: %w", w.Branch, err)
	}
	if ahead == 0 {
		return AcceptNoChanges{}, nil
	}

	sha, err := d.git.SquashAccept(w.Branch)
	if err != nil {
		return nil, fmt.Errorf("squashing %s onto %s: %w", w.Branch, defaultBranch, err)
	}

	if err := d.git.ResetHard(w.WorktreePath, defaultBranch); err != nil {
		return AcceptedWithCleanupFailure{CommitSHA: sha, CleanupErr: err.Error()}, nil
	}
	return Accepted{CommitSHA: sha}, nil
}

// acceptPass runs the auto-accept pipeline over every finished worker.
// Returns a *HardFailure error for conditions that must stop the daemon;
// any other error from the merge machinery is also fatal to the pass and
// surfaces to the caller.
func (d *Daemon) acceptPass(st *state.State) error {
	now := d.now()

	for _, name := range st.WorkerNames() {
		w := st.Workers[name]
		if w.Status != state.StatusNeedsReview && w.Status != state.StatusNoChanges {
			continue
		}

		// Global backoff gate: a dirty destination blocks every worker,
		// not just the one that discovered it.
		if st.SourceRepoDirtyRetryAfterUnix != 0 && now.Unix() < st.SourceRepoDirtyRetryAfterUnix {
			return nil
		}

		res, err := d.acceptWorker(w)
		if err != nil {
			return err
		}

		switch r := res.(type) {
		case Accepted:
			if err := d.finishAccept(st, w, r.CommitSHA, now); err != nil {
				return err
			}

		case AcceptedWithCleanupFailure:
			d.logf("worker %s: accepted %s but branch cleanup failed: %s", w.Name, r.CommitSHA, r.CleanupErr)
			if err := d.finishAccept(st, w, r.CommitSHA, now); err != nil {
				return err
			}

		case AcceptNoChanges:
			clearDirtyBackoff(st)
			d.completeTask(st, w)
			worker.Transition(w, state.StatusIdle, now, d.logf)
			w.CommitSHA = ""
			w.RetryCount = 0
			d.logf("worker %s: no changes to merge", w.Name)
			_ = events.Log(d.root, events.TypeNoChanges, w.Name, events.WorkerPayload(w.Name))

		case SourceRepoDirty:
			st.SourceRepoDirtyRetryCount++
			if st.SourceRepoDirtyRetryCount >= constants.DirtyRetryCeiling {
				return hardFailuref("source repository has uncommitted changes after %d retries: commit or stash changes in %s",
					st.SourceRepoDirtyRetryCount, d.root)
			}
			st.SourceRepoDirtyBackoffSecs = nextDirtyBackoff(st.SourceRepoDirtyBackoffSecs)
			st.SourceRepoDirtyRetryAfterUnix = now.Unix() + st.SourceRepoDirtyBackoffSecs
			d.logf("source repository dirty (occurrence %d), retrying in %ds",
				st.SourceRepoDirtyRetryCount, st.SourceRepoDirtyBackoffSecs)

		case RebaseConflict:
			worker.Transition(w, state.StatusRebasing, now, d.logf)
			d.logf("worker %s: rebase conflict in %d file(s), deferring", w.Name, len(r.Conflicts))
			_ = events.Log(d.root, events.TypeConflict, w.Name, events.ConflictPayload(w.Name, r.Conflicts))
			d.deliverRebasePrompt(w, r.Conflicts)
		}
	}
	return nil
}

// finishAccept does the post-merge bookkeeping for an accepted result.
// The claim is released (by completing the task) before the post-accept
// hook runs, so a hook failure never strands a claim.
func (d *Daemon) finishAccept(st *state.State, w *state.WorkerRecord, sha string, now time.Time) error {
	clearDirtyBackoff(st)
	taskID := w.ActiveTaskID
	d.completeTask(st, w)
	worker.Transition(w, state.StatusIdle, now, d.logf)
	w.CommitSHA = ""
	w.RetryCount = 0
	d.logf("worker %s: accepted %s as %s", w.Name, taskID, sha)
	_ = events.Log(d.root, events.TypeAccept, w.Name, events.AcceptPayload(w.Name, taskID, sha))

	if err := d.runPostAcceptHook(); err != nil {
		return hardFailuref("post-accept command failed: %v", err)
	}
	return nil
}

// completeTask marks the worker's active task finished and clears the
// link. Task-file errors are logged, not fatal: the merge already
// happened and the daemon must not crash over pool bookkeeping.
func (d *Daemon) completeTask(st *state.State, w *state.WorkerRecord) {
	if w.ActiveTaskID == "" {
		return
	}
	if err := d.tasks.Complete(w.ActiveTaskID); err != nil {
		d.logf("worker %s: marking task %s complete: %v", w.Name, w.ActiveTaskID, err)
	}
	w.ActiveTaskID = ""
}

// runPostAcceptHook runs the configured post-accept command in the depot
// root. A non-zero exit is reported as an error; the caller treats it as
// a hard failure because the freshly merged default branch is suspect.
func (d *Daemon) runPostAcceptHook() error {
	cmdline := d.cfg.Accept.PostAcceptCommand
	if cmdline == "" {
		return nil
	}
	d.logf("running post-accept command: %s", cmdline)
	cmd := exec.Command("sh", "-c", cmdline) //nolint:gosec // G204: operator-configured command
	cmd.Dir = d.root
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %v (output: %s)", cmdline, err, string(out))
	}
	return nil
}

// AcceptOnce runs the accept pipeline for a single worker on behalf of
// the CLI, under the state lock. Unlike the daemon pass, a dirty source
// repository is reported to the caller instead of scheduling backoff.
func AcceptOnce(root string, cfg *config.Config, name string) (AcceptResult, error) {
	d := New(root, cfg)
	var res AcceptResult

	err := state.Mutate(root, func(st *state.State) error {
		w := st.Worker(name)
		if w == nil {
			return fmt.Errorf("no worker %q", name)
		}
		if w.Status != state.StatusNeedsReview && w.Status != state.StatusNoChanges {
			return fmt.Errorf("worker %q is %s; only needs_review or no_changes results can be accepted", name, w.Status)
		}

		r, err := d.acceptWorker(w)
		if err != nil {
			return err
		}
		res = r
		now := d.now()

		switch r := r.(type) {
		case Accepted:
			return d.finishAccept(st, w, r.CommitSHA, now)
		case AcceptedWithCleanupFailure:
			return d.finishAccept(st, w, r.CommitSHA, now)
		case AcceptNoChanges:
			clearDirtyBackoff(st)
			d.completeTask(st, w)
			worker.Transition(w, state.StatusIdle, now, d.logf)
			w.CommitSHA = ""
			w.RetryCount = 0
			_ = events.Log(root, events.TypeNoChanges, w.Name, events.WorkerPayload(w.Name))
		case RebaseConflict:
			worker.Transition(w, state.StatusRebasing, now, d.logf)
			_ = events.Log(root, events.TypeConflict, w.Name, events.ConflictPayload(w.Name, r.Conflicts))
			d.deliverRebasePrompt(w, r.Conflicts)
		case SourceRepoDirty:
		}
		return nil
	})
	return res, err
}

// deliverRebasePrompt sends the conflict-resolution prompt to a live
// session, or queues it for the next session-ready event if the send
// fails.
func (d *Daemon) deliverRebasePrompt(w *state.WorkerRecord, conflicts []string) {
	prompt := worker.BuildRebasePrompt(w.WorktreePath, conflicts)
	if d.sessions.SessionExists(w.SessionID) {
		if err := d.sessions.SendText(w.SessionID, prompt); err == nil {
			w.CurrentPrompt = prompt
			w.PendingRebasePrompt = false
			return
		}
	}
	w.PendingTaskPrompt = prompt
	w.PendingRebasePrompt = true
}
