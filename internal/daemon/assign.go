package daemon

import (
	"errors"
	"fmt"

	"github.com/steveyegge/muster/internal/events"
	"github.com/steveyegge/muster/internal/state"
	"github.com/steveyegge/muster/internal/task"
	"github.com/steveyegge/muster/internal/worker"
)

// assignTasks matches idle workers with eligible tasks.
//
// Workers are processed in sorted name order; earlier workers may drain
// the eligible set before later ones are considered. Claiming is
// optimistic: a lost race removes that task from the worker's candidate
// set and selection retries, bounded by the shrinking set.
func (d *Daemon) assignTasks(st *state.State) error {
	var idle []*state.WorkerRecord
	for _, name := range st.WorkerNames() {
		if w := st.Workers[name]; w.Status == state.StatusIdle {
			idle = append(idle, w)
		}
	}
	if len(idle) == 0 {
		return nil
	}

	tasks, err := d.tasks.Discover()
	if err != nil {
		return fmt.Errorf("discovering tasks: %w", err)
	}
	if len(tasks) == 0 {
		return nil
	}

	graph, err := task.BuildGraph(tasks)
	if err != nil {
		// A broken pool (cycle, dangling dependency) is an operator
		// problem; log it and keep the daemon alive.
		d.logf("task pool invalid, skipping assignment: %v", err)
		return nil
	}

	eligible := graph.Eligible()
	if len(eligible) == 0 {
		return nil
	}

	activeLabels := st.ActiveLabels(d.tasks.Label)

	// Tasks claimed earlier in this pass are off the table for later
	// workers even though the discovered snapshot still shows them pending.
	taken := make(map[string]bool)

	for _, w := range idle {
		excluded := make(map[string]bool, len(taken))
		for id := range taken {
			excluded[id] = true
		}
		for {
			t := task.PickBest(eligible, activeLabels, excluded)
			if t == nil {
				break
			}

			if err := d.tasks.Claim(t, w.Name); err != nil {
				if errors.Is(err, task.ErrClaimRaceLost) {
					d.logf("worker %s: claim race lost for %s, trying next", w.Name, t.ID)
					excluded[t.ID] = true
					continue
				}
				d.logf("worker %s: claiming %s: %v", w.Name, t.ID, err)
				excluded[t.ID] = true
				continue
			}

			taken[t.ID] = true
			_ = events.Log(d.root, events.TypeClaim, w.Name, events.TaskPayload(w.Name, t.ID))

			if err := d.assignToWorker(st, w, t); err != nil {
				d.logf("worker %s: assignment of %s failed: %v", w.Name, t.ID, err)
				if relErr := d.tasks.Release(t.ID); relErr != nil {
					d.logf("worker %s: releasing %s after failed assignment: %v", w.Name, t.ID, relErr)
				}
				break
			}

			if label := t.Label(); label != "" {
				activeLabels[label] = true
			}
			break
		}
	}
	return nil
}

// assignToWorker prepares a worker's worktree and queues the task prompt.
func (d *Daemon) assignToWorker(st *state.State, w *state.WorkerRecord, t *task.Task) error {
	now := d.now()

	if err := d.prepareWorktree(w); err != nil {
		return err
	}

	prologue, epilogue := d.cfg.LabelContext(t.Label())
	prompt := worker.BuildTaskPrompt(w.Name, w.WorktreePath, t, prologue, epilogue)

	// Reset the session before queuing the prompt. The reset restarts the
	// agent, so the prompt must wait for the session-ready event; sending
	// it now would race the restart and be lost.
	if err := d.sessions.SendText(w.SessionID, "/clear"); err != nil {
		return fmt.Errorf("resetting session %s: %w", w.SessionID, err)
	}

	w.PendingTaskPrompt = prompt
	w.ActiveTaskID = t.ID
	worker.Transition(w, state.StatusWorking, now, d.logf)
	st.LastTaskAssignmentUnix = now.Unix()

	d.logf("worker %s: assigned task %s (%s)", w.Name, t.ID, t.Subject)
	_ = events.Log(d.root, events.TypeAssign, w.Name, events.TaskPayload(w.Name, t.ID))
	return nil
}

// prepareWorktree brings the worker's working copy up to date with the
// default branch. If the branch has diverged, its commits were already
// squashed upstream by a previous accept, so the copy is reset first.
func (d *Daemon) prepareWorktree(w *state.WorkerRecord) error {
	defaultBranch, err := d.git.DefaultBranch()
	if err != nil {
		return fmt.Errorf("resolving default branch: %w", err)
	}

	ahead, err := d.git.CountAhead(defaultBranch, w.Branch)
	if err != nil {
		return fmt.Errorf("inspecting branch %s: %w", w.Branch, err)
	}
	if ahead > 0 {
		if err := d.git.ResetHard(w.WorktreePath, defaultBranch); err != nil {
			return fmt.Errorf("resetting diverged branch %s: %w", w.Branch, err)
		}
	}

	conflicts, err := d.git.Rebase(w.WorktreePath, defaultBranch)
	if err != nil {
		return fmt.Errorf("updating %s onto %s: %w", w.Branch, defaultBranch, err)
	}
	if len(conflicts) > 0 {
		// A fresh reset should never conflict; treat it as a hard local
		// problem for this worker rather than proceeding with a stale copy.
		return fmt.Errorf("unexpected rebase conflict updating %s: %d file(s)", w.Branch, len(conflicts))
	}
	return nil
}
