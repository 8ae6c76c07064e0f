package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/steveyegge/muster/internal/config"
	"github.com/steveyegge/muster/internal/constants"
	"github.com/steveyegge/muster/internal/events"
	"github.com/steveyegge/muster/internal/git"
	"github.com/steveyegge/muster/internal/session"
	"github.com/steveyegge/muster/internal/state"
	"github.com/steveyegge/muster/internal/tmux"
)

// Worker names become branch and session name components, so the charset
// stays conservative.
var workerNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// InitDepot scaffolds the .muster directory in a git checkout: default
// config, task directory, event spool, and an empty state file.
func InitDepot(root string) error {
	g := git.NewGit(root)
	if _, err := g.CurrentBranch(); err != nil {
		return fmt.Errorf("%s is not a git repository: %w", root, err)
	}

	musterDir := filepath.Join(root, constants.DirMuster)
	if _, err := os.Stat(config.Path(root)); err == nil {
		return fmt.Errorf("depot already initialized at %s", musterDir)
	}

	for _, dir := range []string{
		musterDir,
		filepath.Join(musterDir, constants.DirWorktrees),
		filepath.Join(musterDir, constants.DirTasks),
		filepath.Join(musterDir, constants.DirPendingEvents),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	if err := config.WriteDefault(root); err != nil {
		return err
	}
	return state.New().Save(root)
}

// AddWorker registers a new worker: branch muster/<name> off the default
// branch, a worktree under .muster/worktrees/, and an Offline record the
// daemon will pick up on its next tick.
func AddWorker(root, name string) error {
	if !workerNameRe.MatchString(name) {
		return fmt.Errorf("invalid worker name %q (lowercase letters, digits, and dashes)", name)
	}

	branch := constants.BranchPrefix + name
	worktree := filepath.Join(root, constants.DirMuster, constants.DirWorktrees, name)
	g := newGitOps(root)

	return state.Mutate(root, func(st *state.State) error {
		if st.Worker(name) != nil {
			return fmt.Errorf("worker %q already exists", name)
		}
		if err := g.CreateWorktree(worktree, branch); err != nil {
			return fmt.Errorf("creating worktree for %s: %w", name, err)
		}
		now := time.Now()
		st.Workers[name] = &state.WorkerRecord{
			Name:             name,
			WorktreePath:     worktree,
			Branch:           branch,
			SessionID:        session.WorkerSessionName(name),
			Status:           state.StatusOffline,
			CreatedAtUnix:    now.Unix(),
			LastActivityUnix: now.Unix(),
		}
		_ = events.Log(root, events.TypeWorkerAdd, name, events.WorkerPayload(name))
		return nil
	})
}

// EnsureFleet provisions workers w1..wN when none are registered, so a
// fresh depot comes up without a manual add per worker. A non-empty
// fleet is left alone regardless of configured size.
func EnsureFleet(root string, cfg *config.Config) error {
	st, err := state.Load(root)
	if err != nil {
		return err
	}
	if len(st.Workers) > 0 {
		return nil
	}
	for i := 1; i <= cfg.Fleet.Size; i++ {
		if err := AddWorker(root, fmt.Sprintf("w%d", i)); err != nil {
			return err
		}
	}
	return nil
}

// RemoveWorker unregisters a worker and tears down its session, worktree,
// and branch. Workers holding work are refused unless force is set; a
// forced removal releases the claim first.
func RemoveWorker(root, name string, force bool) error {
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	g := git.NewGit(root)
	t := tmux.NewTmux()

	return state.Mutate(root, func(st *state.State) error {
		w := st.Worker(name)
		if w == nil {
			return fmt.Errorf("no worker %q", name)
		}
		if !force && w.Status != state.StatusOffline && w.Status != state.StatusError {
			return fmt.Errorf("worker %q is %s; stop it first or use --force", name, w.Status)
		}

		if w.ActiveTaskID != "" {
			src := newTaskSource(cfg.TaskDir(root))
			if err := src.Release(w.ActiveTaskID); err != nil {
				return fmt.Errorf("releasing task %s: %w", w.ActiveTaskID, err)
			}
		}
		if t.HasSession(w.SessionID) {
			if err := t.KillSession(w.SessionID); err != nil {
				return fmt.Errorf("killing session %s: %w", w.SessionID, err)
			}
		}
		if err := g.RemoveWorktree(w.WorktreePath); err != nil {
			return fmt.Errorf("removing worktree: %w", err)
		}
		if g.BranchExists(w.Branch) {
			if err := g.DeleteBranch(w.Branch); err != nil {
				return fmt.Errorf("deleting branch %s: %w", w.Branch, err)
			}
		}

		delete(st.Workers, name)
		_ = events.Log(root, events.TypeWorkerRm, name, events.WorkerPayload(name))
		return nil
	})
}
