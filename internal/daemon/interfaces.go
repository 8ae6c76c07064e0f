package daemon

import (
	"github.com/steveyegge/muster/internal/events"
	"github.com/steveyegge/muster/internal/task"
)

// GitOps is the version-control surface the orchestrator consumes.
// The concrete implementation wraps the git binary with lock-contention
// retry; tests substitute fakes.
type GitOps interface {
	// DefaultBranch returns the branch workers merge into.
	DefaultBranch() (string, error)

	// SourceClean reports whether the source repository checkout has no
	// uncommitted changes.
	SourceClean() (bool, error)

	// WorktreeExists reports whether a worktree directory is present.
	WorktreeExists(path string) bool

	// CreateWorktree adds a worktree at path checked out to branch,
	// creating the branch from the default branch if it does not exist.
	CreateWorktree(path, branch string) error

	// IsWorktreeClean reports no uncommitted changes and no rebase in
	// progress.
	IsWorktreeClean(path string) (bool, error)

	// IsRebaseInProgress reports a mid-flight rebase in the worktree.
	IsRebaseInProgress(path string) (bool, error)

	// HasUncommittedChanges reports staged, unstaged, or untracked
	// changes in the worktree.
	HasUncommittedChanges(path string) (bool, error)

	// Rebase rebases the worktree's branch onto the ref. A conflict
	// returns the conflicted paths and leaves the rebase in progress.
	Rebase(path, onto string) ([]string, error)

	// ResetHard discards the worktree's local commits and changes,
	// resetting to ref.
	ResetHard(path, ref string) error

	// HeadCommit returns the worktree's HEAD SHA.
	HeadCommit(path string) (string, error)

	// CountAhead returns how many commits branch is ahead of base.
	CountAhead(base, branch string) (int, error)

	// SquashAccept squashes branch onto the default branch in the source
	// repository with an attribution-scrubbed message and returns the new
	// commit SHA.
	SquashAccept(branch string) (string, error)
}

// SessionOps is the terminal-session surface the orchestrator consumes.
type SessionOps interface {
	SessionExists(id string) bool
	StartSession(id, workDir, command string, env map[string]string) error
	KillSession(id string) error
	SendText(id, text string) error
	SendInterrupt(id string) error
}

// TaskSource is the task pool surface the orchestrator consumes.
type TaskSource interface {
	// Discover returns every task in the pool.
	Discover() ([]*task.Task, error)

	// Claim takes ownership of a task for a worker. Returns an error
	// wrapping task.ErrClaimRaceLost if a concurrent claimant won.
	Claim(t *task.Task, owner string) error

	// Release returns a task to pending and clears ownership.
	Release(id string) error

	// Complete marks a task finished and clears ownership.
	Complete(id string) error

	// Label returns the label of a task id, or "" if unknown.
	Label(id string) string
}

// EventSource delivers lifecycle events from worker hooks. Drain never
// blocks; a slow consumer sees a backlog on the next tick.
type EventSource interface {
	Drain() ([]events.LifecycleEvent, error)
}
