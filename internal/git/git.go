// Package git wraps the git operations Muster needs: worktree management,
// branch plumbing, and rebase with conflict detection.
//
// Mutating operations retry on index-lock contention. Multiple processes
// touch the shared repository (the daemon, worker sessions, the operator),
// so a locked index is routine and transient; anything else surfaces
// immediately.
package git

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/steveyegge/muster/internal/constants"
	"github.com/steveyegge/muster/internal/util"
)

// Git runs git commands in a fixed working directory.
type Git struct {
	workDir string

	// sleep is swappable for tests.
	sleep func(time.Duration)
}

// NewGit creates a Git instance for the given directory.
func NewGit(workDir string) *Git {
	return &Git{workDir: workDir, sleep: time.Sleep}
}

// WorkDir returns the directory this instance operates in.
func (g *Git) WorkDir() string {
	return g.workDir
}

// isLockContention reports whether an error is transient index-lock
// contention worth retrying.
func isLockContention(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "index.lock") ||
		strings.Contains(msg, "index is locked") ||
		strings.Contains(msg, "Another git process seems to be running")
}

// run executes a git command with bounded retry on lock contention.
func (g *Git) run(args ...string) (string, error) {
	var out string
	var err error
	for attempt := 0; attempt < constants.GitLockRetries; attempt++ {
		out, err = util.ExecWithOutput(g.workDir, "git", args...)
		if err == nil || !isLockContention(err) {
			return out, err
		}
		g.sleep(constants.GitLockRetryDelay)
	}
	return out, fmt.Errorf("git %s: %w (after %d lock retries)", args[0], err, constants.GitLockRetries)
}

// CurrentBranch returns the checked-out branch name.
func (g *Git) CurrentBranch() (string, error) {
	return g.run("rev-parse", "--abbrev-ref", "HEAD")
}

// HeadCommit returns the full SHA of HEAD.
func (g *Git) HeadCommit() (string, error) {
	return g.run("rev-parse", "HEAD")
}

// RevParse resolves an arbitrary ref to a SHA.
func (g *Git) RevParse(ref string) (string, error) {
	return g.run("rev-parse", ref)
}

// gitDir returns the repository's git directory. For a linked worktree
// this is the per-worktree gitdir, where rebase state lives.
func (g *Git) gitDir() (string, error) {
	dir, err := g.run("rev-parse", "--git-dir")
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(g.workDir, dir)
	}
	return dir, nil
}

// HasUncommittedChanges reports whether the working copy has any staged,
// unstaged, or untracked changes.
func (g *Git) HasUncommittedChanges() (bool, error) {
	out, err := g.run("status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// IsRebaseInProgress reports whether a rebase is mid-flight.
func (g *Git) IsRebaseInProgress() (bool, error) {
	dir, err := g.gitDir()
	if err != nil {
		return false, err
	}
	for _, d := range []string{"rebase-merge", "rebase-apply"} {
		if _, err := os.Stat(filepath.Join(dir, d)); err == nil {
			return true, nil
		}
	}
	return false, nil
}

// IsWorktreeClean reports whether the working copy is clean: no
// uncommitted changes and no rebase in progress. Both are required — a
// worktree with no modified files but a half-finished rebase is not clean.
func (g *Git) IsWorktreeClean() (bool, error) {
	dirty, err := g.HasUncommittedChanges()
	if err != nil {
		return false, err
	}
	if dirty {
		return false, nil
	}
	rebasing, err := g.IsRebaseInProgress()
	if err != nil {
		return false, err
	}
	return !rebasing, nil
}

// Fetch updates remote tracking refs. A repository with no remotes is
// not an error; worktree fleets often run fully local.
func (g *Git) Fetch() error {
	remotes, err := g.run("remote")
	if err != nil {
		return err
	}
	if remotes == "" {
		return nil
	}
	_, err = g.run("fetch", "--all", "--prune")
	return err
}

// PullRebase rebases the current branch onto the given upstream ref.
// Returns the list of conflicted paths if the rebase stops on conflicts
// (the rebase is left in progress for the worker to resolve), nil on a
// clean rebase, or an error for hard failures.
func (g *Git) PullRebase(upstream string) ([]string, error) {
	return g.Rebase(upstream)
}

// Rebase rebases the current branch onto the given ref.
//
// Any stale in-progress rebase is aborted first; a previous crash must
// not wedge every future rebase on this worktree. On conflict the paths
// are returned and the rebase stays in progress.
func (g *Git) Rebase(onto string) ([]string, error) {
	if inProgress, err := g.IsRebaseInProgress(); err != nil {
		return nil, err
	} else if inProgress {
		if err := g.AbortRebase(); err != nil {
			return nil, fmt.Errorf("aborting stale rebase: %w", err)
		}
	}

	_, rebaseErr := g.run("rebase", onto)
	if rebaseErr == nil {
		return nil, nil
	}

	// A conflict leaves the rebase in progress with unmerged paths.
	inProgress, err := g.IsRebaseInProgress()
	if err != nil {
		return nil, rebaseErr
	}
	if !inProgress {
		return nil, fmt.Errorf("rebase onto %s: %w", onto, rebaseErr)
	}

	conflicts, err := g.ConflictedPaths()
	if err != nil || len(conflicts) == 0 {
		// In progress but no unmerged paths: treat as a hard error and
		// clean up so the worktree is usable.
		_ = g.AbortRebase()
		return nil, fmt.Errorf("rebase onto %s: %w", onto, rebaseErr)
	}
	return conflicts, nil
}

// ConflictedPaths lists files with unresolved merge conflicts.
func (g *Git) ConflictedPaths() ([]string, error) {
	out, err := g.run("diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// AbortRebase aborts an in-progress rebase. If git claims no rebase is in
// progress while the state directories still exist, they are deleted
// directly — that inconsistency otherwise wedges the worktree permanently.
func (g *Git) AbortRebase() error {
	_, err := g.run("rebase", "--abort")
	if err == nil {
		return nil
	}
	if !strings.Contains(err.Error(), "No rebase in progress") {
		return err
	}

	dir, dirErr := g.gitDir()
	if dirErr != nil {
		return dirErr
	}
	for _, d := range []string{"rebase-merge", "rebase-apply"} {
		if rmErr := os.RemoveAll(filepath.Join(dir, d)); rmErr != nil {
			return fmt.Errorf("removing stale rebase state: %w", rmErr)
		}
	}
	return nil
}

// ResetHard resets the working copy to the given ref, discarding local
// commits and changes.
func (g *Git) ResetHard(ref string) error {
	_, err := g.run("reset", "--hard", ref)
	return err
}

// Checkout switches to an existing branch.
func (g *Git) Checkout(branch string) error {
	_, err := g.run("checkout", branch)
	return err
}

// CreateBranch creates a branch at the given start point without
// switching to it.
func (g *Git) CreateBranch(name, startPoint string) error {
	_, err := g.run("branch", name, startPoint)
	return err
}

// DeleteBranch force-deletes a branch.
func (g *Git) DeleteBranch(name string) error {
	_, err := g.run("branch", "-D", name)
	return err
}

// BranchExists reports whether a local branch exists.
func (g *Git) BranchExists(name string) bool {
	_, err := g.run("rev-parse", "--verify", "refs/heads/"+name)
	return err == nil
}

// CreateWorktree adds a linked worktree at path checked out to branch.
func (g *Git) CreateWorktree(path, branch string) error {
	_, err := g.run("worktree", "add", path, branch)
	return err
}

// RemoveWorktree removes a linked worktree, discarding its local state.
func (g *Git) RemoveWorktree(path string) error {
	_, err := g.run("worktree", "remove", "--force", path)
	if err != nil && strings.Contains(err.Error(), "is not a working tree") {
		// Already gone; prune bookkeeping and move on.
		_, pruneErr := g.run("worktree", "prune")
		return pruneErr
	}
	return err
}

// MergeSquash stages a squash of the given branch onto the current branch
// without committing.
func (g *Git) MergeSquash(branch string) error {
	_, err := g.run("merge", "--squash", branch)
	return err
}

// Commit records staged changes with the given message.
func (g *Git) Commit(message string) error {
	_, err := g.run("commit", "-m", message)
	return err
}

// CommitsBetween returns the full messages of commits on branch that are
// not on base, oldest first. Used to compose squash-commit messages.
func (g *Git) CommitsBetween(base, branch string) (string, error) {
	return g.run("log", "--reverse", "--format=%B", base+".."+branch)
}

// CountAhead returns how many commits ref is ahead of base.
func (g *Git) CountAhead(base, ref string) (int, error) {
	out, err := g.run("rev-list", "--count", base+".."+ref)
	if err != nil {
		return 0, err
	}
	var n int
	if _, err := fmt.Sscanf(out, "%d", &n); err != nil {
		return 0, fmt.Errorf("parsing rev-list count %q: %w", out, err)
	}
	return n, nil
}

// IsAncestor reports whether a is an ancestor of b.
func (g *Git) IsAncestor(a, b string) bool {
	return util.ExecRun(g.workDir, "git", "merge-base", "--is-ancestor", a, b) == nil
}
