package daemon

import (
	"os"
	"strings"

	"github.com/steveyegge/muster/internal/events"
	"github.com/steveyegge/muster/internal/git"
	"github.com/steveyegge/muster/internal/task"
	"github.com/steveyegge/muster/internal/tmux"
)

// gitOps adapts internal/git to the GitOps interface. The source
// repository gets a pinned instance; worktree operations get per-path
// instances since linked worktrees carry their own index and rebase state.
type gitOps struct {
	source *git.Git
}

func newGitOps(root string) *gitOps {
	return &gitOps{source: git.NewGit(root)}
}

func (g *gitOps) at(path string) *git.Git {
	return git.NewGit(path)
}

func (g *gitOps) DefaultBranch() (string, error) {
	return g.source.CurrentBranch()
}

func (g *gitOps) SourceClean() (bool, error) {
	dirty, err := g.source.HasUncommittedChanges()
	if err != nil {
		return false, err
	}
	return !dirty, nil
}

func (g *gitOps) WorktreeExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (g *gitOps) CreateWorktree(path, branch string) error {
	if !g.source.BranchExists(branch) {
		defaultBranch, err := g.source.CurrentBranch()
		if err != nil {
			return err
		}
		if err := g.source.CreateBranch(branch, defaultBranch); err != nil {
			return err
		}
	}
	return g.source.CreateWorktree(path, branch)
}

func (g *gitOps) IsWorktreeClean(path string) (bool, error) {
	return g.at(path).IsWorktreeClean()
}

func (g *gitOps) IsRebaseInProgress(path string) (bool, error) {
	return g.at(path).IsRebaseInProgress()
}

func (g *gitOps) HasUncommittedChanges(path string) (bool, error) {
	return g.at(path).HasUncommittedChanges()
}

func (g *gitOps) Rebase(path, onto string) ([]string, error) {
	return g.at(path).Rebase(onto)
}

func (g *gitOps) ResetHard(path, ref string) error {
	return g.at(path).ResetHard(ref)
}

func (g *gitOps) HeadCommit(path string) (string, error) {
	return g.at(path).HeadCommit()
}

func (g *gitOps) CountAhead(base, branch string) (int, error) {
	return g.source.CountAhead(base, branch)
}

func (g *gitOps) SquashAccept(branch string) (string, error) {
	defaultBranch, err := g.source.CurrentBranch()
	if err != nil {
		return "", err
	}
	message, err := g.source.CommitsBetween(defaultBranch, branch)
	if err != nil {
		return "", err
	}
	message = git.ScrubAttribution(message)
	if strings.TrimSpace(message) == "" {
		message = "Merge " + branch + "\n"
	}
	if err := g.source.MergeSquash(branch); err != nil {
		return "", err
	}
	if err := g.source.Commit(message); err != nil {
		return "", err
	}
	return g.source.HeadCommit()
}

// sessionOps adapts internal/tmux to the SessionOps interface.
type sessionOps struct {
	t *tmux.Tmux
}

func newSessionOps() *sessionOps {
	return &sessionOps{t: tmux.NewTmux()}
}

func (s *sessionOps) SessionExists(id string) bool {
	return s.t.HasSession(id)
}

func (s *sessionOps) StartSession(id, workDir, command string, env map[string]string) error {
	return s.t.NewSession(id, workDir, command, env)
}

func (s *sessionOps) KillSession(id string) error {
	return s.t.KillSession(id)
}

func (s *sessionOps) SendText(id, text string) error {
	return s.t.SendText(id, text)
}

func (s *sessionOps) SendInterrupt(id string) error {
	return s.t.SendInterrupt(id)
}

// fileTaskSource adapts the task package to the TaskSource interface for
// one task directory.
type fileTaskSource struct {
	dir string
}

func newTaskSource(dir string) *fileTaskSource {
	return &fileTaskSource{dir: dir}
}

func (s *fileTaskSource) Discover() ([]*task.Task, error) {
	return task.Discover(s.dir, nil)
}

func (s *fileTaskSource) Claim(t *task.Task, owner string) error {
	return task.Claim(s.dir, t, owner)
}

func (s *fileTaskSource) Release(id string) error {
	return task.Release(s.dir, id)
}

func (s *fileTaskSource) Complete(id string) error {
	return task.Complete(s.dir, id)
}

func (s *fileTaskSource) Label(id string) string {
	t, err := task.Load(task.FilePath(s.dir, id))
	if err != nil {
		return ""
	}
	return t.Label()
}

// spoolEventSource adapts the events spool to the EventSource interface.
type spoolEventSource struct {
	root string
}

func newEventSource(root string) *spoolEventSource {
	return &spoolEventSource{root: root}
}

func (s *spoolEventSource) Drain() ([]events.LifecycleEvent, error) {
	return events.Drain(s.root)
}
