package daemon

import (
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/steveyegge/muster/internal/config"
	"github.com/steveyegge/muster/internal/events"
	"github.com/steveyegge/muster/internal/state"
	"github.com/steveyegge/muster/internal/task"
)

// Fakes for the collaborator interfaces. Field zero values model a
// healthy depot: clean source, no conflicts, sessions start on demand.

type fakeGit struct {
	defaultBranch    string
	sourceDirty      bool
	sourceCleanErr   error
	worktrees        map[string]bool
	createdWorktrees []string
	rebaseConflicts  map[string][]string
	rebaseInProgress map[string]bool
	dirty            map[string]bool
	ahead            map[string]int
	heads            map[string]string
	squashSHA        string
	squashErr        error
	resetErr         error
	resetCalls       []string
}

func newFakeGit() *fakeGit {
	return &fakeGit{
		defaultBranch:    "main",
		worktrees:        map[string]bool{},
		rebaseConflicts:  map[string][]string{},
		rebaseInProgress: map[string]bool{},
		dirty:            map[string]bool{},
		ahead:            map[string]int{},
		heads:            map[string]string{},
		squashSHA:        "cafe0001",
	}
}

func (g *fakeGit) DefaultBranch() (string, error) { return g.defaultBranch, nil }

func (g *fakeGit) SourceClean() (bool, error) {
	if g.sourceCleanErr != nil {
		return false, g.sourceCleanErr
	}
	return !g.sourceDirty, nil
}

func (g *fakeGit) WorktreeExists(path string) bool { return g.worktrees[path] }

func (g *fakeGit) CreateWorktree(path, branch string) error {
	g.worktrees[path] = true
	g.createdWorktrees = append(g.createdWorktrees, path)
	return nil
}

func (g *fakeGit) IsWorktreeClean(path string) (bool, error) {
	return !g.dirty[path] && !g.rebaseInProgress[path], nil
}

func (g *fakeGit) IsRebaseInProgress(path string) (bool, error) {
	return g.rebaseInProgress[path], nil
}

func (g *fakeGit) HasUncommittedChanges(path string) (bool, error) {
	return g.dirty[path], nil
}

func (g *fakeGit) Rebase(path, onto string) ([]string, error) {
	return g.rebaseConflicts[path], nil
}

func (g *fakeGit) ResetHard(path, ref string) error {
	g.resetCalls = append(g.resetCalls, path)
	return g.resetErr
}

func (g *fakeGit) HeadCommit(path string) (string, error) {
	if sha, ok := g.heads[path]; ok {
		return sha, nil
	}
	return "deadbeef", nil
}

func (g *fakeGit) CountAhead(base, branch string) (int, error) {
	return g.ahead[branch], nil
}

func (g *fakeGit) SquashAccept(branch string) (string, error) {
	if g.squashErr != nil {
		return "", g.squashErr
	}
	return g.squashSHA, nil
}

type fakeSessions struct {
	live       map[string]bool
	startErr   error
	sendErr    error
	sent       map[string][]string
	interrupts []string
	kills      []string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		live: map[string]bool{},
		sent: map[string][]string{},
	}
}

func (s *fakeSessions) SessionExists(id string) bool { return s.live[id] }

func (s *fakeSessions) StartSession(id, workDir, command string, env map[string]string) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.live[id] = true
	return nil
}

func (s *fakeSessions) KillSession(id string) error {
	s.kills = append(s.kills, id)
	delete(s.live, id)
	return nil
}

func (s *fakeSessions) SendText(id, text string) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent[id] = append(s.sent[id], text)
	return nil
}

func (s *fakeSessions) SendInterrupt(id string) error {
	s.interrupts = append(s.interrupts, id)
	return nil
}

type fakeTasks struct {
	tasks     map[string]*task.Task
	claimErr  map[string]error
	completed []string
	released  []string
}

func newFakeTasks(tasks ...*task.Task) *fakeTasks {
	f := &fakeTasks{tasks: map[string]*task.Task{}, claimErr: map[string]error{}}
	for _, t := range tasks {
		f.tasks[t.ID] = t
	}
	return f
}

func (f *fakeTasks) Discover() ([]*task.Task, error) {
	out := make([]*task.Task, 0, len(f.tasks))
	for _, t := range f.tasks {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeTasks) Claim(t *task.Task, owner string) error {
	if err := f.claimErr[t.ID]; err != nil {
		return err
	}
	stored := f.tasks[t.ID]
	stored.Status = task.StatusInProgress
	stored.Owner = owner
	return nil
}

func (f *fakeTasks) Release(id string) error {
	f.released = append(f.released, id)
	if t, ok := f.tasks[id]; ok {
		t.Status = task.StatusPending
		t.Owner = ""
	}
	return nil
}

func (f *fakeTasks) Complete(id string) error {
	f.completed = append(f.completed, id)
	if t, ok := f.tasks[id]; ok {
		t.Status = task.StatusCompleted
		t.Owner = ""
	}
	return nil
}

func (f *fakeTasks) Label(id string) string {
	if t, ok := f.tasks[id]; ok {
		return t.Label()
	}
	return ""
}

type fakeEvents struct {
	queue []events.LifecycleEvent
}

func (f *fakeEvents) Drain() ([]events.LifecycleEvent, error) {
	out := f.queue
	f.queue = nil
	return out, nil
}

type testEnv struct {
	d        *Daemon
	git      *fakeGit
	sessions *fakeSessions
	tasks    *fakeTasks
	spool    *fakeEvents
	clock    time.Time
}

func newTestDaemon(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		git:      newFakeGit(),
		sessions: newFakeSessions(),
		tasks:    newFakeTasks(),
		spool:    &fakeEvents{},
		clock:    time.Unix(1_700_000_000, 0),
	}
	env.d = &Daemon{
		root:     t.TempDir(),
		cfg:      config.Default(),
		git:      env.git,
		sessions: env.sessions,
		tasks:    env.tasks,
		events:   env.spool,
		logger:   log.New(io.Discard, "", 0),
		now:      func() time.Time { return env.clock },
		sleep:    func(time.Duration) {},
	}
	return env
}

func (e *testEnv) setTasks(tasks ...*task.Task) {
	e.tasks = newFakeTasks(tasks...)
	e.d.tasks = e.tasks
}

func (e *testEnv) advance(d time.Duration) {
	e.clock = e.clock.Add(d)
}

// addTestWorker registers a worker in a given status. Callers mark the
// session live themselves when the scenario needs one.
func addTestWorker(st *state.State, name string, status state.WorkerStatus) *state.WorkerRecord {
	w := &state.WorkerRecord{
		Name:         name,
		WorktreePath: "/tmp/worktrees/" + name,
		Branch:       "muster/" + name,
		SessionID:    "muster-" + name,
		Status:       status,
	}
	st.Workers[name] = w
	return w
}

func newTask(id, subject string) *task.Task {
	return &task.Task{
		ID:      id,
		Subject: subject,
		Status:  task.StatusPending,
	}
}

func TestIsHardFailure(t *testing.T) {
	if !IsHardFailure(hardFailuref("boom")) {
		t.Error("expected hardFailuref result to be a hard failure")
	}
	if !IsHardFailure(fmt.Errorf("wrapped: %w", hardFailuref("boom"))) {
		t.Error("expected wrapped hard failure to be detected")
	}
	if IsHardFailure(fmt.Errorf("plain error")) {
		t.Error("plain error misclassified as hard failure")
	}
}
