package daemon

import (
	"testing"
	"time"

	"github.com/steveyegge/muster/internal/constants"
	"github.com/steveyegge/muster/internal/events"
	"github.com/steveyegge/muster/internal/state"
)

func TestSessionReadyDeliversPendingPrompt(t *testing.T) {
	env := newTestDaemon(t)
	st := state.New()
	w := addTestWorker(st, "w1", state.StatusOffline)
	w.PendingTaskPrompt = "do the thing"
	env.sessions.live[w.SessionID] = true

	env.d.applyEvent(st, events.LifecycleEvent{Type: events.LifecycleSessionReady, Worker: "w1"})

	if w.Status != state.StatusIdle {
		t.Errorf("status = %s, want idle", w.Status)
	}
	if w.CurrentPrompt != "do the thing" || w.PendingTaskPrompt != "" {
		t.Errorf("prompt not promoted: current=%q pending=%q", w.CurrentPrompt, w.PendingTaskPrompt)
	}
	sent := env.sessions.sent[w.SessionID]
	if len(sent) != 1 || sent[0] != "do the thing" {
		t.Errorf("sent = %v, want the pending prompt", sent)
	}
}

func TestSessionReadyForUnknownWorkerIgnored(t *testing.T) {
	env := newTestDaemon(t)
	st := state.New()
	// Must not panic or mutate anything.
	env.d.applyEvent(st, events.LifecycleEvent{Type: events.LifecycleSessionReady, Worker: "ghost"})
}

func TestTaskDoneRecordsResult(t *testing.T) {
	env := newTestDaemon(t)
	st := state.New()
	w := addTestWorker(st, "w1", state.StatusWorking)
	env.git.heads[w.WorktreePath] = "abc1234"

	env.d.applyEvent(st, events.LifecycleEvent{Type: events.LifecycleTaskDone, Worker: "w1"})

	if w.Status != state.StatusNeedsReview {
		t.Errorf("status = %s, want needs_review", w.Status)
	}
	if w.CommitSHA != "abc1234" {
		t.Errorf("CommitSHA = %q, want abc1234", w.CommitSHA)
	}
}

func TestTaskDoneOutsideWorkingIgnored(t *testing.T) {
	env := newTestDaemon(t)
	st := state.New()
	w := addTestWorker(st, "w1", state.StatusIdle)

	env.d.applyEvent(st, events.LifecycleEvent{Type: events.LifecycleTaskDone, Worker: "w1"})
	if w.Status != state.StatusIdle {
		t.Errorf("status = %s, stray task-done must be ignored", w.Status)
	}
}

func TestStoppedReleasesClaimAndGoesOffline(t *testing.T) {
	env := newTestDaemon(t)
	st := state.New()
	w := addTestWorker(st, "w1", state.StatusWorking)
	w.ActiveTaskID = "t1"
	w.CurrentPrompt = "half-done"
	env.tasks.tasks["t1"] = newTask("t1", "job")
	env.sessions.live[w.SessionID] = true

	env.d.applyEvent(st, events.LifecycleEvent{Type: events.LifecycleStopped, Worker: "w1"})

	if w.Status != state.StatusOffline {
		t.Errorf("status = %s, want offline", w.Status)
	}
	if w.ActiveTaskID != "" || w.CurrentPrompt != "" {
		t.Errorf("work not cleared: task=%q prompt=%q", w.ActiveTaskID, w.CurrentPrompt)
	}
	if len(env.tasks.released) != 1 || env.tasks.released[0] != "t1" {
		t.Errorf("released = %v, want [t1]", env.tasks.released)
	}
	if w.CrashCount != 1 {
		t.Errorf("CrashCount = %d, want 1", w.CrashCount)
	}
	if env.sessions.live[w.SessionID] {
		t.Error("dead agent's session should be killed")
	}
}

func TestStoppedPreservesRebasing(t *testing.T) {
	env := newTestDaemon(t)
	st := state.New()
	w := addTestWorker(st, "w1", state.StatusRebasing)

	env.d.applyEvent(st, events.LifecycleEvent{Type: events.LifecycleStopped, Worker: "w1"})
	if w.Status != state.StatusRebasing {
		t.Errorf("status = %s, rebasing must survive an agent stop", w.Status)
	}
}

func TestPatrolDerivesOfflineForIdleWithoutSession(t *testing.T) {
	env := newTestDaemon(t)
	st := state.New()
	w := addTestWorker(st, "w1", state.StatusIdle)
	// No live session registered in the fake.

	env.d.patrol(st)

	if w.Status != state.StatusOffline {
		t.Errorf("status = %s, want offline", w.Status)
	}
	if w.CrashCount != 1 {
		t.Errorf("CrashCount = %d, want 1", w.CrashCount)
	}
}

func TestPatrolErrorCooldown(t *testing.T) {
	env := newTestDaemon(t)
	st := state.New()
	w := addTestWorker(st, "w1", state.StatusError)
	w.ErrorReason = "uncommitted changes"
	w.CrashCount = 1
	w.LastCrashUnix = env.clock.Unix()
	w.LastActivityUnix = env.clock.Unix()

	env.d.patrol(st)
	if w.Status != state.StatusError {
		t.Fatalf("status = %s, cooldown has not elapsed", w.Status)
	}

	env.advance(3 * time.Minute)
	env.d.patrol(st)
	if w.Status != state.StatusOffline {
		t.Errorf("status = %s, want offline after cooldown", w.Status)
	}
	if w.ErrorReason != "" {
		t.Errorf("ErrorReason = %q, want cleared", w.ErrorReason)
	}
}

func TestPatrolRebaseResolvedIdle(t *testing.T) {
	env := newTestDaemon(t)
	st := state.New()
	w := addTestWorker(st, "w1", state.StatusRebasing)
	// Worktree clean, rebase finished, no result pending.

	env.d.patrol(st)
	if w.Status != state.StatusIdle {
		t.Errorf("status = %s, want idle", w.Status)
	}
}

func TestPatrolRebaseResolvedWithResultPending(t *testing.T) {
	env := newTestDaemon(t)
	st := state.New()
	w := addTestWorker(st, "w1", state.StatusRebasing)
	w.ActiveTaskID = "t1"

	env.d.patrol(st)
	if w.Status != state.StatusNeedsReview {
		t.Errorf("status = %s, unresolved result must re-enter review", w.Status)
	}
}

func TestPatrolRebaseStillInProgress(t *testing.T) {
	env := newTestDaemon(t)
	st := state.New()
	w := addTestWorker(st, "w1", state.StatusRebasing)
	env.git.rebaseInProgress[w.WorktreePath] = true

	env.d.patrol(st)
	if w.Status != state.StatusRebasing {
		t.Errorf("status = %s, want rebasing while conflicts remain", w.Status)
	}
}

func TestPatrolNudgesStalledWorker(t *testing.T) {
	env := newTestDaemon(t)
	st := state.New()
	w := addTestWorker(st, "w1", state.StatusWorking)
	w.CurrentPrompt = "finish the report"
	w.LastActivityUnix = env.clock.Unix()
	env.sessions.live[w.SessionID] = true

	env.d.patrol(st)
	if len(env.sessions.sent[w.SessionID]) != 0 {
		t.Fatal("nudged a worker that is not yet stalled")
	}

	env.advance(constants.StallNudgeAfter + time.Second)
	env.d.patrol(st)
	sent := env.sessions.sent[w.SessionID]
	if len(sent) != 1 || sent[0] != "finish the report" {
		t.Fatalf("sent = %v, want one re-sent prompt", sent)
	}

	// Within the cooldown the nudge must not repeat.
	env.advance(time.Minute)
	env.d.patrol(st)
	if len(env.sessions.sent[w.SessionID]) != 1 {
		t.Error("nudge repeated inside the cooldown window")
	}
}

func TestPatrolResetsCrashCountAfterQuietDay(t *testing.T) {
	env := newTestDaemon(t)
	st := state.New()
	w := addTestWorker(st, "w1", state.StatusIdle)
	env.sessions.live[w.SessionID] = true
	w.CrashCount = 3
	w.LastCrashUnix = env.clock.Unix()

	env.advance(constants.CrashCountResetAfter - time.Hour)
	env.d.patrol(st)
	if w.CrashCount != 3 {
		t.Fatalf("CrashCount = %d, reset came too early", w.CrashCount)
	}

	env.advance(2 * time.Hour)
	env.d.patrol(st)
	if w.CrashCount != 0 {
		t.Errorf("CrashCount = %d, want 0 after a quiet day", w.CrashCount)
	}
}
