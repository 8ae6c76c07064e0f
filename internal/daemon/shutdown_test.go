package daemon

import (
	"testing"

	"github.com/steveyegge/muster/internal/state"
)

func TestShutdownFleetReleasesClaimsAndStopsSessions(t *testing.T) {
	env := newTestDaemon(t)
	st := state.New()
	st.DaemonRunning = true
	st.DaemonPID = 4242

	w1 := addTestWorker(st, "w1", state.StatusWorking)
	w1.ActiveTaskID = "t1"
	w1.PendingTaskPrompt = "queued"
	env.tasks.tasks["t1"] = newTask("t1", "job")
	env.sessions.live[w1.SessionID] = true

	w2 := addTestWorker(st, "w2", state.StatusIdle)
	env.sessions.live[w2.SessionID] = true

	env.d.shutdownFleet(st)

	if len(env.tasks.released) != 1 || env.tasks.released[0] != "t1" {
		t.Errorf("released = %v, want [t1]", env.tasks.released)
	}
	if w1.ActiveTaskID != "" || w1.PendingTaskPrompt != "" {
		t.Errorf("in-flight work not cleared: task=%q pending=%q", w1.ActiveTaskID, w1.PendingTaskPrompt)
	}
	if len(env.sessions.interrupts) != 2 {
		t.Errorf("interrupts = %v, want both sessions interrupted first", env.sessions.interrupts)
	}
	if len(env.sessions.kills) != 2 {
		t.Errorf("kills = %v, want both sessions killed", env.sessions.kills)
	}
	for _, w := range []*state.WorkerRecord{w1, w2} {
		if w.Status != state.StatusOffline {
			t.Errorf("worker %s: status = %s, want offline", w.Name, w.Status)
		}
	}
	if st.DaemonRunning || st.DaemonPID != 0 {
		t.Errorf("daemon registration not cleared: running=%v pid=%d", st.DaemonRunning, st.DaemonPID)
	}
}

func TestShutdownFleetPreservesRebasing(t *testing.T) {
	env := newTestDaemon(t)
	st := state.New()
	w := addTestWorker(st, "w1", state.StatusRebasing)

	env.d.shutdownFleet(st)

	if w.Status != state.StatusRebasing {
		t.Errorf("status = %s, rebasing encodes repository state and must survive shutdown", w.Status)
	}
}
