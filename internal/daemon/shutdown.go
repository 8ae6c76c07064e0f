package daemon

import (
	"github.com/steveyegge/muster/internal/constants"
	"github.com/steveyegge/muster/internal/events"
	"github.com/steveyegge/muster/internal/state"
	"github.com/steveyegge/muster/internal/worker"
)

// shutdownFleet winds the fleet down for daemon exit: every in-flight
// claim goes back to the pool, sessions get an interrupt and a grace
// period before being killed, and workers are marked Offline.
//
// Rebasing workers keep their status. A half-resolved rebase is real
// repository state; discarding the marker would leave the next startup
// blind to it.
func (d *Daemon) shutdownFleet(st *state.State) {
	now := d.now()

	for _, name := range st.WorkerNames() {
		w := st.Workers[name]
		if w.ActiveTaskID != "" {
			if err := d.tasks.Release(w.ActiveTaskID); err != nil {
				d.logf("worker %s: releasing task %s at shutdown: %v", w.Name, w.ActiveTaskID, err)
			} else {
				_ = events.Log(d.root, events.TypeRelease, w.Name, events.TaskPayload(w.Name, w.ActiveTaskID))
			}
			w.ActiveTaskID = ""
		}
		w.PendingTaskPrompt = ""
	}

	// Interrupt everything first, then give the agents one grace period
	// collectively rather than one each.
	interrupted := false
	for _, name := range st.WorkerNames() {
		w := st.Workers[name]
		if d.sessions.SessionExists(w.SessionID) {
			if err := d.sessions.SendInterrupt(w.SessionID); err == nil {
				interrupted = true
			}
		}
	}
	if interrupted {
		d.sleep(constants.ShutdownGracePeriod)
	}

	for _, name := range st.WorkerNames() {
		w := st.Workers[name]
		if d.sessions.SessionExists(w.SessionID) {
			if err := d.sessions.KillSession(w.SessionID); err != nil {
				d.logf("worker %s: killing session: %v", w.Name, err)
			}
		}
		if w.Status != state.StatusRebasing {
			worker.Transition(w, state.StatusOffline, now, d.logf)
		}
	}

	st.DaemonRunning = false
	st.DaemonPID = 0
	st.DaemonInstanceID = ""
}
