// Package daemon implements the Muster orchestrator: a single-threaded
// control loop that assigns tasks to idle workers, merges finished
// results, and recovers from worker and session failures.
//
// The loop runs one tick at a time with no internal parallelism.
// Concurrency lives at the process level: each worker is an independent
// tmux session the daemon polls and signals, and short-lived CLI
// invocations interleave with the daemon under the cross-process state
// lock. No error below hard-failure severity may terminate the loop.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/steveyegge/muster/internal/config"
	"github.com/steveyegge/muster/internal/constants"
	"github.com/steveyegge/muster/internal/events"
	"github.com/steveyegge/muster/internal/state"
)

// Daemon is the orchestrator instance for one depot.
type Daemon struct {
	root string
	cfg  *config.Config

	git      GitOps
	sessions SessionOps
	tasks    TaskSource
	events   EventSource

	stateLock  *state.Lock
	daemonLock *flock.Flock
	logger     *log.Logger
	logFile    *os.File
	instanceID string

	// now and sleep are swappable for tests.
	now   func() time.Time
	sleep func(time.Duration)

	lastPatrol        time.Time
	consecutiveErrors int
	lastErrorWarn     time.Time
}

// New creates a daemon for a depot root with the concrete collaborators.
func New(root string, cfg *config.Config) *Daemon {
	return &Daemon{
		root:       root,
		cfg:        cfg,
		git:        newGitOps(root),
		sessions:   newSessionOps(),
		tasks:      newTaskSource(cfg.TaskDir(root)),
		events:     newEventSource(root),
		stateLock:  state.NewLock(root),
		instanceID: uuid.NewString(),
		now:        time.Now,
		sleep:      time.Sleep,
	}
}

func (d *Daemon) logf(format string, args ...interface{}) {
	if d.logger != nil {
		d.logger.Printf(format, args...)
	}
}

// musterDir returns the depot's .muster directory.
func (d *Daemon) musterDir() string {
	return filepath.Join(d.root, constants.DirMuster)
}

// Run executes the daemon until the context is cancelled or a hard
// failure occurs. Returns nil on a clean shutdown, the hard failure
// otherwise.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.acquireSingleton(); err != nil {
		return err
	}
	defer d.releaseSingleton()

	if err := d.openLog(); err != nil {
		return err
	}
	defer d.closeLog()

	if err := d.register(); err != nil {
		return err
	}
	d.logf("daemon started (pid %d, instance %s)", os.Getpid(), d.instanceID)
	_ = events.Log(d.root, events.TypeDaemonStart, "daemon", map[string]interface{}{
		"pid":      os.Getpid(),
		"instance": d.instanceID,
	})

	var hard *HardFailure
	patrolInterval := time.Duration(d.cfg.Daemon.PatrolIntervalSecs) * time.Second

loop:
	for {
		select {
		case <-ctx.Done():
			d.logf("shutdown requested")
			break loop
		default:
		}

		if err := d.tick(patrolInterval); err != nil {
			var hf *HardFailure
			if errors.As(err, &hf) {
				hard = hf
				d.logf("%v", hard)
				_ = events.Log(d.root, events.TypeHardFailure, "daemon", events.FailurePayload(hard.Reason))
				break loop
			}
			d.noteTickError(err)
		} else {
			d.consecutiveErrors = 0
		}

		d.sleep(constants.TickInterval)
	}

	d.gracefulShutdown()

	if hard != nil {
		return hard
	}
	return nil
}

// tick is one pass of the control loop. The state lock is held for the
// duration of the tick and released before the caller sleeps, so
// management commands can interleave between ticks. A busy lock skips
// the tick entirely rather than blocking.
func (d *Daemon) tick(patrolInterval time.Duration) error {
	ok, err := d.stateLock.TryLock()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	defer d.stateLock.Unlock() //nolint:errcheck // release is best-effort

	st, err := state.Load(d.root)
	if err != nil {
		// An unreadable state file is corruption: stop before making
		// decisions on garbage.
		return hardFailuref("state corruption: %v", err)
	}

	evs, err := d.events.Drain()
	if err != nil {
		d.logf("draining events: %v", err)
	}
	for _, ev := range evs {
		d.applyEvent(st, ev)
	}

	d.startOfflineWorkers(st)

	if err := d.assignTasks(st); err != nil {
		if IsHardFailure(err) {
			return err
		}
		d.logf("assignment pass: %v", err)
	}

	if err := d.acceptPass(st); err != nil {
		if IsHardFailure(err) {
			// Persist what we know before unwinding.
			_ = st.Save(d.root)
			return err
		}
		d.logf("accept pass: %v", err)
	}

	now := d.now()
	if now.Sub(d.lastPatrol) >= patrolInterval {
		d.lastPatrol = now
		d.patrol(st)
		if err := d.runFailureRecovery(st); err != nil {
			_ = st.Save(d.root)
			return err
		}
	}

	return st.Save(d.root)
}

// noteTickError counts consecutive failing ticks and warns the operator
// at most once every five minutes. The loop itself never stops for these.
func (d *Daemon) noteTickError(err error) {
	d.consecutiveErrors++
	d.logf("tick error (%d consecutive): %v", d.consecutiveErrors, err)

	now := d.now()
	if now.Sub(d.lastErrorWarn) >= constants.ErrorWarnInterval {
		d.lastErrorWarn = now
		d.logf("WARNING: %d consecutive ticks have failed; last error: %v", d.consecutiveErrors, err)
	}
}

// gracefulShutdown winds down the fleet and persists final state under
// the lock, blocking for it: shutdown must not be skipped because a CLI
// command held the lock at the wrong moment.
func (d *Daemon) gracefulShutdown() {
	if err := d.stateLock.Lock(); err != nil {
		d.logf("acquiring state lock for shutdown: %v", err)
		return
	}
	defer d.stateLock.Unlock() //nolint:errcheck // release is best-effort

	st, err := state.Load(d.root)
	if err != nil {
		d.logf("loading state for shutdown: %v", err)
		return
	}
	d.shutdownFleet(st)
	if err := st.Save(d.root); err != nil {
		d.logf("persisting final state: %v", err)
	}
	_ = os.Remove(d.pidPath())
	_ = events.Log(d.root, events.TypeDaemonStop, "daemon", nil)
	d.logf("daemon stopped")
}

// register records this instance in the state file.
func (d *Daemon) register() error {
	return state.Mutate(d.root, func(st *state.State) error {
		st.DaemonRunning = true
		st.DaemonInstanceID = d.instanceID
		st.DaemonPID = os.Getpid()
		return nil
	})
}

// Singleton lock and PID file.

func (d *Daemon) pidPath() string {
	return filepath.Join(d.musterDir(), constants.FileDaemonPID)
}

// acquireSingleton takes the daemon lock and writes the PID file.
// A held lock means another daemon owns this depot.
func (d *Daemon) acquireSingleton() error {
	if err := os.MkdirAll(d.musterDir(), 0755); err != nil {
		return fmt.Errorf("creating depot directory: %w", err)
	}
	d.daemonLock = flock.New(filepath.Join(d.musterDir(), constants.FileDaemonLock))
	ok, err := d.daemonLock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring daemon lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("daemon already running for %s", d.root)
	}
	if err := os.WriteFile(d.pidPath(), []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		_ = d.daemonLock.Unlock()
		return fmt.Errorf("writing pid file: %w", err)
	}
	return nil
}

func (d *Daemon) releaseSingleton() {
	if d.daemonLock != nil {
		_ = d.daemonLock.Unlock()
	}
}

func (d *Daemon) openLog() error {
	path := filepath.Join(d.musterDir(), constants.FileDaemonLog)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644) //nolint:gosec // G302: log file
	if err != nil {
		return fmt.Errorf("opening daemon log: %w", err)
	}
	d.logFile = f
	d.logger = log.New(f, "", log.LstdFlags)
	return nil
}

func (d *Daemon) closeLog() {
	if d.logFile != nil {
		_ = d.logFile.Close()
	}
}

// IsRunning reports whether a daemon is alive for the depot, and its PID.
func IsRunning(root string) (bool, int) {
	data, err := os.ReadFile(filepath.Join(root, constants.DirMuster, constants.FileDaemonPID))
	if err != nil {
		return false, 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return false, 0
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false, 0
	}
	if !isProcessAlive(proc) {
		return false, 0
	}
	return true, pid
}

// Stop signals a running daemon and waits for it to exit.
func Stop(root string) error {
	running, pid := IsRunning(root)
	if !running {
		return fmt.Errorf("no daemon running for %s", root)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding daemon process %d: %w", pid, err)
	}
	if err := sendTermSignal(proc); err != nil {
		return fmt.Errorf("signaling daemon %d: %w", pid, err)
	}

	deadline := time.Now().Add(constants.StopWaitTimeout)
	for time.Now().Before(deadline) {
		if !isProcessAlive(proc) {
			return nil
		}
		time.Sleep(constants.PollInterval)
	}
	return fmt.Errorf("daemon %d did not exit within %s", pid, constants.StopWaitTimeout)
}
