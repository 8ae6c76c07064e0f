// Package constants defines shared constant values used throughout Muster.
// Centralizing these magic strings improves maintainability and consistency.
package constants

import "time"

// Timing constants for the daemon control loop.
const (
	// TickInterval is the fixed cadence of the daemon main loop.
	TickInterval = 1 * time.Second

	// DefaultPatrolIntervalSecs is the default patrol cadence in seconds.
	DefaultPatrolIntervalSecs = 10

	// ErrorWarnInterval is the minimum spacing between operator warnings
	// about consecutive tick errors.
	ErrorWarnInterval = 5 * time.Minute

	// ShutdownGracePeriod is how long to wait after interrupting worker
	// sessions before killing any that remain.
	ShutdownGracePeriod = 3 * time.Second

	// StopWaitTimeout is how long `muster down` waits for the daemon to exit.
	StopWaitTimeout = 15 * time.Second

	// PollInterval is the default polling interval for wait loops.
	PollInterval = 100 * time.Millisecond
)

// Timing constants for session management and tmux operations.
const (
	// DefaultDebounceMs is the pause between pasting text into a session
	// and sending Enter. Agents need the delay to register the paste.
	DefaultDebounceMs = 500

	// StallNudgeAfter is how long a Working session may sit silent before
	// patrol re-sends its prompt. A swallowed Enter is the usual culprit.
	StallNudgeAfter = 15 * time.Minute

	// StallNudgeCooldown is the minimum spacing between nudges per worker.
	StallNudgeCooldown = 15 * time.Minute
)

// Git retry constants for lock-contention handling.
const (
	// GitLockRetries is how many times a git call is retried when the
	// index is locked by a concurrent process.
	GitLockRetries = 5

	// GitLockRetryDelay is the pause between git lock retries.
	GitLockRetryDelay = 500 * time.Millisecond
)

// Dirty source-repository backoff constants.
const (
	// DirtyBackoffInitialSecs is the first backoff after the source
	// repository is found dirty during accept.
	DirtyBackoffInitialSecs = 60

	// DirtyBackoffMaxSecs caps the doubling backoff.
	DirtyBackoffMaxSecs = 3600

	// DirtyRetryCeiling is the occurrence count at which a persistently
	// dirty source repository becomes a hard failure.
	DirtyRetryCeiling = 10
)

// Failure-recovery constants.
const (
	// MaxRetryAttempts is how many recovery attempts a transient failure
	// gets before escalating to a hard failure.
	MaxRetryAttempts = 2

	// CrashCountResetAfter is how long a worker must go without crashing
	// before its crash bookkeeping is cleared.
	CrashCountResetAfter = 24 * time.Hour
)

// Directory and file names within a depot's .muster directory.
const (
	// DirMuster is the depot marker directory.
	DirMuster = ".muster"

	// DirWorktrees holds per-worker git worktrees.
	DirWorktrees = "worktrees"

	// DirTasks is the default task directory.
	DirTasks = "tasks"

	// DirPendingEvents is the lifecycle event spool.
	DirPendingEvents = "events/pending"

	// FileConfig is the depot configuration file.
	FileConfig = "config.toml"

	// FileState is the persisted fleet state.
	FileState = "state.json"

	// FileStateLock is the cross-process state lock.
	FileStateLock = "state.lock"

	// FileDaemonLock is the daemon singleton lock.
	FileDaemonLock = "daemon.lock"

	// FileDaemonPID is the daemon PID file.
	FileDaemonPID = "daemon.pid"

	// FileDaemonLog is the daemon log file.
	FileDaemonLog = "daemon.log"

	// FileEvents is the JSONL audit log.
	FileEvents = "events.jsonl"
)

// Git naming conventions.
const (
	// BranchPrefix is the prefix for worker branches.
	BranchPrefix = "muster/"

	// SessionPrefix is the prefix for Muster tmux sessions.
	SessionPrefix = "muster-"
)

// Environment variables injected into worker sessions.
const (
	// EnvWorker carries the worker name into hook invocations.
	EnvWorker = "MUSTER_WORKER"

	// EnvDepot carries the depot root into hook invocations.
	EnvDepot = "MUSTER_DEPOT"
)
