// Package state defines the persisted fleet state and its on-disk format.
//
// The state file is the single source of truth shared by the daemon and
// short-lived CLI invocations. Every read-modify-write cycle must happen
// under the cross-process Lock so both sides observe consistent snapshots.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/steveyegge/muster/internal/constants"
	"github.com/steveyegge/muster/internal/util"
)

// WorkerStatus is the lifecycle state of a managed worker.
type WorkerStatus string

// Worker lifecycle states.
const (
	// StatusOffline means no session is running for the worker.
	StatusOffline WorkerStatus = "offline"

	// StatusIdle means the session is up and the worker is ready for a task.
	StatusIdle WorkerStatus = "idle"

	// StatusWorking means a task has been assigned and is in progress.
	StatusWorking WorkerStatus = "working"

	// StatusNeedsReview means the worker finished with a committed change.
	StatusNeedsReview WorkerStatus = "needs_review"

	// StatusNoChanges means the worker finished without producing a change.
	StatusNoChanges WorkerStatus = "no_changes"

	// StatusRebasing means the worker is resolving a merge conflict against
	// the shared upstream. Preserved across daemon restarts because it
	// encodes unresolved repository state.
	StatusRebasing WorkerStatus = "rebasing"

	// StatusError means the worker hit an unrecoverable local condition and
	// is cooling down before a restart attempt.
	StatusError WorkerStatus = "error"
)

// IsActive reports whether the worker is expected to have a live session.
func (s WorkerStatus) IsActive() bool {
	switch s {
	case StatusIdle, StatusWorking, StatusNeedsReview, StatusNoChanges, StatusRebasing:
		return true
	}
	return false
}

// WorkerRecord is the persisted record for one managed worker.
type WorkerRecord struct {
	Name         string       `json:"name"`
	WorktreePath string       `json:"worktree_path"`
	Branch       string       `json:"branch"`
	SessionID    string       `json:"session_id"`
	Status       WorkerStatus `json:"status"`

	// CurrentPrompt is the last prompt delivered to the session, kept so
	// patrol can re-send it to a stalled worker.
	CurrentPrompt string `json:"current_prompt,omitempty"`

	// PendingTaskPrompt is a prompt queued for delivery once the session
	// signals readiness. Assignment never sends directly: the session
	// reset restarts the agent, and anything sent before the restart
	// completes is lost.
	PendingTaskPrompt string `json:"pending_task_prompt,omitempty"`

	// PendingRebasePrompt marks that a conflict-resolution prompt should
	// be delivered on the next session-ready event.
	PendingRebasePrompt bool `json:"pending_rebase_prompt,omitempty"`

	// ActiveTaskID links to the claimed task while the worker holds one.
	ActiveTaskID string `json:"active_task_id,omitempty"`

	// CommitSHA is set when a finished result is ready to merge.
	CommitSHA string `json:"commit_sha,omitempty"`

	// ErrorReason explains why the worker entered StatusError.
	ErrorReason string `json:"error_reason,omitempty"`

	// RetryCount tracks recovery attempts for the current transient
	// failure. Reset on successful recovery or task completion.
	RetryCount int `json:"retry_count,omitempty"`

	CrashCount       int   `json:"crash_count"`
	LastCrashUnix    int64 `json:"last_crash_unix,omitempty"`
	LastNudgeUnix    int64 `json:"last_nudge_unix,omitempty"`
	CreatedAtUnix    int64 `json:"created_at_unix"`
	LastActivityUnix int64 `json:"last_activity_unix"`
}

// State is the persisted fleet state.
type State struct {
	Workers       map[string]*WorkerRecord `json:"workers"`
	DaemonRunning bool                     `json:"daemon_running"`

	// DaemonInstanceID is a fresh UUID per daemon start, so status output
	// can distinguish a restart from a long-running instance.
	DaemonInstanceID string `json:"daemon_instance_id,omitempty"`
	DaemonPID        int    `json:"daemon_pid,omitempty"`

	// Dirty source-repository backoff bookkeeping (see the accept pipeline).
	SourceRepoDirtyRetryAfterUnix int64 `json:"source_repo_dirty_retry_after_unix,omitempty"`
	SourceRepoDirtyBackoffSecs    int64 `json:"source_repo_dirty_backoff_secs,omitempty"`
	SourceRepoDirtyRetryCount     int   `json:"source_repo_dirty_retry_count,omitempty"`

	LastTaskAssignmentUnix int64 `json:"last_task_assignment_unix,omitempty"`
}

// New returns an empty state.
func New() *State {
	return &State{Workers: make(map[string]*WorkerRecord)}
}

// Path returns the state file path for a depot root.
func Path(root string) string {
	return filepath.Join(root, constants.DirMuster, constants.FileState)
}

// Load reads the state file for a depot. A missing file yields an empty
// state so first startup needs no special casing. A present but unreadable
// or unparsable file is state corruption and surfaces as an error.
func Load(root string) (*State, error) {
	data, err := os.ReadFile(Path(root))
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parsing state file %s: %w", Path(root), err)
	}
	if st.Workers == nil {
		st.Workers = make(map[string]*WorkerRecord)
	}
	// Backfill names for records keyed by map entry only.
	for name, w := range st.Workers {
		if w.Name == "" {
			w.Name = name
		}
	}
	return &st, nil
}

// Save writes the state file atomically.
func (s *State) Save(root string) error {
	if err := util.AtomicWriteJSON(Path(root), s); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	return nil
}

// Worker returns the record for a worker name, or nil.
func (s *State) Worker(name string) *WorkerRecord {
	return s.Workers[name]
}

// WorkerNames returns all worker names in sorted order. Iteration order
// matters: scheduling processes workers deterministically.
func (s *State) WorkerNames() []string {
	names := make([]string, 0, len(s.Workers))
	for name := range s.Workers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ActiveLabels returns the labels currently held by working workers,
// looked up through the given task resolver (task id → label). Used to
// seed label mutual exclusion at the start of a scheduling pass.
func (s *State) ActiveLabels(labelOf func(taskID string) string) map[string]bool {
	labels := make(map[string]bool)
	for _, w := range s.Workers {
		if w.ActiveTaskID == "" {
			continue
		}
		if label := labelOf(w.ActiveTaskID); label != "" {
			labels[label] = true
		}
	}
	return labels
}
