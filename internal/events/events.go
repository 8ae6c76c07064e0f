// Package events provides the Muster audit log and the lifecycle event
// spool that worker hooks use to talk to the daemon.
//
// Audit events are appended to .muster/events.jsonl. Lifecycle events are
// dropped as individual JSON files into .muster/events/pending/ by
// short-lived `muster hook` invocations and drained by the daemon once
// per tick.
package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/steveyegge/muster/internal/constants"
)

// Event represents an entry in the audit log.
type Event struct {
	Timestamp string                 `json:"ts"`
	Source    string                 `json:"source"`
	Type      string                 `json:"type"`
	Actor     string                 `json:"actor"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// Audit event types.
const (
	TypeDaemonStart = "daemon_start"
	TypeDaemonStop  = "daemon_stop"
	TypeWorkerAdd   = "worker_add"
	TypeWorkerRm    = "worker_rm"
	TypeSpawn       = "spawn"
	TypeKill        = "kill"
	TypeNudge       = "nudge"
	TypeClaim       = "claim"
	TypeRelease     = "release"
	TypeAssign      = "assign"
	TypeAccept      = "accept"
	TypeNoChanges   = "no_changes"
	TypeConflict    = "rebase_conflict"
	TypeHardFailure = "hard_failure"
)

// mutex protects concurrent appends to the audit log within one process.
var mutex sync.Mutex

// Log appends an event to the depot's audit log.
// Logging is best-effort: a failure is returned but callers generally
// ignore it rather than letting bookkeeping break orchestration.
func Log(root, eventType, actor string, payload map[string]interface{}) error {
	event := Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Source:    "muster",
		Type:      eventType,
		Actor:     actor,
		Payload:   payload,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	data = append(data, '\n')

	mutex.Lock()
	defer mutex.Unlock()

	path := filepath.Join(root, constants.DirMuster, constants.FileEvents)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644) //nolint:gosec // G302: audit log is non-sensitive operational data
	if err != nil {
		return fmt.Errorf("opening events file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	return nil
}

// Payload helpers for common event structures.

// WorkerPayload creates a payload naming a worker.
func WorkerPayload(worker string) map[string]interface{} {
	return map[string]interface{}{"worker": worker}
}

// TaskPayload creates a payload for claim/release/assign events.
func TaskPayload(worker, taskID string) map[string]interface{} {
	return map[string]interface{}{
		"worker": worker,
		"task":   taskID,
	}
}

// AcceptPayload creates a payload for accept events.
func AcceptPayload(worker, taskID, commitSHA string) map[string]interface{} {
	p := map[string]interface{}{
		"worker": worker,
		"task":   taskID,
	}
	if commitSHA != "" {
		p["commit"] = commitSHA
	}
	return p
}

// ConflictPayload creates a payload for rebase-conflict events.
func ConflictPayload(worker string, conflicts []string) map[string]interface{} {
	return map[string]interface{}{
		"worker":    worker,
		"conflicts": len(conflicts),
		"files":     conflicts,
	}
}

// FailurePayload creates a payload for hard-failure events.
func FailurePayload(reason string) map[string]interface{} {
	return map[string]interface{}{"reason": reason}
}
