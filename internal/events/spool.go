package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/muster/internal/constants"
	"github.com/steveyegge/muster/internal/util"
)

// Lifecycle event types emitted by worker hooks.
const (
	// LifecycleSessionReady signals the agent finished starting and can
	// receive its pending prompt.
	LifecycleSessionReady = "session-ready"

	// LifecycleTaskDone signals the worker committed a result.
	LifecycleTaskDone = "task-done"

	// LifecycleNoChanges signals the worker finished without changes.
	LifecycleNoChanges = "no-changes"

	// LifecycleStopped signals the agent process exited.
	LifecycleStopped = "stopped"
)

// LifecycleEvent is one hook-delivered event for a worker.
type LifecycleEvent struct {
	Type      string `json:"type"`
	Worker    string `json:"worker"`
	Timestamp int64  `json:"ts_unix"`
}

// spoolDir returns the pending-event directory for a depot.
func spoolDir(root string) string {
	return filepath.Join(root, constants.DirMuster, constants.DirPendingEvents)
}

// Emit drops a lifecycle event into the depot's spool. The filename leads
// with a timestamp so drains preserve arrival order, and carries a UUID so
// two hooks firing in the same nanosecond never collide.
func Emit(root, eventType, worker string) error {
	dir := spoolDir(root)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating event spool: %w", err)
	}

	ev := LifecycleEvent{
		Type:      eventType,
		Worker:    worker,
		Timestamp: time.Now().Unix(),
	}
	name := fmt.Sprintf("%019d-%s.json", time.Now().UnixNano(), uuid.NewString())
	if err := util.AtomicWriteJSON(filepath.Join(dir, name), ev); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	return nil
}

// Drain consumes every pending lifecycle event, oldest first, removing
// the files as it goes. Unparsable files are removed and skipped; a
// corrupt event must not jam the spool. Never blocks: an empty or missing
// spool yields nil.
func Drain(root string) ([]LifecycleEvent, error) {
	dir := spoolDir(root)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading event spool: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []LifecycleEvent
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		_ = os.Remove(path)

		var ev LifecycleEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}
