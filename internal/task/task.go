// Package task reads and writes the shared task pool.
//
// Tasks are JSON files in a directory, one file per task, named <id>.json.
// The files are shared ground between the daemon, the workers' own task
// tooling, and the operator, so every write is atomic and claiming uses
// an optimistic write-then-verify protocol rather than any in-process lock.
package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/steveyegge/muster/internal/util"
)

// Common errors.
var (
	// ErrClaimRaceLost means a concurrent claimant won ownership of the
	// task between our write and re-read. Transient: pick another task.
	ErrClaimRaceLost = errors.New("task claim race lost")
)

// Status of a task.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Task is one work item in the pool. Field names follow the task tooling's
// native camelCase file format.
type Task struct {
	ID          string                 `json:"id"`
	Subject     string                 `json:"subject"`
	Description string                 `json:"description"`
	Status      string                 `json:"status"`
	Blocks      []string               `json:"blocks"`
	BlockedBy   []string               `json:"blockedBy"`
	ActiveForm  string                 `json:"activeForm,omitempty"`
	Owner       string                 `json:"owner,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// Label returns the task's label from metadata, if present. Labels group
// tasks that must not run concurrently and select prompt prologues.
func (t *Task) Label() string {
	if t.Metadata == nil {
		return ""
	}
	if s, ok := t.Metadata["label"].(string); ok {
		return s
	}
	return ""
}

// Priority returns the task priority from metadata, defaulting to 3.
// Values are 0-4, 0 being most urgent.
func (t *Task) Priority() int {
	if t.Metadata == nil {
		return 3
	}
	if f, ok := t.Metadata["priority"].(float64); ok {
		p := int(f)
		if p < 0 {
			p = 0
		}
		if p > 4 {
			p = 4
		}
		return p
	}
	return 3
}

// FilePath returns the file path for a task id within a task directory.
func FilePath(dir, id string) string {
	return filepath.Join(dir, id+".json")
}

// Load reads one task file.
func Load(path string) (*Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading task file %s: %w", path, err)
	}
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing task file %s: %w", path, err)
	}
	if t.ID == "" {
		return nil, fmt.Errorf("task file %s: missing required field id", path)
	}
	return &t, nil
}

// Save writes a task file atomically.
func Save(dir string, t *Task) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating task directory: %w", err)
	}
	if err := util.AtomicWriteJSON(FilePath(dir, t.ID), t); err != nil {
		return fmt.Errorf("writing task %s: %w", t.ID, err)
	}
	return nil
}

// Discover reads every task file in the directory. Files that fail to
// parse are skipped and reported through badFile (may be nil); one corrupt
// file must not take down scheduling for the whole pool. A missing
// directory yields an empty pool.
func Discover(dir string, badFile func(path string, err error)) ([]*Task, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading task directory %s: %w", dir, err)
	}

	var tasks []*Task
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		t, err := Load(path)
		if err != nil {
			if badFile != nil {
				badFile(path, err)
			}
			continue
		}
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

// claimSave is swapped in tests to interleave a rival write between the
// claim write and its verify re-read.
var claimSave = Save

// Claim takes ownership of a task for a worker.
//
// The protocol is optimistic: set status and owner, save, then re-read
// and verify the owner stuck. Two concurrent claimants both write, but
// the rename-based save means one write wins wholesale; the loser sees
// the other owner on re-read and gets ErrClaimRaceLost.
func Claim(dir string, t *Task, owner string) error {
	t.Status = StatusInProgress
	t.Owner = owner
	if err := claimSave(dir, t); err != nil {
		return err
	}

	reread, err := Load(FilePath(dir, t.ID))
	if err != nil {
		return fmt.Errorf("%w: verify re-read failed: %v", ErrClaimRaceLost, err)
	}
	if reread.Owner != owner {
		return fmt.Errorf("%w: task %s owned by %q", ErrClaimRaceLost, t.ID, reread.Owner)
	}
	return nil
}

// Release returns a task to the pending pool, clearing ownership. Used
// when a worker fails, a claim is abandoned, or the daemon shuts down.
func Release(dir, id string) error {
	t, err := Load(FilePath(dir, id))
	if err != nil {
		return err
	}
	t.Status = StatusPending
	t.Owner = ""
	return Save(dir, t)
}

// Complete marks a task finished and clears ownership.
func Complete(dir, id string) error {
	t, err := Load(FilePath(dir, id))
	if err != nil {
		return err
	}
	t.Status = StatusCompleted
	t.Owner = ""
	return Save(dir, t)
}
