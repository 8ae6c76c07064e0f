package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/steveyegge/muster/internal/constants"
)

func TestLoadMissingFileYieldsEmptyState(t *testing.T) {
	st, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(st.Workers) != 0 {
		t.Errorf("workers = %v, want empty", st.Workers)
	}
	if st.DaemonRunning {
		t.Error("fresh state should not report a running daemon")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, constants.DirMuster), 0755); err != nil {
		t.Fatal(err)
	}
	st := New()
	st.DaemonRunning = true
	st.DaemonPID = 1234
	st.DaemonInstanceID = "abc"
	st.SourceRepoDirtyBackoffSecs = 120
	st.SourceRepoDirtyRetryCount = 2
	st.Workers["w1"] = &WorkerRecord{
		Name:             "w1",
		WorktreePath:     "/depot/.muster/worktrees/w1",
		Branch:           "muster/w1",
		SessionID:        "muster-w1",
		Status:           StatusWorking,
		CurrentPrompt:    "do it",
		ActiveTaskID:     "t1",
		CrashCount:       1,
		LastActivityUnix: 1_700_000_000,
	}

	if err := st.Save(root); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	w := got.Worker("w1")
	if w == nil {
		t.Fatal("worker w1 lost in round trip")
	}
	if w.Status != StatusWorking || w.ActiveTaskID != "t1" || w.CurrentPrompt != "do it" {
		t.Errorf("worker fields lost: %+v", w)
	}
	if got.SourceRepoDirtyBackoffSecs != 120 || got.SourceRepoDirtyRetryCount != 2 {
		t.Errorf("backoff bookkeeping lost: %+v", got)
	}
	if !got.DaemonRunning || got.DaemonPID != 1234 {
		t.Errorf("daemon registration lost: %+v", got)
	}
}

func TestLoadCorruptFileIsAnError(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, constants.DirMuster), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(Path(root), []byte("{truncated"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(root); err == nil {
		t.Fatal("corrupt state file must surface as an error, not an empty state")
	}
}

func TestLoadBackfillsWorkerNames(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, constants.DirMuster), 0755); err != nil {
		t.Fatal(err)
	}
	raw := `{"workers":{"w1":{"worktree_path":"/wt","branch":"muster/w1","session_id":"muster-w1","status":"idle"}}}`
	if err := os.WriteFile(Path(root), []byte(raw), 0644); err != nil {
		t.Fatal(err)
	}
	st, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := st.Worker("w1").Name; got != "w1" {
		t.Errorf("Name = %q, want backfilled from the map key", got)
	}
}

func TestWorkerNamesSorted(t *testing.T) {
	st := New()
	for _, n := range []string{"zeta", "alpha", "mid"} {
		st.Workers[n] = &WorkerRecord{Name: n}
	}
	got := st.WorkerNames()
	want := []string{"alpha", "mid", "zeta"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("WorkerNames() = %v, want %v", got, want)
		}
	}
}

func TestActiveLabels(t *testing.T) {
	st := New()
	st.Workers["w1"] = &WorkerRecord{Name: "w1", ActiveTaskID: "t1"}
	st.Workers["w2"] = &WorkerRecord{Name: "w2", ActiveTaskID: "t2"}
	st.Workers["w3"] = &WorkerRecord{Name: "w3"}

	labels := st.ActiveLabels(func(id string) string {
		if id == "t1" {
			return "db"
		}
		return ""
	})
	if !labels["db"] || len(labels) != 1 {
		t.Errorf("labels = %v, want {db}", labels)
	}
}

func TestStatusIsActive(t *testing.T) {
	active := []WorkerStatus{StatusIdle, StatusWorking, StatusNeedsReview, StatusNoChanges, StatusRebasing}
	for _, s := range active {
		if !s.IsActive() {
			t.Errorf("%s.IsActive() = false, want true", s)
		}
	}
	for _, s := range []WorkerStatus{StatusOffline, StatusError} {
		if s.IsActive() {
			t.Errorf("%s.IsActive() = true, want false", s)
		}
	}
}
