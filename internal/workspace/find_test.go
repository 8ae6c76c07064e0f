package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/steveyegge/muster/internal/constants"
)

func makeDepot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, constants.DirMuster), 0755); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestFindFromDepotRoot(t *testing.T) {
	root := makeDepot(t)
	got, err := Find(root)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got != root {
		t.Errorf("Find = %q, want %q", got, root)
	}
}

func TestFindWalksUp(t *testing.T) {
	root := makeDepot(t)
	nested := filepath.Join(root, "src", "deep", "pkg")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	got, err := Find(nested)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got != root {
		t.Errorf("Find = %q, want %q", got, root)
	}
}

func TestFindOutsideDepot(t *testing.T) {
	_, err := Find(t.TempDir())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestIsDepot(t *testing.T) {
	root := makeDepot(t)
	if !IsDepot(root) {
		t.Error("IsDepot = false for a depot")
	}
	if IsDepot(t.TempDir()) {
		t.Error("IsDepot = true for a plain directory")
	}
}

func TestMusterDir(t *testing.T) {
	if got := MusterDir("/depot"); got != filepath.Join("/depot", constants.DirMuster) {
		t.Errorf("MusterDir = %q", got)
	}
}
