package task

import (
	"strings"
	"testing"
)

func pending(id string, deps ...string) *Task {
	return &Task{ID: id, Subject: id, Status: StatusPending, BlockedBy: deps}
}

func TestBuildGraphRejectsMissingDependency(t *testing.T) {
	_, err := BuildGraph([]*Task{pending("a", "ghost")})
	if err == nil || !strings.Contains(err.Error(), "non-existent") {
		t.Fatalf("err = %v, want missing-dependency error", err)
	}
}

func TestBuildGraphRejectsCycle(t *testing.T) {
	_, err := BuildGraph([]*Task{pending("a", "b"), pending("b", "c"), pending("c", "a")})
	if err == nil || !strings.Contains(err.Error(), "circular") {
		t.Fatalf("err = %v, want cycle error", err)
	}
}

func TestEligibleRespectsDependencies(t *testing.T) {
	dep := pending("dep")
	blocked := pending("blocked", "dep")
	g, err := BuildGraph([]*Task{dep, blocked})
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}

	ids := eligibleIDs(g)
	if len(ids) != 1 || ids[0] != "dep" {
		t.Fatalf("eligible = %v, want [dep]", ids)
	}

	dep.Status = StatusCompleted
	ids = eligibleIDs(g)
	if len(ids) != 1 || ids[0] != "blocked" {
		t.Fatalf("eligible after completion = %v, want [blocked]", ids)
	}
}

func TestEligibleExcludesOwnedAndNonPending(t *testing.T) {
	owned := pending("owned")
	owned.Status = StatusInProgress
	owned.Owner = "w1"
	done := pending("done")
	done.Status = StatusCompleted
	free := pending("free")

	g, err := BuildGraph([]*Task{owned, done, free})
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}
	ids := eligibleIDs(g)
	if len(ids) != 1 || ids[0] != "free" {
		t.Fatalf("eligible = %v, want [free]", ids)
	}
}

func TestEligibleOrderedByPriorityThenID(t *testing.T) {
	urgent := pending("z-urgent")
	urgent.Metadata = map[string]interface{}{"priority": float64(0)}
	a := pending("a")
	b := pending("b")

	g, err := BuildGraph([]*Task{b, a, urgent})
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}
	ids := eligibleIDs(g)
	want := []string{"z-urgent", "a", "b"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("eligible = %v, want %v", ids, want)
		}
	}
}

func TestPickBestSkipsActiveLabelsAndExcluded(t *testing.T) {
	labeled := pending("a-labeled")
	labeled.Metadata = map[string]interface{}{"label": "db"}
	excludedTask := pending("b-excluded")
	free := pending("c-free")

	eligible := []*Task{labeled, excludedTask, free}
	got := PickBest(eligible, map[string]bool{"db": true}, map[string]bool{"b-excluded": true})
	if got == nil || got.ID != "c-free" {
		t.Fatalf("PickBest = %v, want c-free", got)
	}

	if got := PickBest(eligible, map[string]bool{"db": true}, map[string]bool{"b-excluded": true, "c-free": true}); got != nil {
		t.Fatalf("PickBest = %v, want nil with everything filtered", got)
	}
}

func eligibleIDs(g *Graph) []string {
	var ids []string
	for _, t := range g.Eligible() {
		ids = append(ids, t.ID)
	}
	return ids
}
