package worker

import (
	"fmt"
	"strings"

	"github.com/steveyegge/muster/internal/task"
)

// BuildTaskPrompt assembles the prompt delivered to a worker for a task:
// preamble (location and ground rules), optional label prologue, the task
// body, optional label epilogue.
func BuildTaskPrompt(workerName, worktreePath string, t *task.Task, prologue, epilogue string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are worker %s. Your working copy is at %s.\n", workerName, worktreePath)
	b.WriteString("Work only inside this directory. Commit your changes when done,\n")
	b.WriteString("then run `muster hook task-done`. If the task needs no change,\n")
	b.WriteString("run `muster hook no-changes` instead. Do not push or merge.\n")

	if prologue != "" {
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(prologue))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nTask %s: %s\n", t.ID, t.Subject)
	if desc := strings.TrimSpace(t.Description); desc != "" {
		fmt.Fprintf(&b, "\n%s\n", desc)
	}

	if epilogue != "" {
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(epilogue))
		b.WriteString("\n")
	}

	return b.String()
}

// BuildRebasePrompt assembles the conflict-resolution prompt delivered to
// a worker that entered Rebasing.
func BuildRebasePrompt(worktreePath string, conflicts []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your branch at %s has a rebase in progress with %d conflicted file(s):\n", worktreePath, len(conflicts))
	for _, path := range conflicts {
		fmt.Fprintf(&b, "  %s\n", path)
	}
	b.WriteString("\nResolve the conflicts, `git add` the files, and run\n")
	b.WriteString("`git rebase --continue` until the rebase completes. Then run\n")
	b.WriteString("`muster hook task-done`.\n")
	return b.String()
}
