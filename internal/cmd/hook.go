package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/muster/internal/constants"
	"github.com/steveyegge/muster/internal/events"
)

var hookCmd = &cobra.Command{
	Use:   "hook EVENT",
	Short: "Report a worker lifecycle event (called by agent hooks)",
	Long: `Drop a lifecycle event into the depot's event spool for the daemon
to pick up on its next tick. The worker is resolved from the
MUSTER_WORKER environment variable, which the daemon sets when it
starts the session.

Events: session-ready, task-done, no-changes, stopped.`,
	Args:   cobra.ExactArgs(1),
	Hidden: true,
	RunE:   runHook,
}

func init() {
	rootCmd.AddCommand(hookCmd)
}

func runHook(cmd *cobra.Command, args []string) error {
	worker := os.Getenv(constants.EnvWorker)
	if worker == "" {
		return fmt.Errorf("%s is not set; muster hook only works inside a worker session", constants.EnvWorker)
	}

	// Prefer the depot the daemon told us about; the worktree the hook
	// runs in is not inside the depot's directory tree.
	root := os.Getenv(constants.EnvDepot)
	if root == "" {
		var err error
		root, err = depotRoot()
		if err != nil {
			return err
		}
	}

	event := args[0]
	switch event {
	case events.LifecycleSessionReady, events.LifecycleTaskDone,
		events.LifecycleNoChanges, events.LifecycleStopped:
	default:
		return fmt.Errorf("unknown event %q", event)
	}
	return events.Emit(root, event, worker)
}
