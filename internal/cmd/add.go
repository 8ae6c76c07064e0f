package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/muster/internal/daemon"
	"github.com/steveyegge/muster/internal/style"
)

var addCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add a worker to the fleet",
	Long: `Register a new worker: a branch muster/NAME off the default branch
and a worktree under .muster/worktrees/NAME. The daemon starts the
worker's session on its next tick.`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

func init() {
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	root, err := depotRoot()
	if err != nil {
		return err
	}
	name := args[0]
	if err := daemon.AddWorker(root, name); err != nil {
		return err
	}
	fmt.Printf("%s Added worker %s\n", style.SuccessPrefix, style.Bold.Render(name))
	return nil
}
