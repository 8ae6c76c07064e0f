package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/muster/internal/daemon"
	"github.com/steveyegge/muster/internal/style"
)

var removeForce bool

var removeCmd = &cobra.Command{
	Use:     "remove NAME",
	Aliases: []string{"rm"},
	Short:   "Remove a worker from the fleet",
	Long: `Unregister a worker and delete its session, worktree, and branch.

Workers that are running or holding a result are refused; stop the
daemon or wait for them to go idle, or pass --force to tear them down
anyway (their claimed task returns to the pool).`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func init() {
	removeCmd.Flags().BoolVar(&removeForce, "force", false,
		"Remove even if the worker is active")
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	root, err := depotRoot()
	if err != nil {
		return err
	}
	name := args[0]
	if err := daemon.RemoveWorker(root, name, removeForce); err != nil {
		return err
	}
	fmt.Printf("%s Removed worker %s\n", style.SuccessPrefix, style.Bold.Render(name))
	return nil
}
