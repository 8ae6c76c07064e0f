package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/muster/internal/daemon"
	"github.com/steveyegge/muster/internal/style"
)

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Stop the orchestrator daemon",
	Long: `Signal the running daemon and wait for it to shut down. In-flight
claims are released and worker sessions are interrupted, then killed
after a grace period.`,
	Args: cobra.NoArgs,
	RunE: runDown,
}

func init() {
	rootCmd.AddCommand(downCmd)
}

func runDown(cmd *cobra.Command, args []string) error {
	root, err := depotRoot()
	if err != nil {
		return err
	}
	if err := daemon.Stop(root); err != nil {
		return err
	}
	fmt.Printf("%s Daemon stopped\n", style.SuccessPrefix)
	return nil
}
