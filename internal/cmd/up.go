package cmd

import (
	"fmt"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/steveyegge/muster/internal/config"
	"github.com/steveyegge/muster/internal/daemon"
	"github.com/steveyegge/muster/internal/style"
)

var upForeground bool

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Start the orchestrator daemon",
	Long: `Start the daemon for the enclosing depot. By default it runs in the
background; --foreground keeps it attached to the terminal and stops it
on Ctrl-C.

If no workers are registered, the fleet is provisioned to the
configured size first.`,
	Args: cobra.NoArgs,
	RunE: runUp,
}

func init() {
	upCmd.Flags().BoolVar(&upForeground, "foreground", false,
		"Run the daemon in the foreground")
	rootCmd.AddCommand(upCmd)
}

func runUp(cmd *cobra.Command, args []string) error {
	root, err := depotRoot()
	if err != nil {
		return err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	if err := daemon.EnsureFleet(root, cfg); err != nil {
		return fmt.Errorf("provisioning fleet: %w", err)
	}

	if !upForeground {
		pid, err := daemon.StartDetached(root)
		if err != nil {
			return err
		}
		fmt.Printf("%s Daemon started (pid %d)\n", style.SuccessPrefix, pid)
		fmt.Printf("Watch the fleet with %s\n", style.Dim.Render("muster status --watch"))
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), daemon.Signals()...)
	defer stop()
	return daemon.New(root, cfg).Run(ctx)
}
