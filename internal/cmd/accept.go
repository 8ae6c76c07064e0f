package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/muster/internal/config"
	"github.com/steveyegge/muster/internal/daemon"
	"github.com/steveyegge/muster/internal/style"
)

var acceptCmd = &cobra.Command{
	Use:   "accept NAME",
	Short: "Merge a finished worker's result now",
	Long: `Run the accept pipeline for one worker without waiting for the
daemon: rebase its branch onto the default branch and squash-merge the
result. The worker must be in needs_review or no_changes.`,
	Args: cobra.ExactArgs(1),
	RunE: runAccept,
}

func init() {
	rootCmd.AddCommand(acceptCmd)
}

func runAccept(cmd *cobra.Command, args []string) error {
	root, err := depotRoot()
	if err != nil {
		return err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	name := args[0]

	res, err := daemon.AcceptOnce(root, cfg, name)
	if err != nil {
		return err
	}

	switch r := res.(type) {
	case daemon.Accepted:
		fmt.Printf("%s Accepted %s as %s\n", style.SuccessPrefix, name, r.CommitSHA)
	case daemon.AcceptedWithCleanupFailure:
		fmt.Printf("%s Accepted %s as %s\n", style.SuccessPrefix, name, r.CommitSHA)
		style.PrintWarning("branch cleanup failed: %s", r.CleanupErr)
	case daemon.AcceptNoChanges:
		fmt.Printf("%s %s had no changes to merge\n", style.SuccessPrefix, name)
	case daemon.SourceRepoDirty:
		return fmt.Errorf("source repository has uncommitted changes; commit or stash them first")
	case daemon.RebaseConflict:
		fmt.Printf("%s Rebase conflicts in:\n  %s\n", style.WarningPrefix,
			strings.Join(r.Conflicts, "\n  "))
		fmt.Printf("Worker %s is resolving; check %s\n", name,
			style.Dim.Render("muster status"))
	}
	return nil
}
