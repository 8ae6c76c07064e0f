// Package cmd implements the muster CLI.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/muster/internal/style"
	"github.com/steveyegge/muster/internal/workspace"
)

var rootCmd = &cobra.Command{
	Use:   "muster",
	Short: "Supervise a fleet of coding agents working a shared repository",
	Long: `Muster runs autonomous coding agents as tmux sessions, each in its
own git worktree, and merges their results back onto the default branch.

Initialize a depot with 'muster init', add workers with 'muster add',
queue work with 'muster task add', then start the daemon with 'muster up'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", style.ErrorPrefix, err)
		return 1
	}
	return 0
}

// depotRoot resolves the enclosing depot or fails with a hint.
func depotRoot() (string, error) {
	root, err := workspace.FindFromCwd()
	if err != nil {
		return "", err
	}
	return root, nil
}
