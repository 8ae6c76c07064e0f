package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/muster/internal/daemon"
	"github.com/steveyegge/muster/internal/style"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the current git repository as a muster depot",
	Long: `Create the .muster directory in the current repository: default
configuration, task directory, and empty fleet state.

Run this once at the repository root, then 'muster add' workers.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	if err := daemon.InitDepot(cwd); err != nil {
		return err
	}
	fmt.Printf("%s Initialized depot at %s\n", style.SuccessPrefix, cwd)
	fmt.Printf("Edit %s, then %s\n",
		style.Dim.Render(".muster/config.toml"),
		style.Dim.Render("muster up"))
	return nil
}
