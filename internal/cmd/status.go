package cmd

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/steveyegge/muster/internal/daemon"
	"github.com/steveyegge/muster/internal/state"
	"github.com/steveyegge/muster/internal/style"
	"github.com/steveyegge/muster/internal/tui"
)

var statusWatch bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the fleet",
	Long: `Print the fleet table: every worker, its status, its claimed task,
and time since last activity. --watch keeps the view open and refreshes
it until you quit.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false,
		"Refresh continuously")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	root, err := depotRoot()
	if err != nil {
		return err
	}

	// Watch mode needs a real terminal; piped output gets one snapshot.
	if statusWatch && term.IsTerminal(int(os.Stdout.Fd())) {
		_, err := tea.NewProgram(tui.NewModel(root), tea.WithAltScreen()).Run()
		return err
	}

	st, err := state.Load(root)
	if err != nil {
		return err
	}
	if running, pid := daemon.IsRunning(root); running {
		fmt.Printf("%s daemon running (pid %d)\n", style.SuccessPrefix, pid)
	} else {
		fmt.Println(style.Dim.Render("daemon stopped"))
	}
	fmt.Println()
	if len(st.Workers) == 0 {
		fmt.Println(style.Dim.Render("no workers registered; use 'muster add NAME'"))
		return nil
	}
	fmt.Print(tui.FleetTable(st))
	return nil
}
