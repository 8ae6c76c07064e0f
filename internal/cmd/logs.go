package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/muster/internal/constants"
	"github.com/steveyegge/muster/internal/style"
)

var logsLines int

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the daemon log",
	Args:  cobra.NoArgs,
	RunE:  runLogs,
}

func init() {
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 50,
		"Number of trailing lines to show (0 for all)")
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	root, err := depotRoot()
	if err != nil {
		return err
	}
	path := filepath.Join(root, constants.DirMuster, constants.FileDaemonLog)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println(style.Dim.Render("no daemon log yet"))
			return nil
		}
		return err
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if logsLines > 0 && len(lines) > logsLines {
		lines = lines[len(lines)-logsLines:]
	}
	for _, line := range lines {
		fmt.Println(line)
	}
	return nil
}
