package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/steveyegge/muster/internal/config"
	"github.com/steveyegge/muster/internal/style"
	"github.com/steveyegge/muster/internal/task"
)

var (
	taskAddDescription string
	taskAddLabel       string
	taskAddPriority    int
	taskAddBlockedBy   []string
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Inspect and add tasks",
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks in the pool",
	Args:  cobra.NoArgs,
	RunE:  runTaskList,
}

var taskAddCmd = &cobra.Command{
	Use:   "add SUBJECT",
	Short: "Add a task to the pool",
	Long: `Write a new pending task file into the task directory. The daemon
assigns it to an idle worker once its dependencies (if any) complete.`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskAdd,
}

func init() {
	taskAddCmd.Flags().StringVarP(&taskAddDescription, "description", "d", "",
		"Longer task description for the worker prompt")
	taskAddCmd.Flags().StringVarP(&taskAddLabel, "label", "l", "",
		"Label for prompt context and one-per-label scheduling")
	taskAddCmd.Flags().IntVarP(&taskAddPriority, "priority", "p", 3,
		"Priority 0 (highest) to 4 (lowest)")
	taskAddCmd.Flags().StringSliceVar(&taskAddBlockedBy, "blocked-by", nil,
		"Task ids that must complete first")
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskAddCmd)
	rootCmd.AddCommand(taskCmd)
}

func runTaskList(cmd *cobra.Command, args []string) error {
	root, err := depotRoot()
	if err != nil {
		return err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}

	tasks, err := task.Discover(cfg.TaskDir(root), func(path string, err error) {
		style.PrintWarning("skipping %s: %v", path, err)
	})
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println(style.Dim.Render("no tasks; use 'muster task add'"))
		return nil
	}

	t := style.NewTable(
		style.Column{Name: "ID", Width: 36},
		style.Column{Name: "STATUS", Width: 12},
		style.Column{Name: "P", Width: 1, Align: style.AlignRight},
		style.Column{Name: "OWNER", Width: 10},
		style.Column{Name: "SUBJECT", Width: 40},
	)
	for _, tk := range tasks {
		t.AddRow(tk.ID, taskStatusCell(tk.Status), fmt.Sprintf("%d", tk.Priority()), tk.Owner, tk.Subject)
	}
	fmt.Print(t.Render())
	return nil
}

func taskStatusCell(s string) string {
	switch s {
	case task.StatusCompleted:
		return style.Success.Render(s)
	case task.StatusInProgress:
		return style.Warning.Render(s)
	default:
		return s
	}
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	root, err := depotRoot()
	if err != nil {
		return err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	if taskAddPriority < 0 || taskAddPriority > 4 {
		return fmt.Errorf("priority must be 0-4, got %d", taskAddPriority)
	}

	t := &task.Task{
		ID:          uuid.NewString(),
		Subject:     args[0],
		Description: taskAddDescription,
		Status:      task.StatusPending,
		BlockedBy:   taskAddBlockedBy,
	}
	if taskAddLabel != "" || taskAddPriority != 3 {
		t.Metadata = map[string]interface{}{}
		if taskAddLabel != "" {
			t.Metadata["label"] = taskAddLabel
		}
		if taskAddPriority != 3 {
			t.Metadata["priority"] = float64(taskAddPriority)
		}
	}

	if err := task.Save(cfg.TaskDir(root), t); err != nil {
		return err
	}
	fmt.Printf("%s Added task %s\n", style.SuccessPrefix, style.Bold.Render(t.ID))
	return nil
}
