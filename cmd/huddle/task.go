package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/huddle/pkg/models"
)

var (
	taskDescription string
	taskRole        string
	taskPriority    string
	taskListStatus  string
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage the task queue",
}

var taskCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Add a pending task to the queue",
	Long: `Add a pending task to the queue.

Without --role the task is left unassigned and the scheduler assigns it to
the best matching role on its next tick.

Examples:
  huddle task create "Book a venue for the offsite" --priority high
  huddle task create "Pay the caterer" --role finance`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTaskCreate,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks in queue order",
	RunE:  runTaskList,
}

var taskRequeueCmd = &cobra.Command{
	Use:   "requeue <id>",
	Short: "Move a failed task back to pending",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskRequeue,
}

func init() {
	taskCreateCmd.Flags().StringVarP(&taskDescription, "description", "d", "", "Task details")
	taskCreateCmd.Flags().StringVarP(&taskRole, "role", "r", "", "Role that should do the task (default: scheduler decides)")
	taskCreateCmd.Flags().StringVarP(&taskPriority, "priority", "p", "medium", "low, medium, high or emergency")
	taskListCmd.Flags().StringVarP(&taskListStatus, "status", "s", "", "Only show tasks with this status")

	taskCmd.AddCommand(taskCreateCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskRequeueCmd)
}

func runTaskCreate(cmd *cobra.Command, args []string) error {
	priority, ok := models.ParsePriority(taskPriority)
	if !ok {
		return fmt.Errorf("unknown priority %q", taskPriority)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	task := &models.Task{
		Title:        strings.Join(args, " "),
		Description:  taskDescription,
		AssignedRole: taskRole,
		Priority:     priority,
	}
	if err := db.CreateTask(context.Background(), task); err != nil {
		return err
	}

	printStatus("✓", fmt.Sprintf("Created task %s (%s)", task.ID, task.Priority), color.FgGreen)
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var filter *models.TaskStatus
	if taskListStatus != "" {
		s := models.TaskStatus(taskListStatus)
		if !s.Valid() {
			return fmt.Errorf("unknown status %q", taskListStatus)
		}
		filter = &s
	}

	tasks, err := db.ListTasks(context.Background(), filter)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("No tasks.")
		return nil
	}

	for _, t := range tasks {
		role := t.AssignedRole
		if role == "" {
			role = "unassigned"
		}
		fmt.Printf("%s  %s %-9s %-11s %s", t.ID, statusLabel(t.Status), t.Priority, role, t.Title)
		if t.ClaimedBy != "" && t.Status == models.TaskStatusInProgress {
			fmt.Printf("  (%s", t.ClaimedBy)
			if t.StartedAt != nil {
				fmt.Printf(", %s", formatDuration(time.Since(*t.StartedAt)))
			}
			fmt.Print(")")
		}
		fmt.Println()
		if t.Status == models.TaskStatusFailed && t.Error != "" {
			fmt.Printf("          %s\n", color.RedString(t.Error))
		}
	}
	return nil
}

func runTaskRequeue(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ok, err := db.RequeueTask(context.Background(), args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("task %s is not failed", args[0])
	}
	printStatus("✓", fmt.Sprintf("Requeued %s", args[0]), color.FgGreen)
	return nil
}

func statusLabel(s models.TaskStatus) string {
	switch s {
	case models.TaskStatusCompleted:
		return color.GreenString("%-10s", s)
	case models.TaskStatusFailed:
		return color.RedString("%-10s", s)
	case models.TaskStatusInProgress:
		return color.YellowString("%-10s", s)
	default:
		return string(s)
	}
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
