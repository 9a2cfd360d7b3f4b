package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/huddle/internal/worker"
)

var reapOnce bool

var reapCmd = &cobra.Command{
	Use:   "reap",
	Short: "Requeue tasks whose worker stopped renewing its lease",
	Long: `Return in-progress tasks with an expired lease to pending so another worker
can claim them. A worker that crashes mid-task stops renewing its lease, and
without a reaper the task would stay in progress forever.

Runs every worker.reap_interval until interrupted, or once with --once.`,
	RunE: runReap,
}

func init() {
	reapCmd.Flags().BoolVar(&reapOnce, "once", false, "Sweep once and exit")
}

func runReap(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	reaper := worker.NewReaper(db, cfg.Worker.ReapInterval)
	if reapOnce {
		n := reaper.Sweep(context.Background())
		printStatus("✓", fmt.Sprintf("Requeued %d task(s)", n), color.FgGreen)
		return nil
	}

	ctx, cancel := signalContext()
	defer cancel()
	fmt.Printf("Reaping expired leases every %s\n", cfg.Worker.ReapInterval)
	reaper.Run(ctx)
	return nil
}
