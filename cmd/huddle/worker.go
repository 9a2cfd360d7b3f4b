package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/huddle/internal/api"
	"github.com/ShayCichocki/huddle/internal/signals"
	"github.com/ShayCichocki/huddle/internal/worker"
)

var (
	workerRole        string
	workerID          string
	workerConcurrency int
	workerUnassigned  bool
	workerReap        bool
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Pull tasks from the queue and run them",
	Long: `Run one or more workers that poll the queue for pending tasks of a role,
claim them, hand them to that role's agent and record the result.

Run as many worker processes as you like against the same database; a task
is only ever claimed by one of them. Control running workers with:
  huddle worker pause    # stop polling after the current task
  huddle worker resume   # also clears a stop so new workers can start
  huddle worker stop     # exit after the current task`,
	RunE: runWorker,
}

var workerStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Ask all workers on this database to exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendSignal(signals.SendKill, "Kill signal sent")
	},
}

var workerPauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Ask all workers on this database to stop polling",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendSignal(signals.SendPause, "Pause signal sent")
	},
}

var workerResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Let paused workers poll again and clear a pending stop",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendSignal(signals.Resume, "Workers resumed")
	},
}

func init() {
	workerCmd.Flags().StringVarP(&workerRole, "role", "r", "", "Role to poll for (default worker.role)")
	workerCmd.Flags().StringVar(&workerID, "id", "", "Worker id prefix (default generated)")
	workerCmd.Flags().IntVarP(&workerConcurrency, "concurrency", "n", 0, "Workers to run in this process (default worker.concurrency)")
	workerCmd.Flags().BoolVar(&workerUnassigned, "unassigned", false, "Also claim tasks with no role")
	workerCmd.Flags().BoolVar(&workerReap, "reap", false, "Also requeue tasks with expired leases")

	workerCmd.AddCommand(workerStopCmd)
	workerCmd.AddCommand(workerPauseCmd)
	workerCmd.AddCommand(workerResumeCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupDebugLog(cfg)
	defer logger.Close()

	wc := cfg.Worker
	if workerRole != "" {
		wc.Role = workerRole
	}
	if workerID != "" {
		wc.ID = workerID
	}
	if workerConcurrency > 0 {
		wc.Concurrency = workerConcurrency
	}
	if cmd.Flags().Changed("unassigned") {
		wc.AllowUnassigned = workerUnassigned
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	client, err := newAPIClient(cfg)
	if err != nil {
		return err
	}
	registry, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	sigDir := signals.Dir(db.Path())
	if signals.KillPending(sigDir) {
		return fmt.Errorf("a stop signal is pending in %s; run 'huddle worker resume' first", sigDir)
	}
	watcher, err := signals.NewWatcher(sigDir)
	if err != nil {
		return fmt.Errorf("watch signals: %w", err)
	}
	defer watcher.Close()

	ctx, cancel := signalContext()
	defer cancel()

	poolCfg := worker.PoolConfig{
		Store:   db,
		Agents:  registry,
		Replies: api.NewResponder(client),
		Worker: worker.Config{
			ID:                wc.ID,
			Role:              wc.Role,
			AllowUnassigned:   wc.AllowUnassigned,
			PollInterval:      wc.PollInterval,
			LeaseDuration:     wc.LeaseDuration,
			HeartbeatInterval: wc.HeartbeatInterval,
			BatchSize:         wc.BatchSize,
		},
		Concurrency: wc.Concurrency,
		Signals:     watcher,
	}
	if workerReap {
		poolCfg.Reaper = worker.NewReaper(db, wc.ReapInterval)
	}

	pool, err := worker.NewPool(ctx, poolCfg)
	if err != nil {
		return err
	}

	fmt.Printf("Starting %d %s worker(s) on %s (%s driver)\n", wc.Concurrency, color.CyanString(wc.Role), db.Path(), db.Driver())
	pool.Start()
	pool.Wait()

	s := pool.Stats()
	in, out := client.Tracker().Total()
	fmt.Printf("Claimed %d, completed %d, failed %d, released %d, lost races %d, lost leases %d (tokens in %d / out %d)\n",
		s.Claimed, s.Completed, s.Failed, s.Released, s.LostRaces, s.LeasesLost, in, out)
	return nil
}

func sendSignal(send func(dir string) error, done string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir := signals.Dir(resolveDBPath(cfg))
	if err := send(dir); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	printStatus("✓", done, color.FgGreen)
	return nil
}
