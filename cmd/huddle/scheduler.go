package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/huddle/internal/api"
	"github.com/ShayCichocki/huddle/internal/config"
	"github.com/ShayCichocki/huddle/internal/orchestrator"
	"github.com/ShayCichocki/huddle/internal/state"
)

var schedulerOnce bool

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Decide who acts next, on a fixed tick",
	Long: `Run the turn scheduler. Every scheduler.tick_interval it looks at open tasks,
the active meeting and how long the meeting has been quiet, then acts:

  - the most urgent open task has no owner: assign it to the best role
  - nobody is working and there is no meeting: start a standup
  - the meeting has been silent past scheduler.silence_threshold: nudge it

Run exactly one scheduler per database.`,
	RunE: runScheduler,
}

func init() {
	schedulerCmd.Flags().BoolVar(&schedulerOnce, "once", false, "Run a single tick and exit")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupDebugLog(cfg)
	defer logger.Close()

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

	ctx, cancel := signalContext()
	defer cancel()

	loop, err := newTurnLoop(ctx, cfg, db, registry, api.NewResponder(client), logger)
	if err != nil {
		return err
	}

	if schedulerOnce {
		d, err := loop.Step(ctx)
		if d == nil && err == nil {
			fmt.Println("Nothing to do.")
		}
		printEvents(loop)
		return err
	}

	fmt.Printf("Scheduler ticking every %s (silence threshold %s, %d agents, coordinator %s)\n",
		cfg.Scheduler.TickInterval, loop.Orchestrator().SilenceThreshold(),
		registry.Count(), color.CyanString(registry.Coordinator().DisplayName()))
	go printEvents(loop)
	return loop.Run(ctx)
}

func newTurnLoop(ctx context.Context, cfg *config.Config, db *state.DB, registry *orchestrator.AgentRegistry, replies api.ReplyGenerator, logger *orchestrator.DebugLogger) (*orchestrator.TurnLoop, error) {
	sc := cfg.Scheduler
	opts := []orchestrator.Option{
		orchestrator.WithSilenceThreshold(sc.SilenceThreshold),
		orchestrator.WithCoordinatorRole(sc.CoordinatorRole),
		orchestrator.WithDefaultRole(sc.DefaultRole),
		orchestrator.WithStandupTitle(sc.StandupTitle),
		orchestrator.WithHistoryLimit(sc.HistoryLimit),
		orchestrator.WithTickInterval(sc.TickInterval),
		orchestrator.WithLogger(logger),
	}

	mirror, err := newCalendarMirror(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("calendar mirror: %w", err)
	}
	if mirror != nil {
		opts = append(opts, orchestrator.WithMeetingObserver(mirror))
	}

	return orchestrator.NewTurnLoop(orchestrator.RequiredConfig{
		Store:   db,
		Agents:  registry,
		Replies: replies,
	}, opts...), nil
}

// printEvents prints scheduler events until the channel closes. In --once
// mode the channel stays open, so it drains what is buffered and returns.
func printEvents(loop *orchestrator.TurnLoop) {
	events := loop.Events()
	for {
		var ev orchestrator.OrchestratorEvent
		var ok bool
		if schedulerOnce {
			select {
			case ev, ok = <-events:
			default:
				return
			}
		} else {
			ev, ok = <-events
		}
		if !ok {
			return
		}
		printEvent(ev)
	}
}

func printEvent(ev orchestrator.OrchestratorEvent) {
	ts := ev.Timestamp.Format(time.TimeOnly)
	switch ev.Type {
	case orchestrator.EventTaskAssigned:
		fmt.Printf("%s %s %s\n", ts, color.CyanString("assigned"), ev.Message)
	case orchestrator.EventMeetingStarted:
		fmt.Printf("%s %s %s (%s)\n", ts, color.GreenString("standup"), ev.Message, ev.MeetingID)
	case orchestrator.EventMeetingNudged:
		fmt.Printf("%s %s %s nudged %s\n", ts, color.YellowString("nudge"), ev.AgentID, ev.MeetingID)
	case orchestrator.EventDecisionFailed:
		fmt.Printf("%s %s %s: %v\n", ts, color.RedString("failed"), ev.Decision.Kind, ev.Error)
	}
}
