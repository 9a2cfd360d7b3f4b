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
	sayMeeting string
	sayActor   string
	sayWait    time.Duration
)

var sayCmd = &cobra.Command{
	Use:   "say <text>",
	Short: "Post a customer message and let providers pitch",
	Long: `Append a message to a meeting as a customer. If the text maps to a service
category, the best rated providers in that category each pitch for the job,
a few seconds apart.

The command waits for the pitches to land (up to --wait) before exiting.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSay,
}

func init() {
	sayCmd.Flags().StringVarP(&sayMeeting, "meeting", "m", "", "Meeting id (default: the active meeting)")
	sayCmd.Flags().StringVar(&sayActor, "as", "customer", "Actor id to post as")
	sayCmd.Flags().DurationVar(&sayWait, "wait", 30*time.Second, "How long to wait for pitches")
}

func runSay(cmd *cobra.Command, args []string) error {
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

	ctx, cancel := signalContext()
	defer cancel()

	meetingID, err := resolveMeeting(ctx, db, sayMeeting)
	if err != nil {
		return err
	}

	client, err := newAPIClient(cfg)
	if err != nil {
		return err
	}
	dispatcher, err := newDispatcher(ctx, cfg, db, client)
	if err != nil {
		return err
	}

	text := strings.Join(args, " ")
	msg := &models.Message{MeetingID: meetingID, ActorID: sayActor, Content: text}
	if err := db.AppendMessage(ctx, msg); err != nil {
		return err
	}

	n, err := dispatcher.HandleMessage(ctx, meetingID, text)
	if err != nil {
		return err
	}
	if n == 0 {
		printStatus("✓", "Message posted; no provider pitches", color.FgGreen)
		return nil
	}
	printStatus("✓", fmt.Sprintf("Message posted; %d provider(s) pitching", n), color.FgGreen)

	waitCtx, waitCancel := context.WithTimeout(ctx, sayWait)
	defer waitCancel()
	if err := dispatcher.Wait(waitCtx); err != nil {
		queued := dispatcher.Pending()
		dispatcher.Stop()
		s := dispatcher.Stats()
		printStatus("⚠", fmt.Sprintf("Stopped waiting: %d delivered, %d still queued and cancelled", s.Delivered, queued), color.FgYellow)
		return nil
	}

	s := dispatcher.Stats()
	printStatus("✓", fmt.Sprintf("%d pitch(es) delivered, %d failed", s.Delivered, s.Failed), color.FgGreen)
	return nil
}
