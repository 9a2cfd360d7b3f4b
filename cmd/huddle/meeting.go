package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/huddle/internal/state"
	"github.com/ShayCichocki/huddle/pkg/models"
)

var meetingLogLimit int

var meetingCmd = &cobra.Command{
	Use:   "meeting",
	Short: "Start, archive and read meetings",
}

var meetingStartCmd = &cobra.Command{
	Use:   "start [title]",
	Short: "Open a new active meeting",
	RunE:  runMeetingStart,
}

var meetingArchiveCmd = &cobra.Command{
	Use:   "archive [id]",
	Short: "Archive a meeting (default: the active one)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMeetingArchive,
}

var meetingLogCmd = &cobra.Command{
	Use:   "log [id]",
	Short: "Print a meeting's messages (default: the active one)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMeetingLog,
}

func init() {
	meetingLogCmd.Flags().IntVarP(&meetingLogLimit, "limit", "n", 0, "Only show the most recent messages")

	meetingCmd.AddCommand(meetingStartCmd)
	meetingCmd.AddCommand(meetingArchiveCmd)
	meetingCmd.AddCommand(meetingLogCmd)
}

func runMeetingStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	title := strings.Join(args, " ")
	if title == "" {
		title = "Meeting " + time.Now().Format("2006-01-02 15:04")
	}
	m := &models.Meeting{Title: title}
	if err := db.CreateMeeting(context.Background(), m); err != nil {
		return err
	}
	printStatus("✓", fmt.Sprintf("Started %q (%s)", m.Title, m.ID), color.FgGreen)
	return nil
}

func runMeetingArchive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	id, err := resolveMeeting(ctx, db, firstArg(args))
	if err != nil {
		return err
	}
	if err := db.ArchiveMeeting(ctx, id); err != nil {
		return err
	}
	printStatus("✓", fmt.Sprintf("Archived %s", id), color.FgGreen)
	return nil
}

func runMeetingLog(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	id, err := resolveMeeting(ctx, db, firstArg(args))
	if err != nil {
		return err
	}
	meeting, err := db.GetMeeting(ctx, id)
	if err != nil {
		return err
	}
	msgs, err := db.ListMessages(ctx, id, meetingLogLimit)
	if err != nil {
		return err
	}

	fmt.Printf("%s  %s (%s)\n\n", color.New(color.Bold).Sprint(meeting.Title), meeting.ID, meeting.Status)
	for _, m := range msgs {
		actor := m.ActorID
		switch m.Type {
		case models.MessageSystem:
			actor = color.HiBlackString(actor)
		case models.MessagePitch:
			actor = color.MagentaString(actor)
		case models.MessageDecision:
			actor = color.YellowString(actor)
		default:
			actor = color.CyanString(actor)
		}
		fmt.Printf("%s %s: %s\n", m.CreatedAt.Local().Format(time.TimeOnly), actor, m.Content)
	}
	return nil
}

// resolveMeeting returns id, or the active meeting's id when id is empty.
func resolveMeeting(ctx context.Context, db *state.DB, id string) (string, error) {
	if id != "" {
		if _, err := db.GetMeeting(ctx, id); err != nil {
			return "", err
		}
		return id, nil
	}
	m, err := db.GetActiveMeeting(ctx)
	if err != nil {
		return "", err
	}
	if m == nil {
		return "", fmt.Errorf("no active meeting; pass an id or run 'huddle meeting start'")
	}
	return m.ID, nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
