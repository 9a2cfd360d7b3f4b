package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/huddle/internal/calendar"
)

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Google Calendar mirroring for standups",
}

var calendarLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize huddle to add events to your calendar",
	Long: `Authorize huddle to create calendar events for the standups the scheduler
starts. Download an OAuth client (desktop app) from the Google Cloud console,
point calendar.credentials_file at it, then run this command and paste the
code Google shows you.`,
	RunE: runCalendarLogin,
}

func init() {
	calendarCmd.AddCommand(calendarLoginCmd)
}

func runCalendarLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Calendar.CredentialsFile == "" || cfg.Calendar.TokenFile == "" {
		return fmt.Errorf("set calendar.credentials_file and calendar.token_file first")
	}

	oauthCfg, err := calendar.OAuthConfig(cfg.Calendar.CredentialsFile)
	if err != nil {
		return err
	}

	fmt.Printf("Open this URL in your browser and approve access:\n\n  %s\n\n", calendar.AuthURL(oauthCfg))
	fmt.Print("Paste the authorization code: ")
	code, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return fmt.Errorf("read code: %w", err)
	}

	if err := calendar.Exchange(context.Background(), oauthCfg, strings.TrimSpace(code), cfg.Calendar.TokenFile); err != nil {
		return err
	}
	printStatus("✓", fmt.Sprintf("Token saved to %s", cfg.Calendar.TokenFile), color.FgGreen)
	if !cfg.Calendar.Enabled {
		printStatus("⚠", "Set calendar.enabled: true to mirror standups", color.FgYellow)
	}
	return nil
}
