package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	flagConfig string
	flagDB     string
)

var rootCmd = &cobra.Command{
	Use:   "huddle",
	Short: "Meeting and task orchestration for agent teams",
	Long: `Huddle runs a small company of agents. Workers pull tasks from a shared
queue, a scheduler decides who speaks next in the team meeting, and customer
requests are routed to service providers who pitch for the job.

Every process shares one SQLite database, so you can run as many workers as
you like, on as many machines as can reach the file.

Core commands:
  huddle task create "Order flowers for Friday" --priority high
  huddle worker --role planner
  huddle scheduler
  huddle say --meeting <id> "I need a florist"`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default ~/.config/huddle/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "Database file (overrides store.path)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(reapCmd)
	rootCmd.AddCommand(schedulerCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(sayCmd)
	rootCmd.AddCommand(meetingCmd)
	rootCmd.AddCommand(providerCmd)
	rootCmd.AddCommand(calendarCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
