package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/huddle/internal/api"
)

var classifyOffline bool

var classifyCmd = &cobra.Command{
	Use:   "classify <text>",
	Short: "Show which service category a request maps to",
	Long: `Classify free text into one of the configured service categories.

Keywords are tried first; anything they miss is sent to the model, whose
answer is only accepted if it names a known category. Use --offline to
skip the model.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyOffline, "offline", false, "Keyword matching only")
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupDebugLog(cfg)
	defer logger.Close()

	var client *api.Client
	if !classifyOffline {
		if client, err = newAPIClient(cfg); err != nil {
			return err
		}
	}

	rt, err := newRouter(cfg, client)
	if err != nil {
		return err
	}

	category, ok := rt.Classify(context.Background(), strings.Join(args, " "))
	if !ok {
		printStatus("✗", "No matching category", color.FgYellow)
		return nil
	}
	fmt.Println(category)
	return nil
}
