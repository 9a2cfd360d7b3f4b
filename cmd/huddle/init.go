package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/huddle/internal/state"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a Huddle project",
	Long: `Initialize a directory for use with Huddle.

This command sets up:
  - a .huddle directory holding the project database and logs
  - a .huddle.yaml with project settings you can edit

Commands run anywhere under the directory use the project database instead
of the shared one.

Examples:
  huddle init              # Initialize current directory
  huddle init ./office     # Initialize specific directory
  huddle init --force      # Rewrite .huddle.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing .huddle.yaml")
}

const projectConfigTemplate = `# Huddle project settings. These override ~/.config/huddle/config.yaml.

worker:
  role: planner
  poll_interval: 5s
  lease_duration: 2m

scheduler:
  tick_interval: 10s
  silence_threshold: 30s
  coordinator_role: ceo

dispatcher:
  top_n: 3
  initial_delay: 1.5s
  stagger: 3s
  # escalation_role: support

# agents_file: agents.yaml
# router:
#   keywords_file: keywords.yaml

log:
  debug_file: .huddle/logs/debug.log
`

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}

	fmt.Printf("Initializing Huddle in %s...\n\n", absPath)

	huddleDir := filepath.Join(absPath, ".huddle")
	if err := os.MkdirAll(filepath.Join(huddleDir, "logs"), 0755); err != nil {
		return fmt.Errorf("creating .huddle directory: %w", err)
	}
	printStatus("✓", "Created .huddle directory structure", color.FgGreen)

	db, err := state.OpenProject(absPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	printStatus("✓", "Created project database", color.FgGreen)

	configPath := filepath.Join(absPath, ".huddle.yaml")
	if _, err := os.Stat(configPath); err == nil && !initForce {
		printStatus("✓", ".huddle.yaml exists (use --force to rewrite)", color.FgGreen)
	} else {
		if err := os.WriteFile(configPath, []byte(projectConfigTemplate), 0644); err != nil {
			return fmt.Errorf("writing .huddle.yaml: %w", err)
		}
		printStatus("✓", "Created .huddle.yaml", color.FgGreen)
	}

	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		printStatus("⚠", "ANTHROPIC_API_KEY not set (you can set it later)", color.FgYellow)
	} else {
		printStatus("✓", "ANTHROPIC_API_KEY is set", color.FgGreen)
	}

	fmt.Printf("\n%s Huddle initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	fmt.Println("  1. Add providers:  huddle provider import providers.yaml")
	fmt.Println("  2. Queue work:     huddle task create \"Plan the offsite\"")
	fmt.Println("  3. Start workers:  huddle worker --role planner")
	fmt.Println("  4. Start meetings: huddle scheduler")
	return nil
}
