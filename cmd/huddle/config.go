package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/huddle/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key]",
	Short: "Show configuration",
	Long: `Show the effective Huddle configuration.

Without arguments, displays every setting. With a key in dot notation,
displays just that value.

Configuration is read from ~/.config/huddle/config.yaml
Project-specific overrides can be placed in .huddle.yaml
Environment variables override both: HUDDLE_WORKER_ROLE=finance`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if len(args) == 1 {
			value, ok := configValues(cfg)[strings.ToLower(args[0])]
			if !ok {
				return fmt.Errorf("unknown configuration key: %s", args[0])
			}
			fmt.Println(value)
			return nil
		}
		displayAllConfig(cfg)
		return nil
	},
}

// displayAllConfig prints all configuration values in a stable order.
func displayAllConfig(cfg *config.Config) {
	values := configValues(cfg)
	for _, key := range configKeys {
		fmt.Printf("%s: %s\n", key, values[key])
	}
	fmt.Printf("\nuser config: %s\n", config.GetUserConfigPath())
	if p := config.GetProjectConfigPath(); p != "" {
		fmt.Printf("project config: %s\n", p)
	}
	fmt.Printf("database: %s\n", resolveDBPath(cfg))
}

var configKeys = []string{
	"anthropic.api_key",
	"anthropic.model",
	"anthropic.use_bedrock",
	"anthropic.aws_region",
	"store.driver",
	"store.path",
	"worker.role",
	"worker.allow_unassigned",
	"worker.poll_interval",
	"worker.lease_duration",
	"worker.heartbeat_interval",
	"worker.concurrency",
	"worker.reap_interval",
	"scheduler.tick_interval",
	"scheduler.silence_threshold",
	"scheduler.coordinator_role",
	"scheduler.default_role",
	"dispatcher.top_n",
	"dispatcher.initial_delay",
	"dispatcher.stagger",
	"dispatcher.escalation_role",
	"router.keywords_file",
	"agents_file",
	"calendar.enabled",
	"calendar.calendar_id",
	"log.debug_file",
}

func configValues(cfg *config.Config) map[string]string {
	key, _ := config.GetAPIKey(cfg)
	return map[string]string{
		"anthropic.api_key":           fmt.Sprintf("%s (%s)", config.MaskAPIKey(key), config.GetAPIKeySource(cfg)),
		"anthropic.model":             cfg.Anthropic.Model,
		"anthropic.use_bedrock":       strconv.FormatBool(cfg.Anthropic.UseBedrock),
		"anthropic.aws_region":        cfg.Anthropic.AWSRegion,
		"store.driver":                cfg.Store.Driver,
		"store.path":                  orUnset(cfg.Store.Path),
		"worker.role":                 cfg.Worker.Role,
		"worker.allow_unassigned":     strconv.FormatBool(cfg.Worker.AllowUnassigned),
		"worker.poll_interval":        cfg.Worker.PollInterval.String(),
		"worker.lease_duration":       cfg.Worker.LeaseDuration.String(),
		"worker.heartbeat_interval":   cfg.Worker.HeartbeatInterval.String(),
		"worker.concurrency":          strconv.Itoa(cfg.Worker.Concurrency),
		"worker.reap_interval":        cfg.Worker.ReapInterval.String(),
		"scheduler.tick_interval":     cfg.Scheduler.TickInterval.String(),
		"scheduler.silence_threshold": cfg.Scheduler.SilenceThreshold.String(),
		"scheduler.coordinator_role":  cfg.Scheduler.CoordinatorRole,
		"scheduler.default_role":      cfg.Scheduler.DefaultRole,
		"dispatcher.top_n":            strconv.Itoa(cfg.Dispatcher.TopN),
		"dispatcher.initial_delay":    cfg.Dispatcher.InitialDelay.String(),
		"dispatcher.stagger":          cfg.Dispatcher.Stagger.String(),
		"dispatcher.escalation_role":  orUnset(cfg.Dispatcher.EscalationRole),
		"router.keywords_file":        orUnset(cfg.Router.KeywordsFile),
		"agents_file":                 orUnset(cfg.AgentsFile),
		"calendar.enabled":            strconv.FormatBool(cfg.Calendar.Enabled),
		"calendar.calendar_id":        cfg.Calendar.CalendarID,
		"log.debug_file":              orUnset(cfg.Log.DebugFile),
	}
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
