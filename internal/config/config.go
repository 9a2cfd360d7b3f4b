// Package config handles configuration loading and management for huddle.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for huddle.
type Config struct {
	Anthropic  AnthropicConfig  `mapstructure:"anthropic"`
	Store      StoreConfig      `mapstructure:"store"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Router     RouterConfig     `mapstructure:"router"`
	Calendar   CalendarConfig   `mapstructure:"calendar"`
	Log        LogConfig        `mapstructure:"log"`
	AgentsFile string           `mapstructure:"agents_file"`
}

// AnthropicConfig holds model access settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// StoreConfig selects the SQLite driver and database file.
type StoreConfig struct {
	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo).
	Driver string `mapstructure:"driver"`
	// Path is the database file. Empty means the shared XDG data path.
	Path string `mapstructure:"path"`
}

// WorkerConfig controls the task queue consumer.
type WorkerConfig struct {
	Role              string        `mapstructure:"role"`
	ID                string        `mapstructure:"id"`
	AllowUnassigned   bool          `mapstructure:"allow_unassigned"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	LeaseDuration     time.Duration `mapstructure:"lease_duration"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	BatchSize         int           `mapstructure:"batch_size"`
	Concurrency       int           `mapstructure:"concurrency"`
	ReapInterval      time.Duration `mapstructure:"reap_interval"`
}

// SchedulerConfig controls the turn scheduler host loop.
type SchedulerConfig struct {
	TickInterval     time.Duration `mapstructure:"tick_interval"`
	SilenceThreshold time.Duration `mapstructure:"silence_threshold"`
	CoordinatorRole  string        `mapstructure:"coordinator_role"`
	DefaultRole      string        `mapstructure:"default_role"`
	StandupTitle     string        `mapstructure:"standup_title"`
	HistoryLimit     int           `mapstructure:"history_limit"`
}

// DispatcherConfig controls the staggered pitch fan-out.
type DispatcherConfig struct {
	TopN         int           `mapstructure:"top_n"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	Stagger      time.Duration `mapstructure:"stagger"`
	// EscalationRole receives a task when no provider matches. Empty disables it.
	EscalationRole string `mapstructure:"escalation_role"`
}

// RouterConfig points at an optional keyword table override.
type RouterConfig struct {
	KeywordsFile string `mapstructure:"keywords_file"`
}

// CalendarConfig controls the Google Calendar meeting mirror.
type CalendarConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	CalendarID      string        `mapstructure:"calendar_id"`
	CredentialsFile string        `mapstructure:"credentials_file"`
	TokenFile       string        `mapstructure:"token_file"`
	MeetingDuration time.Duration `mapstructure:"meeting_duration"`
}

// LogConfig holds debug log settings.
type LogConfig struct {
	DebugFile string `mapstructure:"debug_file"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, HUDDLE_*)
// 2. Project config (.huddle.yaml in current directory or parent)
// 3. User config (~/.config/huddle/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	bindEnv(v)
	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Store.Path = expandEnv(cfg.Store.Path)
	cfg.AgentsFile = expandEnv(cfg.AgentsFile)
	cfg.Router.KeywordsFile = expandEnv(cfg.Router.KeywordsFile)
	cfg.Calendar.CredentialsFile = expandEnv(cfg.Calendar.CredentialsFile)
	cfg.Calendar.TokenFile = expandEnv(cfg.Calendar.TokenFile)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindEnv maps environment variables onto config keys. HUDDLE_WORKER_ROLE
// sets worker.role and so on.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("huddle")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.aws_region", "HUDDLE_ANTHROPIC_AWS_REGION", "AWS_REGION")
	v.BindEnv("anthropic.aws_profile", "HUDDLE_ANTHROPIC_AWS_PROFILE", "AWS_PROFILE")
}

// Validate rejects settings the loops cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("store.driver must be sqlite or sqlite3, got %q", c.Store.Driver)
	}
	if c.Worker.PollInterval <= 0 {
		return fmt.Errorf("worker.poll_interval must be positive")
	}
	if c.Worker.LeaseDuration <= 0 {
		return fmt.Errorf("worker.lease_duration must be positive")
	}
	if c.Worker.HeartbeatInterval <= 0 || c.Worker.HeartbeatInterval >= c.Worker.LeaseDuration {
		return fmt.Errorf("worker.heartbeat_interval must be positive and shorter than worker.lease_duration")
	}
	if c.Scheduler.TickInterval <= 0 {
		return fmt.Errorf("scheduler.tick_interval must be positive")
	}
	if c.Scheduler.SilenceThreshold <= 0 {
		return fmt.Errorf("scheduler.silence_threshold must be positive")
	}
	if c.Dispatcher.TopN <= 0 {
		return fmt.Errorf("dispatcher.top_n must be positive")
	}
	if c.Dispatcher.InitialDelay < 0 || c.Dispatcher.Stagger < 0 {
		return fmt.Errorf("dispatcher delays must not be negative")
	}
	return nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", d.Anthropic.Model)
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", d.Anthropic.AWSRegion)
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.path", "")

	v.SetDefault("worker.role", d.Worker.Role)
	v.SetDefault("worker.id", "")
	v.SetDefault("worker.allow_unassigned", d.Worker.AllowUnassigned)
	v.SetDefault("worker.poll_interval", d.Worker.PollInterval.String())
	v.SetDefault("worker.lease_duration", d.Worker.LeaseDuration.String())
	v.SetDefault("worker.heartbeat_interval", d.Worker.HeartbeatInterval.String())
	v.SetDefault("worker.batch_size", d.Worker.BatchSize)
	v.SetDefault("worker.concurrency", d.Worker.Concurrency)
	v.SetDefault("worker.reap_interval", d.Worker.ReapInterval.String())

	v.SetDefault("scheduler.tick_interval", d.Scheduler.TickInterval.String())
	v.SetDefault("scheduler.silence_threshold", d.Scheduler.SilenceThreshold.String())
	v.SetDefault("scheduler.coordinator_role", d.Scheduler.CoordinatorRole)
	v.SetDefault("scheduler.default_role", d.Scheduler.DefaultRole)
	v.SetDefault("scheduler.standup_title", d.Scheduler.StandupTitle)
	v.SetDefault("scheduler.history_limit", d.Scheduler.HistoryLimit)

	v.SetDefault("dispatcher.top_n", d.Dispatcher.TopN)
	v.SetDefault("dispatcher.initial_delay", d.Dispatcher.InitialDelay.String())
	v.SetDefault("dispatcher.stagger", d.Dispatcher.Stagger.String())
	v.SetDefault("dispatcher.escalation_role", "")

	v.SetDefault("router.keywords_file", "")
	v.SetDefault("agents_file", "")

	v.SetDefault("calendar.enabled", false)
	v.SetDefault("calendar.calendar_id", d.Calendar.CalendarID)
	v.SetDefault("calendar.credentials_file", "")
	v.SetDefault("calendar.token_file", "")
	v.SetDefault("calendar.meeting_duration", d.Calendar.MeetingDuration.String())

	v.SetDefault("log.debug_file", "")
}

// getUserConfigDir returns the XDG config directory for huddle.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "huddle")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "huddle")
	}
	return filepath.Join(home, ".config", "huddle")
}

// findProjectConfig searches for .huddle.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".huddle.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-20250514",
			AWSRegion: "us-east-1",
		},
		Store: StoreConfig{
			Driver: "sqlite",
		},
		Worker: WorkerConfig{
			Role:              "planner",
			AllowUnassigned:   false,
			PollInterval:      5 * time.Second,
			LeaseDuration:     2 * time.Minute,
			HeartbeatInterval: 30 * time.Second,
			BatchSize:         10,
			Concurrency:       1,
			ReapInterval:      30 * time.Second,
		},
		Scheduler: SchedulerConfig{
			TickInterval:     10 * time.Second,
			SilenceThreshold: 30 * time.Second,
			CoordinatorRole:  "ceo",
			DefaultRole:      "planner",
			StandupTitle:     "Daily standup",
			HistoryLimit:     20,
		},
		Dispatcher: DispatcherConfig{
			TopN:         3,
			InitialDelay: 1500 * time.Millisecond,
			Stagger:      3 * time.Second,
		},
		Calendar: CalendarConfig{
			CalendarID:      "primary",
			MeetingDuration: 15 * time.Minute,
		},
	}
}
