package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fatih/color"

	"github.com/ShayCichocki/huddle/internal/api"
	"github.com/ShayCichocki/huddle/internal/calendar"
	"github.com/ShayCichocki/huddle/internal/config"
	"github.com/ShayCichocki/huddle/internal/orchestrator"
	"github.com/ShayCichocki/huddle/internal/pitch"
	"github.com/ShayCichocki/huddle/internal/router"
	"github.com/ShayCichocki/huddle/internal/state"
	"github.com/ShayCichocki/huddle/internal/worker"
)

func loadConfig() (*config.Config, error) {
	if flagConfig != "" {
		return config.LoadFromPath(flagConfig)
	}
	return config.Load()
}

// resolveDBPath picks --db, then store.path, then a project database in the
// working directory, then the shared one.
func resolveDBPath(cfg *config.Config) string {
	if flagDB != "" {
		return flagDB
	}
	if cfg.Store.Path != "" {
		return cfg.Store.Path
	}
	if cwd, err := os.Getwd(); err == nil {
		projectDB := state.ProjectDBPath(cwd)
		if _, err := os.Stat(projectDB); err == nil {
			return projectDB
		}
	}
	return state.GlobalDBPath()
}

// openStore opens and migrates the database.
func openStore(cfg *config.Config) (*state.DB, error) {
	db, err := state.OpenWithDriver(cfg.Store.Driver, resolveDBPath(cfg))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

// newAPIClient creates the model client from config.
func newAPIClient(cfg *config.Config) (*api.Client, error) {
	if err := config.CheckCredentials(cfg); err != nil {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY or anthropic.use_bedrock", err)
	}
	key, _ := config.GetAPIKey(cfg)
	client, err := api.NewClient(api.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        key,
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		return nil, fmt.Errorf("create API client: %w", err)
	}
	return client, nil
}

func loadRegistry(cfg *config.Config) (*orchestrator.AgentRegistry, error) {
	agents, err := config.LoadAgents(cfg.AgentsFile)
	if err != nil {
		return nil, err
	}
	return orchestrator.NewAgentRegistry(agents, cfg.Scheduler.CoordinatorRole)
}

// newRouter builds the intent classifier. A nil client disables the model
// fallback and leaves only keyword matching.
func newRouter(cfg *config.Config, client *api.Client) (*router.CategoryRouter, error) {
	catalog, err := config.LoadKeywords(cfg.Router.KeywordsFile)
	if err != nil {
		return nil, err
	}
	var delegate router.Delegate
	if client != nil {
		delegate = api.NewClassifier(client)
	}
	return router.NewCategoryRouter(catalog.Categories, catalog.Keywords, delegate)
}

// newDispatcher wires the pitch dispatcher to the store and model.
func newDispatcher(ctx context.Context, cfg *config.Config, db *state.DB, client *api.Client) (*pitch.Dispatcher, error) {
	rt, err := newRouter(cfg, client)
	if err != nil {
		return nil, err
	}
	return pitch.NewDispatcher(rt, db, db, api.NewResponder(client), pitch.Config{
		TopN:           cfg.Dispatcher.TopN,
		InitialDelay:   cfg.Dispatcher.InitialDelay,
		Stagger:        cfg.Dispatcher.Stagger,
		EscalationRole: cfg.Dispatcher.EscalationRole,
	}, pitch.WithEscalation(db), pitch.WithContext(ctx)), nil
}

// newCalendarMirror returns nil when calendar mirroring is off.
func newCalendarMirror(ctx context.Context, cfg *config.Config) (*calendar.Mirror, error) {
	if !cfg.Calendar.Enabled {
		return nil, nil
	}
	oauthCfg, err := calendar.OAuthConfig(cfg.Calendar.CredentialsFile)
	if err != nil {
		return nil, err
	}
	httpClient, err := calendar.HTTPClient(ctx, oauthCfg, cfg.Calendar.TokenFile)
	if err != nil {
		return nil, err
	}
	return calendar.NewMirror(ctx, httpClient, cfg.Calendar.CalendarID, cfg.Calendar.MeetingDuration)
}

// setupDebugLog sends every package's traces to the configured debug file.
// The returned logger must be closed by the caller.
func setupDebugLog(cfg *config.Config) *orchestrator.DebugLogger {
	logger, err := orchestrator.NewDebugLogger(cfg.Log.DebugFile)
	if err != nil {
		log.Printf("[huddle] debug log disabled: %v", err)
		return orchestrator.NopLogger()
	}
	orchestrator.SetPackageLogger(logger)
	router.SetDebugLog(logger.Log)
	worker.SetDebugLog(logger.Log)
	pitch.SetDebugLog(logger.Log)
	calendar.SetDebugLog(logger.Log)
	return logger
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Println("\nReceived interrupt, shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// printStatus prints a colored status symbol followed by message.
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
