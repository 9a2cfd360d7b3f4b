package orchestrator

import (
	"time"

	"github.com/ShayCichocki/huddle/internal/api"
)

// RequiredConfig contains the collaborators a TurnLoop cannot run without.
type RequiredConfig struct {
	// Store reads scheduler state and records the effects of decisions.
	Store TurnStore
	// Agents is the catalog used to resolve the coordinator and match roles.
	Agents *AgentRegistry
	// Replies produces the coordinator's messages.
	Replies api.ReplyGenerator
}

// Option configures an Orchestrator or TurnLoop. Use With* functions to create Options.
type Option func(*options)

type options struct {
	silenceThreshold time.Duration
	coordinatorRole  string
	defaultRole      string
	standupTitle     string
	historyLimit     int
	tickInterval     time.Duration
	eventBuffer      int
	observers        []MeetingObserver
	logger           *DebugLogger
	now              func() time.Time
}

func defaultOptions() *options {
	return &options{
		silenceThreshold: 30 * time.Second,
		coordinatorRole:  "ceo",
		defaultRole:      "planner",
		standupTitle:     "Daily standup",
		historyLimit:     20,
		tickInterval:     10 * time.Second,
		eventBuffer:      100,
		now:              time.Now,
	}
}

func buildOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithSilenceThreshold sets how long a meeting may stay quiet before a nudge.
func WithSilenceThreshold(d time.Duration) Option {
	return func(o *options) { o.silenceThreshold = d }
}

// WithCoordinatorRole sets the role named in every decision.
func WithCoordinatorRole(role string) Option {
	return func(o *options) { o.coordinatorRole = role }
}

// WithDefaultRole sets the role unmatched tasks are assigned to.
func WithDefaultRole(role string) Option {
	return func(o *options) { o.defaultRole = role }
}

// WithStandupTitle sets the title prefix of scheduler-started meetings.
func WithStandupTitle(title string) Option {
	return func(o *options) { o.standupTitle = title }
}

// WithHistoryLimit caps how many recent messages a nudge reply sees.
func WithHistoryLimit(n int) Option {
	return func(o *options) { o.historyLimit = n }
}

// WithTickInterval sets how often the TurnLoop ticks.
func WithTickInterval(d time.Duration) Option {
	return func(o *options) { o.tickInterval = d }
}

// WithEventBuffer sets the event channel capacity.
func WithEventBuffer(n int) Option {
	return func(o *options) { o.eventBuffer = n }
}

// WithMeetingObserver registers an observer told about started meetings.
func WithMeetingObserver(obs MeetingObserver) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock replaces time.Now (mainly for testing).
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}
