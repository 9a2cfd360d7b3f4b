// Package worker consumes the task queue. Any number of workers, in one
// process or many, poll the same store; the conditional claim in the store is
// the only thing that keeps two of them off the same task.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/huddle/internal/api"
	"github.com/ShayCichocki/huddle/internal/state"
	"github.com/ShayCichocki/huddle/pkg/models"
)

// Store is the slice of the task queue a worker touches.
type Store interface {
	ListClaimable(ctx context.Context, role string, includeUnassigned bool, limit int) ([]models.Task, error)
	ClaimTask(ctx context.Context, id, workerID string, leaseUntil time.Time) (bool, error)
	ExtendLease(ctx context.Context, id, workerID string, leaseUntil time.Time) error
	CompleteTask(ctx context.Context, id, workerID, result string) error
	FailTask(ctx context.Context, id, workerID, errSummary string) error
	ReleaseTask(ctx context.Context, id, workerID string) error
}

// AgentResolver maps a role or agent id to the agent that does the work.
type AgentResolver interface {
	Resolve(name string) models.Agent
}

// Signals reports operator kill and pause requests.
type Signals interface {
	ShouldStop() bool
	ShouldPause() bool
	Changed() <-chan struct{}
}

// ErrEmptyResult is recorded when the agent produced no output.
var ErrEmptyResult = errors.New("agent returned an empty result")

// Config controls one worker.
type Config struct {
	// ID identifies the worker in claimed_by. Empty generates one.
	ID   string
	Role string
	// AllowUnassigned lets the worker claim tasks with no role.
	AllowUnassigned   bool
	PollInterval      time.Duration
	LeaseDuration     time.Duration
	HeartbeatInterval time.Duration
	BatchSize         int
}

func (c *Config) applyDefaults() {
	if c.ID == "" {
		c.ID = "worker-" + uuid.New().String()[:8]
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.LeaseDuration <= 0 {
		c.LeaseDuration = 2 * time.Minute
	}
	if c.HeartbeatInterval <= 0 || c.HeartbeatInterval >= c.LeaseDuration {
		c.HeartbeatInterval = c.LeaseDuration / 4
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
}

// Stats counts what a worker has done since it started.
type Stats struct {
	Claimed    uint64
	LostRaces  uint64
	Completed  uint64
	Failed     uint64
	LeasesLost uint64
	// Released counts tasks handed back to the queue on shutdown.
	Released   uint64
}

// Worker polls for claimable tasks and runs them through an agent.
type Worker struct {
	cfg     Config
	store   Store
	agents  AgentResolver
	replies api.ReplyGenerator
	signals Signals
	now     func() time.Time

	claimed    atomic.Uint64
	lostRaces  atomic.Uint64
	completed  atomic.Uint64
	failed     atomic.Uint64
	leasesLost atomic.Uint64
	released   atomic.Uint64
}

// Option configures a Worker.
type Option func(*Worker)

// WithSignals makes the worker honor kill and pause signals.
func WithSignals(s Signals) Option {
	return func(w *Worker) { w.signals = s }
}

// WithClock replaces time.Now (mainly for testing).
func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

// New creates a worker.
func New(store Store, agents AgentResolver, replies api.ReplyGenerator, cfg Config, opts ...Option) *Worker {
	cfg.applyDefaults()
	w := &Worker{
		cfg:     cfg,
		store:   store,
		agents:  agents,
		replies: replies,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ID returns the worker id written to claimed_by.
func (w *Worker) ID() string {
	return w.cfg.ID
}

// Role returns the role the worker polls for.
func (w *Worker) Role() string {
	return w.cfg.Role
}

// Stats returns a snapshot of the worker's counters.
func (w *Worker) Stats() Stats {
	return Stats{
		Claimed:    w.claimed.Load(),
		LostRaces:  w.lostRaces.Load(),
		Completed:  w.completed.Load(),
		Failed:     w.failed.Load(),
		LeasesLost: w.leasesLost.Load(),
		Released:   w.released.Load(),
	}
}

// Run polls until ctx is cancelled or a kill signal arrives. Per-task
// failures are logged and never end the loop.
func (w *Worker) Run(ctx context.Context) error {
	log.Printf("[worker %s] started (role=%q, unassigned=%v, poll=%s)", w.cfg.ID, w.cfg.Role, w.cfg.AllowUnassigned, w.cfg.PollInterval)
	defer log.Printf("[worker %s] stopped", w.cfg.ID)

	for {
		if ctx.Err() != nil {
			return nil
		}
		if w.signals != nil && w.signals.ShouldStop() {
			log.Printf("[worker %s] kill signal received", w.cfg.ID)
			return nil
		}

		if w.signals != nil && w.signals.ShouldPause() {
			debugLog("[worker %s] paused", w.cfg.ID)
		} else if w.PollOnce(ctx) {
			// Work was found; look again right away.
			continue
		}

		if !w.sleep(ctx) {
			return nil
		}
	}
}

// sleep waits one poll interval, waking early on a signal change. It returns
// false when ctx is done.
func (w *Worker) sleep(ctx context.Context) bool {
	timer := time.NewTimer(w.cfg.PollInterval)
	defer timer.Stop()

	var changed <-chan struct{}
	if w.signals != nil {
		changed = w.signals.Changed()
	}

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	case <-changed:
	}
	return true
}

// PollOnce claims at most one task and executes it. It reports whether a task
// was claimed.
func (w *Worker) PollOnce(ctx context.Context) bool {
	candidates, err := w.store.ListClaimable(ctx, w.cfg.Role, w.cfg.AllowUnassigned, w.cfg.BatchSize)
	if err != nil {
		log.Printf("[worker %s] list claimable failed: %v", w.cfg.ID, err)
		return false
	}

	for i := range candidates {
		task := candidates[i]
		ok, err := w.store.ClaimTask(ctx, task.ID, w.cfg.ID, w.now().Add(w.cfg.LeaseDuration))
		if err != nil {
			log.Printf("[worker %s] claim %s failed: %v", w.cfg.ID, task.ID, err)
			return false
		}
		if !ok {
			w.lostRaces.Add(1)
			debugLog("[worker %s] lost claim race for %s", w.cfg.ID, task.ID)
			continue
		}

		w.claimed.Add(1)
		debugLog("[worker %s] claimed %s %q", w.cfg.ID, task.ID, task.Title)
		w.execute(ctx, task)
		return true
	}
	return false
}

func (w *Worker) execute(ctx context.Context, task models.Task) {
	role := task.AssignedRole
	if role == "" {
		role = w.cfg.Role
	}
	agent := w.agents.Resolve(role)

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.heartbeat(hbCtx, task.ID)
	}()

	reply, err := w.replies.GenerateReply(ctx, agent, nil, taskPrompt(task))
	stopHeartbeat()
	wg.Wait()

	if err == nil && strings.TrimSpace(reply.Text) == "" {
		err = ErrEmptyResult
	}

	// Status writes use a fresh context so a shutdown mid-task still records
	// the outcome.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	// A reply cut short by shutdown says nothing about the task itself.
	if err != nil && ctx.Err() != nil {
		w.released.Add(1)
		log.Printf("[worker %s] stopping; returning %s to the queue", w.cfg.ID, task.ID)
		w.finish(w.store.ReleaseTask(writeCtx, task.ID, w.cfg.ID), task.ID)
		return
	}

	if err != nil {
		w.failed.Add(1)
		log.Printf("[worker %s] task %s failed: %v", w.cfg.ID, task.ID, err)
		w.finish(w.store.FailTask(writeCtx, task.ID, w.cfg.ID, err.Error()), task.ID)
		return
	}

	w.completed.Add(1)
	debugLog("[worker %s] task %s completed by %s", w.cfg.ID, task.ID, agent.ID)
	w.finish(w.store.CompleteTask(writeCtx, task.ID, w.cfg.ID, reply.Text), task.ID)
}

func (w *Worker) finish(err error, taskID string) {
	switch {
	case err == nil:
	case errors.Is(err, state.ErrLeaseLost):
		w.leasesLost.Add(1)
		log.Printf("[worker %s] lease on %s lost before the result was written; discarding", w.cfg.ID, taskID)
	default:
		log.Printf("[worker %s] record outcome of %s failed: %v", w.cfg.ID, taskID, err)
	}
}

// heartbeat extends the lease until ctx is done or the lease is lost.
func (w *Worker) heartbeat(ctx context.Context, taskID string) {
	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := w.store.ExtendLease(ctx, taskID, w.cfg.ID, w.now().Add(w.cfg.LeaseDuration))
			switch {
			case err == nil:
				debugLog("[worker %s] extended lease on %s", w.cfg.ID, taskID)
			case errors.Is(err, state.ErrLeaseLost):
				log.Printf("[worker %s] lease on %s lost", w.cfg.ID, taskID)
				return
			case ctx.Err() != nil:
				return
			default:
				log.Printf("[worker %s] extend lease on %s failed: %v", w.cfg.ID, taskID, err)
			}
		}
	}
}

func taskPrompt(t models.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You have been handed a %s priority task.\nTitle: %s\n", t.Priority, t.Title)
	if t.Description != "" {
		fmt.Fprintf(&b, "Details: %s\n", t.Description)
	}
	b.WriteString("Do the task and reply with the outcome.")
	return b.String()
}
