// Package pitch turns a classified customer request into staggered provider
// pitches in a meeting log.
package pitch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ShayCichocki/huddle/internal/api"
	"github.com/ShayCichocki/huddle/pkg/models"
)

// Classifier maps free text to a category.
type Classifier interface {
	Classify(ctx context.Context, text string) (string, bool)
}

// ProviderFinder looks up the best providers in a category.
type ProviderFinder interface {
	FindTopProviders(ctx context.Context, category string, limit int) ([]models.Provider, error)
}

// MessageAppender writes to a meeting log.
type MessageAppender interface {
	AppendMessage(ctx context.Context, msg *models.Message) error
}

// TaskCreator queues escalation work when no provider matches.
type TaskCreator interface {
	CreateTask(ctx context.Context, t *models.Task) error
}

var (
	// ErrStopped is returned by HandleMessage after Stop.
	ErrStopped = errors.New("dispatcher stopped")
	// ErrEmptyPitch is logged when a provider's reply has no text.
	ErrEmptyPitch = errors.New("empty pitch")
)

// Config controls the fan-out.
type Config struct {
	// TopN caps how many providers pitch for one request.
	TopN int
	// InitialDelay is how long the first pitch waits.
	InitialDelay time.Duration
	// Stagger separates consecutive pitches.
	Stagger time.Duration
	// EscalationRole receives a task when no provider matches. Empty
	// disables escalation.
	EscalationRole string
}

// Stats counts pitch units by outcome.
type Stats struct {
	Scheduled uint64
	Delivered uint64
	Failed    uint64
	Cancelled uint64
}

// Dispatcher fans a classified request out to provider pitches. Pitches run
// as independent timers; HandleMessage only schedules them.
type Dispatcher struct {
	classifier Classifier
	providers  ProviderFinder
	messages   MessageAppender
	replies    api.ReplyGenerator
	tasks      TaskCreator
	cfg        Config

	// unitCtx outlives any single HandleMessage call.
	unitCtx context.Context

	mu      sync.Mutex
	timers  map[uint64]*time.Timer
	nextID  uint64
	stopped bool

	// inflight counts units scheduled or running; drained is closed each
	// time it returns to zero.
	inflight int
	drained  chan struct{}

	scheduled atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
	cancelled atomic.Uint64
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithEscalation creates a task for cfg.EscalationRole when a request finds
// no provider.
func WithEscalation(tasks TaskCreator) Option {
	return func(d *Dispatcher) { d.tasks = tasks }
}

// WithContext sets the context pitch units run under. It defaults to
// context.Background.
func WithContext(ctx context.Context) Option {
	return func(d *Dispatcher) { d.unitCtx = ctx }
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(classifier Classifier, providers ProviderFinder, messages MessageAppender, replies api.ReplyGenerator, cfg Config, opts ...Option) *Dispatcher {
	if cfg.TopN <= 0 {
		cfg.TopN = 3
	}
	d := &Dispatcher{
		classifier: classifier,
		providers:  providers,
		messages:   messages,
		replies:    replies,
		cfg:        cfg,
		unitCtx:    context.Background(),
		timers:     make(map[uint64]*time.Timer),
		drained:    make(chan struct{}),
	}
	close(d.drained)
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HandleMessage classifies text and, on a match with providers available,
// announces the pitches in meetingID and schedules one per provider. It
// returns the number of pitches scheduled without waiting for any of them.
func (d *Dispatcher) HandleMessage(ctx context.Context, meetingID, text string) (int, error) {
	d.mu.Lock()
	stopped := d.stopped
	d.mu.Unlock()
	if stopped {
		return 0, ErrStopped
	}

	category, ok := d.classifier.Classify(ctx, text)
	if !ok {
		debugLog("[pitch] no category for %q", text)
		return 0, nil
	}

	providers, err := d.providers.FindTopProviders(ctx, category, d.cfg.TopN)
	if err != nil {
		log.Printf("[pitch] provider lookup for %s failed: %v", category, err)
		providers = nil
	}
	if len(providers) == 0 {
		log.Printf("[pitch] no active %s providers for %q", category, text)
		d.escalate(ctx, category, text)
		return 0, nil
	}

	announce := &models.Message{
		MeetingID: meetingID,
		ActorID:   models.SystemActorID,
		Type:      models.MessageSystem,
		Content:   announcement(category, len(providers)),
	}
	if err := d.messages.AppendMessage(ctx, announce); err != nil {
		return 0, fmt.Errorf("announce pitches: %w", err)
	}

	for i, p := range providers {
		delay := d.cfg.InitialDelay + time.Duration(i)*d.cfg.Stagger
		if !d.schedule(delay, meetingID, text, p) {
			return i, ErrStopped
		}
	}
	debugLog("[pitch] scheduled %d %s pitches in %s", len(providers), category, meetingID)
	return len(providers), nil
}

func (d *Dispatcher) schedule(delay time.Duration, meetingID, text string, p models.Provider) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return false
	}

	id := d.nextID
	d.nextID++
	if d.inflight == 0 {
		d.drained = make(chan struct{})
	}
	d.inflight++
	d.scheduled.Add(1)
	d.timers[id] = time.AfterFunc(delay, func() {
		defer d.unitDone()

		d.mu.Lock()
		_, live := d.timers[id]
		delete(d.timers, id)
		d.mu.Unlock()
		if !live {
			// Stop won the race for this timer after it fired.
			d.cancelled.Add(1)
			return
		}

		d.runUnit(meetingID, text, p)
	})
	return true
}

// unitDone retires one unit and wakes Wait callers when none remain.
func (d *Dispatcher) unitDone() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.retireLocked()
}

func (d *Dispatcher) retireLocked() {
	d.inflight--
	if d.inflight == 0 {
		close(d.drained)
	}
}

// runUnit renders and appends one pitch. Failures stay inside the unit.
func (d *Dispatcher) runUnit(meetingID, text string, p models.Provider) {
	defer func() {
		if r := recover(); r != nil {
			d.failed.Add(1)
			log.Printf("[pitch] pitch from %s panicked: %v", p.ID, r)
		}
	}()

	reply, err := d.replies.GenerateReply(d.unitCtx, providerAgent(p), nil, providerContext(p, text))
	if err == nil && strings.TrimSpace(reply.Text) == "" {
		err = ErrEmptyPitch
	}
	if err != nil {
		d.failed.Add(1)
		log.Printf("[pitch] pitch from %s failed: %v", p.ID, err)
		return
	}

	msg := &models.Message{
		MeetingID: meetingID,
		ActorID:   p.ID,
		Type:      models.MessagePitch,
		Content:   reply.Text,
	}
	if err := d.messages.AppendMessage(d.unitCtx, msg); err != nil {
		d.failed.Add(1)
		log.Printf("[pitch] append pitch from %s failed: %v", p.ID, err)
		return
	}
	d.delivered.Add(1)
}

func (d *Dispatcher) escalate(ctx context.Context, category, text string) {
	if d.tasks == nil || d.cfg.EscalationRole == "" {
		return
	}
	task := &models.Task{
		Title:        fmt.Sprintf("Find a %s", category),
		Description:  text,
		AssignedRole: d.cfg.EscalationRole,
		Priority:     models.PriorityHigh,
	}
	if err := d.tasks.CreateTask(ctx, task); err != nil {
		log.Printf("[pitch] escalation task for %s failed: %v", category, err)
		return
	}
	debugLog("[pitch] escalated %s request to %s as %s", category, d.cfg.EscalationRole, task.ID)
}

// Pending returns the number of pitches scheduled but not yet started.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// Stats returns a snapshot of unit outcomes.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Scheduled: d.scheduled.Load(),
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Cancelled: d.cancelled.Load(),
	}
}

// Wait blocks until no pitch is scheduled or running, or ctx is done. It
// may run alongside HandleMessage; pitches scheduled while waiting are
// waited for too.
func (d *Dispatcher) Wait(ctx context.Context) error {
	for {
		d.mu.Lock()
		idle := d.inflight == 0
		drained := d.drained
		d.mu.Unlock()
		if idle {
			return nil
		}

		select {
		case <-drained:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop cancels pitches that have not started and rejects new requests.
// Pitches already running finish on their own; use Wait to drain them.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for id, t := range d.timers {
		if t.Stop() {
			d.cancelled.Add(1)
			d.retireLocked()
		}
		// A timer that already fired sees its entry gone and cancels itself.
		delete(d.timers, id)
	}
}

func announcement(category string, n int) string {
	noun := "provider"
	if n != 1 {
		noun = "providers"
	}
	return fmt.Sprintf("Found %d %s %s for this request. Pitches are on the way.", n, category, noun)
}

// providerAgent lets a provider speak through the agent-reply function.
func providerAgent(p models.Provider) models.Agent {
	return models.Agent{
		ID:      p.ID,
		Name:    p.Name,
		Role:    p.Category,
		Persona: "You represent a local service business pitching for a customer's job. Be concrete, friendly and brief.",
	}
}

func providerContext(p models.Provider, text string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your business: %s (%s), rated %.1f.\n", p.Name, p.Category, p.Rating)
	if p.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", p.Location)
	}
	if p.Description != "" {
		fmt.Fprintf(&b, "About: %s\n", p.Description)
	}
	if p.Image != "" {
		fmt.Fprintf(&b, "Image: %s\n", p.Image)
	}
	fmt.Fprintf(&b, "\nThe customer wrote: %q\n", text)
	b.WriteString("Write a short pitch explaining why they should hire you.")
	return b.String()
}
