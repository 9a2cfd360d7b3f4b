package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ShayCichocki/huddle/internal/api"
	"github.com/ShayCichocki/huddle/pkg/models"
)

// TurnStore is everything the TurnLoop reads and writes.
type TurnStore interface {
	StateReader
	GetTask(ctx context.Context, id string) (*models.Task, error)
	AssignTask(ctx context.Context, id, role string) (bool, error)
	CreateMeeting(ctx context.Context, m *models.Meeting) error
	AppendMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, meetingID string, limit int) ([]models.Message, error)
}

// MeetingObserver is told about meetings the scheduler starts.
type MeetingObserver interface {
	MeetingStarted(ctx context.Context, m models.Meeting) error
}

// ErrEmptyReply is returned when the coordinator produced no text.
var ErrEmptyReply = errors.New("empty reply")

// TurnLoop ticks the Orchestrator on an interval and executes each decision
// in the same goroutine, so a decision is never acted on twice.
type TurnLoop struct {
	orch    *Orchestrator
	store   TurnStore
	agents  *AgentRegistry
	replies api.ReplyGenerator
	emitter *EventEmitter
	opts    *options
}

// NewTurnLoop creates a TurnLoop.
func NewTurnLoop(req RequiredConfig, opts ...Option) *TurnLoop {
	o := buildOptions(opts)
	return &TurnLoop{
		orch:    New(req.Store, opts...),
		store:   req.Store,
		agents:  req.Agents,
		replies: req.Replies,
		emitter: NewEventEmitter(o.eventBuffer),
		opts:    o,
	}
}

// Orchestrator returns the scheduler the loop ticks.
func (l *TurnLoop) Orchestrator() *Orchestrator {
	return l.orch
}

// Events returns executed-decision events.
func (l *TurnLoop) Events() <-chan OrchestratorEvent {
	return l.emitter.Events()
}

// Run ticks until ctx is cancelled, then closes the event channel.
func (l *TurnLoop) Run(ctx context.Context) error {
	defer l.emitter.Close()

	ticker := time.NewTicker(l.opts.tickInterval)
	defer ticker.Stop()

	for {
		l.Step(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Step runs one tick and executes its decision. It returns the decision
// and any execution error; the error has already been logged and emitted.
func (l *TurnLoop) Step(ctx context.Context) (*Decision, error) {
	d := l.orch.Tick(ctx)
	if d == nil {
		return nil, nil
	}

	if err := l.Execute(ctx, *d); err != nil {
		log.Printf("[scheduler] %s decision failed: %v", d.Kind, err)
		l.emitter.Emit(OrchestratorEvent{
			Type:      EventDecisionFailed,
			Decision:  *d,
			TaskID:    d.TaskID,
			MeetingID: d.MeetingID,
			AgentID:   d.NextActorID,
			Error:     err,
		})
		return d, err
	}
	return d, nil
}

// Execute carries out one decision.
func (l *TurnLoop) Execute(ctx context.Context, d Decision) error {
	switch d.Kind {
	case DecisionAssign:
		return l.assign(ctx, d)
	case DecisionStandup:
		return l.standup(ctx, d)
	case DecisionNudge:
		return l.nudge(ctx, d)
	default:
		return fmt.Errorf("unknown decision kind %q", d.Kind)
	}
}

func (l *TurnLoop) assign(ctx context.Context, d Decision) error {
	task, err := l.store.GetTask(ctx, d.TaskID)
	if err != nil {
		return fmt.Errorf("load task: %w", err)
	}

	role, matched := l.agents.MatchRole(task.Title + " " + task.Description)
	if !matched {
		role = l.opts.defaultRole
	}

	ok, err := l.store.AssignTask(ctx, task.ID, role)
	if err != nil {
		return fmt.Errorf("assign task: %w", err)
	}
	if !ok {
		// Someone else assigned or claimed it since the tick read it.
		debugLog("[scheduler] task %s no longer assignable", task.ID)
		return nil
	}

	debugLog("[scheduler] assigned %q to %s (matched=%v)", task.Title, role, matched)
	l.emitter.Emit(OrchestratorEvent{
		Type:     EventTaskAssigned,
		Decision: d,
		TaskID:   task.ID,
		AgentID:  d.NextActorID,
		Message:  fmt.Sprintf("%s -> %s", task.Title, role),
	})
	return nil
}

func (l *TurnLoop) standup(ctx context.Context, d Decision) error {
	now := l.opts.now()
	meeting := &models.Meeting{
		Title:     fmt.Sprintf("%s %s", l.opts.standupTitle, now.Format("2006-01-02 15:04")),
		CreatedAt: now,
	}
	if err := l.store.CreateMeeting(ctx, meeting); err != nil {
		return fmt.Errorf("create meeting: %w", err)
	}

	for _, obs := range l.opts.observers {
		if err := obs.MeetingStarted(ctx, *meeting); err != nil {
			log.Printf("[scheduler] meeting observer failed for %s: %v", meeting.ID, err)
		}
	}

	announce := &models.Message{
		MeetingID: meeting.ID,
		ActorID:   models.SystemActorID,
		Type:      models.MessageSystem,
		Content:   meeting.Title + " started",
	}
	if err := l.store.AppendMessage(ctx, announce); err != nil {
		return fmt.Errorf("announce meeting: %w", err)
	}

	agenda := l.agenda(ctx)
	coordinator := l.agents.Resolve(d.NextActorID)
	if err := l.speak(ctx, coordinator, meeting.ID, nil, agenda, models.MessageChat); err != nil {
		return err
	}

	l.emitter.Emit(OrchestratorEvent{
		Type:      EventMeetingStarted,
		Decision:  d,
		MeetingID: meeting.ID,
		AgentID:   coordinator.ID,
		Message:   meeting.Title,
	})
	return nil
}

func (l *TurnLoop) nudge(ctx context.Context, d Decision) error {
	history, err := l.store.ListMessages(ctx, d.MeetingID, l.opts.historyLimit)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	coordinator := l.agents.Resolve(d.NextActorID)
	prompt := fmt.Sprintf("The meeting has gone quiet (%s). Move it forward: name who should speak next and what they should answer.", d.Instruction)
	if err := l.speak(ctx, coordinator, d.MeetingID, history, prompt, models.MessageDecision); err != nil {
		return err
	}

	l.emitter.Emit(OrchestratorEvent{
		Type:      EventMeetingNudged,
		Decision:  d,
		MeetingID: d.MeetingID,
		AgentID:   coordinator.ID,
	})
	return nil
}

// speak generates a reply as agent and appends it to the meeting.
func (l *TurnLoop) speak(ctx context.Context, agent models.Agent, meetingID string, history []models.Message, prompt string, typ models.MessageType) error {
	reply, err := l.replies.GenerateReply(ctx, agent, history, prompt)
	if err != nil {
		return fmt.Errorf("reply from %s: %w", agent.ID, err)
	}
	if strings.TrimSpace(reply.Text) == "" {
		return fmt.Errorf("reply from %s: %w", agent.ID, ErrEmptyReply)
	}

	msg := &models.Message{
		MeetingID: meetingID,
		ActorID:   agent.ID,
		Type:      typ,
		Content:   reply.Text,
	}
	if err := l.store.AppendMessage(ctx, msg); err != nil {
		return fmt.Errorf("append reply: %w", err)
	}
	return nil
}

// agenda describes open work for the standup opener.
func (l *TurnLoop) agenda(ctx context.Context) string {
	tasks, err := l.store.ListOpenTasks(ctx)
	if err != nil {
		log.Printf("[scheduler] list open tasks for agenda failed: %v", err)
	}

	var b strings.Builder
	b.WriteString("Open the standup. Greet the team and ask each role for a status update.")
	if len(tasks) == 0 {
		b.WriteString(" There is no open work in the queue.")
		return b.String()
	}
	b.WriteString(" Open work:\n")
	for _, t := range tasks {
		owner := t.AssignedRole
		if owner == "" {
			owner = "unassigned"
		}
		fmt.Fprintf(&b, "- [%s] %s (%s, %s)\n", t.Priority, t.Title, owner, t.Status)
	}
	return b.String()
}
