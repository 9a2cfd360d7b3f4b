package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ShayCichocki/huddle/internal/api"
	"github.com/ShayCichocki/huddle/internal/state"
	"github.com/ShayCichocki/huddle/pkg/models"
)

type replyCall struct {
	agent   models.Agent
	history []models.Message
	context string
}

// fakeReplies is a scripted ReplyGenerator.
type fakeReplies struct {
	mu    sync.Mutex
	text  string
	err   error
	calls []replyCall
}

func (f *fakeReplies) GenerateReply(_ context.Context, agent models.Agent, history []models.Message, contextText string) (api.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, replyCall{agent: agent, history: history, context: contextText})
	if f.err != nil {
		return api.Reply{}, f.err
	}
	return api.Reply{Text: f.text}, nil
}

type recordingObserver struct {
	started []models.Meeting
	err     error
}

func (r *recordingObserver) MeetingStarted(_ context.Context, m models.Meeting) error {
	r.started = append(r.started, m)
	return r.err
}

func setupLoopDB(t *testing.T) *state.DB {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "loop.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testRegistry(t *testing.T) *AgentRegistry {
	t.Helper()
	r, err := NewAgentRegistry([]models.Agent{
		{ID: "ceo-1", Name: "Morgan", Role: "ceo", Capabilities: []string{"coordination"}},
		{ID: "planner-1", Role: "planner", Capabilities: []string{"event", "booking"}},
		{ID: "finance-1", Role: "finance", Capabilities: []string{"invoice", "budget"}},
	}, "ceo")
	if err != nil {
		t.Fatalf("NewAgentRegistry: %v", err)
	}
	return r
}

func newTestLoop(t *testing.T, db *state.DB, replies api.ReplyGenerator, opts ...Option) *TurnLoop {
	t.Helper()
	return NewTurnLoop(RequiredConfig{Store: db, Agents: testRegistry(t), Replies: replies}, opts...)
}

func drainEvents(l *TurnLoop) []OrchestratorEvent {
	var events []OrchestratorEvent
	for {
		select {
		case ev := <-l.Events():
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestStep_AssignsByCapability(t *testing.T) {
	db := setupLoopDB(t)
	ctx := context.Background()
	task := &models.Task{Title: "Send the invoice to the caterer", Priority: models.PriorityHigh}
	if err := db.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	replies := &fakeReplies{text: "unused"}
	loop := newTestLoop(t, db, replies)

	d, err := loop.Step(ctx)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if d == nil || d.Kind != DecisionAssign {
		t.Fatalf("Step decision = %v, want assign", d)
	}

	got, _ := db.GetTask(ctx, task.ID)
	if got.AssignedRole != "finance" {
		t.Errorf("AssignedRole = %q, want finance", got.AssignedRole)
	}
	if len(replies.calls) != 0 {
		t.Errorf("assign should not call the reply generator")
	}

	events := drainEvents(loop)
	if len(events) != 1 || events[0].Type != EventTaskAssigned {
		t.Errorf("events = %+v, want one task_assigned", events)
	}
}

func TestStep_AssignFallsBackToDefaultRole(t *testing.T) {
	db := setupLoopDB(t)
	ctx := context.Background()
	task := &models.Task{Title: "Water the office plants"}
	if err := db.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	loop := newTestLoop(t, db, &fakeReplies{}, WithDefaultRole("support"))
	if _, err := loop.Step(ctx); err != nil {
		t.Fatalf("Step: %v", err)
	}

	got, _ := db.GetTask(ctx, task.ID)
	if got.AssignedRole != "support" {
		t.Errorf("AssignedRole = %q, want support", got.AssignedRole)
	}
}

func TestStep_StartsStandupWhenIdle(t *testing.T) {
	db := setupLoopDB(t)
	ctx := context.Background()

	replies := &fakeReplies{text: "Good morning, team."}
	observer := &recordingObserver{err: errors.New("calendar offline")}
	loop := newTestLoop(t, db, replies,
		WithMeetingObserver(observer),
		WithStandupTitle("Sync"),
		WithClock(func() time.Time { return t0 }))

	d, err := loop.Step(ctx)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if d == nil || d.Kind != DecisionStandup {
		t.Fatalf("decision = %v, want standup", d)
	}

	meeting, err := db.GetActiveMeeting(ctx)
	if err != nil || meeting == nil {
		t.Fatalf("GetActiveMeeting = %v, %v", meeting, err)
	}
	if meeting.Title != "Sync 2026-03-02 09:00" {
		t.Errorf("meeting title = %q", meeting.Title)
	}

	msgs, _ := db.ListMessages(ctx, meeting.ID, 0)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want announcement + opener", len(msgs))
	}
	if msgs[0].ActorID != models.SystemActorID || msgs[0].Type != models.MessageSystem {
		t.Errorf("first message = %+v, want system announcement", msgs[0])
	}
	if msgs[1].ActorID != "ceo-1" || msgs[1].Content != "Good morning, team." {
		t.Errorf("second message = %+v, want coordinator opener", msgs[1])
	}

	// A failing observer does not fail the decision.
	if len(observer.started) != 1 || observer.started[0].ID != meeting.ID {
		t.Errorf("observer saw %+v", observer.started)
	}

	events := drainEvents(loop)
	if len(events) != 1 || events[0].Type != EventMeetingStarted {
		t.Errorf("events = %+v, want meeting_started", events)
	}

	// The meeting is fresh, so the next tick is quiet.
	if d, _ := loop.Step(ctx); d != nil {
		t.Errorf("second Step = %v, want nil", d)
	}
}

func TestStep_NudgesSilentMeeting(t *testing.T) {
	db := setupLoopDB(t)
	ctx := context.Background()

	meeting := &models.Meeting{Title: "planning", CreatedAt: t0.Add(-time.Hour)}
	if err := db.CreateMeeting(ctx, meeting); err != nil {
		t.Fatalf("CreateMeeting: %v", err)
	}
	if err := db.AppendMessage(ctx, &models.Message{MeetingID: meeting.ID, ActorID: "planner-1", Content: "Venue is booked.", CreatedAt: t0.Add(-2 * time.Minute)}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	replies := &fakeReplies{text: "Finance, can you confirm the deposit?"}
	loop := newTestLoop(t, db, replies,
		WithSilenceThreshold(30*time.Second),
		WithClock(func() time.Time { return t0 }))

	d, err := loop.Step(ctx)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if d == nil || d.Kind != DecisionNudge {
		t.Fatalf("decision = %v, want nudge", d)
	}

	if len(replies.calls) != 1 {
		t.Fatalf("reply calls = %d, want 1", len(replies.calls))
	}
	call := replies.calls[0]
	if call.agent.ID != "ceo-1" {
		t.Errorf("nudge spoke as %q, want ceo-1", call.agent.ID)
	}
	if len(call.history) != 1 || call.history[0].Content != "Venue is booked." {
		t.Errorf("nudge history = %+v", call.history)
	}

	msgs, _ := db.ListMessages(ctx, meeting.ID, 0)
	last := msgs[len(msgs)-1]
	if last.Type != models.MessageDecision || last.Content != "Finance, can you confirm the deposit?" {
		t.Errorf("last message = %+v, want decision message", last)
	}
}

func TestStep_ReplyFailureEmitsDecisionFailed(t *testing.T) {
	db := setupLoopDB(t)
	ctx := context.Background()

	meeting := &models.Meeting{Title: "quiet", CreatedAt: t0.Add(-time.Hour)}
	if err := db.CreateMeeting(ctx, meeting); err != nil {
		t.Fatalf("CreateMeeting: %v", err)
	}

	loop := newTestLoop(t, db, &fakeReplies{err: errors.New("overloaded")},
		WithClock(func() time.Time { return t0 }))

	d, err := loop.Step(ctx)
	if err == nil {
		t.Fatal("expected error from failing reply")
	}
	if d == nil || d.Kind != DecisionNudge {
		t.Errorf("decision = %v, want nudge", d)
	}

	events := drainEvents(loop)
	if len(events) != 1 || events[0].Type != EventDecisionFailed || events[0].Error == nil {
		t.Errorf("events = %+v, want decision_failed", events)
	}

	msgs, _ := db.ListMessages(ctx, meeting.ID, 0)
	if len(msgs) != 0 {
		t.Errorf("failed nudge appended %d messages", len(msgs))
	}
}

func TestStep_EmptyReplyIsAFailure(t *testing.T) {
	db := setupLoopDB(t)
	ctx := context.Background()
	meeting := &models.Meeting{Title: "quiet", CreatedAt: t0.Add(-time.Hour)}
	if err := db.CreateMeeting(ctx, meeting); err != nil {
		t.Fatalf("CreateMeeting: %v", err)
	}

	loop := newTestLoop(t, db, &fakeReplies{text: "   "}, WithClock(func() time.Time { return t0 }))
	if _, err := loop.Step(ctx); !errors.Is(err, ErrEmptyReply) {
		t.Errorf("err = %v, want ErrEmptyReply", err)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	db := setupLoopDB(t)
	loop := newTestLoop(t, db, &fakeReplies{text: "hello"}, WithTickInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	// First tick opens a standup.
	var started bool
	for ev := range loop.Events() {
		if ev.Type == EventMeetingStarted {
			started = true
			cancel()
		}
	}
	if !started {
		t.Error("never saw meeting_started")
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
