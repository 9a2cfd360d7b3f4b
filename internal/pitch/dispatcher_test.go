package pitch

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ShayCichocki/huddle/internal/api"
	"github.com/ShayCichocki/huddle/internal/router"
	"github.com/ShayCichocki/huddle/internal/state"
	"github.com/ShayCichocki/huddle/pkg/models"
)

type stubClassifier struct {
	category string
	calls    int
}

func (s *stubClassifier) Classify(context.Context, string) (string, bool) {
	s.calls++
	return s.category, s.category != ""
}

type stubFinder struct {
	providers []models.Provider
	err       error
	gotLimit  int
}

func (s *stubFinder) FindTopProviders(_ context.Context, _ string, limit int) ([]models.Provider, error) {
	s.gotLimit = limit
	return s.providers, s.err
}

// memLog is an in-memory meeting log.
type memLog struct {
	mu   sync.Mutex
	msgs []models.Message
}

func (m *memLog) AppendMessage(_ context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, *msg)
	return nil
}

func (m *memLog) snapshot() []models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Message(nil), m.msgs...)
}

type pitchReplies struct {
	failFor string
}

func (p pitchReplies) GenerateReply(_ context.Context, agent models.Agent, _ []models.Message, contextText string) (api.Reply, error) {
	if agent.ID == p.failFor {
		return api.Reply{}, errors.New("model timeout")
	}
	return api.Reply{Text: agent.Name + " can help: " + contextText[:20]}, nil
}

type taskRecorder struct {
	tasks []models.Task
}

func (r *taskRecorder) CreateTask(_ context.Context, t *models.Task) error {
	t.ID = "esc-1"
	r.tasks = append(r.tasks, *t)
	return nil
}

func florists() []models.Provider {
	return []models.Provider{
		{ID: "p1", Name: "Bloom", Category: "florist", Rating: 4.9, Active: true},
		{ID: "p3", Name: "Petal", Category: "florist", Rating: 4.7, Active: true},
		{ID: "p2", Name: "Stem", Category: "florist", Rating: 4.5, Active: true},
	}
}

func fastConfig() Config {
	return Config{TopN: 3, InitialDelay: time.Millisecond, Stagger: time.Millisecond}
}

func waitFor(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestHandleMessage_ThreeProvidersFourMessages(t *testing.T) {
	finder := &stubFinder{providers: florists()}
	msgs := &memLog{}
	d := NewDispatcher(&stubClassifier{category: "florist"}, finder, msgs, pitchReplies{}, fastConfig())

	n, err := d.HandleMessage(context.Background(), "m1", "I need flowers for a wedding")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if n != 3 {
		t.Errorf("scheduled = %d, want 3", n)
	}
	if finder.gotLimit != 3 {
		t.Errorf("lookup limit = %d, want 3", finder.gotLimit)
	}
	waitFor(t, d)

	got := msgs.snapshot()
	if len(got) != 4 {
		t.Fatalf("got %d messages, want 4", len(got))
	}
	if got[0].Type != models.MessageSystem || got[0].ActorID != models.SystemActorID {
		t.Errorf("first message = %+v, want system announcement", got[0])
	}

	seen := make(map[string]bool)
	for _, m := range got[1:] {
		if m.Type != models.MessagePitch || m.MeetingID != "m1" {
			t.Errorf("pitch message = %+v", m)
		}
		seen[m.ActorID] = true
	}
	for _, id := range []string{"p1", "p2", "p3"} {
		if !seen[id] {
			t.Errorf("no pitch from %s", id)
		}
	}

	if s := d.Stats(); s.Scheduled != 3 || s.Delivered != 3 {
		t.Errorf("stats = %+v", s)
	}
}

func TestHandleMessage_NoProvidersNoMessages(t *testing.T) {
	tests := []struct {
		name   string
		finder *stubFinder
	}{
		{"empty result", &stubFinder{}},
		{"lookup error", &stubFinder{err: errors.New("database is locked")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs := &memLog{}
			escalations := &taskRecorder{}
			cfg := fastConfig()
			cfg.EscalationRole = "support"
			d := NewDispatcher(&stubClassifier{category: "plumber"}, tt.finder, msgs, pitchReplies{}, cfg,
				WithEscalation(escalations))

			n, err := d.HandleMessage(context.Background(), "m1", "my sink is leaking")
			if err != nil || n != 0 {
				t.Fatalf("HandleMessage = %d, %v; want 0, nil", n, err)
			}
			waitFor(t, d)

			if got := msgs.snapshot(); len(got) != 0 {
				t.Errorf("appended %d messages, want 0", len(got))
			}
			if len(escalations.tasks) != 1 {
				t.Fatalf("escalations = %d, want 1", len(escalations.tasks))
			}
			esc := escalations.tasks[0]
			if esc.AssignedRole != "support" || esc.Description != "my sink is leaking" || esc.Priority != models.PriorityHigh {
				t.Errorf("escalation task = %+v", esc)
			}
		})
	}
}

func TestHandleMessage_NoEscalationWithoutRole(t *testing.T) {
	escalations := &taskRecorder{}
	d := NewDispatcher(&stubClassifier{category: "plumber"}, &stubFinder{}, &memLog{}, pitchReplies{}, fastConfig(),
		WithEscalation(escalations))

	if _, err := d.HandleMessage(context.Background(), "m1", "leak"); err != nil {
		t.Fatal(err)
	}
	if len(escalations.tasks) != 0 {
		t.Errorf("escalated without a role: %+v", escalations.tasks)
	}
}

func TestHandleMessage_UnclassifiedIsNoop(t *testing.T) {
	finder := &stubFinder{providers: florists()}
	msgs := &memLog{}
	d := NewDispatcher(&stubClassifier{}, finder, msgs, pitchReplies{}, fastConfig())

	n, err := d.HandleMessage(context.Background(), "m1", "hello there")
	if err != nil || n != 0 {
		t.Fatalf("HandleMessage = %d, %v", n, err)
	}
	if finder.gotLimit != 0 {
		t.Error("provider lookup ran without a category")
	}
	if len(msgs.snapshot()) != 0 {
		t.Error("messages appended without a category")
	}
}

func TestHandleMessage_OneFailingPitchDoesNotStopOthers(t *testing.T) {
	msgs := &memLog{}
	d := NewDispatcher(&stubClassifier{category: "florist"}, &stubFinder{providers: florists()}, msgs,
		pitchReplies{failFor: "p3"}, fastConfig())

	if _, err := d.HandleMessage(context.Background(), "m1", "roses please"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, d)

	got := msgs.snapshot()
	if len(got) != 3 {
		t.Fatalf("got %d messages, want announcement + 2 pitches", len(got))
	}
	for _, m := range got {
		if m.ActorID == "p3" {
			t.Error("failed pitch was appended")
		}
	}
	if s := d.Stats(); s.Delivered != 2 || s.Failed != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestHandleMessage_ReturnsBeforePitchesRun(t *testing.T) {
	msgs := &memLog{}
	d := NewDispatcher(&stubClassifier{category: "florist"}, &stubFinder{providers: florists()}, msgs,
		pitchReplies{}, Config{TopN: 3, InitialDelay: time.Hour, Stagger: time.Hour})

	n, err := d.HandleMessage(context.Background(), "m1", "tulips")
	if err != nil || n != 3 {
		t.Fatalf("HandleMessage = %d, %v", n, err)
	}
	if got := msgs.snapshot(); len(got) != 1 {
		t.Errorf("got %d messages right after dispatch, want only the announcement", len(got))
	}
	if d.Pending() != 3 {
		t.Errorf("Pending = %d, want 3", d.Pending())
	}

	d.Stop()
	waitFor(t, d)

	if d.Pending() != 0 {
		t.Errorf("Pending after Stop = %d", d.Pending())
	}
	if s := d.Stats(); s.Cancelled != 3 || s.Delivered != 0 {
		t.Errorf("stats = %+v, want 3 cancelled", s)
	}
	if _, err := d.HandleMessage(context.Background(), "m1", "tulips"); !errors.Is(err, ErrStopped) {
		t.Errorf("HandleMessage after Stop = %v, want ErrStopped", err)
	}
}

func TestWait_CoversPitchesScheduledWhileWaiting(t *testing.T) {
	msgs := &memLog{}
	d := NewDispatcher(&stubClassifier{category: "florist"}, &stubFinder{providers: florists()}, msgs,
		pitchReplies{}, Config{TopN: 3, InitialDelay: 20 * time.Millisecond, Stagger: 5 * time.Millisecond})

	if _, err := d.HandleMessage(context.Background(), "m1", "tulips for the lobby"); err != nil {
		t.Fatal(err)
	}

	waited := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		waited <- d.Wait(ctx)
	}()

	if _, err := d.HandleMessage(context.Background(), "m2", "orchids for the gala"); err != nil {
		t.Fatal(err)
	}

	if err := <-waited; err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got := msgs.snapshot(); len(got) != 8 {
		t.Errorf("got %d messages after Wait, want 8 (2 announcements + 6 pitches)", len(got))
	}
	if d.Pending() != 0 {
		t.Errorf("Pending after Wait = %d", d.Pending())
	}
}

func TestWait_IdleReturnsImmediately(t *testing.T) {
	d := NewDispatcher(&stubClassifier{}, &stubFinder{}, &memLog{}, pitchReplies{}, fastConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Wait(ctx); err != nil {
		t.Errorf("Wait on an idle dispatcher = %v", err)
	}
}

func TestHandleMessage_StaggerOrdersPitches(t *testing.T) {
	msgs := &memLog{}
	d := NewDispatcher(&stubClassifier{category: "florist"}, &stubFinder{providers: florists()}, msgs,
		pitchReplies{}, Config{TopN: 3, InitialDelay: time.Millisecond, Stagger: 40 * time.Millisecond})

	if _, err := d.HandleMessage(context.Background(), "m1", "lilies"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, d)

	got := msgs.snapshot()
	var order []string
	for _, m := range got[1:] {
		order = append(order, m.ActorID)
	}
	if strings.Join(order, ",") != "p1,p3,p2" {
		t.Errorf("pitch order = %v, want rating order p1,p3,p2", order)
	}
}

func TestProviderContext(t *testing.T) {
	p := models.Provider{Name: "Bloom", Category: "florist", Rating: 4.9, Location: "Austin",
		Description: "Weddings", Image: "https://img.example/bloom.jpg"}
	got := providerContext(p, "need flowers")
	for _, want := range []string{"Bloom", "4.9", "Austin", "Weddings", "Image: https://img.example/bloom.jpg", `"need flowers"`} {
		if !strings.Contains(got, want) {
			t.Errorf("context missing %q:\n%s", want, got)
		}
	}

	bare := providerContext(models.Provider{Name: "Stem", Category: "florist"}, "roses")
	if strings.Contains(bare, "Image:") || strings.Contains(bare, "Location:") {
		t.Errorf("empty profile fields rendered:\n%s", bare)
	}
}

func TestDispatcher_WithStoreAndRouter(t *testing.T) {
	db, err := state.Open(filepath.Join(t.TempDir(), "pitch.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ctx := context.Background()

	for _, p := range append(florists(), models.Provider{ID: "p4", Name: "Wilt", Category: "florist", Rating: 2.0, Active: true}) {
		if err := db.UpsertProvider(ctx, &p); err != nil {
			t.Fatalf("UpsertProvider: %v", err)
		}
	}
	meeting := &models.Meeting{Title: "customer"}
	if err := db.CreateMeeting(ctx, meeting); err != nil {
		t.Fatalf("CreateMeeting: %v", err)
	}

	rt, err := router.NewCategoryRouter([]string{"florist", "plumber"}, map[string]string{"flowers": "florist"}, nil)
	if err != nil {
		t.Fatalf("NewCategoryRouter: %v", err)
	}

	d := NewDispatcher(rt, db, db, pitchReplies{}, fastConfig())
	n, err := d.HandleMessage(ctx, meeting.ID, "Need flowers by Saturday")
	if err != nil || n != 3 {
		t.Fatalf("HandleMessage = %d, %v", n, err)
	}
	waitFor(t, d)

	msgs, err := db.ListMessages(ctx, meeting.ID, 0)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("got %d messages, want 4", len(msgs))
	}
	for _, m := range msgs[1:] {
		if m.ActorID == "p4" {
			t.Error("lowest rated provider pitched")
		}
	}
}
