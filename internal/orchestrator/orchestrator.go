package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ShayCichocki/huddle/pkg/models"
)

// CompanyStatus summarizes whether any work is running.
type CompanyStatus string

const (
	// CompanyIdle means no task is in progress.
	CompanyIdle CompanyStatus = "IDLE"
	// CompanyWorking means at least one task is in progress.
	CompanyWorking CompanyStatus = "WORKING"
)

// DecisionKind identifies what a decision asks the coordinator to do.
type DecisionKind string

const (
	DecisionAssign  DecisionKind = "assign"
	DecisionStandup DecisionKind = "standup"
	DecisionNudge   DecisionKind = "nudge"
)

// Decision reasons.
const (
	ReasonUnassignedTask = "unassigned task"
	ReasonIdle           = "company idle"
	ReasonSilence        = "silence timeout"
)

// Decision is who should act next and why. It is consumed once by the loop
// that produced it and never stored.
type Decision struct {
	Kind        DecisionKind
	NextActorID string
	Reason      string
	Instruction string
	// TaskID is set for assign decisions.
	TaskID string
	// MeetingID is set for nudge decisions.
	MeetingID string
}

func (d Decision) String() string {
	return fmt.Sprintf("%s -> %s (%s): %s", d.Kind, d.NextActorID, d.Reason, d.Instruction)
}

// State is everything one tick looks at.
type State struct {
	CompanyStatus CompanyStatus
	ActiveMeeting *models.Meeting
	// LastMessageTime is nil when the active meeting has no messages.
	LastMessageTime *time.Time
	OpenTasks       []models.Task
}

// StateReader is the read side of the store a tick needs.
type StateReader interface {
	ListOpenTasks(ctx context.Context) ([]models.Task, error)
	GetActiveMeeting(ctx context.Context) (*models.Meeting, error)
	LastMessageTime(ctx context.Context, meetingID string) (*time.Time, error)
}

// Orchestrator is the turn scheduler.
type Orchestrator struct {
	store StateReader
	opts  *options
}

// New creates an Orchestrator reading state from store.
func New(store StateReader, opts ...Option) *Orchestrator {
	o := buildOptions(opts)
	if o.logger != nil {
		SetPackageLogger(o.logger)
	}
	return &Orchestrator{store: store, opts: o}
}

// SilenceThreshold returns the configured silence threshold.
func (o *Orchestrator) SilenceThreshold() time.Duration {
	return o.opts.silenceThreshold
}

// Decide returns the next decision for state at now, or nil. It has no side
// effects. Rules apply in order:
//  1. no meeting and the top open task has no owner: assign it
//  2. no meeting and nothing in progress: start a standup
//  3. no meeting otherwise: nothing
//  4. meeting silent longer than the threshold: nudge
func (o *Orchestrator) Decide(state State, now time.Time) *Decision {
	coordinator := o.opts.coordinatorRole

	if state.ActiveMeeting == nil {
		if top := models.TopTask(state.OpenTasks); top != nil && top.Unassigned() && top.ClaimedBy == "" {
			return &Decision{
				Kind:        DecisionAssign,
				NextActorID: coordinator,
				Reason:      ReasonUnassignedTask,
				Instruction: "assign " + top.Title,
				TaskID:      top.ID,
			}
		}
		if state.CompanyStatus == CompanyIdle {
			return &Decision{
				Kind:        DecisionStandup,
				NextActorID: coordinator,
				Reason:      ReasonIdle,
				Instruction: "start standup",
			}
		}
		return nil
	}

	last := state.ActiveMeeting.CreatedAt
	if state.LastMessageTime != nil {
		last = *state.LastMessageTime
	}
	if elapsed := now.Sub(last); elapsed > o.opts.silenceThreshold {
		return &Decision{
			Kind:        DecisionNudge,
			NextActorID: coordinator,
			Reason:      ReasonSilence,
			Instruction: fmt.Sprintf("meeting silent for %s, move it forward", elapsed.Round(time.Second)),
			MeetingID:   state.ActiveMeeting.ID,
		}
	}
	return nil
}

// Tick gathers state from the store and decides. A failed task fetch counts
// as no open tasks; a failed meeting fetch skips the tick.
func (o *Orchestrator) Tick(ctx context.Context) *Decision {
	state, ok := o.gather(ctx)
	if !ok {
		return nil
	}
	d := o.Decide(state, o.opts.now())
	if d != nil {
		debugLog("[scheduler] decision: %s", d)
	}
	return d
}

func (o *Orchestrator) gather(ctx context.Context) (State, bool) {
	var state State

	tasks, err := o.store.ListOpenTasks(ctx)
	if err != nil {
		log.Printf("[scheduler] list open tasks failed, treating as none: %v", err)
		tasks = nil
	}
	state.OpenTasks = tasks
	state.CompanyStatus = companyStatus(tasks)

	meeting, err := o.store.GetActiveMeeting(ctx)
	if err != nil {
		log.Printf("[scheduler] get active meeting failed, skipping tick: %v", err)
		return State{}, false
	}
	state.ActiveMeeting = meeting

	if meeting != nil {
		last, err := o.store.LastMessageTime(ctx, meeting.ID)
		if err != nil {
			log.Printf("[scheduler] last message time for %s failed, skipping tick: %v", meeting.ID, err)
			return State{}, false
		}
		state.LastMessageTime = last
	}

	return state, true
}

func companyStatus(tasks []models.Task) CompanyStatus {
	for _, t := range tasks {
		if t.Status == models.TaskStatusInProgress {
			return CompanyWorking
		}
	}
	return CompanyIdle
}
