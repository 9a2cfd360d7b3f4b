package orchestrator

import (
	"time"
)

// EventType represents the type of scheduler event.
type EventType string

const (
	// EventTaskAssigned indicates an unassigned task was given a role.
	EventTaskAssigned EventType = "task_assigned"
	// EventMeetingStarted indicates the scheduler opened a standup.
	EventMeetingStarted EventType = "meeting_started"
	// EventMeetingNudged indicates the coordinator spoke into a silent meeting.
	EventMeetingNudged EventType = "meeting_nudged"
	// EventDecisionFailed indicates a decision could not be carried out.
	EventDecisionFailed EventType = "decision_failed"
)

// OrchestratorEvent is emitted after each executed decision.
type OrchestratorEvent struct {
	// Type is the kind of event.
	Type EventType
	// Decision is the decision that was executed.
	Decision Decision
	// TaskID is the ID of the related task, if applicable.
	TaskID string
	// MeetingID is the ID of the related meeting, if applicable.
	MeetingID string
	// AgentID is the agent that acted.
	AgentID string
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
