package models

import "time"

// MeetingStatus represents the lifecycle state of a meeting.
type MeetingStatus string

const (
	MeetingActive   MeetingStatus = "active"
	MeetingArchived MeetingStatus = "archived"
)

// Valid returns true if the status is a known value.
func (s MeetingStatus) Valid() bool {
	return s == MeetingActive || s == MeetingArchived
}

// Meeting is a named collaboration session with an ordered message log.
type Meeting struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Status    MeetingStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

// MessageType classifies who or what produced a message.
type MessageType string

const (
	// MessageChat is free text from a human or agent.
	MessageChat MessageType = "chat"
	// MessageSystem is an announcement authored by the system.
	MessageSystem MessageType = "system"
	// MessagePitch is a provider reply produced by the pitch dispatcher.
	MessagePitch MessageType = "pitch"
	// MessageDecision is a message posted while acting on a scheduler decision.
	MessageDecision MessageType = "decision"
)

// SystemActorID tags messages authored by the system itself.
const SystemActorID = "system"

// Message is an append-only meeting log entry.
type Message struct {
	ID        string      `json:"id"`
	MeetingID string      `json:"meeting_id"`
	ActorID   string      `json:"actor_id"`
	Content   string      `json:"content"`
	Type      MessageType `json:"type"`
	CreatedAt time.Time   `json:"created_at"`
	// Seq is the store-assigned insertion order, used to break timestamp ties.
	Seq int64 `json:"seq"`
}
