package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task is waiting to be claimed.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusInProgress indicates exactly one worker holds the task.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusCompleted indicates the task finished successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true for statuses a task never leaves on its own.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Open returns true for statuses the scheduler considers outstanding work.
func (s TaskStatus) Open() bool {
	return s == TaskStatusPending || s == TaskStatusInProgress
}

// Priority is the urgency of a task.
type Priority string

const (
	PriorityLow       Priority = "low"
	PriorityMedium    Priority = "medium"
	PriorityHigh      Priority = "high"
	PriorityEmergency Priority = "emergency"
)

// Valid returns true if the priority is a known value.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityEmergency:
		return true
	default:
		return false
	}
}

// Rank orders priorities from most to least urgent. Lower ranks first.
// Unknown priorities sort after low.
func (p Priority) Rank() int {
	switch p {
	case PriorityEmergency:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// ParsePriority converts a string to a Priority, defaulting to medium when empty.
func ParsePriority(s string) (Priority, bool) {
	if s == "" {
		return PriorityMedium, true
	}
	p := Priority(s)
	return p, p.Valid()
}

// Task represents a unit of work in the queue.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// Title is the short description of the task.
	Title string `json:"title"`
	// Description provides the content handed to the executing agent.
	Description string `json:"description,omitempty"`
	// AssignedRole is the agent role expected to execute the task. Empty means unassigned.
	AssignedRole string `json:"assigned_role,omitempty"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Priority is the urgency of the task.
	Priority Priority `json:"priority"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// Result holds the executing agent's output once completed.
	Result string `json:"result,omitempty"`
	// Error contains the error summary if the task failed.
	Error string `json:"error,omitempty"`
	// ClaimedBy is the worker currently holding the task.
	ClaimedBy string `json:"claimed_by,omitempty"`
	// LeaseExpiresAt is when the holding worker's claim lapses.
	LeaseExpiresAt *time.Time `json:"lease_expires_at,omitempty"`
	// StartedAt is when the task was last claimed.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the task reached a terminal status.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// Attempts counts how many times the task has been claimed.
	Attempts int `json:"attempts"`
}

// Unassigned returns true if no role has been assigned to the task.
func (t *Task) Unassigned() bool {
	return t.AssignedRole == ""
}

// TaskBefore reports whether a sorts before b: priority tier first,
// then creation time, then id.
func TaskBefore(a, b *Task) bool {
	if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
		return ra < rb
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// TopTask returns the first open task under TaskBefore, or nil.
func TopTask(tasks []Task) *Task {
	var top *Task
	for i := range tasks {
		t := &tasks[i]
		if !t.Status.Open() {
			continue
		}
		if top == nil || TaskBefore(t, top) {
			top = t
		}
	}
	return top
}
