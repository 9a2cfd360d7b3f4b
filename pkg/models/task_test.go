package models

import (
	"sort"
	"testing"
	"time"
)

func TestTaskStatus_Valid(t *testing.T) {
	tests := []struct {
		name   string
		status TaskStatus
		want   bool
	}{
		{"pending is valid", TaskStatusPending, true},
		{"in_progress is valid", TaskStatusInProgress, true},
		{"completed is valid", TaskStatusCompleted, true},
		{"failed is valid", TaskStatusFailed, true},
		{"empty string is invalid", TaskStatus(""), false},
		{"done is not a queue status", TaskStatus("done"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("TaskStatus(%q).Valid() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestTaskStatus_TerminalAndOpen(t *testing.T) {
	tests := []struct {
		status   TaskStatus
		terminal bool
		open     bool
	}{
		{TaskStatusPending, false, true},
		{TaskStatusInProgress, false, true},
		{TaskStatusCompleted, true, false},
		{TaskStatusFailed, true, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Terminal(); got != tt.terminal {
				t.Errorf("Terminal() = %v, want %v", got, tt.terminal)
			}
			if got := tt.status.Open(); got != tt.open {
				t.Errorf("Open() = %v, want %v", got, tt.open)
			}
		})
	}
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in     string
		want   Priority
		wantOK bool
	}{
		{"", PriorityMedium, true},
		{"low", PriorityLow, true},
		{"emergency", PriorityEmergency, true},
		{"urgent", Priority("urgent"), false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParsePriority(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParsePriority(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestTaskBefore_PriorityThenCreation(t *testing.T) {
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	tasks := []Task{
		{ID: "a", Priority: PriorityLow, CreatedAt: base},
		{ID: "b", Priority: PriorityHigh, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "c", Priority: PriorityHigh, CreatedAt: base.Add(time.Minute)},
		{ID: "d", Priority: PriorityEmergency, CreatedAt: base.Add(time.Hour)},
		{ID: "e", Priority: PriorityMedium, CreatedAt: base},
		{ID: "f", Priority: PriorityHigh, CreatedAt: base.Add(time.Minute)},
	}

	sort.SliceStable(tasks, func(i, j int) bool { return TaskBefore(&tasks[i], &tasks[j]) })

	want := []string{"d", "c", "f", "b", "e", "a"}
	for i, id := range want {
		if tasks[i].ID != id {
			t.Fatalf("position %d = %q, want %q (order %v)", i, tasks[i].ID, id, ids(tasks))
		}
	}
}

func TestTopTask(t *testing.T) {
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	t.Run("skips terminal tasks", func(t *testing.T) {
		tasks := []Task{
			{ID: "done", Status: TaskStatusCompleted, Priority: PriorityEmergency, CreatedAt: base},
			{ID: "open", Status: TaskStatusPending, Priority: PriorityLow, CreatedAt: base},
		}
		top := TopTask(tasks)
		if top == nil || top.ID != "open" {
			t.Fatalf("TopTask() = %v, want open", top)
		}
	})

	t.Run("high beats first in list", func(t *testing.T) {
		tasks := []Task{
			{ID: "first", Status: TaskStatusPending, Priority: PriorityMedium, CreatedAt: base},
			{ID: "urgent", Status: TaskStatusPending, Priority: PriorityHigh, CreatedAt: base.Add(time.Hour)},
		}
		if top := TopTask(tasks); top.ID != "urgent" {
			t.Errorf("TopTask() = %q, want urgent", top.ID)
		}
	})

	t.Run("nil when nothing open", func(t *testing.T) {
		if top := TopTask(nil); top != nil {
			t.Errorf("TopTask(nil) = %v, want nil", top)
		}
	})
}

func TestTask_Unassigned(t *testing.T) {
	task := Task{}
	if !task.Unassigned() {
		t.Error("zero task should be unassigned")
	}
	task.AssignedRole = "engineer"
	if task.Unassigned() {
		t.Error("task with role should not be unassigned")
	}
}

func TestAgent_DisplayName(t *testing.T) {
	a := Agent{ID: "eng-1", Capabilities: []string{"Backend", "go"}}
	if a.DisplayName() != "eng-1" {
		t.Errorf("DisplayName() = %q, want eng-1", a.DisplayName())
	}
}

func ids(tasks []Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}
