package state

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/ShayCichocki/huddle/pkg/models"
)

var (
	// ErrNotFound is returned when a row addressed by id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrLeaseLost is returned when a worker writes a task it no longer holds.
	ErrLeaseLost = errors.New("task lease lost")
)

// TaskStore handles task queue persistence. ClaimTask is the only
// cross-process coordination point and must be atomic.
type TaskStore interface {
	CreateTask(ctx context.Context, t *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	ListTasks(ctx context.Context, status *models.TaskStatus) ([]models.Task, error)
	ListOpenTasks(ctx context.Context) ([]models.Task, error)
	ListClaimable(ctx context.Context, role string, includeUnassigned bool, limit int) ([]models.Task, error)
	// ClaimTask transitions pending -> in_progress only if the row is still
	// pending. It returns false when another worker won the race.
	ClaimTask(ctx context.Context, id, workerID string, leaseUntil time.Time) (bool, error)
	ExtendLease(ctx context.Context, id, workerID string, leaseUntil time.Time) error
	CompleteTask(ctx context.Context, id, workerID, result string) error
	FailTask(ctx context.Context, id, workerID, errSummary string) error
	ReleaseTask(ctx context.Context, id, workerID string) error
	AssignTask(ctx context.Context, id, role string) (bool, error)
	RequeueTask(ctx context.Context, id string) (bool, error)
	RequeueExpired(ctx context.Context, now time.Time) (int64, error)
}

// MeetingStore handles meetings and their append-only message logs.
type MeetingStore interface {
	CreateMeeting(ctx context.Context, m *models.Meeting) error
	GetMeeting(ctx context.Context, id string) (*models.Meeting, error)
	GetActiveMeeting(ctx context.Context) (*models.Meeting, error)
	ArchiveMeeting(ctx context.Context, id string) error
	AppendMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, meetingID string, limit int) ([]models.Message, error)
	LastMessageTime(ctx context.Context, meetingID string) (*time.Time, error)
}

// ProviderStore handles the provider directory.
type ProviderStore interface {
	UpsertProvider(ctx context.Context, p *models.Provider) error
	ListProviders(ctx context.Context, category string) ([]models.Provider, error)
	FindTopProviders(ctx context.Context, category string, limit int) ([]models.Provider, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// StateStore composes every persistence concern behind one handle.
type StateStore interface {
	io.Closer
	Migrator
	TaskStore
	MeetingStore
	ProviderStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ StateStore    = (*DB)(nil)
	_ Migrator      = (*DB)(nil)
	_ TaskStore     = (*DB)(nil)
	_ MeetingStore  = (*DB)(nil)
	_ ProviderStore = (*DB)(nil)
)
