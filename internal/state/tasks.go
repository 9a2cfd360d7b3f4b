package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/huddle/pkg/models"
)

const taskColumns = `id, title, description, assigned_role, status, priority, created_at,
	result, error, claimed_by, lease_expires_at, started_at, completed_at, attempts`

// taskOrder is the total queue ordering: priority tier, creation time, id.
const taskOrder = `
	ORDER BY CASE priority
		WHEN 'emergency' THEN 0
		WHEN 'high' THEN 1
		WHEN 'medium' THEN 2
		WHEN 'low' THEN 3
		ELSE 4 END,
	created_at ASC, id ASC`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(s rowScanner) (*models.Task, error) {
	var t models.Task
	var createdAt string
	var lease, started, completed sql.NullString
	err := s.Scan(&t.ID, &t.Title, &t.Description, &t.AssignedRole, &t.Status, &t.Priority,
		&createdAt, &t.Result, &t.Error, &t.ClaimedBy, &lease, &started, &completed, &t.Attempts)
	if err != nil {
		return nil, err
	}
	t.CreatedAt, _ = parseTime(createdAt)
	t.LeaseExpiresAt = parseNullableTime(lease)
	t.StartedAt = parseNullableTime(started)
	t.CompletedAt = parseNullableTime(completed)
	return &t, nil
}

func collectTasks(rows *sql.Rows) ([]models.Task, error) {
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

// CreateTask inserts a new pending task. Empty id, status, priority and
// creation time are filled in.
func (db *DB) CreateTask(ctx context.Context, t *models.Task) error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("create task: title is required")
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = models.TaskStatusPending
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}
	if !t.Status.Valid() {
		return fmt.Errorf("create task: invalid status %q", t.Status)
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("create task: invalid priority %q", t.Priority)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(ctx, `
		INSERT INTO tasks (id, title, description, assigned_role, status, priority, created_at,
			result, error, claimed_by, lease_expires_at, started_at, completed_at, attempts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Title, t.Description, t.AssignedRole, string(t.Status), string(t.Priority), formatTime(t.CreatedAt),
		t.Result, t.Error, t.ClaimedBy, nullableTime(t.LeaseExpiresAt), nullableTime(t.StartedAt),
		nullableTime(t.CompletedAt), t.Attempts)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID.
func (db *DB) GetTask(ctx context.Context, id string) (*models.Task, error) {
	row := db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListTasks lists tasks in queue order, optionally filtered by status.
func (db *DB) ListTasks(ctx context.Context, status *models.TaskStatus) ([]models.Task, error) {
	var rows *sql.Rows
	var err error

	if status != nil {
		rows, err = db.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE status = ?`+taskOrder, string(*status))
	} else {
		rows, err = db.Query(ctx, `SELECT `+taskColumns+` FROM tasks`+taskOrder)
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return collectTasks(rows)
}

// ListOpenTasks returns pending and in-progress tasks in queue order.
func (db *DB) ListOpenTasks(ctx context.Context) ([]models.Task, error) {
	rows, err := db.Query(ctx, `SELECT `+taskColumns+` FROM tasks
		WHERE status IN ('pending', 'in_progress')`+taskOrder)
	if err != nil {
		return nil, fmt.Errorf("list open tasks: %w", err)
	}
	return collectTasks(rows)
}

// ListClaimable returns pending tasks for the role in queue order. When
// includeUnassigned is set, tasks with no role are candidates too.
func (db *DB) ListClaimable(ctx context.Context, role string, includeUnassigned bool, limit int) ([]models.Task, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.Query(ctx, `SELECT `+taskColumns+` FROM tasks
		WHERE status = 'pending'
		AND (assigned_role = ? OR (? AND assigned_role = ''))`+taskOrder+`
		LIMIT ?`, role, includeUnassigned, limit)
	if err != nil {
		return nil, fmt.Errorf("list claimable tasks: %w", err)
	}
	return collectTasks(rows)
}

// ClaimTask atomically moves a pending task to in_progress for workerID.
// Zero rows affected means another worker claimed it first; that is
// reported as (false, nil), not an error.
func (db *DB) ClaimTask(ctx context.Context, id, workerID string, leaseUntil time.Time) (bool, error) {
	now := time.Now()
	res, err := db.Exec(ctx, `
		UPDATE tasks
		SET status = 'in_progress',
			claimed_by = ?,
			lease_expires_at = ?,
			started_at = ?,
			attempts = attempts + 1
		WHERE id = ? AND status = 'pending'
	`, workerID, formatTime(leaseUntil), formatTime(now), id)
	if err != nil {
		return false, fmt.Errorf("claim task: %w", err)
	}
	return rowsAffected(res, "claim task")
}

// ExtendLease pushes out the lease of a task the worker still holds.
func (db *DB) ExtendLease(ctx context.Context, id, workerID string, leaseUntil time.Time) error {
	res, err := db.Exec(ctx, `
		UPDATE tasks SET lease_expires_at = ?
		WHERE id = ? AND status = 'in_progress' AND claimed_by = ?
	`, formatTime(leaseUntil), id, workerID)
	if err != nil {
		return fmt.Errorf("extend lease: %w", err)
	}
	ok, err := rowsAffected(res, "extend lease")
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("extend lease on %s: %w", id, ErrLeaseLost)
	}
	return nil
}

// CompleteTask moves a held task to completed and stores its result.
func (db *DB) CompleteTask(ctx context.Context, id, workerID, result string) error {
	return db.finishTask(ctx, id, workerID, models.TaskStatusCompleted, result, "")
}

// FailTask moves a held task to failed and stores an error summary.
func (db *DB) FailTask(ctx context.Context, id, workerID, errSummary string) error {
	return db.finishTask(ctx, id, workerID, models.TaskStatusFailed, "", errSummary)
}

func (db *DB) finishTask(ctx context.Context, id, workerID string, to models.TaskStatus, result, errSummary string) error {
	res, err := db.Exec(ctx, `
		UPDATE tasks
		SET status = ?, result = ?, error = ?, completed_at = ?, lease_expires_at = NULL
		WHERE id = ? AND status = 'in_progress' AND claimed_by = ?
	`, string(to), result, errSummary, formatTime(time.Now()), id, workerID)
	if err != nil {
		return fmt.Errorf("mark task %s: %w", to, err)
	}
	ok, err := rowsAffected(res, "mark task")
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("mark task %s %s: %w", id, to, ErrLeaseLost)
	}
	return nil
}

// ReleaseTask hands a held task back to the queue without an outcome. The
// claim is cleared and attempts are kept.
func (db *DB) ReleaseTask(ctx context.Context, id, workerID string) error {
	res, err := db.Exec(ctx, `
		UPDATE tasks
		SET status = 'pending', claimed_by = '', lease_expires_at = NULL
		WHERE id = ? AND status = 'in_progress' AND claimed_by = ?
	`, id, workerID)
	if err != nil {
		return fmt.Errorf("release task: %w", err)
	}
	ok, err := rowsAffected(res, "release task")
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("release task %s: %w", id, ErrLeaseLost)
	}
	return nil
}

// AssignTask sets the role of a pending, unassigned task. It returns false
// when the task was already assigned or is no longer pending.
func (db *DB) AssignTask(ctx context.Context, id, role string) (bool, error) {
	res, err := db.Exec(ctx, `
		UPDATE tasks SET assigned_role = ?
		WHERE id = ? AND status = 'pending' AND assigned_role = ''
	`, role, id)
	if err != nil {
		return false, fmt.Errorf("assign task: %w", err)
	}
	return rowsAffected(res, "assign task")
}

// RequeueTask moves a failed task back to pending, clearing its outcome.
func (db *DB) RequeueTask(ctx context.Context, id string) (bool, error) {
	res, err := db.Exec(ctx, `
		UPDATE tasks
		SET status = 'pending', error = '', result = '', claimed_by = '',
			lease_expires_at = NULL, completed_at = NULL
		WHERE id = ? AND status = 'failed'
	`, id)
	if err != nil {
		return false, fmt.Errorf("requeue task: %w", err)
	}
	return rowsAffected(res, "requeue task")
}

// RequeueExpired returns in-progress tasks whose lease lapsed before now
// to pending. It returns the number of tasks requeued.
func (db *DB) RequeueExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.Exec(ctx, `
		UPDATE tasks
		SET status = 'pending', claimed_by = '', lease_expires_at = NULL
		WHERE status = 'in_progress'
		AND lease_expires_at IS NOT NULL
		AND lease_expires_at < ?
	`, formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("requeue expired tasks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return n, nil
}
