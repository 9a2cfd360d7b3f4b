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

// CreateMeeting inserts a new meeting, defaulting to active.
func (db *DB) CreateMeeting(ctx context.Context, m *models.Meeting) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Status == "" {
		m.Status = models.MeetingActive
	}
	if !m.Status.Valid() {
		return fmt.Errorf("create meeting: invalid status %q", m.Status)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(ctx, `
		INSERT INTO meetings (id, title, status, created_at) VALUES (?, ?, ?, ?)
	`, m.ID, m.Title, string(m.Status), formatTime(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("create meeting: %w", err)
	}
	return nil
}

func scanMeeting(s rowScanner) (*models.Meeting, error) {
	var m models.Meeting
	var createdAt string
	if err := s.Scan(&m.ID, &m.Title, &m.Status, &createdAt); err != nil {
		return nil, err
	}
	m.CreatedAt, _ = parseTime(createdAt)
	return &m, nil
}

// GetMeeting retrieves a meeting by ID.
func (db *DB) GetMeeting(ctx context.Context, id string) (*models.Meeting, error) {
	row := db.QueryRow(ctx, `SELECT id, title, status, created_at FROM meetings WHERE id = ?`, id)
	m, err := scanMeeting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("meeting %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get meeting: %w", err)
	}
	return m, nil
}

// GetActiveMeeting returns the most recently created active meeting, or
// nil if there is none.
func (db *DB) GetActiveMeeting(ctx context.Context) (*models.Meeting, error) {
	row := db.QueryRow(ctx, `
		SELECT id, title, status, created_at FROM meetings
		WHERE status = 'active'
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`)
	m, err := scanMeeting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active meeting: %w", err)
	}
	return m, nil
}

// ArchiveMeeting marks a meeting archived. Status is the only field a
// meeting ever changes.
func (db *DB) ArchiveMeeting(ctx context.Context, id string) error {
	res, err := db.Exec(ctx, `UPDATE meetings SET status = 'archived' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("archive meeting: %w", err)
	}
	ok, err := rowsAffected(res, "archive meeting")
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("meeting %s: %w", id, ErrNotFound)
	}
	return nil
}

// AppendMessage appends a message to a meeting log. The store assigns the
// id, timestamp (when zero) and insertion sequence.
func (db *DB) AppendMessage(ctx context.Context, msg *models.Message) error {
	if msg.MeetingID == "" {
		return fmt.Errorf("append message: meeting id is required")
	}
	if strings.TrimSpace(msg.ActorID) == "" {
		return fmt.Errorf("append message: actor id is required")
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Type == "" {
		msg.Type = models.MessageChat
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	res, err := db.Exec(ctx, `
		INSERT INTO messages (id, meeting_id, actor_id, content, type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.MeetingID, msg.ActorID, msg.Content, string(msg.Type), formatTime(msg.CreatedAt))
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	if seq, err := res.LastInsertId(); err == nil {
		msg.Seq = seq
	}
	return nil
}

// ListMessages returns a meeting's messages ordered by created_at with
// insertion order breaking ties. A positive limit returns only the most
// recent messages, still in ascending order.
func (db *DB) ListMessages(ctx context.Context, meetingID string, limit int) ([]models.Message, error) {
	const cols = `seq, id, meeting_id, actor_id, content, type, created_at`

	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = db.Query(ctx, `
			SELECT `+cols+` FROM (
				SELECT `+cols+` FROM messages WHERE meeting_id = ?
				ORDER BY created_at DESC, seq DESC LIMIT ?
			) ORDER BY created_at ASC, seq ASC
		`, meetingID, limit)
	} else {
		rows, err = db.Query(ctx, `
			SELECT `+cols+` FROM messages WHERE meeting_id = ?
			ORDER BY created_at ASC, seq ASC
		`, meetingID)
	}
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var m models.Message
		var createdAt string
		if err := rows.Scan(&m.Seq, &m.ID, &m.MeetingID, &m.ActorID, &m.Content, &m.Type, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt, _ = parseTime(createdAt)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

// LastMessageTime returns the timestamp of the newest message in a meeting,
// or nil if the meeting has no messages.
func (db *DB) LastMessageTime(ctx context.Context, meetingID string) (*time.Time, error) {
	var last sql.NullString
	row := db.QueryRow(ctx, `SELECT MAX(created_at) FROM messages WHERE meeting_id = ?`, meetingID)
	if err := row.Scan(&last); err != nil {
		return nil, fmt.Errorf("last message time: %w", err)
	}
	return parseNullableTime(last), nil
}
