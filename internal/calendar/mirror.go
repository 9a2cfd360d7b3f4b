package calendar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/ShayCichocki/huddle/pkg/models"
)

// meetingIDKey tags mirrored events with the meeting they came from.
const meetingIDKey = "huddleMeetingId"

// Mirror creates a calendar event for every meeting it is told about.
type Mirror struct {
	srv        *gcal.Service
	calendarID string
	duration   time.Duration
}

// NewMirror builds a Mirror on an authorized HTTP client. Extra options are
// passed to the Calendar service (tests point it at a local endpoint).
func NewMirror(ctx context.Context, client *http.Client, calendarID string, duration time.Duration, opts ...option.ClientOption) (*Mirror, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	srv, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	if duration <= 0 {
		duration = 15 * time.Minute
	}
	return &Mirror{srv: srv, calendarID: calendarID, duration: duration}, nil
}

// MeetingStarted inserts an event spanning the meeting's start plus the
// configured duration.
func (m *Mirror) MeetingStarted(ctx context.Context, meeting models.Meeting) error {
	ev := meetingEvent(meeting, m.duration)
	created, err := m.srv.Events.Insert(m.calendarID, ev).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("insert calendar event for %s: %w", meeting.ID, err)
	}
	debugLog("[calendar] mirrored meeting %s as event %s", meeting.ID, created.Id)
	return nil
}

func meetingEvent(meeting models.Meeting, duration time.Duration) *gcal.Event {
	start := meeting.CreatedAt.UTC()
	return &gcal.Event{
		Summary:     meeting.Title,
		Description: fmt.Sprintf("huddle meeting %s", meeting.ID),
		Start:       &gcal.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: "UTC"},
		End:         &gcal.EventDateTime{DateTime: start.Add(duration).Format(time.RFC3339), TimeZone: "UTC"},
		ExtendedProperties: &gcal.EventExtendedProperties{
			Private: map[string]string{meetingIDKey: meeting.ID},
		},
	}
}

var debugf func(format string, args ...interface{})

// SetDebugLog routes calendar traces to fn. Pass nil to silence them.
func SetDebugLog(fn func(format string, args ...interface{})) {
	debugf = fn
}

func debugLog(format string, args ...interface{}) {
	if debugf != nil {
		debugf(format, args...)
	}
}
