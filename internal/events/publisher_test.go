package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/SAP-F-2025/interview-session-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage_CarriesMetadata(t *testing.T) {
	session := &models.InterviewSession{
		ID:                 "s-1",
		StudentID:          "student-1",
		Status:             models.SessionInvalidated,
		InvalidationReason: models.StringPtr("tab_switch_limit_exceeded"),
	}
	event := NewSessionTransitionEvent(session, time.Now())

	msg, err := NewMessage(context.Background(), event)
	require.NoError(t, err)

	assert.Equal(t, event.ID, msg.UUID)
	assert.Equal(t, string(EventSessionInvalidated), msg.Metadata.Get("event_type"))
	assert.Equal(t, eventSource, msg.Metadata.Get("source"))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
	data := decoded["data"].(map[string]interface{})
	assert.Equal(t, "s-1", data["session_id"])
	assert.Equal(t, "tab_switch_limit_exceeded", data["reason"])
}

func TestNewSessionsScheduledEvent(t *testing.T) {
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	sessions := []*models.InterviewSession{
		{ID: "a", StudentID: "s1", InterviewType: models.InterviewAptitude, ScheduledAt: start, EndsAt: start.Add(time.Hour)},
		{ID: "b", StudentID: "s2", InterviewType: models.InterviewAptitude, ScheduledAt: start, EndsAt: start.Add(time.Hour)},
	}

	event := NewSessionsScheduledEvent("batch-1", sessions)

	payload := event.Data.(SessionsScheduledEvent)
	assert.Equal(t, EventSessionsScheduled, event.Type)
	assert.Equal(t, []string{"a", "b"}, payload.SessionIDs)
	assert.Equal(t, []string{"s1", "s2"}, payload.StudentIDs)
	assert.Equal(t, models.InterviewAptitude, payload.InterviewType)
	assert.NotEmpty(t, event.ID)
}

func TestMockEventPublisher(t *testing.T) {
	publisher := NewMockEventPublisher(slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, publisher.PublishSessionEvent(context.Background(), NewSessionsScheduledEvent("b", nil)))
	require.NoError(t, publisher.PublishSessionEvent(context.Background(),
		NewSessionTransitionEvent(&models.InterviewSession{Status: models.SessionCompleted}, time.Now())))

	assert.Len(t, publisher.GetPublishedEvents(), 2)
	assert.Len(t, publisher.EventsOfType(EventSessionCompleted), 1)

	publisher.ClearEvents()
	assert.Empty(t, publisher.GetPublishedEvents())
}
