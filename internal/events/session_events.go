package events

import (
	"time"

	"github.com/SAP-F-2025/interview-session-service/internal/models"
	"github.com/google/uuid"
)

// EventType represents the interview session lifecycle events
type EventType string

const (
	EventSessionsScheduled  EventType = "interview.scheduled"
	EventSessionStarted     EventType = "interview.started"
	EventSessionCompleted   EventType = "interview.completed"
	EventSessionInvalidated EventType = "interview.invalidated"
	EventSessionExtended    EventType = "interview.extended"
	EventSessionFinalized   EventType = "interview.finalized"
)

const (
	eventSource  = "interview-session-service"
	eventVersion = "1.0"
)

// SessionEvent is the envelope for every lifecycle event
type SessionEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Event payloads

type SessionsScheduledEvent struct {
	BatchID       string               `json:"batch_id"`
	InterviewType models.InterviewType `json:"interview_type"`
	ScheduledAt   time.Time            `json:"scheduled_at"`
	EndsAt        time.Time            `json:"ends_at"`
	SessionIDs    []string             `json:"session_ids"`
	StudentIDs    []string             `json:"student_ids"`
}

type SessionTransitionEvent struct {
	SessionID string               `json:"session_id"`
	StudentID string               `json:"student_id"`
	Status    models.SessionStatus `json:"status"`
	Reason    *string              `json:"reason,omitempty"`
	At        time.Time            `json:"at"`
}

type SessionExtendedEvent struct {
	SessionID    string    `json:"session_id"`
	StudentID    string    `json:"student_id"`
	AddedMinutes int       `json:"added_minutes"`
	EndsAt       time.Time `json:"ends_at"`
}

type SessionFinalizedEvent struct {
	SessionID    string             `json:"session_id"`
	StudentID    string             `json:"student_id"`
	ScoreStatus  models.ScoreStatus `json:"score_status"`
	SessionScore float64            `json:"session_score"`
	FinalizedAt  time.Time          `json:"finalized_at"`
}

// Event factory functions

func NewSessionsScheduledEvent(batchID string, sessions []*models.InterviewSession) *SessionEvent {
	payload := SessionsScheduledEvent{BatchID: batchID}
	for _, s := range sessions {
		payload.SessionIDs = append(payload.SessionIDs, s.ID)
		payload.StudentIDs = append(payload.StudentIDs, s.StudentID)
	}
	if len(sessions) > 0 {
		payload.InterviewType = sessions[0].InterviewType
		payload.ScheduledAt = sessions[0].ScheduledAt
		payload.EndsAt = sessions[0].EndsAt
	}
	return newEvent(EventSessionsScheduled, payload)
}

// NewSessionTransitionEvent describes a session entering status. Only transitions into
// in_progress, completed and invalidated produce events.
func NewSessionTransitionEvent(session *models.InterviewSession, at time.Time) *SessionEvent {
	var eventType EventType
	switch session.Status {
	case models.SessionInProgress:
		eventType = EventSessionStarted
	case models.SessionInvalidated:
		eventType = EventSessionInvalidated
	default:
		eventType = EventSessionCompleted
	}
	return newEvent(eventType, SessionTransitionEvent{
		SessionID: session.ID,
		StudentID: session.StudentID,
		Status:    session.Status,
		Reason:    session.InvalidationReason,
		At:        at,
	})
}

func NewSessionExtendedEvent(session *models.InterviewSession, addedMinutes int) *SessionEvent {
	return newEvent(EventSessionExtended, SessionExtendedEvent{
		SessionID:    session.ID,
		StudentID:    session.StudentID,
		AddedMinutes: addedMinutes,
		EndsAt:       session.EndsAt,
	})
}

func NewSessionFinalizedEvent(breakdown *models.ScoreBreakdown) *SessionEvent {
	return newEvent(EventSessionFinalized, SessionFinalizedEvent{
		SessionID:    breakdown.SessionID,
		StudentID:    breakdown.StudentID,
		ScoreStatus:  breakdown.ScoreStatus,
		SessionScore: breakdown.SessionScore,
		FinalizedAt:  breakdown.FinalizedAt,
	})
}

func newEvent(eventType EventType, data interface{}) *SessionEvent {
	return &SessionEvent{
		ID:        GenerateEventID(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    eventSource,
		Version:   eventVersion,
		Data:      data,
	}
}

// GenerateEventID returns a unique event id
func GenerateEventID() string {
	return uuid.NewString()
}
