package models

import (
	"time"

	"gorm.io/datatypes"
)

type InterviewType string

const (
	InterviewTechnical     InterviewType = "technical"
	InterviewCommunication InterviewType = "communication"
	InterviewAptitude      InterviewType = "aptitude"
)

// InterviewTypes lists every accepted interview type.
var InterviewTypes = []InterviewType{InterviewTechnical, InterviewCommunication, InterviewAptitude}

// MaxViolationLogEntries bounds the per-session security event log.
const MaxViolationLogEntries = 200

type InterviewSession struct {
	ID            string        `json:"id" gorm:"primaryKey;size:36"`
	BatchID       string        `json:"batch_id" gorm:"not null;size:36;index"`
	StudentID     string        `json:"student_id" gorm:"not null;size:255;index"`
	InterviewType InterviewType `json:"interview_type" gorm:"not null;size:20"`

	// Schedule window
	ScheduledAt     time.Time `json:"scheduled_at" gorm:"not null;index"`
	EndsAt          time.Time `json:"ends_at" gorm:"not null;index"`
	DurationMinutes int       `json:"duration_minutes" gorm:"not null"`
	Instructions    string    `json:"instructions" gorm:"type:text"`

	SecurityConfig SecurityConfig `json:"security_config" gorm:"embedded;embeddedPrefix:security_"`

	// State
	Status         SessionStatus `json:"status" gorm:"not null;size:20;default:scheduled;index"`
	TabSwitchCount int           `json:"tab_switch_count" gorm:"not null;default:0"`
	WarningCount   int           `json:"warning_count" gorm:"not null;default:0"`
	SessionToken   string        `json:"-" gorm:"not null;size:64;uniqueIndex"`

	StartedAt          *time.Time `json:"started_at"`
	CompletedAt        *time.Time `json:"completed_at"`
	InvalidatedAt      *time.Time `json:"invalidated_at"`
	InvalidationReason *string    `json:"invalidation_reason" gorm:"type:text"`

	// Bounded log of received security events ([]ViolationRecord)
	SecurityViolations datatypes.JSON `json:"security_violations"`

	// Result, written once by finalization
	FinalScore     *float64   `json:"final_score"`
	FinalScoreVoid bool       `json:"final_score_void" gorm:"not null;default:false"`
	FinalizedAt    *time.Time `json:"finalized_at" gorm:"index"`

	// Optimistic concurrency guard, bumped by every state write
	Version int `json:"-" gorm:"not null;default:1"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (InterviewSession) TableName() string {
	return "interview_sessions"
}

// ViolationRecord is one entry of the session security log.
type ViolationRecord struct {
	EventType  SecurityEventType `json:"event_type"`
	OccurredAt time.Time         `json:"occurred_at"`
	Counted    bool              `json:"counted"`
	Violation  bool              `json:"violation"`
}

// IsExpired reports whether the session window has closed at now.
func (s *InterviewSession) IsExpired(now time.Time) bool {
	return now.After(s.EndsAt)
}

// TimeRemaining returns the whole seconds left in the session window, never negative.
func (s *InterviewSession) TimeRemaining(now time.Time) int {
	if s.Status != SessionInProgress || s.IsExpired(now) {
		return 0
	}
	return int(s.EndsAt.Sub(now).Seconds())
}

// RemainingTabSwitches returns the tab switch budget left, clamped at zero.
func (s *InterviewSession) RemainingTabSwitches() int {
	return clampRemaining(s.SecurityConfig.TabSwitchLimit, s.TabSwitchCount)
}

// RemainingWarnings returns the warning budget left, clamped at zero.
func (s *InterviewSession) RemainingWarnings() int {
	return clampRemaining(s.SecurityConfig.WarningLimit, s.WarningCount)
}

func clampRemaining(limit, count int) int {
	if remaining := limit - count; remaining > 0 {
		return remaining
	}
	return 0
}
