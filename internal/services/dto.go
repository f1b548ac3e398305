package services

import (
	"time"

	"github.com/SAP-F-2025/interview-session-service/internal/models"
)

// ===== SCHEDULING =====

type ScheduleRequest struct {
	// Exactly one target: a single student or every active student
	StudentID         string `json:"student_id" validate:"required_without=AllActiveStudents,excluded_with=AllActiveStudents,max=255"`
	AllActiveStudents bool   `json:"all_active_students"`

	ScheduledAt     time.Time              `json:"scheduled_at" validate:"required"`
	DurationMinutes int                    `json:"duration_minutes" validate:"session_duration"`
	InterviewType   models.InterviewType   `json:"interview_type" validate:"required,interview_type"`
	Instructions    string                 `json:"instructions" validate:"max=5000"`
	SecurityConfig  *SecurityConfigRequest `json:"security_config"`
	IdempotencyKey  string                 `json:"idempotency_key" validate:"max=255"`
}

// SecurityConfigRequest leaves every field optional; omitted fields take the configured defaults.
type SecurityConfigRequest struct {
	TabSwitchLimit           *int  `json:"tab_switch_limit" validate:"omitempty,gte=0,lte=10000"`
	WarningLimit             *int  `json:"warning_limit" validate:"omitempty,gte=0,lte=10000"`
	TimeExtensionAllowed     *bool `json:"time_extension_allowed"`
	CopyPasteDisabled        *bool `json:"copy_paste_disabled"`
	ScreenRecordingDetection *bool `json:"screen_recording_detection"`
}

type ScheduledSession struct {
	ID           string    `json:"id"`
	StudentID    string    `json:"student_id"`
	SessionToken string    `json:"session_token"`
	ScheduledAt  time.Time `json:"scheduled_at"`
	EndsAt       time.Time `json:"ends_at"`
}

type ScheduleResult struct {
	BatchID  string             `json:"batch_id"`
	Sessions []ScheduledSession `json:"sessions"`
	// Replayed is set when an idempotency key matched an earlier request
	Replayed bool `json:"replayed"`
}

// ===== MONITORING =====

type SessionStateResponse struct {
	SessionID          string                 `json:"session_id"`
	Status             models.SessionStatus   `json:"status"`
	ScheduledAt        time.Time              `json:"scheduled_at"`
	EndsAt             time.Time              `json:"ends_at"`
	TimeRemaining      int                    `json:"time_remaining"`
	TabSwitches        int                    `json:"tab_switches"`
	Warnings           int                    `json:"warnings"`
	InvalidationReason *string                `json:"invalidation_reason,omitempty"`
	Results            *models.ScoreBreakdown `json:"results,omitempty"`
}

type ValidateSessionResponse struct {
	Valid          bool                  `json:"valid"`
	Status         models.SessionStatus  `json:"status"`
	TimeRemaining  int                   `json:"time_remaining"`
	SecurityConfig models.SecurityConfig `json:"security_config"`
	TabSwitches    int                   `json:"tab_switches"`
	Warnings       int                   `json:"warnings"`
}

type ReportEventResponse struct {
	Accepted             bool `json:"accepted"`
	TabSwitches          int  `json:"tab_switches"`
	Warnings             int  `json:"warnings"`
	RemainingTabSwitches int  `json:"remaining_tab_switches"`
	RemainingWarnings    int  `json:"remaining_warnings"`
	Invalidated          bool `json:"invalidated"`
}

type SubmitResponseRequest struct {
	QuestionID       string                  `json:"question_id" validate:"required,max=64"`
	Category         models.ResponseCategory `json:"category" validate:"required,response_category"`
	Score            float64                 `json:"score" validate:"gte=0,lte=100"`
	TimeTakenSeconds int                     `json:"time_taken_seconds" validate:"gte=0"`
}

type SweepResult struct {
	Completed   int `json:"completed"`
	Invalidated int `json:"invalidated"`
}

// ===== EXPORT =====

type ExportFormat string

const (
	ExportFormatExcel ExportFormat = "xlsx"
	ExportFormatCSV   ExportFormat = "csv"
)
