package services

import (
	"context"

	"github.com/SAP-F-2025/interview-session-service/internal/models"
)

// SchedulerService creates interview sessions for one student or the whole active cohort
type SchedulerService interface {
	Schedule(ctx context.Context, req *ScheduleRequest) (*ScheduleResult, error)
}

// MonitorService is the only writer of session state. Every mutation of one session is
// serialized; different sessions never contend.
type MonitorService interface {
	StartInterview(ctx context.Context, sessionID, token string) (*SessionStateResponse, error)
	ValidateSession(ctx context.Context, sessionID, token string) (*ValidateSessionResponse, error)
	ReportEvent(ctx context.Context, sessionID, token string, eventType models.SecurityEventType) (*ReportEventResponse, error)
	InvalidateSession(ctx context.Context, sessionID, token, reason string) (*SessionStateResponse, error)
	ExtendTime(ctx context.Context, sessionID, token string, minutes int) (*SessionStateResponse, error)
	SubmitResponse(ctx context.Context, sessionID, token string, req *SubmitResponseRequest) (*models.InterviewResponse, error)
	CompleteInterview(ctx context.Context, sessionID, token string) (*SessionStateResponse, error)

	// SweepExpired closes in_progress sessions whose window has passed
	SweepExpired(ctx context.Context, limit int) (*SweepResult, error)
}

// ScoringService turns a terminal session into its final score breakdown
type ScoringService interface {
	Finalize(ctx context.Context, sessionID string) (*models.ScoreBreakdown, error)
	GetResults(ctx context.Context, sessionID string) (*models.ScoreBreakdown, error)

	// FinalizePending retries finalization of terminal sessions that have no breakdown yet
	FinalizePending(ctx context.Context, limit int) (int, error)
}

type ExportService interface {
	ExportBatch(ctx context.Context, batchID string, format ExportFormat) ([]byte, error)
}
