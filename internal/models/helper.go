package models

import "time"

// BatchExportRow is one line of a batch results export.
type BatchExportRow struct {
	SessionID      string        `json:"session_id"`
	StudentID      string        `json:"student_id"`
	InterviewType  InterviewType `json:"interview_type"`
	Status         SessionStatus `json:"status"`
	ScheduledAt    time.Time     `json:"scheduled_at"`
	TabSwitchCount int           `json:"tab_switch_count"`
	WarningCount   int           `json:"warning_count"`
	FinalScore     *float64      `json:"final_score"`
	ScoreStatus    *ScoreStatus  `json:"score_status"`
}

func TimePtr(t time.Time) *time.Time {
	return &t
}

func Float64Ptr(v float64) *float64 {
	return &v
}

func StringPtr(s string) *string {
	return &s
}
