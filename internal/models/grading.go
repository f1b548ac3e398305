package models

import "time"

type ScoreStatus string

const (
	// ScoreStatusScored is a genuinely scored session, possibly with a zero score.
	ScoreStatusScored ScoreStatus = "scored"
	// ScoreStatusVoidInvalidated marks an invalidated session; its zero score is not a result.
	ScoreStatusVoidInvalidated ScoreStatus = "void_invalidated"
)

// ScoreBreakdown is the final result of a session. Exactly one row exists per finalized session.
type ScoreBreakdown struct {
	SessionID   string      `json:"session_id" gorm:"primaryKey;size:36"`
	StudentID   string      `json:"student_id" gorm:"not null;size:255;index"`
	ScoreStatus ScoreStatus `json:"score_status" gorm:"not null;size:32;index"`

	// Per-category averages, nil when the session had no response in that category
	TechnicalScore      *float64 `json:"technical_score"`
	CommunicationScore  *float64 `json:"communication_score"`
	ProblemSolvingScore *float64 `json:"problem_solving_score"`

	SessionScore   float64 `json:"session_score"`
	OverallAverage float64 `json:"overall_average"`
	RecentAverage  float64 `json:"recent_average"`
	Improvement    float64 `json:"improvement"`
	ResponsesCount int     `json:"responses_count"`

	FinalizedAt time.Time `json:"finalized_at" gorm:"not null;index"`
}

func (ScoreBreakdown) TableName() string {
	return "score_breakdowns"
}

// IsVoid reports whether the breakdown belongs to an invalidated session.
func (b *ScoreBreakdown) IsVoid() bool {
	return b.ScoreStatus == ScoreStatusVoidInvalidated
}
