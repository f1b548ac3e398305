package models

import "time"

type ResponseCategory string

const (
	CategoryTechnical      ResponseCategory = "technical"
	CategoryCommunication  ResponseCategory = "communication"
	CategoryProblemSolving ResponseCategory = "problem_solving"
)

var ResponseCategories = []ResponseCategory{CategoryTechnical, CategoryCommunication, CategoryProblemSolving}

// InterviewResponse is a scored answer to one question. The score itself comes from the
// external question/answer scorer; this service only aggregates it.
type InterviewResponse struct {
	ID               uint             `json:"id" gorm:"primaryKey"`
	SessionID        string           `json:"session_id" gorm:"not null;size:36;uniqueIndex:idx_response_session_question"`
	QuestionID       string           `json:"question_id" gorm:"not null;size:64;uniqueIndex:idx_response_session_question"`
	Category         ResponseCategory `json:"category" gorm:"not null;size:32"`
	Score            float64          `json:"score" gorm:"not null"`
	TimeTakenSeconds int              `json:"time_taken_seconds"`
	AnsweredAt       time.Time        `json:"answered_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (InterviewResponse) TableName() string {
	return "interview_responses"
}
