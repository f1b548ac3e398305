package models

import (
	"time"

	"gorm.io/datatypes"
)

// IdempotencyRecord remembers the outcome of a scheduling request so a retry with the same
// key returns the original sessions instead of creating new ones.
type IdempotencyRecord struct {
	Key         string         `json:"key" gorm:"column:idempotency_key;primaryKey;size:255"`
	Fingerprint string         `json:"fingerprint" gorm:"not null;size:64"`
	BatchID     string         `json:"batch_id" gorm:"not null;size:36"`
	SessionIDs  datatypes.JSON `json:"session_ids"` // []string
	CreatedAt   time.Time      `json:"created_at"`
}

func (IdempotencyRecord) TableName() string {
	return "scheduling_idempotency_keys"
}

// AllModels returns every table this service owns, in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&InterviewSession{},
		&InterviewResponse{},
		&ScoreBreakdown{},
		&IdempotencyRecord{},
	}
}
