package postgres

import (
	"context"

	"github.com/SAP-F-2025/interview-session-service/internal/models"
	"github.com/SAP-F-2025/interview-session-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ResponsePostgreSQL struct {
	db *gorm.DB
}

func NewResponsePostgreSQL(db *gorm.DB) repositories.ResponseRepository {
	return &ResponsePostgreSQL{db: db}
}

func (r ResponsePostgreSQL) Upsert(ctx context.Context, tx *gorm.DB, response *models.InterviewResponse) error {
	db := getDB(r.db, tx)
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"category", "score", "time_taken_seconds", "answered_at", "updated_at"}),
		}).
		Create(response).Error
}

func (r ResponsePostgreSQL) ListBySession(ctx context.Context, tx *gorm.DB, sessionID string) ([]*models.InterviewResponse, error) {
	db := getDB(r.db, tx)
	var responses []*models.InterviewResponse
	if err := db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("answered_at ASC, id ASC").
		Find(&responses).Error; err != nil {
		return nil, err
	}
	return responses, nil
}

func (r ResponsePostgreSQL) CountBySession(ctx context.Context, tx *gorm.DB, sessionID string) (int64, error) {
	db := getDB(r.db, tx)
	var count int64
	err := db.WithContext(ctx).
		Model(&models.InterviewResponse{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	return count, err
}
