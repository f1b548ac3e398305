package postgres

import (
	"context"
	"time"

	"github.com/SAP-F-2025/interview-session-service/internal/models"
	"github.com/SAP-F-2025/interview-session-service/internal/repositories"
	"gorm.io/gorm"
)

type SessionPostgreSQL struct {
	db *gorm.DB
}

func NewSessionPostgreSQL(db *gorm.DB) repositories.SessionRepository {
	return &SessionPostgreSQL{db: db}
}

func (s SessionPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, sessions []*models.InterviewSession) error {
	if len(sessions) == 0 {
		return nil
	}
	db := getDB(s.db, tx)
	return db.WithContext(ctx).CreateInBatches(sessions, 100).Error
}

func (s SessionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.InterviewSession, error) {
	db := getDB(s.db, tx)
	var session models.InterviewSession
	if err := db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &session, nil
}

func (s SessionPostgreSQL) GetByIDs(ctx context.Context, tx *gorm.DB, ids []string) ([]*models.InterviewSession, error) {
	db := getDB(s.db, tx)
	var sessions []*models.InterviewSession
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&sessions).Error; err != nil {
		return nil, err
	}

	// Preserve the order of ids
	byID := make(map[string]*models.InterviewSession, len(sessions))
	for _, session := range sessions {
		byID[session.ID] = session
	}
	ordered := make([]*models.InterviewSession, 0, len(ids))
	for _, id := range ids {
		if session, ok := byID[id]; ok {
			ordered = append(ordered, session)
		}
	}
	return ordered, nil
}

func (s SessionPostgreSQL) GetByBatch(ctx context.Context, tx *gorm.DB, batchID string) ([]*models.InterviewSession, error) {
	db := getDB(s.db, tx)
	var sessions []*models.InterviewSession
	if err := db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("student_id ASC").
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s SessionPostgreSQL) UpdateState(ctx context.Context, tx *gorm.DB, session *models.InterviewSession) error {
	db := getDB(s.db, tx)
	now := time.Now().UTC()

	result := db.WithContext(ctx).
		Model(&models.InterviewSession{}).
		Where("id = ? AND version = ?", session.ID, session.Version).
		Updates(map[string]interface{}{
			"status":              session.Status,
			"tab_switch_count":    session.TabSwitchCount,
			"warning_count":       session.WarningCount,
			"ends_at":             session.EndsAt,
			"duration_minutes":    session.DurationMinutes,
			"started_at":          session.StartedAt,
			"completed_at":        session.CompletedAt,
			"invalidated_at":      session.InvalidatedAt,
			"invalidation_reason": session.InvalidationReason,
			"security_violations": session.SecurityViolations,
			"version":             session.Version + 1,
			"updated_at":          now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repositories.ErrVersionConflict
	}

	session.Version++
	session.UpdatedAt = now
	return nil
}

func (s SessionPostgreSQL) MarkFinalized(ctx context.Context, tx *gorm.DB, id string, finalScore *float64, void bool, at time.Time) error {
	db := getDB(s.db, tx)
	return db.WithContext(ctx).
		Model(&models.InterviewSession{}).
		Where("id = ? AND finalized_at IS NULL", id).
		Updates(map[string]interface{}{
			"final_score":      finalScore,
			"final_score_void": void,
			"finalized_at":     at,
			"version":          gorm.Expr("version + 1"),
			"updated_at":       time.Now().UTC(),
		}).Error
}

func (s SessionPostgreSQL) ListExpiredInProgress(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*models.InterviewSession, error) {
	db := getDB(s.db, tx)
	var sessions []*models.InterviewSession
	if err := db.WithContext(ctx).
		Where("status = ? AND ends_at < ?", models.SessionInProgress, now).
		Order("ends_at ASC").
		Limit(limit).
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s SessionPostgreSQL) ListUnfinalizedTerminal(ctx context.Context, tx *gorm.DB, limit int) ([]*models.InterviewSession, error) {
	db := getDB(s.db, tx)
	var sessions []*models.InterviewSession
	if err := db.WithContext(ctx).
		Where("status IN ? AND finalized_at IS NULL", []models.SessionStatus{models.SessionCompleted, models.SessionInvalidated}).
		Order("updated_at ASC").
		Limit(limit).
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}
