package postgres

import (
	"context"

	"github.com/SAP-F-2025/interview-session-service/internal/models"
	"github.com/SAP-F-2025/interview-session-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ScorePostgreSQL struct {
	db *gorm.DB
}

func NewScorePostgreSQL(db *gorm.DB) repositories.ScoreRepository {
	return &ScorePostgreSQL{db: db}
}

func (s ScorePostgreSQL) Create(ctx context.Context, tx *gorm.DB, breakdown *models.ScoreBreakdown) error {
	db := getDB(s.db, tx)
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(breakdown)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repositories.ErrDuplicateKey
	}
	return nil
}

func (s ScorePostgreSQL) GetBySession(ctx context.Context, tx *gorm.DB, sessionID string) (*models.ScoreBreakdown, error) {
	db := getDB(s.db, tx)
	var breakdown models.ScoreBreakdown
	if err := db.WithContext(ctx).Where("session_id = ?", sessionID).First(&breakdown).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &breakdown, nil
}

func (s ScorePostgreSQL) GetBySessions(ctx context.Context, tx *gorm.DB, sessionIDs []string) (map[string]*models.ScoreBreakdown, error) {
	db := getDB(s.db, tx)
	var breakdowns []models.ScoreBreakdown
	if err := db.WithContext(ctx).Where("session_id IN ?", sessionIDs).Find(&breakdowns).Error; err != nil {
		return nil, err
	}

	byID := make(map[string]*models.ScoreBreakdown, len(breakdowns))
	for _, b := range breakdowns {
		bCopy := b
		byID[b.SessionID] = &bCopy
	}
	return byID, nil
}

func (s ScorePostgreSQL) ListScoredByStudent(ctx context.Context, tx *gorm.DB, studentID string) ([]*models.ScoreBreakdown, error) {
	db := getDB(s.db, tx)
	var breakdowns []*models.ScoreBreakdown
	if err := db.WithContext(ctx).
		Where("student_id = ? AND score_status = ?", studentID, models.ScoreStatusScored).
		Order("finalized_at ASC, session_id ASC").
		Find(&breakdowns).Error; err != nil {
		return nil, err
	}
	return breakdowns, nil
}
