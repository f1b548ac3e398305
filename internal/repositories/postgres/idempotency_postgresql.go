package postgres

import (
	"context"

	"github.com/SAP-F-2025/interview-session-service/internal/models"
	"github.com/SAP-F-2025/interview-session-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type IdempotencyPostgreSQL struct {
	db *gorm.DB
}

func NewIdempotencyPostgreSQL(db *gorm.DB) repositories.IdempotencyRepository {
	return &IdempotencyPostgreSQL{db: db}
}

func (i IdempotencyPostgreSQL) Create(ctx context.Context, tx *gorm.DB, record *models.IdempotencyRecord) error {
	db := getDB(i.db, tx)
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(record)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repositories.ErrDuplicateKey
	}
	return nil
}

func (i IdempotencyPostgreSQL) GetByKey(ctx context.Context, tx *gorm.DB, key string) (*models.IdempotencyRecord, error) {
	db := getDB(i.db, tx)
	var record models.IdempotencyRecord
	if err := db.WithContext(ctx).Where("idempotency_key = ?", key).First(&record).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &record, nil
}
