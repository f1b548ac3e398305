package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/SAP-F-2025/interview-session-service/internal/models"
	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict means the row changed since it was read; the caller re-reads and retries.
	ErrVersionConflict = errors.New("version conflict")
	ErrDuplicateKey    = errors.New("duplicate key")
)

// Repository groups the stores of the service. Every method takes an optional tx;
// nil means the default connection.
type Repository interface {
	Sessions() SessionRepository
	Responses() ResponseRepository
	Scores() ScoreRepository
	Idempotency() IdempotencyRepository
	Students() StudentRepository

	// WithTransaction runs fn in one database transaction. fn must only use tx.
	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SessionRepository is the system of record for interview sessions.
type SessionRepository interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, sessions []*models.InterviewSession) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.InterviewSession, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []string) ([]*models.InterviewSession, error)
	GetByBatch(ctx context.Context, tx *gorm.DB, batchID string) ([]*models.InterviewSession, error)

	// UpdateState writes the mutable state of session if its version is unchanged and bumps the version.
	UpdateState(ctx context.Context, tx *gorm.DB, session *models.InterviewSession) error
	// MarkFinalized stores the final score once; a second call is a no-op.
	MarkFinalized(ctx context.Context, tx *gorm.DB, id string, finalScore *float64, void bool, at time.Time) error

	// Reconciliation queries
	ListExpiredInProgress(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*models.InterviewSession, error)
	ListUnfinalizedTerminal(ctx context.Context, tx *gorm.DB, limit int) ([]*models.InterviewSession, error)
}

type ResponseRepository interface {
	// Upsert stores response, overwriting an earlier answer to the same question.
	Upsert(ctx context.Context, tx *gorm.DB, response *models.InterviewResponse) error
	ListBySession(ctx context.Context, tx *gorm.DB, sessionID string) ([]*models.InterviewResponse, error)
	CountBySession(ctx context.Context, tx *gorm.DB, sessionID string) (int64, error)
}

type ScoreRepository interface {
	// Create inserts breakdown, returning ErrDuplicateKey if the session already has one.
	Create(ctx context.Context, tx *gorm.DB, breakdown *models.ScoreBreakdown) error
	GetBySession(ctx context.Context, tx *gorm.DB, sessionID string) (*models.ScoreBreakdown, error)
	GetBySessions(ctx context.Context, tx *gorm.DB, sessionIDs []string) (map[string]*models.ScoreBreakdown, error)
	// ListScoredByStudent returns the student's scored (non-void) breakdowns, oldest first.
	ListScoredByStudent(ctx context.Context, tx *gorm.DB, studentID string) ([]*models.ScoreBreakdown, error)
}

type IdempotencyRepository interface {
	// Create inserts record, returning ErrDuplicateKey if the key is taken.
	Create(ctx context.Context, tx *gorm.DB, record *models.IdempotencyRecord) error
	GetByKey(ctx context.Context, tx *gorm.DB, key string) (*models.IdempotencyRecord, error)
}

// StudentRepository is a read-only view of the external user directory.
type StudentRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.User, error)
	// ListActiveIDs returns the ids of all active students, ordered by id.
	ListActiveIDs(ctx context.Context, tx *gorm.DB) ([]string, error)
}
