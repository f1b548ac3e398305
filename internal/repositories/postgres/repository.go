package postgres

import (
	"context"
	"errors"

	"github.com/SAP-F-2025/interview-session-service/internal/repositories"
	"gorm.io/gorm"
)

type repository struct {
	db          *gorm.DB
	sessions    repositories.SessionRepository
	responses   repositories.ResponseRepository
	scores      repositories.ScoreRepository
	idempotency repositories.IdempotencyRepository
	students    repositories.StudentRepository
}

// NewRepository wires every gorm store against db. The same code serves PostgreSQL in
// production and SQLite in tests.
func NewRepository(db *gorm.DB) repositories.Repository {
	return &repository{
		db:          db,
		sessions:    NewSessionPostgreSQL(db),
		responses:   NewResponsePostgreSQL(db),
		scores:      NewScorePostgreSQL(db),
		idempotency: NewIdempotencyPostgreSQL(db),
		students:    NewStudentPostgreSQL(db),
	}
}

func (r *repository) Sessions() repositories.SessionRepository        { return r.sessions }
func (r *repository) Responses() repositories.ResponseRepository      { return r.responses }
func (r *repository) Scores() repositories.ScoreRepository            { return r.scores }
func (r *repository) Idempotency() repositories.IdempotencyRepository { return r.idempotency }
func (r *repository) Students() repositories.StudentRepository        { return r.students }

func (r *repository) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func getDB(db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}

func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repositories.ErrNotFound
	}
	return err
}
