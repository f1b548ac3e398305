package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/SAP-F-2025/interview-session-service/internal/cache"
	"github.com/SAP-F-2025/interview-session-service/internal/events"
	"github.com/SAP-F-2025/interview-session-service/internal/lock"
	"github.com/SAP-F-2025/interview-session-service/internal/models"
	"github.com/SAP-F-2025/interview-session-service/internal/repositories"
	"github.com/SAP-F-2025/interview-session-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/interview-session-service/internal/testhelpers"
	"github.com/SAP-F-2025/interview-session-service/internal/validator"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testStart = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	db        *gorm.DB
	repo      repositories.Repository
	clock     *testhelpers.Clock
	publisher *events.MockEventPublisher
	manager   ServiceManager
}

type envOption func(*Dependencies, *Options)

func withCache(c cache.CacheService) envOption {
	return func(d *Dependencies, _ *Options) { d.Cache = c }
}

func withLocker(l lock.Locker) envOption {
	return func(d *Dependencies, _ *Options) { d.Locker = l }
}

func withOptions(fn func(*Options)) envOption {
	return func(_ *Dependencies, o *Options) { fn(o) }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	db := testhelpers.SetupTestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &testEnv{
		db:        db,
		repo:      postgres.NewRepository(db),
		clock:     testhelpers.NewClock(testStart),
		publisher: events.NewMockEventPublisher(logger),
	}

	deps := Dependencies{
		Repo:      env.repo,
		Locker:    lock.NewLocalLocker(),
		Publisher: env.publisher,
		Validator: validator.New(),
		Logger:    logger,
	}
	options := Options{Now: env.clock.Now, LockTimeout: 30 * time.Second}
	for _, opt := range opts {
		opt(&deps, &options)
	}

	env.manager = NewServiceManager(deps, options)
	return env
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

// scheduleOne schedules a session for studentID opening one minute from now.
func (e *testEnv) scheduleOne(t *testing.T, studentID string, config *SecurityConfigRequest) ScheduledSession {
	t.Helper()

	result, err := e.manager.Scheduler().Schedule(context.Background(), &ScheduleRequest{
		StudentID:       studentID,
		ScheduledAt:     e.clock.Now().Add(time.Minute),
		DurationMinutes: 30,
		InterviewType:   models.InterviewTechnical,
		SecurityConfig:  config,
	})
	require.NoError(t, err)
	require.Len(t, result.Sessions, 1)
	return result.Sessions[0]
}

// startOne schedules and starts a session.
func (e *testEnv) startOne(t *testing.T, studentID string, config *SecurityConfigRequest) ScheduledSession {
	t.Helper()

	scheduled := e.scheduleOne(t, studentID, config)
	e.clock.Advance(2 * time.Minute)
	_, err := e.manager.Monitor().StartInterview(context.Background(), scheduled.ID, scheduled.SessionToken)
	require.NoError(t, err)
	return scheduled
}

func (e *testEnv) reload(t *testing.T, sessionID string) *models.InterviewSession {
	t.Helper()
	session, err := e.repo.Sessions().GetByID(context.Background(), nil, sessionID)
	require.NoError(t, err)
	return session
}

func (e *testEnv) countBreakdowns(t *testing.T, sessionID string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Model(&models.ScoreBreakdown{}).Where("session_id = ?", sessionID).Count(&count).Error)
	return count
}
