package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SAP-F-2025/interview-session-service/internal/events"
	"github.com/SAP-F-2025/interview-session-service/internal/models"
	"github.com/SAP-F-2025/interview-session-service/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noopLocker leaves serialization to the version check alone.
type noopLocker struct{}

func (noopLocker) Acquire(context.Context, string) (func(), error) { return func() {}, nil }

func TestStartInterview(t *testing.T) {
	env := newTestEnv(t)
	testhelpers.SeedStudents(t, env.db, []string{"s1"})
	ctx := context.Background()

	scheduled := env.scheduleOne(t, "s1", nil)

	_, err := env.manager.Monitor().StartInterview(ctx, scheduled.ID, scheduled.SessionToken)
	assert.ErrorIs(t, err, ErrSessionNotOpen)

	env.clock.Advance(2 * time.Minute)
	state, err := env.manager.Monitor().StartInterview(ctx, scheduled.ID, scheduled.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, models.SessionInProgress, state.Status)
	assert.Equal(t, 29*60, state.TimeRemaining)

	// A retried start is answered with the current state
	again, err := env.manager.Monitor().StartInterview(ctx, scheduled.ID, scheduled.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, models.SessionInProgress, again.Status)
	assert.Len(t, env.publisher.EventsOfType(events.EventSessionStarted), 1)

	session := env.reload(t, scheduled.ID)
	require.NotNil(t, session.StartedAt)
	assert.True(t, session.StartedAt.Equal(testStart.Add(2*time.Minute)))
}

func TestStartInterview_AfterWindow(t *testing.T) {
	env := newTestEnv(t)
	testhelpers.SeedStudents(t, env.db, []string{"s1"})

	scheduled := env.scheduleOne(t, "s1", nil)
	env.clock.Advance(time.Hour)

	_, err := env.manager.Monitor().StartInterview(context.Background(), scheduled.ID, scheduled.SessionToken)
	assert.ErrorIs(t, err, ErrSessionNotActive)
	assert.Equal(t, models.SessionScheduled, env.reload(t, scheduled.ID).Status)
}

func TestSessionToken_Mismatch(t *testing.T) {
	env := newTestEnv(t)
	testhelpers.SeedStudents(t, env.db, []string{"s1", "s2"})
	ctx := context.Background()

	mine := env.startOne(t, "s1", nil)
	other := env.scheduleOne(t, "s2", nil)

	for name, call := range map[string]func() error{
		"wrong token": func() error {
			_, err := env.manager.Monitor().ValidateSession(ctx, mine.ID, other.SessionToken)
			return err
		},
		"empty token": func() error {
			_, err := env.manager.Monitor().ReportEvent(ctx, mine.ID, "", models.EventTabSwitch)
			return err
		},
		"unknown session": func() error {
			_, err := env.manager.Monitor().CompleteInterview(ctx, "missing", mine.SessionToken)
			return err
		},
	} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, call(), ErrUnknownSession)
		})
	}

	assert.Equal(t, 0, env.reload(t, mine.ID).TabSwitchCount)
}

func TestValidateSession_FailsClosedAfterExpiry(t *testing.T) {
	env := newTestEnv(t)
	testhelpers.SeedStudents(t, env.db, []string{"s1"})
	ctx := context.Background()

	session := env.startOne(t, "s1", &SecurityConfigRequest{TabSwitchLimit: intPtr(2)})

	resp, err := env.manager.Monitor().ValidateSession(ctx, session.ID, session.SessionToken)
	require.NoError(t, err)
	assert.True(t, resp.Valid)
	assert.Equal(t, 2, resp.SecurityConfig.TabSwitchLimit)

	env.clock.Advance(30 * time.Minute)

	resp, err = env.manager.Monitor().ValidateSession(ctx, session.ID, session.SessionToken)
	require.NoError(t, err)
	assert.False(t, resp.Valid)
	assert.Equal(t, models.SessionInProgress, resp.Status, "validation never writes")
	assert.Zero(t, resp.TimeRemaining)

	_, err = env.manager.Monitor().ReportEvent(ctx, session.ID, session.SessionToken, models.EventWarning)
	assert.ErrorIs(t, err, ErrSessionNotActive)
}

func TestReportEvent_TabSwitchLimitWalk(t *testing.T) {
	env := newTestEnv(t)
	testhelpers.SeedStudents(t, env.db, []string{"s1"})
	ctx := context.Background()

	session := env.startOne(t, "s1", &SecurityConfigRequest{TabSwitchLimit: intPtr(3)})

	for _, remaining := range []int{2, 1, 0} {
		resp, err := env.manager.Monitor().ReportEvent(ctx, session.ID, session.SessionToken, models.EventTabSwitch)
		require.NoError(t, err)
		assert.True(t, resp.Accepted)
		assert.False(t, resp.Invalidated)
		assert.Equal(t, remaining, resp.RemainingTabSwitches)
	}

	resp, err := env.manager.Monitor().ReportEvent(ctx, session.ID, session.SessionToken, models.EventTabSwitch)
	require.NoError(t, err)
	assert.True(t, resp.Invalidated)
	assert.Equal(t, 3, resp.TabSwitches, "counter freezes at the limit")
	assert.Zero(t, resp.RemainingTabSwitches)

	stored := env.reload(t, session.ID)
	assert.Equal(t, models.SessionInvalidated, stored.Status)
	require.NotNil(t, stored.InvalidationReason)
	assert.Equal(t, "tab_switch_limit_exceeded", *stored.InvalidationReason)

	_, err = env.manager.Monitor().ReportEvent(ctx, session.ID, session.SessionToken, models.EventTabSwitch)
	assert.ErrorIs(t, err, ErrSessionNotActive)
}

func TestReportEvent_MixedCountersInvalidateWithVoidScore(t *testing.T) {
	env := newTestEnv(t)
	testhelpers.SeedStudents(t, env.db, []string{"S"})
	ctx := context.Background()
	monitor := env.manager.Monitor()

	session := env.startOne(t, "S", &SecurityConfigRequest{TabSwitchLimit: intPtr(3), WarningLimit: intPtr(5)})

	for _, eventType := range []models.SecurityEventType{models.EventTabSwitch, models.EventTabSwitch} {
		_, err := monitor.ReportEvent(ctx, session.ID, session.SessionToken, eventType)
		require.NoError(t, err)
	}
	resp, err := monitor.ReportEvent(ctx, session.ID, session.SessionToken, models.EventWarning)
	require.NoError(t, err)
	assert.False(t, resp.Invalidated)
	assert.Equal(t, 1, resp.RemainingTabSwitches)
	assert.Equal(t, 4, resp.RemainingWarnings)

	_, err = monitor.ReportEvent(ctx, session.ID, session.SessionToken, models.EventTabSwitch)
	require.NoError(t, err)
	resp, err = monitor.ReportEvent(ctx, session.ID, session.SessionToken, models.EventTabSwitch)
	require.NoError(t, err)
	assert.True(t, resp.Invalidated)
	assert.Zero(t, resp.RemainingTabSwitches)

	stored := env.reload(t, session.ID)
	assert.Equal(t, models.SessionInvalidated, stored.Status)
	assert.True(t, stored.FinalScoreVoid)
	require.NotNil(t, stored.FinalScore)
	assert.Zero(t, *stored.FinalScore)

	breakdown, err := env.manager.Scoring().GetResults(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScoreStatusVoidInvalidated, breakdown.ScoreStatus)
	assert.Len(t, env.publisher.EventsOfType(events.EventSessionInvalidated), 1)
	assert.Len(t, env.publisher.EventsOfType(events.EventSessionFinalized), 1)
}

func TestReportEvent_ConfigDependentEvents(t *testing.T) {
	env := newTestEnv(t)
	testhelpers.SeedStudents(t, env.db, []string{"s1"})
	ctx := context.Background()

	session := env.startOne(t, "s1", &SecurityConfigRequest{
		CopyPasteDisabled:        boolPtr(false),
		ScreenRecordingDetection: boolPtr(false),
	})

	resp, err := env.manager.Monitor().ReportEvent(ctx, session.ID, session.SessionToken, models.EventCopyPasteAttempt)
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	assert.Zero(t, resp.Warnings)

	// Detection being off on the client does not make a reported detection free
	resp, err = env.manager.Monitor().ReportEvent(ctx, session.ID, session.SessionToken, models.EventScreenRecordingDetected)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Warnings)
	assert.Equal(t, models.DefaultWarningLimit-1, resp.RemainingWarnings)

	_, err = env.manager.Monitor().ReportEvent(ctx, session.ID, session.SessionToken, "devtools_open")
	assert.ErrorIs(t, err, ErrUnknownEventType)

	var log []models.ViolationRecord
	require.NoError(t, json.Unmarshal(env.reload(t, session.ID).SecurityViolations, &log))
	require.Len(t, log, 2)
	assert.False(t, log[0].Counted)
	assert.True(t, log[1].Counted)
}

func TestReportEvent_ViolationLogIsBounded(t *testing.T) {
	env := newTestEnv(t)
	testhelpers.SeedStudents(t, env.db, []string{"s1"})
	ctx := context.Background()

	session := env.startOne(t, "s1", &SecurityConfigRequest{CopyPasteDisabled: boolPtr(false)})

	for i := 0; i < models.MaxViolationLogEntries+5; i++ {
		_, err := env.manager.Monitor().ReportEvent(ctx, session.ID, session.SessionToken, models.EventCopyPasteAttempt)
		require.NoError(t, err)
	}

	var log []models.ViolationRecord
	require.NoError(t, json.Unmarshal(env.reload(t, session.ID).SecurityViolations, &log))
	assert.Len(t, log, models.MaxViolationLogEntries)
}

func TestReportEvent_ConcurrentReportsAreNotLost(t *testing.T) {
	env := newTestEnv(t)
	testhelpers.SeedStudents(t, env.db, []string{"s1"})

	session := env.startOne(t, "s1", &SecurityConfigRequest{TabSwitchLimit: intPtr(1000)})

	const reports = 100
	var wg sync.WaitGroup
	errs := make(chan error, reports)
	for i := 0; i < reports; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.manager.Monitor().ReportEvent(context.Background(), session.ID, session.SessionToken, models.EventTabSwitch)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, reports, env.reload(t, session.ID).TabSwitchCount)
}

func TestReportEvent_VersionCheckWithoutLock(t *testing.T) {
	env := newTestEnv(t, withLocker(noopLocker{}), withOptions(func(o *Options) { o.CASMaxRetries = 50 }))
	testhelpers.SeedStudents(t, env.db, []string{"s1"})

	session := env.startOne(t, "s1", &SecurityConfigRequest{TabSwitchLimit: intPtr(1000)})

	const reports = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < reports; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.manager.Monitor().ReportEvent(context.Background(), session.ID, session.SessionToken, models.EventTabSwitch)
			if err != nil {
				assert.ErrorIs(t, err, ErrConcurrentUpdateConflict)
				return
			}
			mu.Lock()
			succeeded++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, succeeded, env.reload(t, session.ID).TabSwitchCount)
}

func TestFinalization_ViolationRacesCompletion(t *testing.T) {
	env := newTestEnv(t)
	testhelpers.SeedStudents(t, env.db, []string{"s1"})
	ctx := context.Background()

	session := env.startOne(t, "s1", &SecurityConfigRequest{WarningLimit: intPtr(0)})

	var wg sync.WaitGroup
	var reportErr, completeErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, reportErr = env.manager.Monitor().ReportEvent(ctx, session.ID, session.SessionToken, models.EventWarning)
	}()
	go func() {
		defer wg.Done()
		_, completeErr = env.manager.Monitor().CompleteInterview(ctx, session.ID, session.SessionToken)
	}()
	wg.Wait()

	stored := env.reload(t, session.ID)
	switch stored.Status {
	case models.SessionInvalidated:
		assert.NoError(t, reportErr)
		assert.ErrorIs(t, completeErr, ErrSessionNotActive)
	case models.SessionCompleted:
		assert.NoError(t, completeErr)
		assert.ErrorIs(t, reportErr, ErrSessionNotActive)
	default:
		t.Fatalf("unexpected status %s", stored.Status)
	}

	assert.Equal(t, int64(1), env.countBreakdowns(t, session.ID))
	assert.NotNil(t, stored.FinalizedAt)
}

func TestInvalidateSession(t *testing.T) {
	env := newTestEnv(t)
	testhelpers.SeedStudents(t, env.db, []string{"s1", "s2"})
	ctx := context.Background()

	pending := env.scheduleOne(t, "s2", nil)
	_, err := env.manager.Monitor().InvalidateSession(ctx, pending.ID, pending.SessionToken, "")
	assert.ErrorIs(t, err, ErrSessionNotActive)

	session := env.startOne(t, "s1", nil)
	state, err := env.manager.Monitor().InvalidateSession(ctx, session.ID, session.SessionToken, "")
	require.NoError(t, err)
	assert.Equal(t, models.SessionInvalidated, state.Status)
	require.NotNil(t, state.InvalidationReason)
	assert.Equal(t, ReasonManualInvalidation, *state.InvalidationReason)
	require.NotNil(t, state.Results)
	assert.True(t, state.Results.IsVoid())

	again, err := env.manager.Monitor().InvalidateSession(ctx, session.ID, session.SessionToken, "proctor decision")
	require.NoError(t, err)
	assert.Equal(t, ReasonManualInvalidation, *again.InvalidationReason, "first reason is kept")
	assert.Len(t, env.publisher.EventsOfType(events.EventSessionInvalidated), 1)
}

func TestExtendTime(t *testing.T) {
	env := newTestEnv(t)
	testhelpers.SeedStudents(t, env.db, []string{"s1", "s2"})
	ctx := context.Background()

	locked := env.startOne(t, "s1", nil)
	_, err := env.manager.Monitor().ExtendTime(ctx, locked.ID, locked.SessionToken, 10)
	assert.ErrorIs(t, err, ErrExtensionNotPermitted)
	assert.True(t, env.reload(t, locked.ID).EndsAt.Equal(locked.EndsAt))

	open := env.startOne(t, "s2", &SecurityConfigRequest{TimeExtensionAllowed: boolPtr(true)})

	_, err = env.manager.Monitor().ExtendTime(ctx, open.ID, open.SessionToken, 0)
	var fieldErrs ValidationErrors
	assert.True(t, errors.As(err, &fieldErrs))

	state, err := env.manager.Monitor().ExtendTime(ctx, open.ID, open.SessionToken, 10)
	require.NoError(t, err)
	assert.True(t, state.EndsAt.Equal(open.EndsAt.Add(10*time.Minute)))
	assert.Equal(t, 40, env.reload(t, open.ID).DurationMinutes)
	assert.Len(t, env.publisher.EventsOfType(events.EventSessionExtended), 1)
}

func TestSubmitResponseAndComplete(t *testing.T) {
	env := newTestEnv(t)
	testhelpers.SeedStudents(t, env.db, []string{"s1"})
	ctx := context.Background()
	monitor := env.manager.Monitor()

	session := env.startOne(t, "s1", nil)

	submissions := []SubmitResponseRequest{
		{QuestionID: "q1", Category: models.CategoryTechnical, Score: 40},
		{QuestionID: "q1", Category: models.CategoryTechnical, Score: 80},
		{QuestionID: "q2", Category: models.CategoryCommunication, Score: 60, TimeTakenSeconds: 90},
	}
	for i := range submissions {
		_, err := monitor.SubmitResponse(ctx, session.ID, session.SessionToken, &submissions[i])
		require.NoError(t, err)
	}

	_, err := monitor.SubmitResponse(ctx, session.ID, session.SessionToken, &SubmitResponseRequest{QuestionID: "q3", Category: "trivia", Score: 10})
	var fieldErrs ValidationErrors
	require.ErrorAs(t, err, &fieldErrs)

	state, err := monitor.CompleteInterview(ctx, session.ID, session.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, state.Status)
	require.NotNil(t, state.Results)
	assert.Equal(t, 2, state.Results.ResponsesCount, "resubmitting a question replaces the answer")
	assert.InDelta(t, 70, state.Results.SessionScore, 1e-9)
	require.NotNil(t, state.Results.TechnicalScore)
	assert.InDelta(t, 80, *state.Results.TechnicalScore, 1e-9)
	assert.Nil(t, state.Results.ProblemSolvingScore)

	_, err = monitor.SubmitResponse(ctx, session.ID, session.SessionToken, &submissions[0])
	assert.ErrorIs(t, err, ErrSessionNotActive)
	_, err = monitor.CompleteInterview(ctx, session.ID, session.SessionToken)
	assert.ErrorIs(t, err, ErrSessionNotActive)
}

func TestSweepExpired(t *testing.T) {
	env := newTestEnv(t)
	testhelpers.SeedStudents(t, env.db, []string{"s1", "s2", "s3"})
	ctx := context.Background()
	monitor := env.manager.Monitor()

	answered := env.startOne(t, "s1", nil)
	silent := env.startOne(t, "s2", nil)
	_, err := monitor.SubmitResponse(ctx, answered.ID, answered.SessionToken, &SubmitResponseRequest{
		QuestionID: "q1", Category: models.CategoryProblemSolving, Score: 90,
	})
	require.NoError(t, err)

	// Still open; the sweeper leaves it alone
	live := env.scheduleOne(t, "s3", nil)

	result, err := monitor.SweepExpired(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, *result)

	env.clock.Advance(time.Hour)
	result, err = monitor.SweepExpired(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Completed: 1, Invalidated: 1}, *result)

	completed := env.reload(t, answered.ID)
	assert.Equal(t, models.SessionCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)
	assert.True(t, completed.CompletedAt.Equal(completed.EndsAt))
	require.NotNil(t, completed.FinalScore)
	assert.InDelta(t, 90, *completed.FinalScore, 1e-9)

	invalidated := env.reload(t, silent.ID)
	assert.Equal(t, models.SessionInvalidated, invalidated.Status)
	assert.Equal(t, ReasonExpiredWithoutSubmission, *invalidated.InvalidationReason)
	assert.True(t, invalidated.FinalScoreVoid)

	assert.Equal(t, models.SessionScheduled, env.reload(t, live.ID).Status)

	result, err = monitor.SweepExpired(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, *result)
}
