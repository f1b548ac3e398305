package services

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SAP-F-2025/interview-session-service/internal/events"
	"github.com/SAP-F-2025/interview-session-service/internal/lock"
	"github.com/SAP-F-2025/interview-session-service/internal/metrics"
	"github.com/SAP-F-2025/interview-session-service/internal/models"
	"github.com/SAP-F-2025/interview-session-service/internal/policy"
	"github.com/SAP-F-2025/interview-session-service/internal/repositories"
	"github.com/SAP-F-2025/interview-session-service/internal/validator"
	"gorm.io/datatypes"
)

const (
	ReasonManualInvalidation       = "manual_invalidation"
	ReasonExpiredWithoutSubmission = "expired_without_submission"
)

// errNoChange lets a mutation finish successfully without writing.
var errNoChange = errors.New("no change")

type monitorService struct {
	repo        repositories.Repository
	locker      lock.Locker
	scoring     ScoringService
	publisher   events.EventPublisher
	logger      *ServiceLogger
	validator   *validator.Validator
	now         func() time.Time
	maxRetries  int
	lockTimeout time.Duration
}

func NewMonitorService(
	repo repositories.Repository,
	locker lock.Locker,
	scoring ScoringService,
	publisher events.EventPublisher,
	logger *ServiceLogger,
	validator *validator.Validator,
	opts Options,
) MonitorService {
	return &monitorService{
		repo:        repo,
		locker:      locker,
		scoring:     scoring,
		publisher:   publisher,
		logger:      logger,
		validator:   validator,
		now:         opts.clock(),
		maxRetries:  opts.casMaxRetries(),
		lockTimeout: opts.lockTimeout(),
	}
}

// sessionRef addresses a session. System callers skip the token check.
type sessionRef struct {
	id     string
	token  string
	system bool
}

func clientRef(id, token string) sessionRef {
	return sessionRef{id: id, token: token}
}

func systemRef(id string) sessionRef {
	return sessionRef{id: id, system: true}
}

// ===== READS =====

func (s *monitorService) ValidateSession(ctx context.Context, sessionID, token string) (*ValidateSessionResponse, error) {
	session, err := s.load(ctx, clientRef(sessionID, token))
	if err != nil {
		return nil, err
	}

	now := s.now()
	return &ValidateSessionResponse{
		Valid:          session.Status == models.SessionInProgress && !session.IsExpired(now),
		Status:         session.Status,
		TimeRemaining:  session.TimeRemaining(now),
		SecurityConfig: session.SecurityConfig,
		TabSwitches:    session.TabSwitchCount,
		Warnings:       session.WarningCount,
	}, nil
}

// ===== TRANSITIONS =====

func (s *monitorService) StartInterview(ctx context.Context, sessionID, token string) (resp *SessionStateResponse, err error) {
	op := s.logger.WithOperation(ctx, "start_interview", sessionID)
	defer func() { op.LogResult(err) }()

	session, changed, err := s.mutate(ctx, clientRef(sessionID, token), func(session *models.InterviewSession, now time.Time) error {
		switch {
		case session.Status == models.SessionInProgress && !session.IsExpired(now):
			// Retried start from the same client
			return errNoChange
		case session.Status != models.SessionScheduled:
			return ErrSessionNotActive
		case now.Before(session.ScheduledAt):
			return ErrSessionNotOpen
		case session.IsExpired(now):
			return ErrSessionNotActive
		}

		if err := session.TransitionTo(models.SessionInProgress); err != nil {
			return err
		}
		session.StartedAt = models.TimePtr(now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.afterTransition(ctx, session)
	}
	return s.stateResponse(session, nil), nil
}

func (s *monitorService) ReportEvent(ctx context.Context, sessionID, token string, eventType models.SecurityEventType) (*ReportEventResponse, error) {
	if !eventType.IsValid() {
		metrics.SecurityEvent(string(eventType), "rejected")
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, eventType)
	}

	var decision policy.Decision
	session, _, err := s.mutate(ctx, clientRef(sessionID, token), func(session *models.InterviewSession, now time.Time) error {
		if session.Status != models.SessionInProgress || session.IsExpired(now) {
			return ErrSessionNotActive
		}

		var err error
		decision, err = policy.Evaluate(policy.Counters{
			TabSwitches: session.TabSwitchCount,
			Warnings:    session.WarningCount,
		}, session.SecurityConfig, eventType)
		if err != nil {
			return err
		}

		session.TabSwitchCount = decision.Counters.TabSwitches
		session.WarningCount = decision.Counters.Warnings
		if err := appendViolation(session, models.ViolationRecord{
			EventType:  eventType,
			OccurredAt: now,
			Counted:    decision.Counted != policy.CounterNone,
			Violation:  decision.ViolatesLimit,
		}); err != nil {
			return err
		}

		if decision.ViolatesLimit {
			if err := session.TransitionTo(models.SessionInvalidated); err != nil {
				return err
			}
			session.InvalidatedAt = models.TimePtr(now)
			session.InvalidationReason = models.StringPtr(decision.InvalidationReason())
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSessionNotActive) {
			metrics.SecurityEvent(string(eventType), "rejected")
		}
		return nil, err
	}

	s.logger.LogIntegrityEvent(ctx, session, eventType, decision.ViolatesLimit)
	outcome := "accepted"
	if decision.ViolatesLimit {
		outcome = "violation"
		s.afterTransition(ctx, session)
	}
	metrics.SecurityEvent(string(eventType), outcome)

	return &ReportEventResponse{
		Accepted:             decision.Accept,
		TabSwitches:          session.TabSwitchCount,
		Warnings:             session.WarningCount,
		RemainingTabSwitches: session.RemainingTabSwitches(),
		RemainingWarnings:    session.RemainingWarnings(),
		Invalidated:          session.Status == models.SessionInvalidated,
	}, nil
}

func (s *monitorService) InvalidateSession(ctx context.Context, sessionID, token, reason string) (resp *SessionStateResponse, err error) {
	op := s.logger.WithOperation(ctx, "invalidate_session", sessionID)
	defer func() { op.LogResult(err) }()

	if reason == "" {
		reason = ReasonManualInvalidation
	}

	session, changed, err := s.mutate(ctx, clientRef(sessionID, token), func(session *models.InterviewSession, now time.Time) error {
		switch session.Status {
		case models.SessionInvalidated:
			return errNoChange
		case models.SessionInProgress:
		default:
			return ErrSessionNotActive
		}

		if err := session.TransitionTo(models.SessionInvalidated); err != nil {
			return err
		}
		session.InvalidatedAt = models.TimePtr(now)
		session.InvalidationReason = models.StringPtr(reason)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var results *models.ScoreBreakdown
	if changed {
		results = s.afterTransition(ctx, session)
	}
	return s.stateResponse(session, results), nil
}

func (s *monitorService) ExtendTime(ctx context.Context, sessionID, token string, minutes int) (resp *SessionStateResponse, err error) {
	op := s.logger.WithOperation(ctx, "extend_time", sessionID)
	defer func() { op.LogResult(err) }()

	if minutes <= 0 {
		return nil, ValidationErrors{*NewValidationError("minutes", "must be positive", minutes)}
	}

	session, _, err := s.mutate(ctx, clientRef(sessionID, token), func(session *models.InterviewSession, now time.Time) error {
		if session.Status != models.SessionInProgress || session.IsExpired(now) {
			return ErrSessionNotActive
		}
		if err := policy.EvaluateExtension(session.SecurityConfig); err != nil {
			return err
		}

		session.EndsAt = session.EndsAt.Add(time.Duration(minutes) * time.Minute)
		session.DurationMinutes += minutes
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.NewSessionExtendedEvent(session, minutes))
	return s.stateResponse(session, nil), nil
}

func (s *monitorService) SubmitResponse(ctx context.Context, sessionID, token string, req *SubmitResponseRequest) (resp *models.InterviewResponse, err error) {
	op := s.logger.WithOperation(ctx, "submit_response", sessionID)
	defer func() { op.LogResult(err) }()

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	err = s.withLock(ctx, sessionID, func() error {
		session, err := s.load(ctx, clientRef(sessionID, token))
		if err != nil {
			return err
		}
		now := s.now()
		if session.Status != models.SessionInProgress || session.IsExpired(now) {
			return ErrSessionNotActive
		}

		resp = &models.InterviewResponse{
			SessionID:        session.ID,
			QuestionID:       req.QuestionID,
			Category:         req.Category,
			Score:            req.Score,
			TimeTakenSeconds: req.TimeTakenSeconds,
			AnsweredAt:       now,
		}
		return s.repo.Responses().Upsert(ctx, nil, resp)
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *monitorService) CompleteInterview(ctx context.Context, sessionID, token string) (resp *SessionStateResponse, err error) {
	op := s.logger.WithOperation(ctx, "complete_interview", sessionID)
	defer func() { op.LogResult(err) }()

	session, _, err := s.mutate(ctx, clientRef(sessionID, token), func(session *models.InterviewSession, now time.Time) error {
		if session.Status != models.SessionInProgress || session.IsExpired(now) {
			return ErrSessionNotActive
		}
		if err := session.TransitionTo(models.SessionCompleted); err != nil {
			return err
		}
		session.CompletedAt = models.TimePtr(now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	results := s.afterTransition(ctx, session)
	return s.stateResponse(session, results), nil
}

// ===== RECONCILIATION =====

func (s *monitorService) SweepExpired(ctx context.Context, limit int) (*SweepResult, error) {
	expired, err := s.repo.Sessions().ListExpiredInProgress(ctx, nil, s.now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired sessions: %w", err)
	}

	result := &SweepResult{}
	for _, candidate := range expired {
		responses, err := s.repo.Responses().CountBySession(ctx, nil, candidate.ID)
		if err != nil {
			return result, fmt.Errorf("failed to count responses of %s: %w", candidate.ID, err)
		}

		session, changed, err := s.mutate(ctx, systemRef(candidate.ID), func(session *models.InterviewSession, now time.Time) error {
			// Re-checked under the lock; a client may have closed it meanwhile
			if session.Status != models.SessionInProgress || !session.IsExpired(now) {
				return errNoChange
			}
			if responses > 0 {
				session.CompletedAt = models.TimePtr(session.EndsAt)
				return session.TransitionTo(models.SessionCompleted)
			}
			session.InvalidatedAt = models.TimePtr(now)
			session.InvalidationReason = models.StringPtr(ReasonExpiredWithoutSubmission)
			return session.TransitionTo(models.SessionInvalidated)
		})
		if err != nil {
			s.logger.logger.Warn("Failed to sweep expired session", "session_id", candidate.ID, "error", err)
			continue
		}
		if !changed {
			continue
		}

		if session.Status == models.SessionCompleted {
			result.Completed++
		} else {
			result.Invalidated++
		}
		metrics.Swept(string(session.Status))
		s.afterTransition(ctx, session)
	}

	return result, nil
}

// ===== HELPERS =====

// load reads a session and checks the caller's token. A wrong token is indistinguishable from a missing session.
func (s *monitorService) load(ctx context.Context, ref sessionRef) (*models.InterviewSession, error) {
	if !ref.system && ref.token == "" {
		return nil, ErrUnknownSession
	}

	session, err := s.repo.Sessions().GetByID(ctx, nil, ref.id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrUnknownSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if !ref.system && subtle.ConstantTimeCompare([]byte(session.SessionToken), []byte(ref.token)) != 1 {
		return nil, ErrUnknownSession
	}
	return session, nil
}

func (s *monitorService) withLock(ctx context.Context, sessionID string, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	release, err := s.locker.Acquire(lockCtx, sessionID)
	if err != nil {
		return fmt.Errorf("session %s: %w", sessionID, err)
	}
	defer release()

	return fn()
}

// mutate applies fn to the freshest committed state of the session and writes it back with a
// version check, under the session lock. A version conflict re-reads and re-applies fn.
// changed is false when fn returned errNoChange.
func (s *monitorService) mutate(ctx context.Context, ref sessionRef, fn func(*models.InterviewSession, time.Time) error) (session *models.InterviewSession, changed bool, err error) {
	err = s.withLock(ctx, ref.id, func() error {
		for attempt := 0; attempt <= s.maxRetries; attempt++ {
			current, err := s.load(ctx, ref)
			if err != nil {
				return err
			}

			if err := fn(current, s.now()); err != nil {
				if errors.Is(err, errNoChange) {
					session = current
					return nil
				}
				return err
			}

			err = s.repo.Sessions().UpdateState(ctx, nil, current)
			if errors.Is(err, repositories.ErrVersionConflict) {
				metrics.VersionConflict()
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to update session: %w", err)
			}

			session, changed = current, true
			return nil
		}
		return ErrConcurrentUpdateConflict
	})
	if err != nil {
		return nil, false, err
	}
	return session, changed, nil
}

// afterTransition publishes the new state and, for terminal states, finalizes the score.
// Finalization failures are left to the sweeper.
func (s *monitorService) afterTransition(ctx context.Context, session *models.InterviewSession) *models.ScoreBreakdown {
	metrics.SessionTransition(string(session.Status))
	s.publish(ctx, events.NewSessionTransitionEvent(session, s.now()))

	if !session.Status.IsTerminal() {
		return nil
	}
	breakdown, err := s.scoring.Finalize(ctx, session.ID)
	if err != nil {
		s.logger.logger.Error("Failed to finalize session, sweeper will retry", "session_id", session.ID, "error", err)
		return nil
	}
	return breakdown
}

func (s *monitorService) publish(ctx context.Context, event *events.SessionEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSessionEvent(ctx, event); err != nil {
		s.logger.logger.Warn("Failed to publish session event", "event_type", event.Type, "error", err)
	}
}

func (s *monitorService) stateResponse(session *models.InterviewSession, results *models.ScoreBreakdown) *SessionStateResponse {
	return &SessionStateResponse{
		SessionID:          session.ID,
		Status:             session.Status,
		ScheduledAt:        session.ScheduledAt,
		EndsAt:             session.EndsAt,
		TimeRemaining:      session.TimeRemaining(s.now()),
		TabSwitches:        session.TabSwitchCount,
		Warnings:           session.WarningCount,
		InvalidationReason: session.InvalidationReason,
		Results:            results,
	}
}

// appendViolation adds record to the session log, keeping the newest entries only.
func appendViolation(session *models.InterviewSession, record models.ViolationRecord) error {
	var log []models.ViolationRecord
	if len(session.SecurityViolations) > 0 {
		if err := json.Unmarshal(session.SecurityViolations, &log); err != nil {
			return fmt.Errorf("corrupt violation log: %w", err)
		}
	}

	log = append(log, record)
	if len(log) > models.MaxViolationLogEntries {
		log = log[len(log)-models.MaxViolationLogEntries:]
	}

	data, err := json.Marshal(log)
	if err != nil {
		return err
	}
	session.SecurityViolations = datatypes.JSON(data)
	return nil
}
