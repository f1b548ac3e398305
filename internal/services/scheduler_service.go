package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SAP-F-2025/interview-session-service/internal/events"
	"github.com/SAP-F-2025/interview-session-service/internal/metrics"
	"github.com/SAP-F-2025/interview-session-service/internal/models"
	"github.com/SAP-F-2025/interview-session-service/internal/repositories"
	"github.com/SAP-F-2025/interview-session-service/internal/validator"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type schedulerService struct {
	repo      repositories.Repository
	publisher events.EventPublisher
	logger    *ServiceLogger
	validator *validator.Validator
	defaults  models.SecurityConfig
	now       func() time.Time
}

func NewSchedulerService(repo repositories.Repository, publisher events.EventPublisher, logger *ServiceLogger, validator *validator.Validator, opts Options) SchedulerService {
	return &schedulerService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		validator: validator,
		defaults:  opts.defaultSecurityConfig(),
		now:       opts.clock(),
	}
}

func (s *schedulerService) Schedule(ctx context.Context, req *ScheduleRequest) (result *ScheduleResult, err error) {
	op := s.logger.WithOperation(ctx, "schedule", "")
	defer func() { op.LogResult(err) }()

	if err := s.validator.Validate(req); err != nil {
		var fieldErrs ValidationErrors
		if errors.As(err, &fieldErrs) {
			return nil, invalidSchedule(fieldErrs)
		}
		return nil, errors.Join(ErrInvalidSchedule, err)
	}

	// A retry returns the original sessions even once their window has started
	fingerprint := scheduleFingerprint(req)
	if req.IdempotencyKey != "" {
		replayed, err := s.replay(ctx, req.IdempotencyKey, fingerprint)
		if err != nil || replayed != nil {
			return replayed, err
		}
	}

	now := s.now()
	windowStart := req.ScheduledAt.UTC()
	if windowStart.Before(now) {
		return nil, invalidSchedule(ValidationErrors{
			*NewValidationError("scheduled_at", "must not be in the past", req.ScheduledAt),
		})
	}

	studentIDs, err := s.resolveTargets(ctx, req)
	if err != nil {
		return nil, err
	}

	batchID := uuid.NewString()
	config := s.securityConfig(req.SecurityConfig)
	endsAt := windowStart.Add(time.Duration(req.DurationMinutes) * time.Minute)

	sessions := make([]*models.InterviewSession, 0, len(studentIDs))
	sessionIDs := make([]string, 0, len(studentIDs))
	for _, studentID := range studentIDs {
		session := &models.InterviewSession{
			ID:                 uuid.NewString(),
			BatchID:            batchID,
			StudentID:          studentID,
			InterviewType:      req.InterviewType,
			ScheduledAt:        windowStart,
			EndsAt:             endsAt,
			DurationMinutes:    req.DurationMinutes,
			Instructions:       req.Instructions,
			SecurityConfig:     config,
			Status:             models.SessionScheduled,
			SessionToken:       uuid.NewString(),
			SecurityViolations: datatypes.JSON("[]"),
			Version:            1,
		}
		sessions = append(sessions, session)
		sessionIDs = append(sessionIDs, session.ID)
	}

	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.repo.Sessions().CreateBatch(ctx, tx, sessions); err != nil {
			return fmt.Errorf("failed to create sessions: %w", err)
		}
		if req.IdempotencyKey == "" {
			return nil
		}

		ids, err := json.Marshal(sessionIDs)
		if err != nil {
			return err
		}
		return s.repo.Idempotency().Create(ctx, tx, &models.IdempotencyRecord{
			Key:         req.IdempotencyKey,
			Fingerprint: fingerprint,
			BatchID:     batchID,
			SessionIDs:  datatypes.JSON(ids),
			CreatedAt:   now,
		})
	})
	if errors.Is(err, repositories.ErrDuplicateKey) {
		// A concurrent request with the same key committed first
		return s.replay(ctx, req.IdempotencyKey, fingerprint)
	}
	if err != nil {
		return nil, err
	}

	metrics.SessionsScheduled(len(sessions))
	s.publish(ctx, events.NewSessionsScheduledEvent(batchID, sessions))

	return newScheduleResult(batchID, sessions, false), nil
}

// replay returns the stored result for key, nil when the key is unused.
func (s *schedulerService) replay(ctx context.Context, key, fingerprint string) (*ScheduleResult, error) {
	record, err := s.repo.Idempotency().GetByKey(ctx, nil, key)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	if record.Fingerprint != fingerprint {
		return nil, ErrIdempotencyKeyConflict
	}

	var sessionIDs []string
	if err := json.Unmarshal(record.SessionIDs, &sessionIDs); err != nil {
		return nil, fmt.Errorf("corrupt idempotency record %s: %w", key, err)
	}
	sessions, err := s.repo.Sessions().GetByIDs(ctx, nil, sessionIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load scheduled sessions: %w", err)
	}

	return newScheduleResult(record.BatchID, sessions, true), nil
}

// resolveTargets snapshots the student ids the request addresses, ordered by id.
func (s *schedulerService) resolveTargets(ctx context.Context, req *ScheduleRequest) ([]string, error) {
	if req.AllActiveStudents {
		ids, err := s.repo.Students().ListActiveIDs(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to list active students: %w", err)
		}
		if len(ids) == 0 {
			return nil, invalidSchedule(ValidationErrors{
				*NewValidationError("all_active_students", "no active students to schedule", true),
			})
		}
		return ids, nil
	}

	student, err := s.repo.Students().GetByID(ctx, nil, req.StudentID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to load student: %w", err)
	}
	if student == nil || !student.IsActive || student.Role != models.RoleStudent {
		return nil, invalidSchedule(ValidationErrors{
			*NewValidationError("student_id", "unknown or inactive student", req.StudentID),
		})
	}
	return []string{student.ID}, nil
}

func (s *schedulerService) securityConfig(req *SecurityConfigRequest) models.SecurityConfig {
	config := s.defaults
	if req == nil {
		return config
	}
	if req.TabSwitchLimit != nil {
		config.TabSwitchLimit = *req.TabSwitchLimit
	}
	if req.WarningLimit != nil {
		config.WarningLimit = *req.WarningLimit
	}
	if req.TimeExtensionAllowed != nil {
		config.TimeExtensionAllowed = *req.TimeExtensionAllowed
	}
	if req.CopyPasteDisabled != nil {
		config.CopyPasteDisabled = *req.CopyPasteDisabled
	}
	if req.ScreenRecordingDetection != nil {
		config.ScreenRecordingDetection = *req.ScreenRecordingDetection
	}
	return config
}

func (s *schedulerService) publish(ctx context.Context, event *events.SessionEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSessionEvent(ctx, event); err != nil {
		s.logger.logger.Warn("Failed to publish session event", "event_type", event.Type, "error", err)
	}
}

// scheduleFingerprint identifies the request a key was first used with.
func scheduleFingerprint(req *ScheduleRequest) string {
	target := "student:" + req.StudentID
	if req.AllActiveStudents {
		target = "all_active_students"
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%s",
		target,
		req.ScheduledAt.UTC().Format(time.RFC3339Nano),
		req.DurationMinutes,
		req.InterviewType,
	)))
	return hex.EncodeToString(sum[:])
}

func newScheduleResult(batchID string, sessions []*models.InterviewSession, replayed bool) *ScheduleResult {
	result := &ScheduleResult{
		BatchID:  batchID,
		Sessions: make([]ScheduledSession, 0, len(sessions)),
		Replayed: replayed,
	}
	for _, session := range sessions {
		result.Sessions = append(result.Sessions, ScheduledSession{
			ID:           session.ID,
			StudentID:    session.StudentID,
			SessionToken: session.SessionToken,
			ScheduledAt:  session.ScheduledAt,
			EndsAt:       session.EndsAt,
		})
	}
	return result
}
