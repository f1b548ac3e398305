package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/SAP-F-2025/interview-session-service/internal/models"
)

// ServiceLogger provides structured logging for service layer operations
type ServiceLogger struct {
	logger *slog.Logger
	config LogConfig
}

type LogConfig struct {
	Service     string
	Component   string
	EnableDebug bool
}

func NewServiceLogger(logger *slog.Logger, config LogConfig) *ServiceLogger {
	return &ServiceLogger{
		logger: logger.With("service", config.Service, "component", config.Component),
		config: config,
	}
}

// ===== OPERATION LOGGING =====

func (l *ServiceLogger) LogOperation(ctx context.Context, operation string, sessionID string, duration time.Duration, err error) {
	level := slog.LevelInfo
	status := "success"

	if err != nil {
		level = slog.LevelError
		status = "error"

		// Adjust log level based on error type
		switch {
		case IsValidation(err):
			level = slog.LevelWarn
			status = "validation_error"
		case IsForbidden(err):
			level = slog.LevelWarn
			status = "forbidden"
		case IsConflict(err):
			level = slog.LevelInfo
			status = "conflict"
		case IsNotFound(err):
			level = slog.LevelInfo
			status = "not_found"
		}
	}

	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.String("status", status),
		slog.Duration("duration", duration),
	}
	if sessionID != "" {
		attrs = append(attrs, slog.String("session_id", sessionID))
	}

	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))

		var validationErr ValidationErrors
		if errors.As(err, &validationErr) {
			attrs = append(attrs, slog.Int("validation_errors_count", len(validationErr)))
		}
	}

	// Add caller information for unexpected errors
	if level == slog.LevelError {
		if pc, file, line, ok := runtime.Caller(2); ok {
			if fn := runtime.FuncForPC(pc); fn != nil {
				attrs = append(attrs,
					slog.String("caller_func", fn.Name()),
					slog.String("caller_file", file),
					slog.Int("caller_line", line),
				)
			}
		}
	}

	l.logger.LogAttrs(ctx, level, fmt.Sprintf("%s operation %s", operation, status), attrs...)
}

func (l *ServiceLogger) LogValidationError(ctx context.Context, operation string, validationErrors ValidationErrors) {
	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.Int("error_count", len(validationErrors)),
	}

	for i, err := range validationErrors {
		if i < 5 { // Limit to first 5 errors to avoid log spam
			attrs = append(attrs, slog.Group(fmt.Sprintf("error_%d", i+1),
				slog.String("field", err.Field),
				slog.String("message", err.Message),
				slog.Any("value", err.Value),
			))
		}
	}

	l.logger.LogAttrs(ctx, slog.LevelWarn, "Validation failed", attrs...)
}

// ===== INTEGRITY LOGGING =====

// LogIntegrityEvent records a security event received for a session. Limit violations log at error.
func (l *ServiceLogger) LogIntegrityEvent(ctx context.Context, session *models.InterviewSession, eventType models.SecurityEventType, violation bool) {
	level := slog.LevelInfo
	if violation {
		level = slog.LevelError
	}

	l.logger.LogAttrs(ctx, level, fmt.Sprintf("Integrity: %s", eventType),
		slog.String("session_id", session.ID),
		slog.String("student_id", session.StudentID),
		slog.String("event_type", string(eventType)),
		slog.Int("tab_switch_count", session.TabSwitchCount),
		slog.Int("warning_count", session.WarningCount),
		slog.Bool("violation", violation),
	)
}

// ===== HELPERS =====

// ContextualLogger times one operation and logs its outcome
type ContextualLogger struct {
	logger    *ServiceLogger
	operation string
	sessionID string
	startTime time.Time
	ctx       context.Context
}

func (l *ServiceLogger) WithOperation(ctx context.Context, operation string, sessionID string) *ContextualLogger {
	return &ContextualLogger{
		logger:    l,
		operation: operation,
		sessionID: sessionID,
		startTime: time.Now(),
		ctx:       ctx,
	}
}

func (cl *ContextualLogger) LogResult(err error) {
	cl.logger.LogOperation(cl.ctx, cl.operation, cl.sessionID, time.Since(cl.startTime), err)

	var validationErrors ValidationErrors
	if err != nil && errors.As(err, &validationErrors) {
		cl.logger.LogValidationError(cl.ctx, cl.operation, validationErrors)
	}
}
