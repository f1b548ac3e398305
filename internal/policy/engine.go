// Package policy decides how a security event changes a session's integrity counters.
// Everything here is pure: no clock, no storage, no side effects.
package policy

import (
	"errors"
	"fmt"

	"github.com/SAP-F-2025/interview-session-service/internal/models"
)

var (
	ErrUnknownEventType      = errors.New("unknown security event type")
	ErrExtensionNotPermitted = errors.New("time extension not permitted")
)

// Counter identifies which integrity counter an event increments.
type Counter string

const (
	CounterNone      Counter = ""
	CounterTabSwitch Counter = "tab_switch"
	CounterWarning   Counter = "warning"
)

// Counters are the persisted integrity counters of a session.
type Counters struct {
	TabSwitches int
	Warnings    int
}

// Decision is the outcome of evaluating one event against the current counters.
type Decision struct {
	Accept bool
	// Counters after the event. When ViolatesLimit is set the exceeded counter is frozen at its limit.
	Counters      Counters
	Counted       Counter
	ViolatesLimit bool
}

// InvalidationReason names the limit that was exceeded; empty when no limit was.
func (d Decision) InvalidationReason() string {
	if !d.ViolatesLimit {
		return ""
	}
	return string(d.Counted) + "_limit_exceeded"
}

// Classify returns the counter an event type increments under cfg.
func Classify(cfg models.SecurityConfig, eventType models.SecurityEventType) (Counter, error) {
	switch eventType {
	case models.EventTabSwitch:
		return CounterTabSwitch, nil
	case models.EventWarning:
		return CounterWarning, nil
	case models.EventScreenRecordingDetected:
		// Counted regardless of the detection flag
		return CounterWarning, nil
	case models.EventCopyPasteAttempt:
		if cfg.CopyPasteDisabled {
			return CounterWarning, nil
		}
		return CounterNone, nil
	}
	return CounterNone, fmt.Errorf("%w: %q", ErrUnknownEventType, eventType)
}

// Evaluate applies one event to current. An event that pushes a counter past its limit
// is still accepted; the caller invalidates the session.
func Evaluate(current Counters, cfg models.SecurityConfig, eventType models.SecurityEventType) (Decision, error) {
	counter, err := Classify(cfg, eventType)
	if err != nil {
		return Decision{}, err
	}

	next := current
	violates := false

	switch counter {
	case CounterTabSwitch:
		next.TabSwitches++
		if next.TabSwitches > cfg.TabSwitchLimit {
			next.TabSwitches = cfg.TabSwitchLimit
			violates = true
		}
	case CounterWarning:
		next.Warnings++
		if next.Warnings > cfg.WarningLimit {
			next.Warnings = cfg.WarningLimit
			violates = true
		}
	}

	return Decision{
		Accept:        true,
		Counters:      next,
		Counted:       counter,
		ViolatesLimit: violates,
	}, nil
}

// EvaluateExtension reports whether cfg permits moving ends_at.
func EvaluateExtension(cfg models.SecurityConfig) error {
	if !cfg.TimeExtensionAllowed {
		return ErrExtensionNotPermitted
	}
	return nil
}
