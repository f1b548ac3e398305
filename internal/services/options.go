package services

import (
	"time"

	"github.com/SAP-F-2025/interview-session-service/internal/models"
)

// Options tunes the services. Zero values fall back to the defaults below.
type Options struct {
	DefaultSecurityConfig *models.SecurityConfig
	// RecentWindow is the number of latest sessions averaged into recent_average
	RecentWindow int
	// CASMaxRetries bounds re-reads after a version conflict
	CASMaxRetries int
	// LockTimeout bounds the wait for a session lock
	LockTimeout     time.Duration
	ResultsCacheTTL time.Duration
	Now             func() time.Time
}

const (
	defaultRecentWindow    = 3
	defaultCASMaxRetries   = 5
	defaultLockTimeout     = 5 * time.Second
	defaultResultsCacheTTL = 24 * time.Hour
)

func (o Options) defaultSecurityConfig() models.SecurityConfig {
	if o.DefaultSecurityConfig != nil {
		return *o.DefaultSecurityConfig
	}
	return models.DefaultSecurityConfig()
}

func (o Options) clock() func() time.Time {
	if o.Now != nil {
		return func() time.Time { return o.Now().UTC() }
	}
	return func() time.Time { return time.Now().UTC() }
}

func (o Options) recentWindow() int {
	if o.RecentWindow > 0 {
		return o.RecentWindow
	}
	return defaultRecentWindow
}

func (o Options) casMaxRetries() int {
	if o.CASMaxRetries > 0 {
		return o.CASMaxRetries
	}
	return defaultCASMaxRetries
}

func (o Options) lockTimeout() time.Duration {
	if o.LockTimeout > 0 {
		return o.LockTimeout
	}
	return defaultLockTimeout
}

func (o Options) resultsCacheTTL() time.Duration {
	if o.ResultsCacheTTL > 0 {
		return o.ResultsCacheTTL
	}
	return defaultResultsCacheTTL
}
