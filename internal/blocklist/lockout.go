// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package blocklist

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/authweaver/authweaver/internal/logging"
)

// Lockout tracks failed authentication attempts per subject with a token
// bucket: each subject gets a budget of MaxFailures per Window. A subject
// with an exhausted budget is considered locked until tokens refill.
type Lockout struct {
	mu       sync.Mutex
	subjects map[string]*lockoutEntry

	maxFailures int
	window      time.Duration
}

type lockoutEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLockout creates a lockout tracker allowing maxFailures failed
// attempts per window for each subject.
func NewLockout(maxFailures int, window time.Duration) *Lockout {
	if maxFailures <= 0 {
		maxFailures = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Lockout{
		subjects:    make(map[string]*lockoutEntry),
		maxFailures: maxFailures,
		window:      window,
	}
}

// RecordFailure consumes one token from the subject's failure budget.
func (l *Lockout) RecordFailure(subject string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.subjects[subject]
	if !ok {
		e = &lockoutEntry{
			limiter: rate.NewLimiter(rate.Every(l.window/time.Duration(l.maxFailures)), l.maxFailures),
		}
		l.subjects[subject] = e
	}
	e.lastSeen = time.Now()

	if !e.limiter.Allow() {
		logging.Warn().Str("subject", subject).Msg("failure budget exhausted, subject locked")
	}
}

// IsLocked reports whether the subject's failure budget is exhausted.
func (l *Lockout) IsLocked(subject string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.subjects[subject]
	if !ok {
		return false
	}
	return e.limiter.Tokens() < 1
}

// Reset clears all tracked subjects. Used by admin cache invalidation.
func (l *Lockout) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subjects = make(map[string]*lockoutEntry)
}

// CleanupStale drops subjects idle longer than maxIdle and returns how
// many were removed.
func (l *Lockout) CleanupStale(maxIdle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	removed := 0
	for subject, e := range l.subjects {
		if e.lastSeen.Before(cutoff) {
			delete(l.subjects, subject)
			removed++
		}
	}
	return removed
}
