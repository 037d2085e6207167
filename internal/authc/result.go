// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package authc

import (
	"net/http"
	"sync"

	"github.com/goccy/go-json"
)

// ResultStatus tags an AuthcResult.
type ResultStatus int

const (
	// StatusPass means continue processing the request with the bound user.
	StatusPass ResultStatus = iota

	// StatusStop means terminate the request with the carried HTTP status.
	StatusStop
)

// AuthcResult is the terminal verdict of one authentication walk: either
// PASS with an authenticated user, or STOP with an HTTP status, a short
// message, and optional protocol headers. Consumed exactly once by the
// boundary adapter.
type AuthcResult struct {
	Status      ResultStatus
	User        *User
	RedirectURI string

	HTTPStatus int
	Message    string
	Headers    http.Header

	// Debug is non-nil only when the pipeline runs in debug mode.
	Debug *DebugTrace
}

// Pass builds a success result.
func Pass(user *User) *AuthcResult {
	return &AuthcResult{Status: StatusPass, User: user}
}

// Stop builds a terminal failure result.
func Stop(httpStatus int, message string) *AuthcResult {
	return &AuthcResult{
		Status:     StatusStop,
		HTTPStatus: httpStatus,
		Message:    message,
		Headers:    make(http.Header),
	}
}

// WithHeader adds a response header to a stop result.
func (r *AuthcResult) WithHeader(name, value string) *AuthcResult {
	if r.Headers == nil {
		r.Headers = make(http.Header)
	}
	r.Headers.Add(name, value)
	return r
}

// WithDebug attaches the debug trace. The processor only does this in
// debug mode; in normal operation the trace stays internal so clients
// cannot enumerate domains.
func (r *AuthcResult) WithDebug(trace *DebugTrace) *AuthcResult {
	if trace != nil && trace.enabled {
		r.Debug = trace
	}
	return r
}

// DebugEntry is one per-attempt diagnostic record.
type DebugEntry struct {
	Method  string                 `json:"method"`
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// DebugTrace accumulates per-domain diagnostics across one walk. Safe for
// concurrent appends. When disabled, Add is a no-op so the hot path pays
// nothing in production.
type DebugTrace struct {
	mu      sync.Mutex
	enabled bool
	entries []DebugEntry
}

// NewDebugTrace creates a trace; entries are only recorded when enabled.
func NewDebugTrace(enabled bool) *DebugTrace {
	return &DebugTrace{enabled: enabled}
}

// Add records one diagnostic entry.
func (t *DebugTrace) Add(method string, success bool, message string, details map[string]interface{}) {
	if t == nil || !t.enabled {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, DebugEntry{
		Method:  method,
		Success: success,
		Message: message,
		Details: details,
	})
}

// Enabled reports whether the trace records entries.
func (t *DebugTrace) Enabled() bool {
	return t != nil && t.enabled
}

// Entries returns a copy of the recorded entries.
func (t *DebugTrace) Entries() []DebugEntry {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]DebugEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// MarshalJSON renders the entry list.
func (t *DebugTrace) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Entries())
}
