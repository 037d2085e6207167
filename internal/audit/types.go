// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

// Package audit records security-relevant authentication events.
//
// Events are fire-and-forget: producers never block on the audit path and
// audit failures never abort the authentication pipeline. A buffered
// asynchronous writer drains events to a store and, when configured, onto a
// watermill message bus for external consumers.
package audit

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

// EventType categorizes audit events.
type EventType string

const (
	// Authentication events
	EventTypeAuthSuccess EventType = "auth.success"
	EventTypeAuthFailure EventType = "auth.failure"
	EventTypeAuthBlocked EventType = "auth.blocked"
	EventTypeAuthLockout EventType = "auth.lockout"

	// Impersonation events
	EventTypeImpersonationSuccess EventType = "impersonation.success"
	EventTypeImpersonationDenied  EventType = "impersonation.denied"

	// Administrative events
	EventTypeCacheInvalidated EventType = "admin.cache_invalidated"
	EventTypeConfigReloaded   EventType = "config.reloaded"
)

// Severity indicates the severity level of an audit event.
type Severity string

const (
	SeverityDebug    Severity = "debug"
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Outcome indicates whether an action succeeded or failed.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Event is a single security audit record.
type Event struct {
	// ID is a unique identifier for this event.
	ID string `json:"id"`

	// Timestamp when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type categorizes the event.
	Type EventType `json:"type"`

	// Severity of the event.
	Severity Severity `json:"severity"`

	// Outcome indicates success or failure.
	Outcome Outcome `json:"outcome"`

	// Actor who performed (or attempted) the action.
	Actor Actor `json:"actor"`

	// Source of the request.
	Source Source `json:"source"`

	// Action describes what was done, e.g. "authc.login".
	Action string `json:"action"`

	// Description provides human-readable details.
	Description string `json:"description"`

	// Metadata contains event-specific details.
	Metadata json.RawMessage `json:"metadata,omitempty"`

	// CorrelationID links the event to the originating request.
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Actor represents who performed an action.
type Actor struct {
	// Name is the (possibly unmapped) user name, empty when unknown.
	Name string `json:"name,omitempty"`

	// Roles assigned to the actor, when authenticated.
	Roles []string `json:"roles,omitempty"`

	// AuthDomain is the id of the authentication domain involved.
	AuthDomain string `json:"auth_domain,omitempty"`
}

// Source represents where a request originated.
type Source struct {
	// IPAddress is the originating client IP.
	IPAddress string `json:"ip_address"`

	// DirectIPAddress is the immediate peer IP (the proxy, if any).
	DirectIPAddress string `json:"direct_ip_address,omitempty"`

	// UserAgent of the client.
	UserAgent string `json:"user_agent,omitempty"`
}

// Store defines the interface for audit event persistence.
type Store interface {
	// Save persists an audit event.
	Save(ctx context.Context, event *Event) error

	// Recent returns up to n most recent events, newest first.
	Recent(ctx context.Context, n int) ([]Event, error)

	// Count returns the number of stored events.
	Count(ctx context.Context) (int64, error)
}
