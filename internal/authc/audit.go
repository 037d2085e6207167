// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package authc

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/authweaver/authweaver/internal/audit"
	"github.com/authweaver/authweaver/internal/logging"
)

// auditEmitter forwards pipeline events to the audit logger. All methods
// are best-effort and nil-safe: a missing or failing audit path never
// aborts authentication.
type auditEmitter struct {
	logger *audit.Logger
}

func (e *auditEmitter) emit(ctx context.Context, event *audit.Event) {
	if e == nil || e.logger == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now().UTC()
	event.CorrelationID = logging.CorrelationIDFromContext(ctx)
	e.logger.Log(event)
}

func (e *auditEmitter) loginSucceeded(ctx context.Context, meta *RequestMetaData, user *User) {
	e.emit(ctx, &audit.Event{
		Type:        audit.EventTypeAuthSuccess,
		Severity:    audit.SeverityInfo,
		Outcome:     audit.OutcomeSuccess,
		Actor:       audit.Actor{Name: user.Name, Roles: user.BackendRoles, AuthDomain: user.AuthDomain},
		Source:      sourceFromMeta(meta),
		Action:      "authc.login",
		Description: "authentication succeeded",
	})
}

func (e *auditEmitter) loginFailed(ctx context.Context, meta *RequestMetaData) {
	e.emit(ctx, &audit.Event{
		Type:        audit.EventTypeAuthFailure,
		Severity:    audit.SeverityWarning,
		Outcome:     audit.OutcomeFailure,
		Source:      sourceFromMeta(meta),
		Action:      "authc.login",
		Description: "no authentication domain produced a result",
	})
}

func (e *auditEmitter) loginBlocked(ctx context.Context, meta *RequestMetaData, userName, domainID string) {
	e.emit(ctx, &audit.Event{
		Type:        audit.EventTypeAuthBlocked,
		Severity:    audit.SeverityWarning,
		Outcome:     audit.OutcomeFailure,
		Actor:       audit.Actor{Name: userName, AuthDomain: domainID},
		Source:      sourceFromMeta(meta),
		Action:      "authc.login",
		Description: "blocked identity attempted to authenticate",
	})
}

func (e *auditEmitter) impersonation(ctx context.Context, meta *RequestMetaData, original *User, target string, allowed bool, description string) {
	eventType := audit.EventTypeImpersonationSuccess
	outcome := audit.OutcomeSuccess
	severity := audit.SeverityInfo
	if !allowed {
		eventType = audit.EventTypeImpersonationDenied
		outcome = audit.OutcomeFailure
		severity = audit.SeverityWarning
	}
	e.emit(ctx, &audit.Event{
		Type:        eventType,
		Severity:    severity,
		Outcome:     outcome,
		Actor:       audit.Actor{Name: original.Name, Roles: original.BackendRoles, AuthDomain: original.AuthDomain},
		Source:      sourceFromMeta(meta),
		Action:      "authc.impersonate:" + target,
		Description: description,
	})
}

func sourceFromMeta(meta *RequestMetaData) audit.Source {
	source := audit.Source{}
	if meta == nil {
		return source
	}
	if meta.OriginatingIP().IsValid() {
		source.IPAddress = meta.OriginatingIP().String()
	}
	if meta.DirectIP().IsValid() && meta.DirectIP() != meta.OriginatingIP() {
		source.DirectIPAddress = meta.DirectIP().String()
	}
	if meta.Request() != nil {
		source.UserAgent = meta.Request().UserAgent()
	}
	return source
}
