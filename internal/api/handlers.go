// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/authweaver/authweaver/internal/audit"
	"github.com/authweaver/authweaver/internal/authc"
	"github.com/authweaver/authweaver/internal/authz"
	"github.com/authweaver/authweaver/internal/logging"
)

const (
	privCacheInvalidate = "cluster:admin/cache/invalidate"
	privAuditRead       = "cluster:admin/audit/read"
)

// Handler serves the authenticated API surface: identity echo and the
// administrative endpoints behind privilege gates.
type Handler struct {
	filter     *AuthenticatingRestFilter
	enforcer   *authz.Enforcer
	auditLog   *audit.Logger
	auditStore audit.Store
}

// NewHandler builds the API handler. enforcer, auditLog and auditStore
// may each be nil; the corresponding endpoints then refuse service.
func NewHandler(filter *AuthenticatingRestFilter, enforcer *authz.Enforcer, auditLog *audit.Logger, auditStore audit.Store) *Handler {
	return &Handler{filter: filter, enforcer: enforcer, auditLog: auditLog, auditStore: auditStore}
}

// AuthInfo echoes the authenticated identity bound to the request.
func (h *Handler) AuthInfo(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return
	}
	writeData(w, http.StatusOK, user)
}

// InvalidateCaches flushes the identity, impersonation and privilege
// decision caches. Users whose backend entries changed are re-resolved
// on their next request.
func (h *Handler) InvalidateCaches(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requirePrivilege(w, r, privCacheInvalidate)
	if !ok {
		return
	}

	processor := h.filter.Processor()
	if processor != nil {
		processor.InvalidateCaches()
	}
	if h.enforcer != nil {
		h.enforcer.InvalidateCache()
	}

	logging.Ctx(r.Context()).Info().Str("user", user.Name).Msg("caches invalidated")
	h.auditAdmin(r, user, audit.EventTypeCacheInvalidated, "authentication and privilege caches flushed")
	writeData(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// RecentAuditEvents returns the newest audit events, newest first. The
// optional ?limit query caps the count (default 50, max 500).
func (h *Handler) RecentAuditEvents(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requirePrivilege(w, r, privAuditRead)
	if !ok {
		return
	}
	if h.auditStore == nil {
		writeError(w, http.StatusServiceUnavailable, "audit_disabled", "Audit log is not enabled")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > 500 {
		limit = 500
	}

	events, err := h.auditStore.Recent(r.Context(), limit)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("user", user.Name).Msg("failed to read audit events")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to read audit events")
		return
	}
	writeData(w, http.StatusOK, events)
}

// Healthz reports liveness and whether the pipeline is configured.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":     "ok",
		"configured": h.filter.Processor() != nil,
	}
	writeData(w, http.StatusOK, status)
}

func (h *Handler) requirePrivilege(w http.ResponseWriter, r *http.Request, privilege string) (*authc.User, bool) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return nil, false
	}
	if h.enforcer == nil {
		writeError(w, http.StatusForbidden, "forbidden", "Forbidden")
		return nil, false
	}
	allowed, err := h.enforcer.HasPrivileges(r.Context(), user.BackendRoles, []string{privilege})
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("user", user.Name).Str("privilege", privilege).Msg("privilege check failed")
		writeError(w, http.StatusForbidden, "forbidden", "Forbidden")
		return nil, false
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "forbidden", "Forbidden")
		return nil, false
	}
	return user, true
}

func (h *Handler) auditAdmin(r *http.Request, user *authc.User, eventType audit.EventType, description string) {
	if h.auditLog == nil {
		return
	}
	h.auditLog.Log(&audit.Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		Severity:  audit.SeverityInfo,
		Outcome:   audit.OutcomeSuccess,
		Actor: audit.Actor{
			Name:       user.Name,
			Roles:      user.BackendRoles,
			AuthDomain: user.AuthDomain,
		},
		Source: audit.Source{
			IPAddress: r.RemoteAddr,
			UserAgent: r.UserAgent(),
		},
		Action:        string(eventType),
		Description:   description,
		CorrelationID: logging.CorrelationIDFromContext(r.Context()),
	})
}
