// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/authweaver/authweaver/internal/audit"
	"github.com/authweaver/authweaver/internal/authc"
	"github.com/authweaver/authweaver/internal/authz"
	"github.com/authweaver/authweaver/internal/config"
)

func adminUser() *authc.User {
	return &authc.User{Name: "root", BackendRoles: []string{"admin"}, AuthDomain: "basic/internal"}
}

// adminEnforcer grants the embedded admin role everything and plain
// users nothing administrative.
func adminEnforcer(t *testing.T) *authz.Enforcer {
	t.Helper()
	enforcer, err := authz.NewEnforcer(nil)
	if err != nil {
		t.Fatalf("NewEnforcer() error = %v", err)
	}
	return enforcer
}

func newTestServer(t *testing.T, enforcer *authz.Enforcer, auditStore audit.Store) (http.Handler, *AuthenticatingRestFilter) {
	t.Helper()

	filter := newTestFilter(t)
	filter.Swap(seededProcessor(t, false))

	var auditLog *audit.Logger
	if auditStore != nil {
		auditLog = audit.NewLogger(auditStore, nil, nil)
		t.Cleanup(func() { auditLog.Close() })
	}

	handler := NewHandler(filter, enforcer, auditLog, auditStore)
	cfg := &config.ServerConfig{
		CORSOrigins:       []string{"*"},
		RateLimitDisabled: true,
	}
	return NewRouter(cfg, filter, handler), filter
}

func TestRouter_HealthzIsUnauthenticated(t *testing.T) {
	router, _ := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRouter_MetricsIsUnauthenticated(t *testing.T) {
	router, _ := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestAuthInfo_EchoesIdentity(t *testing.T) {
	router, _ := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/authinfo", nil)
	req.SetBasicAuth("alice", "hunter2")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Name  string   `json:"name"`
			Roles []string `json:"backend_roles"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if !body.Success || body.Data.Name != "alice" {
		t.Fatalf("body = %+v, want alice", body)
	}
}

func TestAuthInfo_Unauthenticated401(t *testing.T) {
	router, _ := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/authinfo", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestInvalidateCaches_RequiresPrivilege(t *testing.T) {
	// alice carries only the ops role, which the embedded policy does not
	// map to the admin wildcards.
	router, _ := newTestServer(t, adminEnforcer(t), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/cache/invalidate", nil)
	req.SetBasicAuth("alice", "hunter2")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestInvalidateCaches_AdminRoleFlushesAndAudits(t *testing.T) {
	store := audit.NewMemoryStore(16)

	// Hit the handler directly with an admin-role identity bound to the
	// context instead of seeding a second user through the pipeline.
	filter := newTestFilter(t)
	filter.Swap(seededProcessor(t, false))
	auditLog := audit.NewLogger(store, nil, nil)
	t.Cleanup(func() { auditLog.Close() })
	handler := NewHandler(filter, adminEnforcer(t), auditLog, store)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/cache/invalidate", nil)
	req = req.WithContext(ContextWithUser(req.Context(), adminUser()))
	rec := httptest.NewRecorder()
	handler.InvalidateCaches(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		events, err := store.Recent(context.Background(), 10)
		if err != nil {
			t.Fatalf("Recent() error = %v", err)
		}
		if len(events) > 0 {
			if events[0].Type != audit.EventTypeCacheInvalidated {
				t.Fatalf("event type = %q, want %q", events[0].Type, audit.EventTypeCacheInvalidated)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no audit event recorded")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRecentAuditEvents_AdminReads(t *testing.T) {
	store := audit.NewMemoryStore(16)
	if err := store.Save(context.Background(), &audit.Event{ID: "e1", Type: audit.EventTypeAuthSuccess}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	filter := newTestFilter(t)
	handler := NewHandler(filter, adminEnforcer(t), nil, store)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/audit/recent?limit=5", nil)
	req = req.WithContext(ContextWithUser(req.Context(), adminUser()))
	rec := httptest.NewRecorder()
	handler.RecentAuditEvents(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body struct {
		Data []audit.Event `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if len(body.Data) != 1 || body.Data[0].ID != "e1" {
		t.Fatalf("events = %+v, want single e1", body.Data)
	}
}

func TestRecentAuditEvents_BadLimit(t *testing.T) {
	filter := newTestFilter(t)
	handler := NewHandler(filter, adminEnforcer(t), nil, audit.NewMemoryStore(4))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/audit/recent?limit=zero", nil)
	req = req.WithContext(ContextWithUser(req.Context(), adminUser()))
	rec := httptest.NewRecorder()
	handler.RecentAuditEvents(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
