// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/crypto/bcrypt"

	"github.com/authweaver/authweaver/internal/authc"
	"github.com/authweaver/authweaver/internal/config"
	"github.com/authweaver/authweaver/internal/userstore"
)

type blockEverything struct{}

func (blockEverything) IsUserBlocked(string) bool   { return true }
func (blockEverything) IsIPBlocked(netip.Addr) bool { return true }

func seededProcessor(t *testing.T, debug bool) *authc.Processor {
	t.Helper()

	store := userstore.NewMemoryStore()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt.GenerateFromPassword() error = %v", err)
	}
	err = userstore.Seed(context.Background(), store, []userstore.Record{
		{Name: "alice", PasswordHash: string(hash), Roles: []string{"ops"}},
	})
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	cfg := config.AuthcConfig{
		Debug: debug,
		Domains: []config.DomainConfig{
			{ID: "local", Frontend: "basic", Backend: "internal", Enabled: true, Challenge: true},
		},
		Cache: config.AuthCacheConfig{Enabled: true, Capacity: 64, TTL: time.Minute},
	}
	p, err := authc.NewProcessor(cfg, authc.Dependencies{Store: store})
	if err != nil {
		t.Fatalf("NewProcessor() error = %v", err)
	}
	return p
}

func newTestFilter(t *testing.T) *AuthenticatingRestFilter {
	t.Helper()
	filter, err := NewAuthenticatingRestFilter(nil, nil)
	if err != nil {
		t.Fatalf("NewAuthenticatingRestFilter() error = %v", err)
	}
	return filter
}

func echoHandler(t *testing.T, sawUser **authc.User) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*sawUser = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestFilter_UnconfiguredIs503(t *testing.T) {
	filter := newTestFilter(t)

	var sawUser *authc.User
	handler := filter.Middleware(echoHandler(t, &sawUser))

	req := httptest.NewRequest(http.MethodGet, "/api/authinfo", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if sawUser != nil {
		t.Error("inner handler must not run before the filter is configured")
	}
}

func TestFilter_PassBindsIdentity(t *testing.T) {
	filter := newTestFilter(t)
	filter.Swap(seededProcessor(t, false))

	var sawUser *authc.User
	handler := filter.Middleware(echoHandler(t, &sawUser))

	req := httptest.NewRequest(http.MethodGet, "/api/authinfo", nil)
	req.SetBasicAuth("alice", "hunter2")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if sawUser == nil || sawUser.Name != "alice" {
		t.Fatalf("context user = %+v, want alice", sawUser)
	}
}

func TestFilter_StopWritesStatusAndChallenge(t *testing.T) {
	filter := newTestFilter(t)
	filter.Swap(seededProcessor(t, false))

	var sawUser *authc.User
	handler := filter.Middleware(echoHandler(t, &sawUser))

	req := httptest.NewRequest(http.MethodGet, "/api/authinfo", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if sawUser != nil {
		t.Error("inner handler must not run on a stopped request")
	}
	if got := rec.Header().Get("WWW-Authenticate"); !strings.HasPrefix(got, "Basic") {
		t.Errorf("WWW-Authenticate = %q, want Basic challenge", got)
	}

	var body APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body.Success || body.Error == nil {
		t.Fatalf("body = %+v, want error response", body)
	}
}

func TestFilter_DebugTraceGating(t *testing.T) {
	for _, tc := range []struct {
		name      string
		debug     bool
		wantTrace bool
	}{
		{"debug off", false, false},
		{"debug on", true, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			filter := newTestFilter(t)
			filter.Swap(seededProcessor(t, tc.debug))

			handler := filter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

			req := httptest.NewRequest(http.MethodGet, "/api/authinfo", nil)
			req.SetBasicAuth("alice", "wrong")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
			var body APIResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("unmarshal body: %v", err)
			}
			gotTrace := body.Error != nil && body.Error.Details != nil
			if gotTrace != tc.wantTrace {
				t.Errorf("trace in response = %v, want %v", gotTrace, tc.wantTrace)
			}
		})
	}
}

func TestFilter_HotSwap(t *testing.T) {
	filter := newTestFilter(t)
	filter.Swap(seededProcessor(t, false))

	handler := filter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/authinfo", nil)
	req.SetBasicAuth("alice", "hunter2")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("before swap: status = %d, want %d", rec.Code, http.StatusOK)
	}

	// The replacement snapshot has no domains at all: alice must now be
	// refused without restarting anything.
	empty, err := authc.NewProcessor(config.AuthcConfig{}, authc.Dependencies{Store: userstore.NewMemoryStore()})
	if err != nil {
		t.Fatalf("NewProcessor() error = %v", err)
	}
	filter.Swap(empty)

	req = httptest.NewRequest(http.MethodGet, "/api/authinfo", nil)
	req.SetBasicAuth("alice", "hunter2")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("after swap: status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestFilter_BlockedIPRefusedBeforeWalk(t *testing.T) {
	filter := newTestFilter(t)
	filter.blocklist = blockEverything{}
	filter.Swap(seededProcessor(t, false))

	handler := filter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("inner handler must not run for a blocked address")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/authinfo", nil)
	req.SetBasicAuth("alice", "hunter2")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestNewAuthenticatingRestFilter_BadProxyCIDR(t *testing.T) {
	if _, err := NewAuthenticatingRestFilter([]string{"not-a-cidr"}, nil); err == nil {
		t.Fatal("expected error for malformed trusted proxy")
	}
}
