// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package authc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// impersonationRequest carries the impersonation header.
func impersonationRequest(t *testing.T, target string) *RequestMetaData {
	t.Helper()
	r := httptest.NewRequest("GET", "/api/data", nil)
	r.RemoteAddr = "10.0.0.5:4000"
	r.Header.Set("Authorization", basicAuthHeader("alice", "pw"))
	r.Header.Set("x-impersonate-as", target)
	return NewRequestMetaData(r, nil)
}

// aliceDomain authenticates alice and resolves bob on lookup.
func aliceDomain(calls *[]string) *mockDomain {
	return &mockDomain{id: "primary", calls: calls,
		extract:      extractBasic("alice", "pw"),
		authenticate: authenticateAs("alice", "ops"),
		impersonate: func(_ context.Context, _ *User, creds *AuthCredentials) (*User, error) {
			if creds.UserName != "bob" {
				return nil, ErrNoSuchUser
			}
			return &User{Name: "bob", BackendRoles: []string{"reader"}}, nil
		},
	}
}

func TestImpersonation_WalkResolvesTarget(t *testing.T) {
	var calls []string
	p := newTestProcessor(t, []AuthenticationDomain{aliceDomain(&calls)}, nil)

	result := p.Authenticate(context.Background(), impersonationRequest(t, "bob"))

	if result.Status != StatusPass {
		t.Fatalf("Status = %v (message %q), want pass", result.Status, result.Message)
	}
	if result.User.Name != "bob" {
		t.Errorf("User = %q, want the impersonation target bob", result.User.Name)
	}
}

func TestImpersonation_AdminTarget403(t *testing.T) {
	var calls []string
	p := newTestProcessor(t, []AuthenticationDomain{aliceDomain(&calls)}, func(p *Processor) {
		// Permit the target by name so only the admin rule can deny.
		p.impersonation.allowed["alice"], _ = compilePatterns([]string{"*"})
	})

	result := p.Authenticate(context.Background(), impersonationRequest(t, "admin-root"))

	if result.Status != StatusStop || result.HTTPStatus != http.StatusForbidden {
		t.Fatalf("result = %v/%d, want stop/403 for admin target", result.Status, result.HTTPStatus)
	}
	for _, call := range calls {
		if strings.HasSuffix(call, ":impersonate") {
			t.Error("no domain may be consulted for an admin impersonation target")
		}
	}
}

func TestImpersonation_NotPermitted403(t *testing.T) {
	var calls []string
	p := newTestProcessor(t, []AuthenticationDomain{aliceDomain(&calls)}, nil)

	// alice may impersonate bob and svc-*, not carol.
	result := p.Authenticate(context.Background(), impersonationRequest(t, "carol"))

	if result.Status != StatusStop || result.HTTPStatus != http.StatusForbidden {
		t.Fatalf("result = %v/%d, want stop/403", result.Status, result.HTTPStatus)
	}
	if !strings.Contains(result.Message, "not allowed to impersonate") {
		t.Errorf("Message = %q, want impersonation denial", result.Message)
	}
}

func TestImpersonation_WildcardTargetsPermitted(t *testing.T) {
	var calls []string
	domain := aliceDomain(&calls)
	domain.impersonate = func(_ context.Context, _ *User, creds *AuthCredentials) (*User, error) {
		return &User{Name: creds.UserName}, nil
	}
	p := newTestProcessor(t, []AuthenticationDomain{domain}, nil)

	result := p.Authenticate(context.Background(), impersonationRequest(t, "svc-backup"))

	if result.Status != StatusPass || result.User.Name != "svc-backup" {
		t.Fatalf("result = %v/%q, want pass as svc-backup", result.Status, result.User)
	}
}

func TestImpersonation_CacheHitStampsOriginalTenant(t *testing.T) {
	var calls []string
	domain := aliceDomain(&calls)

	p := newTestProcessor(t, []AuthenticationDomain{domain}, nil)
	p.caches.putImpersonated("bob", &User{Name: "bob", BackendRoles: []string{"reader"}})

	r := httptest.NewRequest("GET", "/api/data", nil)
	r.RemoteAddr = "10.0.0.5:4000"
	r.Header.Set("Authorization", basicAuthHeader("alice", "pw"))
	r.Header.Set("x-impersonate-as", "bob")
	r.Header.Set("x-tenant", "finance")

	result := p.Authenticate(context.Background(), NewRequestMetaData(r, nil))

	if result.Status != StatusPass || result.User.Name != "bob" {
		t.Fatalf("result = %v/%v, want pass as bob", result.Status, result.User)
	}
	if result.User.RequestedTenant != "finance" {
		t.Errorf("RequestedTenant = %q, want alice's requested tenant copied onto bob", result.User.RequestedTenant)
	}
	for _, call := range calls {
		if strings.HasSuffix(call, ":impersonate") {
			t.Error("cache hit must not trigger a backend call")
		}
	}
}

func TestImpersonation_ExhaustionIsNoSuchUser403(t *testing.T) {
	var calls []string
	domain := aliceDomain(&calls)
	domain.impersonate = nil // backend cannot resolve anyone

	p := newTestProcessor(t, []AuthenticationDomain{domain}, nil)
	result := p.Authenticate(context.Background(), impersonationRequest(t, "bob"))

	if result.Status != StatusStop || result.HTTPStatus != http.StatusForbidden {
		t.Fatalf("result = %v/%d, want stop/403", result.Status, result.HTTPStatus)
	}
	if !strings.Contains(result.Message, "No such user") {
		t.Errorf("Message = %q, want no-such-user reason", result.Message)
	}
}

func TestImpersonation_SelfTargetIsPlainPass(t *testing.T) {
	var calls []string
	p := newTestProcessor(t, []AuthenticationDomain{aliceDomain(&calls)}, nil)

	result := p.Authenticate(context.Background(), impersonationRequest(t, "alice"))

	if result.Status != StatusPass || result.User.Name != "alice" {
		t.Fatalf("result = %v/%v, want plain pass as alice", result.Status, result.User)
	}
}

func TestImpersonation_SuccessPopulatesCache(t *testing.T) {
	var calls []string
	domain := aliceDomain(&calls)
	domain.cacheUser = true

	p := newTestProcessor(t, []AuthenticationDomain{domain}, nil)

	p.Authenticate(context.Background(), impersonationRequest(t, "bob"))
	calls = calls[:0]
	result := p.Authenticate(context.Background(), impersonationRequest(t, "bob"))

	if result.Status != StatusPass || result.User.Name != "bob" {
		t.Fatalf("result = %v/%v, want pass as bob", result.Status, result.User)
	}
	for _, call := range calls {
		if strings.HasSuffix(call, ":impersonate") {
			t.Error("second impersonation should come from the cache")
		}
	}
}
