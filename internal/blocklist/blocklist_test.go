// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package blocklist

import (
	"net/netip"
	"testing"
	"time"
)

func TestBlocklist_StaticUsers(t *testing.T) {
	b, err := New([]string{"mallory", "eve"}, nil, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if !b.IsUserBlocked("mallory") {
		t.Error("IsUserBlocked(mallory) = false, want true")
	}
	if b.IsUserBlocked("alice") {
		t.Error("IsUserBlocked(alice) = true, want false")
	}
}

func TestBlocklist_StaticIPs(t *testing.T) {
	b, err := New(nil, []string{"10.0.0.0/8", "192.0.2.7"}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		addr string
		want bool
	}{
		{"10.1.2.3", true},
		{"192.0.2.7", true},
		{"192.0.2.8", false},
		{"172.16.0.1", false},
	}
	for _, tt := range tests {
		addr := netip.MustParseAddr(tt.addr)
		if got := b.IsIPBlocked(addr); got != tt.want {
			t.Errorf("IsIPBlocked(%s) = %v, want %v", tt.addr, got, tt.want)
		}
	}

	if b.IsIPBlocked(netip.Addr{}) {
		t.Error("IsIPBlocked(invalid) = true, want false")
	}
}

func TestBlocklist_InvalidConfig(t *testing.T) {
	if _, err := New(nil, []string{"not-an-ip"}, nil); err == nil {
		t.Error("New() with invalid IP: error = nil, want error")
	}
	if _, err := New(nil, []string{"10.0.0.0/99"}, nil); err == nil {
		t.Error("New() with invalid CIDR: error = nil, want error")
	}
}

func TestLockout_LocksAfterBudgetExhausted(t *testing.T) {
	l := NewLockout(3, time.Hour)

	if l.IsLocked("user:bob") {
		t.Fatal("fresh subject already locked")
	}

	for i := 0; i < 3; i++ {
		l.RecordFailure("user:bob")
	}

	if !l.IsLocked("user:bob") {
		t.Error("subject not locked after exhausting failure budget")
	}
	if l.IsLocked("user:alice") {
		t.Error("unrelated subject locked")
	}
}

func TestLockout_FeedsBlocklist(t *testing.T) {
	lockout := NewLockout(2, time.Hour)
	b, err := New(nil, nil, lockout)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	addr := netip.MustParseAddr("203.0.113.9")

	if b.IsIPBlocked(addr) {
		t.Fatal("address blocked before any failure")
	}

	b.OnAuthFailure(addr)
	b.OnAuthFailure(addr)

	if !b.IsIPBlocked(addr) {
		t.Error("address not blocked after exhausting failure budget")
	}
}

func TestLockout_ResetAndCleanup(t *testing.T) {
	l := NewLockout(1, time.Hour)

	l.RecordFailure("user:bob")
	if !l.IsLocked("user:bob") {
		t.Fatal("subject not locked")
	}

	l.Reset()
	if l.IsLocked("user:bob") {
		t.Error("subject still locked after Reset")
	}

	l.RecordFailure("user:bob")
	if removed := l.CleanupStale(0); removed != 1 {
		t.Errorf("CleanupStale(0) = %d, want 1", removed)
	}
}
