// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

// Package blocklist answers "is this user or IP currently blocked" for the
// authentication pipeline. Blocks come from two sources: static
// configuration (exact user names, IP addresses, CIDR blocks) and the
// dynamic failed-login lockout.
package blocklist

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// Blocklist holds the static block rules plus the dynamic lockout.
type Blocklist struct {
	users   map[string]bool
	ipNets  []*net.IPNet
	lockout *Lockout
}

// New builds a blocklist from static user names and IP/CIDR strings.
// A nil lockout disables dynamic blocking.
func New(users, ips []string, lockout *Lockout) (*Blocklist, error) {
	b := &Blocklist{
		users:   make(map[string]bool, len(users)),
		lockout: lockout,
	}
	for _, u := range users {
		b.users[u] = true
	}

	for _, raw := range ips {
		ipNet, err := parseBlock(raw)
		if err != nil {
			return nil, err
		}
		b.ipNets = append(b.ipNets, ipNet)
	}
	return b, nil
}

// IsUserBlocked reports whether the user name is statically blocked or
// currently locked out.
func (b *Blocklist) IsUserBlocked(name string) bool {
	if b.users[name] {
		return true
	}
	if b.lockout != nil && b.lockout.IsLocked("user:"+name) {
		return true
	}
	return false
}

// IsIPBlocked reports whether the address is statically blocked or
// currently locked out.
func (b *Blocklist) IsIPBlocked(addr netip.Addr) bool {
	if !addr.IsValid() {
		return false
	}
	ip := net.IP(addr.AsSlice())
	for _, n := range b.ipNets {
		if n.Contains(ip) {
			return true
		}
	}
	if b.lockout != nil && b.lockout.IsLocked("ip:"+addr.String()) {
		return true
	}
	return false
}

// OnAuthFailure records a failed authentication attempt from the given
// address. Implements the pipeline's IP failure listener hook.
func (b *Blocklist) OnAuthFailure(addr netip.Addr) {
	if b.lockout == nil || !addr.IsValid() {
		return
	}
	b.lockout.RecordFailure("ip:" + addr.String())
}

// parseBlock accepts "10.0.0.0/8" or a bare address like "192.0.2.7".
func parseBlock(raw string) (*net.IPNet, error) {
	if strings.Contains(raw, "/") {
		_, ipNet, err := net.ParseCIDR(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q: %w", raw, err)
		}
		return ipNet, nil
	}

	ip := net.ParseIP(raw)
	if ip == nil {
		return nil, fmt.Errorf("invalid IP %q", raw)
	}
	bits := 32
	if ip.To4() == nil {
		bits = 128
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, nil
}
