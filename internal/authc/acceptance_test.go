// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package authc

import (
	"net"
	"net/http/httptest"
	"testing"

	"github.com/authweaver/authweaver/internal/config"
)

func requestMeta(t *testing.T, remoteAddr string, trustedProxies ...string) *RequestMetaData {
	t.Helper()

	var nets []*net.IPNet
	for _, cidr := range trustedProxies {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			t.Fatalf("ParseCIDR(%q) error = %v", cidr, err)
		}
		nets = append(nets, n)
	}

	r := httptest.NewRequest("GET", "/api/data", nil)
	r.RemoteAddr = remoteAddr
	return NewRequestMetaData(r, nets)
}

func TestAcceptanceRules_RequestLevel(t *testing.T) {
	tests := []struct {
		name       string
		accept     config.CriteriaConfig
		skip       config.CriteriaConfig
		remoteAddr string
		want       bool
	}{
		{
			name:       "no criteria is permissive",
			remoteAddr: "192.168.1.50:4000",
			want:       true,
		},
		{
			name:       "ip in accept set",
			accept:     config.CriteriaConfig{IPs: []string{"10.0.0.0/8"}},
			remoteAddr: "10.0.0.5:4000",
			want:       true,
		},
		{
			name:       "ip not in accept set",
			accept:     config.CriteriaConfig{IPs: []string{"10.0.0.0/8"}},
			remoteAddr: "192.168.1.50:4000",
			want:       false,
		},
		{
			name:       "ip in skip set",
			skip:       config.CriteriaConfig{IPs: []string{"192.168.0.0/16"}},
			remoteAddr: "192.168.1.50:4000",
			want:       false,
		},
		{
			name:       "ip outside skip set",
			skip:       config.CriteriaConfig{IPs: []string{"192.168.0.0/16"}},
			remoteAddr: "10.0.0.5:4000",
			want:       true,
		},
		{
			name:       "bare address accepted as single-host block",
			accept:     config.CriteriaConfig{IPs: []string{"10.0.0.5"}},
			remoteAddr: "10.0.0.5:4000",
			want:       true,
		},
		{
			name:       "accept and skip combine with AND",
			accept:     config.CriteriaConfig{IPs: []string{"10.0.0.0/8"}},
			skip:       config.CriteriaConfig{IPs: []string{"10.0.0.5/32"}},
			remoteAddr: "10.0.0.5:4000",
			want:       false,
		},
		{
			name:       "trusted ips require a trusted-proxy request",
			accept:     config.CriteriaConfig{TrustedIPs: []string{"10.1.0.0/16"}},
			remoteAddr: "10.1.0.1:4000",
			want:       false, // no trusted proxy configured for the request
		},
		{
			name:       "client cert required but absent",
			accept:     config.CriteriaConfig{ClientCertDNs: []string{"CN=*"}},
			remoteAddr: "10.0.0.5:4000",
			want:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules, err := NewAcceptanceRules(tt.accept, tt.skip)
			if err != nil {
				t.Fatalf("NewAcceptanceRules() error = %v", err)
			}
			got, reason := rules.AcceptRequest(requestMeta(t, tt.remoteAddr))
			if got != tt.want {
				t.Errorf("AcceptRequest() = %v (reason %q), want %v", got, reason, tt.want)
			}
		})
	}
}

func TestAcceptanceRules_TrustedProxyRequest(t *testing.T) {
	rules, err := NewAcceptanceRules(config.CriteriaConfig{TrustedIPs: []string{"10.1.0.0/16"}}, config.CriteriaConfig{})
	if err != nil {
		t.Fatalf("NewAcceptanceRules() error = %v", err)
	}

	// Request arrives through a proxy inside the trusted set.
	meta := requestMeta(t, "10.1.0.1:4000", "10.1.0.0/16")
	if !meta.TrustedProxy() {
		t.Fatal("request should be trusted-proxy")
	}
	if ok, reason := rules.AcceptRequest(meta); !ok {
		t.Errorf("AcceptRequest() = false (%s), want true", reason)
	}

	// Same rules, proxy outside the trusted set.
	meta = requestMeta(t, "10.2.0.1:4000", "10.2.0.0/16")
	if ok, _ := rules.AcceptRequest(meta); ok {
		t.Error("AcceptRequest() = true for proxy outside trusted set")
	}
}

func TestAcceptanceRules_OriginatingIP(t *testing.T) {
	rules, err := NewAcceptanceRules(config.CriteriaConfig{OriginatingIPs: []string{"198.51.100.0/24"}}, config.CriteriaConfig{})
	if err != nil {
		t.Fatalf("NewAcceptanceRules() error = %v", err)
	}

	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.1.0.1:4000"
	r.Header.Set("X-Forwarded-For", "198.51.100.7")
	_, proxyNet, _ := net.ParseCIDR("10.1.0.0/16")
	meta := NewRequestMetaData(r, []*net.IPNet{proxyNet})

	if meta.OriginatingIP().String() != "198.51.100.7" {
		t.Fatalf("OriginatingIP() = %s, want 198.51.100.7", meta.OriginatingIP())
	}
	if ok, reason := rules.AcceptRequest(meta); !ok {
		t.Errorf("AcceptRequest() = false (%s), want true", reason)
	}
}

func TestAcceptanceRules_CredentialLevel(t *testing.T) {
	tests := []struct {
		name     string
		accept   []string
		skip     []string
		userName string
		want     bool
	}{
		{name: "no criteria", userName: "alice", want: true},
		{name: "wildcard accept match", accept: []string{"svc-*"}, userName: "svc-backup", want: true},
		{name: "wildcard accept miss", accept: []string{"svc-*"}, userName: "alice", want: false},
		{name: "skip match", skip: []string{"guest"}, userName: "guest", want: false},
		{name: "regex pattern", accept: []string{"/^[a-z]+$/"}, userName: "alice", want: true},
		{name: "regex pattern miss", accept: []string{"/^[a-z]+$/"}, userName: "Alice9", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules, err := NewAcceptanceRules(
				config.CriteriaConfig{Users: tt.accept},
				config.CriteriaConfig{Users: tt.skip},
			)
			if err != nil {
				t.Fatalf("NewAcceptanceRules() error = %v", err)
			}
			got, _ := rules.AcceptCredentials(&AuthCredentials{UserName: tt.userName})
			if got != tt.want {
				t.Errorf("AcceptCredentials(%q) = %v, want %v", tt.userName, got, tt.want)
			}
		})
	}
}

func TestNewAcceptanceRules_InvalidCIDR(t *testing.T) {
	_, err := NewAcceptanceRules(config.CriteriaConfig{IPs: []string{"not-a-cidr"}}, config.CriteriaConfig{})
	if err == nil {
		t.Error("NewAcceptanceRules() with invalid CIDR should fail")
	}
}
