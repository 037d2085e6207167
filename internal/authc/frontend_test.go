// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package authc

import (
	"encoding/base64"
	"errors"
	"net"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
)

func basicAuthHeader(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func TestBasicFrontend_Extract(t *testing.T) {
	frontend, err := newBasicFrontend(nil)
	if err != nil {
		t.Fatalf("newBasicFrontend() error = %v", err)
	}

	t.Run("valid header", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Authorization", basicAuthHeader("alice", "hunter2"))
		creds, err := frontend.ExtractCredentials(NewRequestMetaData(r, nil))
		if err != nil {
			t.Fatalf("ExtractCredentials() error = %v", err)
		}
		if creds.UserName != "alice" {
			t.Errorf("UserName = %q, want alice", creds.UserName)
		}
		if string(creds.SecretBytes()) != "hunter2" {
			t.Errorf("SecretBytes() = %q, want hunter2", creds.SecretBytes())
		}
		if !creds.Complete {
			t.Error("basic credentials should be complete")
		}
	})

	t.Run("password containing colon", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Authorization", basicAuthHeader("alice", "pa:ss"))
		creds, err := frontend.ExtractCredentials(NewRequestMetaData(r, nil))
		if err != nil {
			t.Fatalf("ExtractCredentials() error = %v", err)
		}
		if string(creds.SecretBytes()) != "pa:ss" {
			t.Errorf("SecretBytes() = %q, want pa:ss", creds.SecretBytes())
		}
	})

	t.Run("no header", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		_, err := frontend.ExtractCredentials(NewRequestMetaData(r, nil))
		if !errors.Is(err, ErrNoCredentials) {
			t.Errorf("error = %v, want ErrNoCredentials", err)
		}
	})

	t.Run("malformed base64", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Authorization", "Basic !!!not-base64!!!")
		_, err := frontend.ExtractCredentials(NewRequestMetaData(r, nil))
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("error = %v, want ErrInvalidCredentials", err)
		}
	})

	t.Run("bearer header is not basic", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Authorization", "Bearer abc")
		_, err := frontend.ExtractCredentials(NewRequestMetaData(r, nil))
		if !errors.Is(err, ErrNoCredentials) {
			t.Errorf("error = %v, want ErrNoCredentials", err)
		}
	})

	if ch := frontend.Challenge(nil); !strings.HasPrefix(ch, "Basic realm=") {
		t.Errorf("Challenge() = %q, want Basic realm", ch)
	}
}

func TestBearerFrontend_Extract(t *testing.T) {
	frontend, err := newBearerFrontend(map[string]interface{}{"url_param": "token"})
	if err != nil {
		t.Fatalf("newBearerFrontend() error = %v", err)
	}

	t.Run("authorization header", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Authorization", "Bearer tok-123")
		creds, err := frontend.ExtractCredentials(NewRequestMetaData(r, nil))
		if err != nil {
			t.Fatalf("ExtractCredentials() error = %v", err)
		}
		if creds.UserName != "" {
			t.Errorf("UserName = %q, want empty before backend verification", creds.UserName)
		}
		if string(creds.SecretBytes()) != "tok-123" {
			t.Errorf("SecretBytes() = %q, want tok-123", creds.SecretBytes())
		}
	})

	t.Run("url parameter fallback", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/?token=tok-456", nil)
		creds, err := frontend.ExtractCredentials(NewRequestMetaData(r, nil))
		if err != nil {
			t.Fatalf("ExtractCredentials() error = %v", err)
		}
		if string(creds.SecretBytes()) != "tok-456" {
			t.Errorf("SecretBytes() = %q, want tok-456", creds.SecretBytes())
		}
	})

	t.Run("nothing present", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		_, err := frontend.ExtractCredentials(NewRequestMetaData(r, nil))
		if !errors.Is(err, ErrNoCredentials) {
			t.Errorf("error = %v, want ErrNoCredentials", err)
		}
	})

	if ch := frontend.Challenge(nil); ch != "Bearer" {
		t.Errorf("Challenge() = %q, want Bearer", ch)
	}
}

func TestTrustedHeaderFrontend_Extract(t *testing.T) {
	frontend, err := newTrustedHeaderFrontend(nil)
	if err != nil {
		t.Fatalf("newTrustedHeaderFrontend() error = %v", err)
	}

	_, proxyNet, _ := net.ParseCIDR("10.1.0.0/16")

	t.Run("honored behind trusted proxy", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "10.1.0.1:4000"
		r.Header.Set("x-proxy-user", "alice")
		r.Header.Set("x-proxy-roles", "ops, dev")
		creds, err := frontend.ExtractCredentials(NewRequestMetaData(r, []*net.IPNet{proxyNet}))
		if err != nil {
			t.Fatalf("ExtractCredentials() error = %v", err)
		}
		if creds.UserName != "alice" {
			t.Errorf("UserName = %q, want alice", creds.UserName)
		}
		if !reflect.DeepEqual(creds.BackendRoles, []string{"ops", "dev"}) {
			t.Errorf("BackendRoles = %v, want [ops dev]", creds.BackendRoles)
		}
	})

	t.Run("ignored from untrusted client", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "203.0.113.9:4000"
		r.Header.Set("x-proxy-user", "alice")
		_, err := frontend.ExtractCredentials(NewRequestMetaData(r, []*net.IPNet{proxyNet}))
		if !errors.Is(err, ErrNoCredentials) {
			t.Errorf("error = %v, want ErrNoCredentials for untrusted peer", err)
		}
	})
}

func TestSubjectAttribute(t *testing.T) {
	subject := "CN=node-1,OU=Ops,O=Example"
	if got := subjectAttribute(subject, "CN"); got != "node-1" {
		t.Errorf("subjectAttribute(CN) = %q, want node-1", got)
	}
	if got := subjectAttribute(subject, "OU"); got != "Ops" {
		t.Errorf("subjectAttribute(OU) = %q, want Ops", got)
	}
	if got := subjectAttribute(subject, "L"); got != "" {
		t.Errorf("subjectAttribute(L) = %q, want empty", got)
	}
}
