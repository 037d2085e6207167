// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/authweaver/authweaver/internal/authc"
	"github.com/authweaver/authweaver/internal/logging"
)

type contextKey string

const userContextKey contextKey = "authweaver.user"

// UserFromContext returns the authenticated identity bound to a request
// context by the filter, or nil.
func UserFromContext(ctx context.Context) *authc.User {
	user, _ := ctx.Value(userContextKey).(*authc.User)
	return user
}

// ContextWithUser binds an authenticated identity to a context.
func ContextWithUser(ctx context.Context, user *authc.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// AuthenticatingRestFilter owns the live pipeline reference and drives
// the processor from the request path. The processor is an atomically
// swapped immutable snapshot: configuration reloads install a fresh one
// and in-flight requests finish on the snapshot they captured. Until the
// first configuration arrives, every request is answered 503.
type AuthenticatingRestFilter struct {
	processor      atomic.Pointer[authc.Processor]
	blocklist      authc.Blocklist
	trustedProxies []*net.IPNet
}

// NewAuthenticatingRestFilter builds the filter. The blocklist may be
// nil; trusted proxies are CIDR blocks or bare addresses.
func NewAuthenticatingRestFilter(trustedProxies []string, blocklist authc.Blocklist) (*AuthenticatingRestFilter, error) {
	nets := make([]*net.IPNet, 0, len(trustedProxies))
	for _, raw := range trustedProxies {
		s := raw
		if !strings.Contains(s, "/") {
			if strings.Contains(s, ":") {
				s += "/128"
			} else {
				s += "/32"
			}
		}
		_, n, err := net.ParseCIDR(s)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
		}
		nets = append(nets, n)
	}
	return &AuthenticatingRestFilter{blocklist: blocklist, trustedProxies: nets}, nil
}

// Swap installs a freshly built processor. Safe to call concurrently
// with request handling.
func (f *AuthenticatingRestFilter) Swap(p *authc.Processor) {
	f.processor.Store(p)
}

// Processor returns the current pipeline snapshot, nil before the first
// configuration.
func (f *AuthenticatingRestFilter) Processor() *authc.Processor {
	return f.processor.Load()
}

// Middleware authenticates every request passing through it. PASS binds
// the identity to the request context and continues; STOP is turned
// into the carried HTTP response.
func (f *AuthenticatingRestFilter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		processor := f.processor.Load()
		if processor == nil {
			writeError(w, http.StatusServiceUnavailable, "not_initialized", "Authentication backend not yet initialized")
			return
		}

		ctx := logging.ContextWithNewCorrelationID(r.Context())
		meta := authc.NewRequestMetaData(r, f.trustedProxies)

		if f.blocklist != nil && meta.OriginatingIP().IsValid() && f.blocklist.IsIPBlocked(meta.OriginatingIP()) {
			logging.Ctx(ctx).Warn().Str("ip", meta.OriginatingIP().String()).Msg("request from blocked address")
			writeError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
			return
		}

		result := processor.Authenticate(ctx, meta)
		if result.Status == authc.StatusPass {
			ctx = ContextWithUser(ctx, result.User)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		f.writeStop(w, result)
	})
}

func (f *AuthenticatingRestFilter) writeStop(w http.ResponseWriter, result *authc.AuthcResult) {
	for name, values := range result.Headers {
		for _, value := range values {
			w.Header().Add(name, value)
		}
	}

	response := APIResponse{
		Success: false,
		Error: &APIError{
			Code:    http.StatusText(result.HTTPStatus),
			Message: result.Message,
		},
	}
	if result.Debug != nil {
		response.Error.Details = result.Debug.Entries()
	}
	writeJSON(w, result.HTTPStatus, response)
}
