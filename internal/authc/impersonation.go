// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package authc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/authweaver/authweaver/internal/config"
	"github.com/authweaver/authweaver/internal/logging"
)

// RestImpersonationProcessor performs the secondary identity resolution
// after a successful primary authentication, when the impersonation
// header names a different user. It reuses the same ordered domain list,
// but asks each domain for user information instead of authentication.
type RestImpersonationProcessor struct {
	domains       []AuthenticationDomain
	caches        *identityCaches
	adminPatterns []*regexp.Regexp
	allowed       map[string][]*regexp.Regexp
	domainTimeout time.Duration
	audit         *auditEmitter
}

func newRestImpersonationProcessor(cfg config.ImpersonationConfig, domains []AuthenticationDomain, caches *identityCaches, adminPatterns []*regexp.Regexp, domainTimeout time.Duration, emitter *auditEmitter) (*RestImpersonationProcessor, error) {
	allowed := make(map[string][]*regexp.Regexp, len(cfg.Allowed))
	for name, patterns := range cfg.Allowed {
		compiled, err := compilePatterns(patterns)
		if err != nil {
			return nil, fmt.Errorf("impersonation targets for %s: %w", name, err)
		}
		allowed[name] = compiled
	}

	return &RestImpersonationProcessor{
		domains:       domains,
		caches:        caches,
		adminPatterns: adminPatterns,
		allowed:       allowed,
		domainTimeout: domainTimeout,
		audit:         emitter,
	}, nil
}

// Impersonate resolves the target identity on behalf of the original
// user. Authorization failures are hard 403 stops; an unresolvable
// target is 403 as well, never 401: the caller is authenticated, just
// not entitled.
func (p *RestImpersonationProcessor) Impersonate(ctx context.Context, meta *RequestMetaData, original *User, target string) *AuthcResult {
	if patternMatches(target, p.adminPatterns) {
		p.audit.impersonation(ctx, meta, original, target, false, "impersonation of an administrative identity")
		impersonationAttempts.WithLabelValues("denied").Inc()
		return Stop(http.StatusForbidden, "Impersonation of administrative identities is not allowed")
	}

	if !p.allowedFor(original.Name, target) {
		p.audit.impersonation(ctx, meta, original, target, false, "impersonation not permitted by configuration")
		impersonationAttempts.WithLabelValues("denied").Inc()
		return Stop(http.StatusForbidden, fmt.Sprintf("'%s' is not allowed to impersonate '%s'", original.Name, target))
	}

	if cached, ok := p.caches.getImpersonated(target); ok {
		user := cached.WithRequestedTenant(original.RequestedTenant)
		p.audit.impersonation(ctx, meta, original, target, true, "impersonated from cache")
		impersonationAttempts.WithLabelValues("cached").Inc()
		return Pass(user)
	}

	for _, domain := range p.domains {
		user := p.tryImpersonate(ctx, domain, original, target, meta)
		if user == nil {
			continue
		}

		if domain.CacheUser() {
			p.caches.putImpersonated(target, user)
		}
		user = user.WithRequestedTenant(original.RequestedTenant)
		p.audit.impersonation(ctx, meta, original, target, true, "impersonated via "+domain.ID())
		impersonationAttempts.WithLabelValues("pass").Inc()
		return Pass(user)
	}

	p.audit.impersonation(ctx, meta, original, target, false, "impersonation target not found")
	impersonationAttempts.WithLabelValues("not_found").Inc()
	return Stop(http.StatusForbidden, fmt.Sprintf("No such user '%s'", target))
}

// tryImpersonate asks one domain for the target's user information. Any
// failure, panic included, means "no result here", and the walk
// continues.
func (p *RestImpersonationProcessor) tryImpersonate(ctx context.Context, domain AuthenticationDomain, original *User, target string, meta *RequestMetaData) (user *User) {
	if !domain.Enabled() {
		return nil
	}
	if ok, _ := domain.AcceptRequest(meta); !ok {
		return nil
	}

	// Fresh credentials per domain: backends enrich in place.
	creds := NewCredentials(target, nil)
	defer creds.ClearSecrets()

	defer func() {
		if r := recover(); r != nil {
			domainPanics.WithLabelValues(domain.ID()).Inc()
			logging.Ctx(ctx).Error().Str("domain", domain.ID()).Interface("panic", r).Msg("panic during impersonation, skipping domain")
			user = nil
		}
	}()

	dctx := ctx
	if p.domainTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, p.domainTimeout)
		defer cancel()
	}

	resolved, err := domain.Impersonate(dctx, original, creds)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoSuchUser):
		case errors.Is(err, ErrUnavailable):
			logging.Ctx(ctx).Warn().Err(err).Str("domain", domain.ID()).Msg("backend unavailable during impersonation")
		default:
			logging.Ctx(ctx).Error().Err(err).Str("domain", domain.ID()).Msg("unexpected impersonation error, skipping domain")
		}
		return nil
	}
	return resolved
}

func (p *RestImpersonationProcessor) allowedFor(originalName, target string) bool {
	patterns, ok := p.allowed[originalName]
	if !ok {
		return false
	}
	return patternMatches(target, patterns)
}
