// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package authc

import (
	"context"
	"errors"
	"net/http"
	"net/netip"
	"regexp"
	"sort"
	"time"

	"github.com/authweaver/authweaver/internal/audit"
	"github.com/authweaver/authweaver/internal/config"
	"github.com/authweaver/authweaver/internal/logging"
	"github.com/authweaver/authweaver/internal/userstore"
)

// Blocklist gates identities and addresses before backend calls.
type Blocklist interface {
	IsUserBlocked(name string) bool
	IsIPBlocked(addr netip.Addr) bool
}

// PrivilegeChecker is the required-login-privileges gate.
type PrivilegeChecker interface {
	HasPrivileges(ctx context.Context, roles []string, privileges []string) (bool, error)
}

// FailureListener observes the originating IP of every exhausted walk.
// The failed-login lockout registers here.
type FailureListener func(addr netip.Addr)

// Decorator is the caller-supplied hook run on every freshly
// authenticated user before the result is emitted.
type Decorator func(ctx context.Context, user *User, meta *RequestMetaData) *User

// Dependencies are the collaborators a processor is built over.
type Dependencies struct {
	Store            userstore.Store
	Blocklist        Blocklist
	Privileges       PrivilegeChecker
	Audit            *audit.Logger
	Decorator        Decorator
	FailureListeners []FailureListener
}

// Processor walks the ordered domain list for one request and emits
// exactly one AuthcResult. A processor is an immutable snapshot built
// from one configuration; reloads build a new processor and in-flight
// walks finish on the old one.
type Processor struct {
	domains          []AuthenticationDomain
	caches           *identityCaches
	blocklist        Blocklist
	privileges       PrivilegeChecker
	requiredPrivs    []string
	adminPatterns    []*regexp.Regexp
	impersonation    *RestImpersonationProcessor
	impHeader        string
	debug            bool
	domainTimeout    time.Duration
	decorator        Decorator
	failureListeners []FailureListener
	audit            *auditEmitter
}

// requestedTenantHeader carries the tenant the client asks for.
const requestedTenantHeader = "x-tenant"

// NewProcessor builds the pipeline snapshot from configuration.
func NewProcessor(cfg config.AuthcConfig, deps Dependencies) (*Processor, error) {
	registry := NewRegistry(deps.Store)

	domains := make([]AuthenticationDomain, 0, len(cfg.Domains))
	for i := range cfg.Domains {
		domain, err := NewDomain(cfg.Domains[i], registry, cfg.Breaker)
		if err != nil {
			return nil, err
		}
		domains = append(domains, domain)
	}
	// Configured slice order is authoritative; Order is the legacy
	// tie-break, applied stably.
	sort.SliceStable(domains, func(i, j int) bool {
		return domains[i].Order() < domains[j].Order()
	})

	adminPatterns, err := compilePatterns(cfg.AdminDNs)
	if err != nil {
		return nil, err
	}

	caches := newIdentityCaches(cfg.Cache)
	emitter := &auditEmitter{logger: deps.Audit}

	impHeader := cfg.Impersonation.Header
	if impHeader == "" {
		impHeader = "x-impersonate-as"
	}

	impersonation, err := newRestImpersonationProcessor(cfg.Impersonation, domains, caches, adminPatterns, cfg.DomainTimeout, emitter)
	if err != nil {
		return nil, err
	}

	return &Processor{
		domains:          domains,
		caches:           caches,
		blocklist:        deps.Blocklist,
		privileges:       deps.Privileges,
		requiredPrivs:    cfg.RequiredLoginPrivileges,
		adminPatterns:    adminPatterns,
		impersonation:    impersonation,
		impHeader:        impHeader,
		debug:            cfg.Debug,
		domainTimeout:    cfg.DomainTimeout,
		decorator:        deps.Decorator,
		failureListeners: deps.FailureListeners,
		audit:            emitter,
	}, nil
}

// Domains returns the ordered domain list.
func (p *Processor) Domains() []AuthenticationDomain {
	out := make([]AuthenticationDomain, len(p.domains))
	copy(out, p.domains)
	return out
}

// Debug reports whether the pipeline surfaces debug traces.
func (p *Processor) Debug() bool { return p.debug }

// InvalidateCaches flushes the identity and impersonation caches.
func (p *Processor) InvalidateCaches() {
	p.caches.Invalidate()
}

type outcomeKind int

const (
	outcomeSkip outcomeKind = iota
	outcomeStop
	outcomePass
)

type domainOutcome struct {
	kind   outcomeKind
	result *AuthcResult
	user   *User
}

func skipOutcome() domainOutcome { return domainOutcome{kind: outcomeSkip} }

// Authenticate walks the domain list and returns the terminal verdict.
// It never returns nil and never panics for failures inside a domain;
// only panics while committing an already-judged success propagate.
func (p *Processor) Authenticate(ctx context.Context, meta *RequestMetaData) *AuthcResult {
	start := time.Now()
	defer func() {
		walkDuration.Observe(time.Since(start).Seconds())
	}()

	trace := NewDebugTrace(p.debug)
	var challenges []string

	for _, domain := range p.domains {
		out := p.tryDomain(ctx, meta, domain, trace, &challenges)
		switch out.kind {
		case outcomeSkip:
			domainAttempts.WithLabelValues(domain.ID(), "skip").Inc()
			continue
		case outcomeStop:
			domainAttempts.WithLabelValues(domain.ID(), "stop").Inc()
			return out.result.WithDebug(trace)
		case outcomePass:
			domainAttempts.WithLabelValues(domain.ID(), "pass").Inc()
			return p.succeed(ctx, meta, domain, out.user, trace)
		}
	}

	return p.exhausted(ctx, meta, trace, challenges)
}

// succeed finishes a successful primary authentication: audit, then
// either the impersonation sub-walk or a plain pass.
func (p *Processor) succeed(ctx context.Context, meta *RequestMetaData, domain AuthenticationDomain, user *User, trace *DebugTrace) *AuthcResult {
	trace.Add(domain.ID(), true, "authenticated "+user.Name, nil)
	p.audit.loginSucceeded(ctx, meta, user)

	if target := meta.Header(p.impHeader); target != "" && target != user.Name {
		result := p.impersonation.Impersonate(ctx, meta, user, target)
		return result.WithDebug(trace)
	}

	walkResults.WithLabelValues("pass").Inc()
	return Pass(user).WithDebug(trace)
}

// exhausted emits the final auth failure: failure listeners, challenge
// replay, 401.
func (p *Processor) exhausted(ctx context.Context, meta *RequestMetaData, trace *DebugTrace, challenges []string) *AuthcResult {
	if meta.OriginatingIP().IsValid() {
		for _, listener := range p.failureListeners {
			listener(meta.OriginatingIP())
		}
	}
	p.audit.loginFailed(ctx, meta)
	walkResults.WithLabelValues("401").Inc()

	result := Stop(http.StatusUnauthorized, "Unauthorized")
	if len(challenges) > 0 {
		// The first recorded challenge came from the earliest
		// challenging domain, which is the most relevant one.
		result = result.WithHeader("WWW-Authenticate", challenges[0])
	}
	return result.WithDebug(trace)
}

// tryDomain is the per-domain transition function. Panics inside the
// evaluation are recovered into a skip so one misbehaving domain cannot
// take down the walk; panics after the success has been judged (cache
// write, decoration) propagate, because there is no safe skip once a
// user has been judged authentic.
func (p *Processor) tryDomain(ctx context.Context, meta *RequestMetaData, domain AuthenticationDomain, trace *DebugTrace, challenges *[]string) (out domainOutcome) {
	if !domain.Enabled() {
		return skipOutcome()
	}
	if ok, reason := domain.AcceptRequest(meta); !ok {
		logging.Ctx(ctx).Debug().Str("domain", domain.ID()).Str("reason", reason).Msg("domain does not accept request")
		trace.Add(domain.ID(), false, "request not accepted: "+reason, nil)
		return skipOutcome()
	}

	var creds *AuthCredentials
	defer func() {
		creds.ClearSecrets()
	}()

	committed := false
	defer func() {
		if r := recover(); r != nil {
			if committed {
				panic(r)
			}
			domainPanics.WithLabelValues(domain.ID()).Inc()
			logging.Ctx(ctx).Error().Str("domain", domain.ID()).Interface("panic", r).Msg("panic during domain evaluation, skipping domain")
			trace.Add(domain.ID(), false, "internal error", nil)
			out = skipOutcome()
		}
	}()

	var err error
	creds, err = domain.ExtractCredentials(meta)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoCredentials):
			if domain.ChallengeEnabled() {
				if ch := domain.Challenge(nil); ch != "" {
					*challenges = append(*challenges, ch)
				}
			}
			trace.Add(domain.ID(), false, "no credentials", nil)
		case errors.Is(err, ErrUnavailable):
			logging.Ctx(ctx).Warn().Err(err).Str("domain", domain.ID()).Msg("frontend unavailable")
			trace.Add(domain.ID(), false, "frontend unavailable", nil)
		default:
			logging.Ctx(ctx).Debug().Err(err).Str("domain", domain.ID()).Msg("credential extraction failed")
			trace.Add(domain.ID(), false, "extraction failed: "+err.Error(), nil)
		}
		return skipOutcome()
	}

	if !creds.Complete {
		// Incompleteness takes over the whole request: the frontend
		// needs a second client round-trip, so no further domain is
		// tried.
		result := Stop(http.StatusUnauthorized, "Authentication incomplete")
		if ch := domain.Challenge(creds); ch != "" {
			result = result.WithHeader("WWW-Authenticate", ch)
		}
		if creds.RedirectURI != "" {
			result = result.WithHeader("Location", creds.RedirectURI)
			result.HTTPStatus = http.StatusFound
		}
		walkResults.WithLabelValues("challenge").Inc()
		trace.Add(domain.ID(), false, "credentials incomplete, challenging", nil)
		return domainOutcome{kind: outcomeStop, result: result}
	}

	if p.blocklist != nil && creds.UserName != "" && p.blocklist.IsUserBlocked(creds.UserName) {
		p.audit.loginBlocked(ctx, meta, creds.UserName, domain.ID())
		logging.Ctx(ctx).Warn().Str("domain", domain.ID()).Str("user", creds.UserName).Msg("blocked user attempted login")
		trace.Add(domain.ID(), false, "user is blocked", nil)
		return skipOutcome()
	}

	// Keep the original reference alive for the deferred ClearSecrets:
	// a failed mapping returns nil credentials.
	mapped, err := domain.MapCredentials(creds)
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Str("domain", domain.ID()).Msg("credential mapping failed")
		trace.Add(domain.ID(), false, "credential mapping failed: "+err.Error(), nil)
		return skipOutcome()
	}
	creds = mapped

	if ok, reason := domain.AcceptCredentials(creds); !ok {
		trace.Add(domain.ID(), false, "credentials not accepted: "+reason, nil)
		return skipOutcome()
	}

	dctx := ctx
	if p.domainTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, p.domainTimeout)
		defer cancel()
	}

	cacheable := p.caches.enabled && domain.CacheUser()
	key := ""
	var user *User
	if cacheable {
		key = credentialsKey(creds, domain.ID())
		if cached, ok := p.caches.getUser(key); ok {
			user = cached
		}
	}

	if user == nil {
		user, err = domain.Authenticate(dctx, creds)
		if err != nil {
			var credErr *CredentialsError
			switch {
			case errors.Is(err, ErrNoSuchUser), errors.Is(err, ErrInvalidCredentials), errors.As(err, &credErr):
				trace.Add(domain.ID(), false, "backend did not authenticate: "+err.Error(), nil)
			case errors.Is(err, ErrUnavailable):
				logging.Ctx(ctx).Warn().Err(err).Str("domain", domain.ID()).Msg("backend unavailable")
				trace.Add(domain.ID(), false, "backend unavailable", nil)
			default:
				logging.Ctx(ctx).Error().Err(err).Str("domain", domain.ID()).Msg("unexpected backend error, skipping domain")
				trace.Add(domain.ID(), false, "unexpected error", nil)
			}
			return skipOutcome()
		}
	}

	if p.isAdmin(user.Name) {
		trace.Add(domain.ID(), false, "admin user attempted REST login", nil)
		logging.Ctx(ctx).Warn().Str("user", user.Name).Msg("admin identity attempted to authenticate via REST")
		walkResults.WithLabelValues("403").Inc()
		return domainOutcome{
			kind:   outcomeStop,
			result: Stop(http.StatusForbidden, "Administrative identities may only authenticate with a client certificate"),
		}
	}

	if !user.HasRoles() {
		trace.Add(domain.ID(), true, "user "+user.Name+" has no roles", nil)
	}

	if len(p.requiredPrivs) > 0 && p.privileges != nil {
		allowed, err := p.privileges.HasPrivileges(dctx, user.BackendRoles, p.requiredPrivs)
		if err != nil {
			// Fail closed: an unanswerable privilege question must
			// not let the user in.
			logging.Ctx(ctx).Error().Err(err).Str("user", user.Name).Msg("login privilege check failed")
			allowed = false
		}
		if !allowed {
			trace.Add(domain.ID(), false, "user "+user.Name+" lacks login privileges", nil)
			walkResults.WithLabelValues("403").Inc()
			return domainOutcome{
				kind:   outcomeStop,
				result: Stop(http.StatusForbidden, "User "+user.Name+" is not allowed to log in"),
			}
		}
	}

	// The user is judged authentic; from here on failures propagate.
	committed = true

	if cacheable {
		p.caches.putUser(key, user)
	}
	user = user.WithRequestedTenant(requestedTenant(meta))
	if p.decorator != nil {
		user = p.decorator(ctx, user, meta)
	}

	return domainOutcome{kind: outcomePass, user: user}
}

func (p *Processor) isAdmin(name string) bool {
	return patternMatches(name, p.adminPatterns)
}

func requestedTenant(meta *RequestMetaData) string {
	if tenant := meta.Header(requestedTenantHeader); tenant != "" {
		return tenant
	}
	if meta.Request() != nil {
		return meta.Request().URL.Query().Get("tenant")
	}
	return ""
}
