// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package authc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/authweaver/authweaver/internal/config"
)

// AuthenticationDomain is one configured (frontend, backend, mapping,
// acceptance-rules) tuple tried in order.
type AuthenticationDomain interface {
	ID() string
	Type() string
	Enabled() bool
	Order() int
	ChallengeEnabled() bool
	AcceptRequest(meta *RequestMetaData) (bool, string)
	AcceptCredentials(creds *AuthCredentials) (bool, string)
	ExtractCredentials(meta *RequestMetaData) (*AuthCredentials, error)
	Challenge(creds *AuthCredentials) string
	MapCredentials(creds *AuthCredentials) (*AuthCredentials, error)
	Authenticate(ctx context.Context, creds *AuthCredentials) (*User, error)
	Impersonate(ctx context.Context, original *User, creds *AuthCredentials) (*User, error)
	CacheUser() bool
}

// StandardAuthenticationDomain is the configuration-driven domain
// implementation. Immutable after construction; read concurrently by all
// in-flight walks without locking.
type StandardAuthenticationDomain struct {
	id               string
	typeString       string
	enabled          bool
	order            int
	challenge        bool
	rules            *AcceptanceRules
	frontend         Frontend
	backend          Backend
	userInfoBackends []Backend
	mapping          *UserMapping
}

// NewDomain builds a domain from configuration via the registry. When
// breaker is enabled the backend is wrapped in a circuit breaker.
func NewDomain(cfg config.DomainConfig, reg *Registry, breaker config.BreakerConfig) (*StandardAuthenticationDomain, error) {
	frontend, err := reg.Frontend(cfg.Frontend, cfg.FrontendOptions)
	if err != nil {
		return nil, err
	}
	backend, err := reg.Backend(cfg.Backend, cfg.BackendOptions)
	if err != nil {
		return nil, err
	}
	if breaker.Enabled {
		backend = newBreakerBackend(backend, breaker)
	}

	var userInfoBackends []Backend
	for _, typ := range cfg.UserInfoBackends {
		b, err := reg.Backend(typ, nil)
		if err != nil {
			return nil, fmt.Errorf("user info backend: %w", err)
		}
		userInfoBackends = append(userInfoBackends, b)
	}

	mapping, err := NewUserMapping(cfg.Mapping)
	if err != nil {
		return nil, fmt.Errorf("user mapping: %w", err)
	}
	rules, err := NewAcceptanceRules(cfg.Accept, cfg.Skip)
	if err != nil {
		return nil, fmt.Errorf("acceptance rules: %w", err)
	}

	d := &StandardAuthenticationDomain{
		id:               cfg.ID,
		typeString:       cfg.Frontend + "/" + cfg.Backend,
		enabled:          cfg.Enabled,
		order:            cfg.Order,
		challenge:        cfg.Challenge,
		rules:            rules,
		frontend:         frontend,
		backend:          backend,
		userInfoBackends: userInfoBackends,
		mapping:          mapping,
	}
	if d.id == "" {
		d.id = contentHashID(cfg)
	}
	return d, nil
}

// contentHashID derives a stable id from the domain's identifying
// configuration, used when the operator names none.
func contentHashID(cfg config.DomainConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%d|%s", cfg.Frontend, cfg.Backend, cfg.Order, strings.Join(cfg.UserInfoBackends, ","))
	sum := sha256.Sum256([]byte(b.String()))
	return cfg.Frontend + "_" + cfg.Backend + "_" + hex.EncodeToString(sum[:4])
}

func (d *StandardAuthenticationDomain) ID() string             { return d.id }
func (d *StandardAuthenticationDomain) Type() string           { return d.typeString }
func (d *StandardAuthenticationDomain) Enabled() bool          { return d.enabled }
func (d *StandardAuthenticationDomain) Order() int             { return d.order }
func (d *StandardAuthenticationDomain) ChallengeEnabled() bool { return d.challenge }

// AcceptRequest delegates to the acceptance rules.
func (d *StandardAuthenticationDomain) AcceptRequest(meta *RequestMetaData) (bool, string) {
	return d.rules.AcceptRequest(meta)
}

// AcceptCredentials delegates to the acceptance rules.
func (d *StandardAuthenticationDomain) AcceptCredentials(creds *AuthCredentials) (bool, string) {
	return d.rules.AcceptCredentials(creds)
}

// ExtractCredentials delegates to the frontend.
func (d *StandardAuthenticationDomain) ExtractCredentials(meta *RequestMetaData) (*AuthCredentials, error) {
	return d.frontend.ExtractCredentials(meta)
}

// Challenge delegates to the frontend.
func (d *StandardAuthenticationDomain) Challenge(creds *AuthCredentials) string {
	return d.frontend.Challenge(creds)
}

// MapCredentials applies the pre-authentication username rewrite.
func (d *StandardAuthenticationDomain) MapCredentials(creds *AuthCredentials) (*AuthCredentials, error) {
	return d.mapping.MapCredentials(creds)
}

// Authenticate verifies the credentials with the backend, stamps the
// domain provenance, runs the supplementary user-information backends
// strictly in order (later writers win), then maps the enriched
// credentials into a User. Any backend failure propagates; there is no
// partial success.
func (d *StandardAuthenticationDomain) Authenticate(ctx context.Context, creds *AuthCredentials) (*User, error) {
	enriched, err := d.backend.Authenticate(ctx, creds)
	if err != nil {
		return nil, err
	}
	return d.finish(ctx, enriched)
}

// Impersonate resolves the target credentials through the backend's
// user-information capability instead of authenticating. A backend
// without that capability yields "no result" so the walk continues.
func (d *StandardAuthenticationDomain) Impersonate(ctx context.Context, _ *User, creds *AuthCredentials) (*User, error) {
	enriched, err := d.backend.UserInformation(ctx, creds)
	if err != nil {
		if errors.Is(err, ErrNotSupported) {
			return nil, ErrNoSuchUser
		}
		return nil, err
	}
	return d.finish(ctx, enriched)
}

func (d *StandardAuthenticationDomain) finish(ctx context.Context, creds *AuthCredentials) (*User, error) {
	creds.AuthDomain = d.typeString

	for _, backend := range d.userInfoBackends {
		if _, err := backend.UserInformation(ctx, creds); err != nil {
			if errors.Is(err, ErrNotSupported) {
				continue
			}
			return nil, fmt.Errorf("user info backend %s: %w", backend.Type(), err)
		}
	}

	return d.mapping.Map(creds)
}

// CacheUser derives the effective caching decision from the backend's
// declared policy and the presence of supplementary user-information
// backends.
func (d *StandardAuthenticationDomain) CacheUser() bool {
	switch d.backend.CachingPolicy() {
	case CacheAlways:
		return true
	case CacheOnlyIfAuthzSeparate:
		return len(d.userInfoBackends) > 0
	default:
		return false
	}
}
