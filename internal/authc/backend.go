// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package authc

import (
	"context"
)

// CachingPolicy is a backend's declared identity-caching stance.
type CachingPolicy int

const (
	// CacheAlways: resolved identities may always be cached.
	CacheAlways CachingPolicy = iota

	// CacheOnlyIfAuthzSeparate: cache only when supplementary
	// user-information backends enrich the identity, so that caching
	// actually amortizes extra round-trips.
	CacheOnlyIfAuthzSeparate

	// CacheNever: identities from this backend must not be cached.
	CacheNever
)

func (p CachingPolicy) String() string {
	switch p {
	case CacheAlways:
		return "always"
	case CacheOnlyIfAuthzSeparate:
		return "only_if_authz_separate"
	case CacheNever:
		return "never"
	default:
		return "unknown"
	}
}

// Backend verifies raw credentials against an identity store. Calls may
// block on I/O and must honor the context.
type Backend interface {
	// Type is the registry type string.
	Type() string

	// Authenticate verifies the credentials and enriches them with
	// backend roles and mapping attributes. ErrNoSuchUser when the user
	// is unknown, ErrInvalidCredentials when the secret does not verify,
	// ErrUnavailable (possibly wrapped) for infrastructure failures.
	Authenticate(ctx context.Context, creds *AuthCredentials) (*AuthCredentials, error)

	// UserInformation looks up a user without verifying a secret, for
	// impersonation and attribute enrichment. Backends without that
	// capability return ErrNotSupported.
	UserInformation(ctx context.Context, creds *AuthCredentials) (*AuthCredentials, error)

	// CachingPolicy declares whether identities from this backend may
	// be cached.
	CachingPolicy() CachingPolicy
}
