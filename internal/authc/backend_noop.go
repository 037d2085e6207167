// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package authc

import (
	"context"
)

// noopBackend trusts whatever the frontend extracted. It pairs with
// frontends whose transport already proved the identity (client
// certificates validated by the TLS layer, trusted proxy headers).
type noopBackend struct{}

func newNoopBackend() (Backend, error) {
	return &noopBackend{}, nil
}

func (b *noopBackend) Type() string { return "noop" }

func (b *noopBackend) CachingPolicy() CachingPolicy { return CacheNever }

func (b *noopBackend) Authenticate(_ context.Context, creds *AuthCredentials) (*AuthCredentials, error) {
	if creds.UserName == "" {
		return nil, ErrNoSuchUser
	}
	return creds, nil
}

// UserInformation is not supported: the noop backend has no identity
// store to vouch for an impersonation target.
func (b *noopBackend) UserInformation(_ context.Context, _ *AuthCredentials) (*AuthCredentials, error) {
	return nil, ErrNotSupported
}
