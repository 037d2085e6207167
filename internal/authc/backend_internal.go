// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package authc

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/authweaver/authweaver/internal/userstore"
)

// internalBackend verifies credentials against the internal user store
// with bcrypt. Bcrypt comparison is deliberately slow, so resolved
// identities are cacheable.
type internalBackend struct {
	store userstore.Store
}

func newInternalBackend(store userstore.Store) (Backend, error) {
	if store == nil {
		return nil, fmt.Errorf("internal backend requires a user store")
	}
	return &internalBackend{store: store}, nil
}

func (b *internalBackend) Type() string { return "internal" }

func (b *internalBackend) CachingPolicy() CachingPolicy { return CacheAlways }

func (b *internalBackend) Authenticate(ctx context.Context, creds *AuthCredentials) (*AuthCredentials, error) {
	record, err := b.lookup(ctx, creds.UserName)
	if err != nil {
		return nil, err
	}

	secret := creds.SecretBytes()
	if secret == nil {
		return nil, fmt.Errorf("%w: no secret to verify", ErrInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(record.PasswordHash), secret); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	enrich(creds, record)
	return creds, nil
}

func (b *internalBackend) UserInformation(ctx context.Context, creds *AuthCredentials) (*AuthCredentials, error) {
	record, err := b.lookup(ctx, creds.UserName)
	if err != nil {
		return nil, err
	}
	enrich(creds, record)
	return creds, nil
}

func (b *internalBackend) lookup(ctx context.Context, name string) (*userstore.Record, error) {
	record, err := b.store.Get(ctx, name)
	if errors.Is(err, userstore.ErrNotFound) {
		return nil, ErrNoSuchUser
	}
	if err != nil {
		return nil, &BackendUnavailableError{Backend: "internal", Cause: err}
	}
	return record, nil
}

func enrich(creds *AuthCredentials, record *userstore.Record) {
	creds.BackendRoles = append(creds.BackendRoles, record.Roles...)
	for k, v := range record.Attributes {
		creds.Attribute(k, v)
		if creds.StructuredAttributes == nil {
			creds.StructuredAttributes = make(map[string]string)
		}
		creds.StructuredAttributes[k] = v
	}
}
