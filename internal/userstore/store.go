// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

// Package userstore holds the internal user records consulted by the
// "internal" authentication backend: user name, bcrypt password hash,
// backend roles and a free-form attribute map.
package userstore

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned when a user does not exist in the store.
var ErrNotFound = errors.New("user not found")

// Record is one internal user.
type Record struct {
	// Name is the unique user name.
	Name string `json:"name"`

	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string `json:"password_hash"`

	// Roles are the backend roles granted to the user.
	Roles []string `json:"roles,omitempty"`

	// Attributes is arbitrary per-user data fed into user mapping.
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Store is the internal user persistence interface.
type Store interface {
	// Get returns the record for a user name, or ErrNotFound.
	Get(ctx context.Context, name string) (*Record, error)

	// Put inserts or replaces a record.
	Put(ctx context.Context, record *Record) error

	// Delete removes a record. Deleting a missing user is not an error.
	Delete(ctx context.Context, name string) error

	// Close releases store resources.
	Close() error
}

// MemoryStore is a map-backed Store for tests and static configurations.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]Record)}
}

// Get returns the record for a user name, or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, name string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.users[name]
	if !ok {
		return nil, ErrNotFound
	}
	copy := r
	return &copy, nil
}

// Put inserts or replaces a record.
func (s *MemoryStore) Put(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[record.Name] = *record
	return nil
}

// Delete removes a record.
func (s *MemoryStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, name)
	return nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// Seed loads records into a store, replacing existing entries of the same
// name. Used to apply statically configured users at startup.
func Seed(ctx context.Context, store Store, records []Record) error {
	for i := range records {
		if err := store.Put(ctx, &records[i]); err != nil {
			return err
		}
	}
	return nil
}
