// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package userstore

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/authweaver/authweaver/internal/logging"
)

// userKeyPrefix namespaces user records inside the badger keyspace.
const userKeyPrefix = "user:"

// BadgerStore is a badger-backed Store. Records survive restarts, which
// keeps statically unknown users (created via the admin API) across
// deployments.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a badger store at the given directory.
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // badger's own logger is too chatty; errors surface via return values

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger user store at %s: %w", path, err)
	}
	logging.Info().Str("path", path).Msg("badger user store opened")
	return &BadgerStore{db: db}, nil
}

// NewBadgerStore wraps an already-open badger database.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Get returns the record for a user name, or ErrNotFound.
func (s *BadgerStore) Get(_ context.Context, name string) (*Record, error) {
	var record Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(userKeyPrefix + name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", name, err)
	}
	return &record, nil
}

// Put inserts or replaces a record.
func (s *BadgerStore) Put(_ context.Context, record *Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal user %s: %w", record.Name, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(userKeyPrefix+record.Name), data)
	})
}

// Delete removes a record.
func (s *BadgerStore) Delete(_ context.Context, name string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(userKeyPrefix + name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
