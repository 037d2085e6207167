// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package audit

import (
	"context"
	"sync"
)

// MemoryStore is a bounded in-memory audit store. It keeps the most recent
// events and drops the oldest tenth when full.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
	maxLen int
}

// NewMemoryStore creates a new in-memory audit store.
func NewMemoryStore(maxLen int) *MemoryStore {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &MemoryStore{
		events: make([]Event, 0, maxLen),
		maxLen: maxLen,
	}
}

// Save persists an audit event.
func (s *MemoryStore) Save(_ context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.events) >= s.maxLen {
		removeCount := s.maxLen / 10
		if removeCount == 0 {
			removeCount = 1
		}
		s.events = s.events[removeCount:]
	}

	s.events = append(s.events, *event)
	return nil
}

// Recent returns up to n most recent events, newest first.
func (s *MemoryStore) Recent(_ context.Context, n int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || n > len(s.events) {
		n = len(s.events)
	}

	out := make([]Event, 0, n)
	for i := len(s.events) - 1; i >= len(s.events)-n; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

// Count returns the number of stored events.
func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.events)), nil
}
