// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package authz

import (
	"time"

	"github.com/authweaver/authweaver/internal/cache"
)

// decisionCache caches (subject, privilege) enforcement decisions.
type decisionCache struct {
	lru *cache.LRU[bool]
}

func newDecisionCache(ttl time.Duration) *decisionCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &decisionCache{lru: cache.NewLRU[bool](10000, ttl)}
}

func (c *decisionCache) key(subject, priv string) string {
	return subject + "\x00" + priv
}

func (c *decisionCache) get(subject, priv string) (allowed, ok bool) {
	return c.lru.Get(c.key(subject, priv))
}

func (c *decisionCache) put(subject, priv string, allowed bool) {
	c.lru.Add(c.key(subject, priv), allowed)
}

func (c *decisionCache) clear() {
	c.lru.Clear()
}
