// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package authc

import (
	"github.com/authweaver/authweaver/internal/cache"
	"github.com/authweaver/authweaver/internal/config"
)

// identityCaches are the two bounded LRU+TTL caches owned by one
// processor instance: resolved identities keyed by credentials, and
// impersonated identities keyed by target username. A configuration
// reload builds a new processor with fresh caches; nothing migrates.
type identityCaches struct {
	enabled  bool
	users    *cache.LRU[*User]
	imperson *cache.LRU[*User]
}

func newIdentityCaches(cfg config.AuthCacheConfig) *identityCaches {
	c := &identityCaches{enabled: cfg.Enabled}
	if cfg.Enabled {
		c.users = cache.NewLRU[*User](cfg.Capacity, cfg.TTL)
		c.imperson = cache.NewLRU[*User](cfg.Capacity, cfg.TTL)
	}
	return c
}

// credentialsKey keys the identity cache: username, secret digest, and
// domain provenance. The secret itself never enters the cache.
func credentialsKey(creds *AuthCredentials, domainID string) string {
	return creds.UserName + "\x00" + creds.SecretDigest() + "\x00" + domainID
}

func (c *identityCaches) getUser(key string) (*User, bool) {
	if c == nil || !c.enabled {
		return nil, false
	}
	user, ok := c.users.Get(key)
	if ok {
		cacheLookups.WithLabelValues("identity", "hit").Inc()
	} else {
		cacheLookups.WithLabelValues("identity", "miss").Inc()
	}
	return user, ok
}

func (c *identityCaches) putUser(key string, user *User) {
	if c == nil || !c.enabled {
		return
	}
	c.users.Add(key, user)
}

func (c *identityCaches) getImpersonated(target string) (*User, bool) {
	if c == nil || !c.enabled {
		return nil, false
	}
	user, ok := c.imperson.Get(target)
	if ok {
		cacheLookups.WithLabelValues("impersonation", "hit").Inc()
	} else {
		cacheLookups.WithLabelValues("impersonation", "miss").Inc()
	}
	return user, ok
}

func (c *identityCaches) putImpersonated(target string, user *User) {
	if c == nil || !c.enabled {
		return
	}
	c.imperson.Add(target, user)
}

// Invalidate flushes both caches. Wired to the admin invalidation action.
func (c *identityCaches) Invalidate() {
	if c == nil || !c.enabled {
		return
	}
	c.users.Clear()
	c.imperson.Clear()
}
