// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package authc

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// SecretBuffer wraps secret material (passwords, tokens) and guarantees it
// can be zero-filled exactly once, from any exit path. Reading after Zero
// returns nil.
type SecretBuffer struct {
	mu     sync.Mutex
	data   []byte
	zeroed bool
}

// NewSecret copies the given bytes into a fresh buffer. The caller keeps
// ownership of its own slice.
func NewSecret(b []byte) *SecretBuffer {
	data := make([]byte, len(b))
	copy(data, b)
	return &SecretBuffer{data: data}
}

// Bytes returns the secret material, or nil after zeroing. The returned
// slice aliases the buffer: do not retain it past the credential's life.
func (s *SecretBuffer) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.zeroed {
		return nil
	}
	return s.data
}

// Zero overwrites the secret material with zero bytes. Idempotent.
func (s *SecretBuffer) Zero() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.zeroed {
		return
	}
	for i := range s.data {
		s.data[i] = 0
	}
	s.zeroed = true
}

// Zeroed reports whether Zero has been called.
func (s *SecretBuffer) Zeroed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zeroed
}

// Digest is the hex SHA-256 of the secret material, used as a cache key
// component so the cache never stores the secret itself. Empty after
// zeroing or for secretless credentials.
func (s *SecretBuffer) Digest() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.zeroed || len(s.data) == 0 {
		return ""
	}
	sum := sha256.Sum256(s.data)
	return hex.EncodeToString(sum[:])
}

// AuthCredentials is a single authentication attempt: the username (unset
// until mapped for some frontends), the secret material, and the attribute
// bag frontends and backends populate for user mapping. Created by a
// frontend per extraction attempt and discarded after mapping into a User
// or after failure. ClearSecrets must run on every exit path.
type AuthCredentials struct {
	// UserName may be empty until mapping rewrites it.
	UserName string

	// Secret is the password or token material, nil for secretless
	// frontends (client certificates, trusted headers).
	Secret *SecretBuffer

	// Attributes is the nested bag consumed by user mapping. Backends
	// and user-information backends write into it; later writers win.
	Attributes map[string]interface{}

	// BackendRoles are role names asserted by the backend directly.
	BackendRoles []string

	// StructuredAttributes are flat attributes carried onto the User.
	StructuredAttributes map[string]string

	// AuthDomain is provenance: which frontend/backend chain produced
	// this attempt. Stamped by the domain after backend success.
	AuthDomain string

	// Complete is false when the frontend needs a second client
	// round-trip. Incomplete credentials stop the whole walk with the
	// frontend's challenge.
	Complete bool

	// RedirectURI is set by redirect-based frontends.
	RedirectURI string
}

// NewCredentials creates complete credentials with an empty attribute bag.
func NewCredentials(userName string, secret []byte) *AuthCredentials {
	c := &AuthCredentials{
		UserName:             userName,
		Attributes:           make(map[string]interface{}),
		StructuredAttributes: make(map[string]string),
		Complete:             true,
	}
	if secret != nil {
		c.Secret = NewSecret(secret)
	}
	return c
}

// ClearSecrets zero-fills the secret material. Safe on nil credentials and
// safe to call repeatedly; deferred by the processor on every exit path.
func (c *AuthCredentials) ClearSecrets() {
	if c == nil || c.Secret == nil {
		return
	}
	c.Secret.Zero()
}

// SecretDigest returns the cache-key digest of the secret, empty when
// there is none.
func (c *AuthCredentials) SecretDigest() string {
	if c.Secret == nil {
		return ""
	}
	return c.Secret.Digest()
}

// SecretBytes returns the raw secret, nil when there is none or it has
// been zeroed.
func (c *AuthCredentials) SecretBytes() []byte {
	if c.Secret == nil {
		return nil
	}
	return c.Secret.Bytes()
}

// Attribute sets one attribute in the mapping bag.
func (c *AuthCredentials) Attribute(name string, value interface{}) {
	if c.Attributes == nil {
		c.Attributes = make(map[string]interface{})
	}
	c.Attributes[name] = value
}
