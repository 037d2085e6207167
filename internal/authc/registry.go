// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package authc

import (
	"fmt"

	"github.com/authweaver/authweaver/internal/userstore"
)

// Registry maps frontend and backend type strings to constructors. It is
// closed: the type set is fixed at startup and the registry is rebuilt
// wholesale on configuration reload, never mutated.
type Registry struct {
	store     userstore.Store
	frontends map[string]func(options map[string]interface{}) (Frontend, error)
	backends  map[string]func(options map[string]interface{}) (Backend, error)
}

// NewRegistry builds the registry over the given user store.
func NewRegistry(store userstore.Store) *Registry {
	r := &Registry{store: store}

	r.frontends = map[string]func(map[string]interface{}) (Frontend, error){
		"basic":          newBasicFrontend,
		"bearer":         newBearerFrontend,
		"clientcert":     newClientCertFrontend,
		"trusted_header": newTrustedHeaderFrontend,
	}
	r.backends = map[string]func(map[string]interface{}) (Backend, error){
		"internal": func(_ map[string]interface{}) (Backend, error) { return newInternalBackend(r.store) },
		"jwt":      newJWTBackend,
		"noop":     func(_ map[string]interface{}) (Backend, error) { return newNoopBackend() },
	}

	return r
}

// Frontend constructs a frontend of the given type.
func (r *Registry) Frontend(typ string, options map[string]interface{}) (Frontend, error) {
	ctor, ok := r.frontends[typ]
	if !ok {
		return nil, fmt.Errorf("unknown frontend type %q", typ)
	}
	frontend, err := ctor(options)
	if err != nil {
		return nil, fmt.Errorf("frontend %s: %w", typ, err)
	}
	return frontend, nil
}

// Backend constructs a backend of the given type.
func (r *Registry) Backend(typ string, options map[string]interface{}) (Backend, error) {
	ctor, ok := r.backends[typ]
	if !ok {
		return nil, fmt.Errorf("unknown backend type %q", typ)
	}
	backend, err := ctor(options)
	if err != nil {
		return nil, fmt.Errorf("backend %s: %w", typ, err)
	}
	return backend, nil
}
