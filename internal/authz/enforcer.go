// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

// Package authz provides the casbin-backed privilege checks consulted by
// the authentication pipeline: the "required login privileges" gate that
// decides whether an authenticated user may log in at all.
package authz

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/authweaver/authweaver/internal/logging"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// EnforcerConfig holds configuration for the privilege enforcer.
type EnforcerConfig struct {
	// ModelPath is the path to a casbin model file. Empty uses the
	// embedded model.
	ModelPath string

	// PolicyPath is the path to a casbin policy file. Empty uses the
	// embedded policy.
	PolicyPath string

	// DefaultRole is assumed for users without any role.
	DefaultRole string

	// CacheEnabled enables decision caching.
	CacheEnabled bool

	// CacheTTL is how long to cache decisions.
	CacheTTL time.Duration
}

// DefaultEnforcerConfig returns default configuration.
func DefaultEnforcerConfig() *EnforcerConfig {
	return &EnforcerConfig{
		DefaultRole:  "user",
		CacheEnabled: true,
		CacheTTL:     5 * time.Minute,
	}
}

// Enforcer answers privilege questions for authenticated users. Decisions
// are keyed on (role, privilege) pairs; the user's roles are checked in
// turn and any allowing role wins.
type Enforcer struct {
	config   *EnforcerConfig
	enforcer *casbin.SyncedEnforcer
	cache    *decisionCache
}

// NewEnforcer creates a new privilege enforcer.
func NewEnforcer(config *EnforcerConfig) (*Enforcer, error) {
	if config == nil {
		config = DefaultEnforcerConfig()
	}

	var m model.Model
	var err error
	if config.ModelPath != "" && fileExists(config.ModelPath) {
		m, err = model.NewModelFromFile(config.ModelPath)
	} else {
		m, err = model.NewModelFromString(embeddedModel)
	}
	if err != nil {
		return nil, fmt.Errorf("load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if config.PolicyPath != "" && fileExists(config.PolicyPath) {
		enforcer, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(config.PolicyPath))
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadEmbeddedPolicy(enforcer, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}

	e := &Enforcer{
		config:   config,
		enforcer: enforcer,
	}
	if config.CacheEnabled {
		e.cache = newDecisionCache(config.CacheTTL)
	}
	return e, nil
}

// HasPrivileges reports whether a user with the given roles holds every
// one of the required privileges. An empty requirement list always passes.
func (e *Enforcer) HasPrivileges(ctx context.Context, roles []string, privileges []string) (bool, error) {
	if len(privileges) == 0 {
		return true, nil
	}

	subjects := roles
	if len(subjects) == 0 && e.config.DefaultRole != "" {
		subjects = []string{e.config.DefaultRole}
	}

	for _, priv := range privileges {
		allowed, err := e.anySubjectAllows(subjects, priv)
		if err != nil {
			return false, err
		}
		if !allowed {
			logging.Ctx(ctx).Debug().Str("privilege", priv).Strs("roles", roles).Msg("privilege denied")
			return false, nil
		}
	}
	return true, nil
}

func (e *Enforcer) anySubjectAllows(subjects []string, priv string) (bool, error) {
	for _, sub := range subjects {
		if e.cache != nil {
			if allowed, ok := e.cache.get(sub, priv); ok {
				if allowed {
					return true, nil
				}
				continue
			}
		}

		allowed, err := e.enforcer.Enforce(sub, priv)
		if err != nil {
			return false, fmt.Errorf("enforce %s/%s: %w", sub, priv, err)
		}
		if e.cache != nil {
			e.cache.put(sub, priv, allowed)
		}
		if allowed {
			return true, nil
		}
	}
	return false, nil
}

// InvalidateCache drops all cached decisions. Called on policy reload.
func (e *Enforcer) InvalidateCache() {
	if e.cache != nil {
		e.cache.clear()
	}
}

// loadEmbeddedPolicy parses the embedded CSV policy into the enforcer.
func loadEmbeddedPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) < 3 {
			continue
		}

		var err error
		switch parts[0] {
		case "p":
			_, err = enforcer.AddPolicy(toInterfaces(parts[1:])...)
		case "g":
			_, err = enforcer.AddGroupingPolicy(toInterfaces(parts[1:])...)
		}
		if err != nil {
			return fmt.Errorf("load policy line %q: %w", line, err)
		}
	}
	return nil
}

func toInterfaces(parts []string) []interface{} {
	out := make([]interface{}, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
