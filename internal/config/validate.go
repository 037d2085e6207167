// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package config

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// structValidator returns the shared validator instance. The instance
// caches struct metadata and is safe for concurrent use.
func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks structural (tag-based) and semantic constraints.
func (c *Config) Validate() error {
	if err := structValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			ve := verrs[0]
			return fmt.Errorf("field %s failed rule %q", ve.Namespace(), ve.Tag())
		}
		return err
	}

	if err := c.validateDomains(); err != nil {
		return err
	}
	if err := c.validateCIDRs(); err != nil {
		return err
	}
	return c.validateUserStore()
}

// knownFrontends and knownBackends are the closed registry type sets.
// Kept in config so a typo fails at load time, not at first request.
var (
	knownFrontends = map[string]bool{
		"basic":          true,
		"bearer":         true,
		"clientcert":     true,
		"trusted_header": true,
	}
	knownBackends = map[string]bool{
		"internal": true,
		"jwt":      true,
		"noop":     true,
	}
)

func (c *Config) validateDomains() error {
	seen := map[string]bool{}
	for i := range c.Authc.Domains {
		d := &c.Authc.Domains[i]

		if !knownFrontends[d.Frontend] {
			return fmt.Errorf("domain %d: unknown frontend type %q", i, d.Frontend)
		}
		if !knownBackends[d.Backend] {
			return fmt.Errorf("domain %d: unknown backend type %q", i, d.Backend)
		}
		for _, ui := range d.UserInfoBackends {
			if !knownBackends[ui] {
				return fmt.Errorf("domain %d: unknown user_info backend type %q", i, ui)
			}
		}
		if d.ID != "" {
			if seen[d.ID] {
				return fmt.Errorf("domain %d: duplicate id %q", i, d.ID)
			}
			seen[d.ID] = true
		}

		if err := validateMappingRules(d.Mapping.UserName, fmt.Sprintf("domain %d user_name", i)); err != nil {
			return err
		}
		if err := validateMappingRules(d.Mapping.Roles, fmt.Sprintf("domain %d roles", i)); err != nil {
			return err
		}
		for name, rule := range d.Mapping.Attrs {
			if err := validateMappingRules([]MappingRuleConfig{rule}, fmt.Sprintf("domain %d attr %s", i, name)); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateMappingRules(rules []MappingRuleConfig, where string) error {
	for _, r := range rules {
		if r.Static != "" && r.From != "" {
			return fmt.Errorf("%s: static and from are mutually exclusive", where)
		}
		if r.Static == "" && r.From == "" {
			return fmt.Errorf("%s: one of static or from is required", where)
		}
		if r.Pattern != "" {
			if _, err := regexp.Compile(r.Pattern); err != nil {
				return fmt.Errorf("%s: invalid pattern: %w", where, err)
			}
		}
	}
	return nil
}

func (c *Config) validateCIDRs() error {
	check := func(blocks []string, where string) error {
		for _, b := range blocks {
			if err := validateCIDR(b); err != nil {
				return fmt.Errorf("%s: %w", where, err)
			}
		}
		return nil
	}

	for i := range c.Authc.Domains {
		d := &c.Authc.Domains[i]
		for _, pair := range []struct {
			blocks []string
			where  string
		}{
			{d.Accept.IPs, fmt.Sprintf("domain %d accept.ips", i)},
			{d.Accept.OriginatingIPs, fmt.Sprintf("domain %d accept.originating_ips", i)},
			{d.Accept.TrustedIPs, fmt.Sprintf("domain %d accept.trusted_ips", i)},
			{d.Skip.IPs, fmt.Sprintf("domain %d skip.ips", i)},
			{d.Skip.OriginatingIPs, fmt.Sprintf("domain %d skip.originating_ips", i)},
		} {
			if err := check(pair.blocks, pair.where); err != nil {
				return err
			}
		}
	}

	return check(c.Blocklist.IPs, "blocklist.ips")
}

// validateCIDR accepts either a CIDR block or a bare IP address.
func validateCIDR(block string) error {
	if strings.Contains(block, "/") {
		if _, _, err := net.ParseCIDR(block); err != nil {
			return fmt.Errorf("invalid CIDR %q", block)
		}
		return nil
	}
	if net.ParseIP(block) == nil {
		return fmt.Errorf("invalid IP %q", block)
	}
	return nil
}

func (c *Config) validateUserStore() error {
	if c.UserStore.Type == "badger" && c.UserStore.Path == "" {
		return errors.New("user_store.path is required for badger store")
	}
	seen := map[string]bool{}
	for _, u := range c.UserStore.Users {
		if seen[u.Name] {
			return fmt.Errorf("user_store: duplicate user %q", u.Name)
		}
		seen[u.Name] = true
	}
	return nil
}
