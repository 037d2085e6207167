// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package authc

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/authweaver/authweaver/internal/config"
	"github.com/authweaver/authweaver/internal/logging"
)

// mappingRule is one compiled mapping specification: either a static
// literal or an attribute-path extraction with optional split and regex
// capture.
type mappingRule struct {
	from    string
	pattern *regexp.Regexp
	split   string
	static  string
}

func newMappingRule(cfg config.MappingRuleConfig) (*mappingRule, error) {
	if cfg.Static != "" && cfg.From != "" {
		return nil, fmt.Errorf("mapping rule: static and from are mutually exclusive")
	}
	if cfg.Static == "" && cfg.From == "" {
		return nil, fmt.Errorf("mapping rule: one of static or from is required")
	}
	rule := &mappingRule{from: cfg.From, split: cfg.Split, static: cfg.Static}
	if cfg.Pattern != "" {
		re, err := regexp.Compile(cfg.Pattern)
		if err != nil {
			return nil, fmt.Errorf("mapping rule pattern %q: %w", cfg.Pattern, err)
		}
		rule.pattern = re
	}
	return rule, nil
}

// apply produces the rule's candidate strings from the credential. A rule
// that matches nothing produces no candidates; that is filtering, not an
// error.
func (r *mappingRule) apply(creds *AuthCredentials) []string {
	if r.static != "" {
		return []string{r.static}
	}

	value, ok := attributePath(creds, r.from)
	if !ok {
		return nil
	}

	raw := attributeStrings(value)
	if r.split != "" {
		var pieces []string
		for _, s := range raw {
			pieces = append(pieces, strings.Split(s, r.split)...)
		}
		raw = pieces
	}

	if r.pattern == nil {
		return trimNonEmpty(raw)
	}

	var out []string
	for _, s := range raw {
		if captured, ok := capture(r.pattern, s); ok {
			out = append(out, captured)
		}
	}
	return trimNonEmpty(out)
}

// capture applies regex capture semantics: one capturing group yields that
// group, several concatenate all non-empty groups in order, zero groups
// yield the full match. No match filters the value out.
func capture(re *regexp.Regexp, s string) (string, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	if len(m) == 1 {
		return m[0], true
	}
	if len(m) == 2 {
		return m[1], true
	}
	var b strings.Builder
	for _, g := range m[1:] {
		b.WriteString(g)
	}
	return b.String(), true
}

// UserMapping is the declarative transform from raw backend attributes to
// the canonical username, backend roles, and structured attributes.
type UserMapping struct {
	userName []*mappingRule
	roles    []*mappingRule
	attrs    map[string]*mappingRule
}

// NewUserMapping compiles a mapping configuration.
func NewUserMapping(cfg config.MappingConfig) (*UserMapping, error) {
	m := &UserMapping{attrs: make(map[string]*mappingRule)}

	for i, rc := range cfg.UserName {
		rule, err := newMappingRule(rc)
		if err != nil {
			return nil, fmt.Errorf("user_name[%d]: %w", i, err)
		}
		m.userName = append(m.userName, rule)
	}
	for i, rc := range cfg.Roles {
		rule, err := newMappingRule(rc)
		if err != nil {
			return nil, fmt.Errorf("roles[%d]: %w", i, err)
		}
		m.roles = append(m.roles, rule)
	}
	for name, rc := range cfg.Attrs {
		rule, err := newMappingRule(rc)
		if err != nil {
			return nil, fmt.Errorf("attrs[%s]: %w", name, err)
		}
		m.attrs[name] = rule
	}
	return m, nil
}

// MapCredentials rewrites the username before backend authentication,
// when username rules are configured. Ambiguity is a hard failure: the
// mapping refuses to guess among multiple plausible usernames.
func (m *UserMapping) MapCredentials(creds *AuthCredentials) (*AuthCredentials, error) {
	if m == nil || len(m.userName) == 0 {
		return creds, nil
	}
	name, err := m.resolveUserName(creds)
	if err != nil {
		return nil, err
	}
	creds.UserName = name
	return creds, nil
}

// Map is the final transform after backend authentication.
func (m *UserMapping) Map(creds *AuthCredentials) (*User, error) {
	user := &User{AuthDomain: creds.AuthDomain}

	if m != nil && len(m.userName) > 0 {
		name, err := m.resolveUserName(creds)
		if err != nil {
			return nil, err
		}
		user.Name = name
	} else {
		user.Name = creds.UserName
	}
	if user.Name == "" {
		return nil, &CredentialsError{Reason: "mapping produced no username"}
	}

	roleSet := make(map[string]struct{})
	for _, role := range creds.BackendRoles {
		roleSet[role] = struct{}{}
	}
	if m != nil {
		for _, rule := range m.roles {
			for _, role := range rule.apply(creds) {
				roleSet[role] = struct{}{}
			}
		}
	}
	if len(roleSet) > 0 {
		user.BackendRoles = make([]string, 0, len(roleSet))
		for role := range roleSet {
			user.BackendRoles = append(user.BackendRoles, role)
		}
		sort.Strings(user.BackendRoles)
	}

	attrs := make(map[string]string)
	for k, v := range creds.StructuredAttributes {
		attrs[k] = v
	}
	if m != nil {
		for name, rule := range m.attrs {
			values := rule.apply(creds)
			if len(values) == 0 {
				// Lenient: attribute sources are heterogeneous
				// across backend types.
				logging.Debug().Str("attribute", name).Msg("attribute mapping produced no value, skipping")
				continue
			}
			attrs[name] = values[0]
		}
	}
	if len(attrs) > 0 {
		user.Attributes = attrs
	}

	return user, nil
}

// resolveUserName unions all candidates from the username rules; exactly
// one distinct candidate must remain.
func (m *UserMapping) resolveUserName(creds *AuthCredentials) (string, error) {
	seen := make(map[string]struct{})
	var candidates []string
	for _, rule := range m.userName {
		for _, c := range rule.apply(creds) {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			candidates = append(candidates, c)
		}
	}

	switch len(candidates) {
	case 1:
		return candidates[0], nil
	case 0:
		return "", &CredentialsError{Reason: "username mapping produced no candidate"}
	default:
		return "", &CredentialsError{
			Reason:     "username mapping produced more than one candidate",
			Candidates: candidates,
		}
	}
}

// attributePath navigates a dot-separated path into the credential's
// attribute bag. The path "user_name" falls back to the credential's
// username when the bag has no such key.
func attributePath(creds *AuthCredentials, path string) (interface{}, bool) {
	var current interface{} = creds.Attributes
	for _, seg := range strings.Split(path, ".") {
		node, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = node[seg]
		if !ok {
			if path == "user_name" && creds.UserName != "" {
				return creds.UserName, true
			}
			return nil, false
		}
	}
	return current, true
}

// attributeStrings flattens an attribute value into strings: scalars
// stringify, lists flatten one level, anything else is dropped.
func attributeStrings(value interface{}) []string {
	switch v := value.(type) {
	case string:
		return []string{v}
	case bool:
		return []string{strconv.FormatBool(v)}
	case int:
		return []string{strconv.Itoa(v)}
	case int64:
		return []string{strconv.FormatInt(v, 10)}
	case float64:
		return []string{strconv.FormatFloat(v, 'f', -1, 64)}
	case []string:
		return v
	case []interface{}:
		var out []string
		for _, item := range v {
			out = append(out, attributeStrings(item)...)
		}
		return out
	default:
		return nil
	}
}

func trimNonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
