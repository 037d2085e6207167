// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package authc

import (
	"fmt"
	"net"
	"net/netip"
	"regexp"
	"strings"

	"github.com/authweaver/authweaver/internal/config"
)

// criteria is one side (accept or skip) of a domain's acceptance rules.
// Absent criteria are permissive.
type criteria struct {
	ips            []*net.IPNet
	originatingIPs []*net.IPNet
	trustedIPs     []*net.IPNet
	hasTrustedIPs  bool
	users          []*regexp.Regexp
	clientCertDNs  []*regexp.Regexp
}

// AcceptanceRules gate whether a domain is attempted for a given request
// or credential: an allow-list ANDed with a deny-list, every clause
// independently optional, first violated clause rejecting.
type AcceptanceRules struct {
	accept *criteria
	skip   *criteria
}

// NewAcceptanceRules compiles accept and skip criteria from configuration.
func NewAcceptanceRules(accept, skip config.CriteriaConfig) (*AcceptanceRules, error) {
	a, err := newCriteria(accept)
	if err != nil {
		return nil, fmt.Errorf("accept criteria: %w", err)
	}
	s, err := newCriteria(skip)
	if err != nil {
		return nil, fmt.Errorf("skip criteria: %w", err)
	}
	return &AcceptanceRules{accept: a, skip: s}, nil
}

func newCriteria(cfg config.CriteriaConfig) (*criteria, error) {
	c := &criteria{hasTrustedIPs: len(cfg.TrustedIPs) > 0}

	var err error
	if c.ips, err = parseCIDRs(cfg.IPs); err != nil {
		return nil, err
	}
	if c.originatingIPs, err = parseCIDRs(cfg.OriginatingIPs); err != nil {
		return nil, err
	}
	if c.trustedIPs, err = parseCIDRs(cfg.TrustedIPs); err != nil {
		return nil, err
	}
	if c.users, err = compilePatterns(cfg.Users); err != nil {
		return nil, err
	}
	if c.clientCertDNs, err = compilePatterns(cfg.ClientCertDNs); err != nil {
		return nil, err
	}
	return c, nil
}

// AcceptRequest evaluates the request-level clauses. The returned reason
// names the first violated clause, for skip logging only.
func (r *AcceptanceRules) AcceptRequest(meta *RequestMetaData) (bool, string) {
	if r == nil {
		return true, ""
	}

	if len(r.accept.ips) > 0 &&
		!ipMatches(meta.DirectIP(), r.accept.ips) && !ipMatches(meta.OriginatingIP(), r.accept.ips) {
		return false, "ip not in accept set"
	}
	if len(r.accept.originatingIPs) > 0 && !ipMatches(meta.OriginatingIP(), r.accept.originatingIPs) {
		return false, "originating ip not in accept set"
	}
	if r.accept.hasTrustedIPs {
		if !meta.TrustedProxy() {
			return false, "not a trusted-proxy request"
		}
		if len(r.accept.trustedIPs) > 0 && !ipMatches(meta.DirectIP(), r.accept.trustedIPs) {
			return false, "proxy not in trusted set"
		}
	}
	if len(r.accept.clientCertDNs) > 0 {
		if meta.ClientCertSubject() == "" {
			return false, "no client certificate"
		}
		if !patternMatches(meta.ClientCertSubject(), r.accept.clientCertDNs) {
			return false, "client certificate subject not accepted"
		}
	}

	if len(r.skip.ips) > 0 &&
		(ipMatches(meta.DirectIP(), r.skip.ips) || ipMatches(meta.OriginatingIP(), r.skip.ips)) {
		return false, "ip in skip set"
	}
	if len(r.skip.originatingIPs) > 0 && ipMatches(meta.OriginatingIP(), r.skip.originatingIPs) {
		return false, "originating ip in skip set"
	}
	if r.skip.hasTrustedIPs && meta.TrustedProxy() &&
		(len(r.skip.trustedIPs) == 0 || ipMatches(meta.DirectIP(), r.skip.trustedIPs)) {
		return false, "trusted proxy in skip set"
	}
	if len(r.skip.clientCertDNs) > 0 {
		if meta.ClientCertSubject() == "" {
			return false, "no client certificate"
		}
		if patternMatches(meta.ClientCertSubject(), r.skip.clientCertDNs) {
			return false, "client certificate subject in skip set"
		}
	}

	return true, ""
}

// AcceptCredentials evaluates the username clauses against the (possibly
// rewritten) username.
func (r *AcceptanceRules) AcceptCredentials(creds *AuthCredentials) (bool, string) {
	if r == nil {
		return true, ""
	}
	if len(r.accept.users) > 0 && !patternMatches(creds.UserName, r.accept.users) {
		return false, "username not in accept set"
	}
	if len(r.skip.users) > 0 && patternMatches(creds.UserName, r.skip.users) {
		return false, "username in skip set"
	}
	return true, ""
}

func parseCIDRs(raw []string) ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(raw))
	for _, s := range raw {
		if !strings.Contains(s, "/") {
			if strings.Contains(s, ":") {
				s += "/128"
			} else {
				s += "/32"
			}
		}
		_, n, err := net.ParseCIDR(s)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q: %w", s, err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}

// compilePatterns turns shell-style wildcard patterns ('*' matches any
// run, '?' a single character) into anchored regexps. A pattern wrapped
// in slashes is taken as a raw regexp.
func compilePatterns(raw []string) ([]*regexp.Regexp, error) {
	patterns := make([]*regexp.Regexp, 0, len(raw))
	for _, p := range raw {
		var expr string
		if len(p) > 1 && strings.HasPrefix(p, "/") && strings.HasSuffix(p, "/") {
			expr = p[1 : len(p)-1]
		} else {
			var b strings.Builder
			b.WriteString("^")
			for _, r := range p {
				switch r {
				case '*':
					b.WriteString(".*")
				case '?':
					b.WriteString(".")
				default:
					b.WriteString(regexp.QuoteMeta(string(r)))
				}
			}
			b.WriteString("$")
			expr = b.String()
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}
	return patterns, nil
}

func ipMatches(addr netip.Addr, nets []*net.IPNet) bool {
	if !addr.IsValid() {
		return false
	}
	return ipInNets(addr, nets)
}

func patternMatches(s string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}
