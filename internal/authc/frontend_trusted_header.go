// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package authc

import (
	"strings"
)

// trustedHeaderFrontend reads a reverse-proxy identity header. It is only
// honored for requests that arrived through a trusted proxy; believing
// the header from an arbitrary client would be identity spoofing.
type trustedHeaderFrontend struct {
	userHeader  string
	rolesHeader string
}

func newTrustedHeaderFrontend(options map[string]interface{}) (Frontend, error) {
	return &trustedHeaderFrontend{
		userHeader:  stringOption(options, "user_header", "x-proxy-user"),
		rolesHeader: stringOption(options, "roles_header", "x-proxy-roles"),
	}, nil
}

func (f *trustedHeaderFrontend) Type() string { return "trusted_header" }

func (f *trustedHeaderFrontend) ExtractCredentials(meta *RequestMetaData) (*AuthCredentials, error) {
	if !meta.TrustedProxy() {
		return nil, ErrNoCredentials
	}

	name := strings.TrimSpace(meta.Header(f.userHeader))
	if name == "" {
		return nil, ErrNoCredentials
	}

	creds := NewCredentials(name, nil)
	if raw := meta.Header(f.rolesHeader); raw != "" {
		for _, role := range strings.Split(raw, ",") {
			if role = strings.TrimSpace(role); role != "" {
				creds.BackendRoles = append(creds.BackendRoles, role)
			}
		}
	}
	return creds, nil
}

func (f *trustedHeaderFrontend) Challenge(_ *AuthCredentials) string { return "" }
