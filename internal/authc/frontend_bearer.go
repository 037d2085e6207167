// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package authc

import (
	"strings"
)

// bearerFrontend extracts Bearer tokens from the Authorization header or
// an optional URL parameter. Verification is the backend's job; the token
// travels as the credential secret.
type bearerFrontend struct {
	param string
}

func newBearerFrontend(options map[string]interface{}) (Frontend, error) {
	return &bearerFrontend{param: stringOption(options, "url_param", "")}, nil
}

func (f *bearerFrontend) Type() string { return "bearer" }

func (f *bearerFrontend) ExtractCredentials(meta *RequestMetaData) (*AuthCredentials, error) {
	token := ""

	header := meta.Header("Authorization")
	const prefix = "Bearer "
	if len(header) >= len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		token = strings.TrimSpace(header[len(prefix):])
	}
	if token == "" && f.param != "" && meta.Request() != nil {
		token = meta.Request().URL.Query().Get(f.param)
	}
	if token == "" {
		return nil, ErrNoCredentials
	}

	// Username stays empty until the backend verifies the token and the
	// mapping extracts it from the claims.
	return NewCredentials("", []byte(token)), nil
}

func (f *bearerFrontend) Challenge(_ *AuthCredentials) string {
	return "Bearer"
}
