// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package authc

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
)

// basicFrontend parses HTTP Basic authorization headers.
type basicFrontend struct {
	realm string
}

func newBasicFrontend(options map[string]interface{}) (Frontend, error) {
	return &basicFrontend{realm: stringOption(options, "realm", "Authweaver")}, nil
}

func (f *basicFrontend) Type() string { return "basic" }

func (f *basicFrontend) ExtractCredentials(meta *RequestMetaData) (*AuthCredentials, error) {
	header := meta.Header("Authorization")
	if header == "" {
		return nil, ErrNoCredentials
	}

	const prefix = "Basic "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return nil, ErrNoCredentials
	}

	decoded, err := base64.StdEncoding.DecodeString(header[len(prefix):])
	if err != nil {
		return nil, fmt.Errorf("%w: malformed basic authorization", ErrInvalidCredentials)
	}

	sep := bytes.IndexByte(decoded, ':')
	if sep < 0 {
		zeroBytes(decoded)
		return nil, fmt.Errorf("%w: malformed basic authorization", ErrInvalidCredentials)
	}

	creds := NewCredentials(string(decoded[:sep]), decoded[sep+1:])
	zeroBytes(decoded)
	if creds.UserName == "" {
		creds.ClearSecrets()
		return nil, fmt.Errorf("%w: empty username", ErrInvalidCredentials)
	}
	return creds, nil
}

func (f *basicFrontend) Challenge(_ *AuthCredentials) string {
	return fmt.Sprintf("Basic realm=%q", f.realm)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
