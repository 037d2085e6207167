// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package authc

import (
	"fmt"
)

// Frontend extracts raw credentials from a request. Implementations must
// be synchronous and CPU-only; anything that needs I/O must report
// ErrUnavailable distinctly from ErrNoCredentials.
type Frontend interface {
	// Type is the registry type string.
	Type() string

	// ExtractCredentials parses the request. It returns ErrNoCredentials
	// when nothing usable is present, ErrUnavailable when the frontend
	// itself cannot operate. Extracted credentials may be incomplete
	// (Complete == false) when a second client round-trip is needed.
	ExtractCredentials(meta *RequestMetaData) (*AuthCredentials, error)

	// Challenge is the protocol challenge to replay on final failure
	// (a WWW-Authenticate value), empty when the frontend has none.
	Challenge(creds *AuthCredentials) string
}

// Option helpers for the map[string]interface{} option bags passed from
// domain configuration to constructors.

func stringOption(options map[string]interface{}, key, fallback string) string {
	if v, ok := options[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

func requiredStringOption(options map[string]interface{}, key string) (string, error) {
	if s := stringOption(options, key, ""); s != "" {
		return s, nil
	}
	return "", fmt.Errorf("option %q is required", key)
}
