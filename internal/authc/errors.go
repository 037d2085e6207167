// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package authc

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors routed with errors.Is by the processor. The class of an
// error decides whether a domain is skipped quietly, skipped with a warning,
// or stops the whole walk.
var (
	// ErrNoCredentials means the frontend found nothing usable in the
	// request. The walk moves on to the next domain.
	ErrNoCredentials = errors.New("no usable credentials in request")

	// ErrInvalidCredentials means credentials were present but did not
	// verify. Also a skip: a later domain may know the user.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNoSuchUser means the backend has no record of the user. A skip.
	ErrNoSuchUser = errors.New("no such user")

	// ErrUnavailable means the frontend or backend itself could not be
	// evaluated (infrastructure problem, not a credentials problem).
	// Still a skip, but logged at warn level.
	ErrUnavailable = errors.New("authenticator unavailable")

	// ErrNotSupported means the backend does not implement the requested
	// capability (user-information lookup for impersonation).
	ErrNotSupported = errors.New("operation not supported by backend")
)

// CredentialsError reports structurally invalid extracted or mapped
// credentials, most prominently an ambiguous username mapping. It always
// skips the domain, never stops the walk.
type CredentialsError struct {
	Reason     string
	Candidates []string
}

func (e *CredentialsError) Error() string {
	if len(e.Candidates) > 0 {
		return fmt.Sprintf("%s (candidates: %s)", e.Reason, strings.Join(e.Candidates, ", "))
	}
	return e.Reason
}

// BackendUnavailableError wraps an infrastructure failure with diagnostic
// details kept out of client responses.
type BackendUnavailableError struct {
	Backend string
	Cause   error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("backend %s unavailable: %v", e.Backend, e.Cause)
}

func (e *BackendUnavailableError) Unwrap() error {
	return ErrUnavailable
}
