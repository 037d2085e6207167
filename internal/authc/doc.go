// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

// Package authc implements the chained request-authentication pipeline:
// an ordered list of authentication domains tried first-match-wins, each
// binding a credential-extracting frontend to a credential-verifying
// backend with acceptance rules, user mapping, identity caching, and an
// impersonation sub-walk layered around the search.
package authc
