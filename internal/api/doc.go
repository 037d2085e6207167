// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

// Package api is the HTTP boundary: the chi router, the authenticating
// filter that drives the authc pipeline, and the small admin surface
// (authinfo, cache invalidation, audit inspection).
package api
