// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package authc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// domainAttempts counts per-domain attempt outcomes.
	// Labels:
	//   - domain: the domain id
	//   - outcome: "pass", "skip", "stop"
	domainAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authc_domain_attempts_total",
			Help: "Total number of per-domain authentication attempts",
		},
		[]string{"domain", "outcome"},
	)

	// walkDuration measures the duration of one full authentication walk.
	walkDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "authc_walk_duration_seconds",
			Help:    "Duration of one authentication walk across all domains",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	// walkResults counts terminal walk outcomes.
	// Labels:
	//   - result: "pass", "401", "403", "challenge"
	walkResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authc_walk_results_total",
			Help: "Total number of terminal authentication walk results",
		},
		[]string{"result"},
	)

	// cacheLookups counts identity cache activity.
	// Labels:
	//   - cache: "identity", "impersonation"
	//   - outcome: "hit", "miss"
	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authc_cache_lookups_total",
			Help: "Total number of identity cache lookups",
		},
		[]string{"cache", "outcome"},
	)

	// domainPanics counts recovered panics inside domain evaluation.
	// Any non-zero value is a bug to chase: the walk hides the panic
	// behind a skip.
	domainPanics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authc_domain_panics_total",
			Help: "Total number of panics recovered during domain evaluation",
		},
		[]string{"domain"},
	)

	// impersonationAttempts counts impersonation sub-walk outcomes.
	// Labels:
	//   - outcome: "pass", "cached", "denied", "not_found"
	impersonationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authc_impersonation_attempts_total",
			Help: "Total number of impersonation attempts",
		},
		[]string{"outcome"},
	)

	// breakerStateChanges counts backend circuit breaker transitions.
	breakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authc_breaker_state_changes_total",
			Help: "Total number of backend circuit breaker state changes",
		},
		[]string{"breaker", "state"},
	)
)
