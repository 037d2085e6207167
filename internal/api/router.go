// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/authweaver/authweaver/internal/config"
)

// NewRouter assembles the HTTP surface: unauthenticated liveness and
// metrics endpoints, and the /api subtree behind the authenticating
// filter.
func NewRouter(cfg *config.ServerConfig, filter *AuthenticatingRestFilter, handler *Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	if cfg.Timeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.Timeout))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Tenant", "X-Impersonate-As"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !cfg.RateLimitDisabled && cfg.RateLimitReqs > 0 {
		window := cfg.RateLimitWindow
		if window <= 0 {
			window = time.Minute
		}
		r.Use(httprate.LimitByIP(cfg.RateLimitReqs, window))
	}

	r.Get("/healthz", handler.Healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(filter.Middleware)

		r.Get("/authinfo", handler.AuthInfo)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/cache/invalidate", handler.InvalidateCaches)
			r.Get("/audit/recent", handler.RecentAuditEvents)
		})
	})

	return r
}
