// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package authc

import (
	"context"
	"errors"

	"github.com/sony/gobreaker/v2"

	"github.com/authweaver/authweaver/internal/config"
	"github.com/authweaver/authweaver/internal/logging"
)

// breakerBackend wraps a backend in a circuit breaker. Only
// infrastructure failures trip the breaker; unknown users and bad
// secrets are normal outcomes, not ill health. An open circuit reports
// as backend-unavailable so the processor skips the domain with a warn
// log instead of hammering a failing identity store.
type breakerBackend struct {
	inner   Backend
	breaker *gobreaker.CircuitBreaker[*AuthCredentials]
}

func newBreakerBackend(inner Backend, cfg config.BreakerConfig) Backend {
	settings := gobreaker.Settings{
		Name:     "authc-backend-" + inner.Type(),
		Interval: cfg.Interval,
		Timeout:  cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRate := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRate >= cfg.FailureRate
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// Credential-level outcomes are healthy backend behavior.
			var credErr *CredentialsError
			return errors.Is(err, ErrNoSuchUser) ||
				errors.Is(err, ErrInvalidCredentials) ||
				errors.Is(err, ErrNoCredentials) ||
				errors.Is(err, ErrNotSupported) ||
				errors.As(err, &credErr)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("backend circuit breaker state change")
			breakerStateChanges.WithLabelValues(name, to.String()).Inc()
		},
	}

	return &breakerBackend{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[*AuthCredentials](settings),
	}
}

func (b *breakerBackend) Type() string { return b.inner.Type() }

func (b *breakerBackend) CachingPolicy() CachingPolicy { return b.inner.CachingPolicy() }

func (b *breakerBackend) Authenticate(ctx context.Context, creds *AuthCredentials) (*AuthCredentials, error) {
	return b.execute(func() (*AuthCredentials, error) {
		return b.inner.Authenticate(ctx, creds)
	})
}

func (b *breakerBackend) UserInformation(ctx context.Context, creds *AuthCredentials) (*AuthCredentials, error) {
	return b.execute(func() (*AuthCredentials, error) {
		return b.inner.UserInformation(ctx, creds)
	})
}

func (b *breakerBackend) execute(fn func() (*AuthCredentials, error)) (*AuthCredentials, error) {
	result, err := b.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &BackendUnavailableError{Backend: b.inner.Type(), Cause: err}
	}
	return result, err
}
