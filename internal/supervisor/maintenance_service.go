// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package supervisor

import (
	"context"
	"time"
)

// MaintenanceService runs a periodic housekeeping function under
// supervision. The lockout janitor and similar sweepers register here.
type MaintenanceService struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
}

// NewMaintenanceService wraps a periodic function as a supervised
// service. A run error is returned to suture, which restarts the
// service with backoff.
func NewMaintenanceService(name string, interval time.Duration, run func(ctx context.Context) error) *MaintenanceService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &MaintenanceService{name: name, interval: interval, run: run}
}

// Serve implements suture.Service.
func (m *MaintenanceService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := m.run(ctx); err != nil {
				return err
			}
		}
	}
}

func (m *MaintenanceService) String() string { return m.name }
