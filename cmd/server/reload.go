// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/authweaver/authweaver/internal/api"
	"github.com/authweaver/authweaver/internal/audit"
	"github.com/authweaver/authweaver/internal/authc"
	"github.com/authweaver/authweaver/internal/logging"
)

// reload re-reads the configuration, builds a fresh pipeline snapshot
// and swaps it into the filter. The server and its collaborators (user
// store, blocklist, enforcer) keep running; only the authc section takes
// effect. A failed reload leaves the current snapshot installed.
func reload(configPath string, filter *api.AuthenticatingRestFilter, deps authc.Dependencies, auditLog *audit.Logger) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("reload configuration: %w", err)
	}

	processor, err := authc.NewProcessor(cfg.Authc, deps)
	if err != nil {
		return fmt.Errorf("rebuild authentication pipeline: %w", err)
	}

	filter.Swap(processor)
	logging.Info().Int("domains", len(processor.Domains())).Msg("configuration reloaded, new pipeline installed")

	auditLog.Log(&audit.Event{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		Type:        audit.EventTypeConfigReloaded,
		Severity:    audit.SeverityInfo,
		Outcome:     audit.OutcomeSuccess,
		Action:      string(audit.EventTypeConfigReloaded),
		Description: fmt.Sprintf("authentication pipeline rebuilt with %d domains", len(processor.Domains())),
	})
	return nil
}
