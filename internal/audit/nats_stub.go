// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

//go:build !nats

package audit

import (
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/authweaver/authweaver/internal/config"
	"github.com/authweaver/authweaver/internal/logging"
)

// NewTransportPublisher returns the in-process bus publisher. NATS
// transport requires the nats build tag.
func NewTransportPublisher(cfg *config.AuditNATSConfig, bus *Bus) (message.Publisher, error) {
	if cfg != nil && cfg.Enabled {
		logging.Warn().Msg("audit NATS transport requested but binary built without nats tag, using in-process bus")
	}
	return bus.Publisher(), nil
}
