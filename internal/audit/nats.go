// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

//go:build nats

package audit

import (
	"fmt"

	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/authweaver/authweaver/internal/config"
)

// NewTransportPublisher creates the audit event publisher. In nats-tagged
// builds with NATS enabled, events go to an external NATS server; otherwise
// the in-process bus is used.
func NewTransportPublisher(cfg *config.AuditNATSConfig, bus *Bus) (message.Publisher, error) {
	if cfg == nil || !cfg.Enabled {
		return bus.Publisher(), nil
	}

	logger := newWatermillLogger()

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", map[string]interface{}{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled: true,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create NATS audit publisher: %w", err)
	}

	return pub, nil
}
