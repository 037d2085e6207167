// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package audit

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"

	"github.com/authweaver/authweaver/internal/logging"
)

// Bus is the in-process watermill pub/sub carrying audit events. External
// consumers (SIEM forwarders, test subscribers) attach via Subscribe.
type Bus struct {
	pubsub *gochannel.GoChannel
}

// NewBus creates a new in-process audit event bus.
func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
		}, newWatermillLogger()),
	}
}

// Publisher returns the bus as a watermill publisher.
func (b *Bus) Publisher() message.Publisher {
	return b.pubsub
}

// Subscribe attaches a consumer to a topic.
func (b *Bus) Subscribe(topic string) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(context.Background(), topic)
}

// Close shuts down the bus.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// watermillLogger adapts watermill logging onto zerolog.
type watermillLogger struct {
	logger zerolog.Logger
}

func newWatermillLogger() watermill.LoggerAdapter {
	return &watermillLogger{logger: logging.Logger()}
}

func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.event(l.logger.Error().Err(err), fields).Msg(msg)
}

func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.event(l.logger.Debug(), fields).Msg(msg)
}

func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.event(l.logger.Debug(), fields).Msg(msg)
}

func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.event(l.logger.Trace(), fields).Msg(msg)
}

func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	logger := l.logger
	for k, v := range fields {
		logger = logger.With().Interface(k, v).Logger()
	}
	return &watermillLogger{logger: logger}
}

func (l *watermillLogger) event(e *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	return e
}
