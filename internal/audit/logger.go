// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package audit

import (
	"context"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/authweaver/authweaver/internal/logging"
)

// Config holds audit logger configuration.
type Config struct {
	// Enabled controls whether audit logging is active.
	Enabled bool

	// BufferSize is the size of the async write buffer.
	BufferSize int

	// Topic is the watermill topic audit events are published on.
	Topic string

	// LogToStdout mirrors events into the application log.
	LogToStdout bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Enabled:    true,
		BufferSize: 1000,
		Topic:      "authc.audit",
	}
}

// Logger is the asynchronous audit event sink. Events are buffered in a
// channel; a background goroutine persists them to the store and publishes
// them on the message bus. When the buffer is full events are dropped with
// a warning rather than blocking the authentication path.
type Logger struct {
	config    *Config
	store     Store
	publisher message.Publisher
	eventChan chan *Event
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewLogger creates a new audit logger. Both store and publisher are
// optional; a nil publisher disables bus publication.
func NewLogger(store Store, publisher message.Publisher, config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 1000
	}
	if config.Topic == "" {
		config.Topic = "authc.audit"
	}

	l := &Logger{
		config:    config,
		store:     store,
		publisher: publisher,
		eventChan: make(chan *Event, config.BufferSize),
		stopChan:  make(chan struct{}),
	}

	l.wg.Add(1)
	go l.asyncWriter()

	return l
}

// Log records an audit event. Never blocks.
func (l *Logger) Log(event *Event) {
	if !l.config.Enabled {
		return
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	select {
	case l.eventChan <- event:
	default:
		logging.Warn().Str("event_id", event.ID).Msg("audit buffer full, dropping event")
	}
}

// Close shuts down the logger, draining buffered events.
func (l *Logger) Close() error {
	l.stopOnce.Do(func() {
		close(l.stopChan)
	})
	l.wg.Wait()
	return nil
}

// asyncWriter drains the buffer until stopped.
func (l *Logger) asyncWriter() {
	defer l.wg.Done()

	for {
		select {
		case <-l.stopChan:
			for {
				select {
				case event := <-l.eventChan:
					l.writeEvent(event)
				default:
					return
				}
			}
		case event := <-l.eventChan:
			l.writeEvent(event)
		}
	}
}

// writeEvent persists and publishes one event. Failures are logged and
// swallowed: audit is best effort.
func (l *Logger) writeEvent(event *Event) {
	if l.config.LogToStdout {
		if data, err := json.Marshal(event); err == nil {
			logging.Info().RawJSON("event", data).Msg("audit event")
		}
	}

	if l.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := l.store.Save(ctx, event); err != nil {
			logging.Error().Err(err).Msg("failed to save audit event")
		}
		cancel()
	}

	if l.publisher != nil {
		data, err := json.Marshal(event)
		if err != nil {
			logging.Error().Err(err).Msg("failed to marshal audit event")
			return
		}
		msg := message.NewMessage(event.ID, data)
		if err := l.publisher.Publish(l.config.Topic, msg); err != nil {
			logging.Error().Err(err).Str("topic", l.config.Topic).Msg("failed to publish audit event")
		}
	}
}
