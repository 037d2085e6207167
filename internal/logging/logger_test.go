// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"disabled", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"ERROR", zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestInit_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf, Timestamp: true})
	defer Init(DefaultConfig())

	Info().Str("key", "value").Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"key":"value"`) {
		t.Errorf("expected structured field in output, got %q", out)
	}
	if !strings.Contains(out, `"message":"hello"`) {
		t.Errorf("expected message in output, got %q", out)
	}
}

func TestInit_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "warn", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Debug().Msg("should be filtered")
	Warn().Msg("should appear")

	out := buf.String()
	if strings.Contains(out, "should be filtered") {
		t.Errorf("debug message leaked through warn level: %q", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Errorf("warn message missing: %q", out)
	}
}

func TestCorrelationID(t *testing.T) {
	id := GenerateCorrelationID()
	if len(id) != 8 {
		t.Errorf("GenerateCorrelationID() length = %d, want 8", len(id))
	}

	ctx := ContextWithCorrelationID(context.Background(), "abc12345")
	if got := CorrelationIDFromContext(ctx); got != "abc12345" {
		t.Errorf("CorrelationIDFromContext() = %q, want abc12345", got)
	}

	if got := CorrelationIDFromContext(context.Background()); got != "" {
		t.Errorf("CorrelationIDFromContext(empty) = %q, want empty", got)
	}
}

func TestCtx_AttachesCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	ctx := ContextWithCorrelationID(context.Background(), "deadbeef")
	Ctx(ctx).Info().Msg("with id")

	if !strings.Contains(buf.String(), `"correlation_id":"deadbeef"`) {
		t.Errorf("expected correlation_id field, got %q", buf.String())
	}
}

func TestSlogBridge(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	slogger := NewSlogLogger()
	slogger.Info("supervisor event", "service", "api", "attempt", int64(2))

	out := buf.String()
	if !strings.Contains(out, `"service":"api"`) {
		t.Errorf("expected slog attr in zerolog output, got %q", out)
	}
	if !strings.Contains(out, `"attempt":2`) {
		t.Errorf("expected int attr in zerolog output, got %q", out)
	}
}
