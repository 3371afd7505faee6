package logger

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLogLevel(in); got != want {
			t.Fatalf("parseLogLevel(%q): expected %s, got %s", in, want, got)
		}
	}
}

func TestAppLogger_WritesStructuredFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewFromZap(zap.New(core))

	log.Info("story recorded", "user_id", "user-1", "count", 2)
	log.Error("usage update failed", errors.New("boom"), "user_id", "user-1")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	info := entries[0].ContextMap()
	if info["user_id"] != "user-1" {
		t.Fatalf("expected user_id field, got %v", info)
	}
	if info["count"] != int64(2) {
		t.Fatalf("expected count field 2, got %v", info["count"])
	}

	if entries[1].Level != zapcore.ErrorLevel {
		t.Fatalf("expected error level, got %s", entries[1].Level)
	}
	if entries[1].ContextMap()["error"] != "boom" {
		t.Fatalf("expected error field, got %v", entries[1].ContextMap())
	}
}

func TestAppLogger_RespectsLevel(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	log := NewFromZap(zap.New(core))

	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("shown")

	if logs.Len() != 1 {
		t.Fatalf("expected only the warning to be logged, got %d entries", logs.Len())
	}
}

func TestNewNopLogger(t *testing.T) {
	log := NewNopLogger()
	log.Info("ignored")
	Sync(log)
}
