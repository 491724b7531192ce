package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/loomkit/loom/pkg/core"
)

func TestInit(t *testing.T) {
	shutdown, err := Init("loom-test", "v0.0.1")
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if shutdown == nil {
		t.Fatal("Shutdown function should not be nil")
	}

	if err := shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestInitWithConfigRejectsUnknownExporter(t *testing.T) {
	if _, err := InitWithConfig("loom-test", "v0.0.1", Config{Exporter: "carrier-pigeon"}); err == nil {
		t.Fatal("expected error for unknown exporter")
	}
	if _, err := InitWithConfig("loom-test", "v0.0.1", Config{Exporter: "otlp"}); err == nil {
		t.Fatal("expected error for otlp without endpoint")
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestTraceHandlerStampsCallID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newSlogHandler(&buf, "info", "json"))

	ctx := core.WithCallID(context.Background(), "call-123")
	logger.InfoContext(ctx, "invoking tool")

	if !strings.Contains(buf.String(), `"call_id":"call-123"`) {
		t.Errorf("log line missing call_id: %s", buf.String())
	}
}

func TestTraceHandlerFormats(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newSlogHandler(&buf, "info", "text"))
	logger.Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("text handler output unexpected: %s", buf.String())
	}

	buf.Reset()
	logger = slog.New(newSlogHandler(&buf, "error", "json"))
	logger.Info("suppressed")
	if buf.Len() != 0 {
		t.Errorf("info logged at error level: %s", buf.String())
	}
}
