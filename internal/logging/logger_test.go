package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestPrettyHandlerFormatsComponentAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)
	logger := slog.New(newPrettyHandler(&buf, level))

	logger.Info("request queued",
		String(FieldComponent, "monitor"),
		Int64(FieldTMDBID, 603),
		String(FieldState, "queued"),
	)

	line := buf.String()
	if !strings.Contains(line, "INFO monitor: request queued") {
		t.Fatalf("unexpected log line: %q", line)
	}
	if !strings.Contains(line, "tmdb_id=603") {
		t.Fatalf("expected tmdb_id attr in %q", line)
	}
	if !strings.Contains(line, "state=queued") {
		t.Fatalf("expected state attr in %q", line)
	}
}

func TestPrettyHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	level := new(slog.LevelVar)
	level.Set(slog.LevelDebug)
	logger := slog.New(newPrettyHandler(&buf, level))

	logger.Debug("resolved", String("title", "The Matrix"))
	if !strings.Contains(buf.String(), `title="The Matrix"`) {
		t.Fatalf("expected quoted title in %q", buf.String())
	}
}

func TestPrettyHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	handler := newPrettyHandler(&buf, level)

	if handler.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info should be disabled at warn level")
	}
	if !handler.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("error should be enabled at warn level")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
