package logutil

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"trace", LevelTrace},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewJSON_FiltersBelowLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewJSON(buf, "warn")

	logger.Info("hidden")
	logger.Warn("shown", "facility_id", "f-1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered: %s", out)
	}
	if !strings.Contains(out, `"facility_id":"f-1"`) {
		t.Errorf("expected JSON attribute, got: %s", out)
	}
}

func TestNoopIfNil(t *testing.T) {
	if NoopIfNil(nil) != Noop() {
		t.Error("expected discard logger for nil")
	}
	l := slog.Default()
	if NoopIfNil(l) != l {
		t.Error("expected the given logger back")
	}
}

func TestContextLogger(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("expected no logger in empty context")
	}
	if Ctx(context.Background()) != slog.Default() {
		t.Error("expected slog.Default() fallback")
	}

	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, nil))
	ctx := WithLogger(context.Background(), logger)

	Ctx(ctx).Info("probe", "key", "value")
	if !strings.Contains(buf.String(), "key=value") {
		t.Errorf("expected attached logger to be used, got: %s", buf.String())
	}

	nilCtx := context.WithValue(context.Background(), loggerKey{}, (*slog.Logger)(nil))
	if _, ok := FromContext(nilCtx); ok {
		t.Error("nil logger must not be reported as present")
	}
}
