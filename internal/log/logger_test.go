package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogMutationFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: ComponentRecords, Handler: slog.NewTextHandler(&buf, nil)})

	NewStructuredLogger(logger).LogMutation(context.Background(), "center", 7, OpDelete, "auto_delete_center")

	out := buf.String()
	for _, want := range []string{"center_id=7", "operation=delete", "reason=auto_delete_center", "entity=center"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line %q missing %q", out, want)
		}
	}
}

func TestFromContextFallsBack(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != "unknown" {
		t.Fatalf("expected fallback logger, got %+v", l)
	}
}

func TestContextEnrich(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: ComponentHTTP, Handler: slog.NewTextHandler(&buf, nil)})

	ctx := NewContext(context.Background(), logger.With(FieldRequestID, "req_1"))
	ctx = Enrich(ctx, FieldUserID, int64(3))
	FromContext(ctx).InfoContext(ctx, "hello")

	out := buf.String()
	for _, want := range []string{"request_id=req_1", "user_id=3", "msg=hello"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line %q missing %q", out, want)
		}
	}
}

func TestLogRequestError(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Handler: slog.NewTextHandler(&buf, nil)})
	r := httptest.NewRequest(http.MethodPost, "/coaches?month=May", nil)

	NewStructuredLogger(logger).LogRequestError(context.Background(), r, "update_salary", errors.New("disk full"))

	out := buf.String()
	for _, want := range []string{"level=ERROR", "operation=update_salary", "path=/coaches", "method=POST", `error="disk full"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log line %q missing %q", out, want)
		}
	}
}
