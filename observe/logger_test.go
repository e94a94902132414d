package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLogger_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter("info", &buf)

	log.Info(context.Background(), "request sent", Field{Key: "status", Value: 200})

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("Got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e["msg"] != "request sent" {
		t.Errorf("msg = %v, want %q", e["msg"], "request sent")
	}
	if e["level"] != "info" {
		t.Errorf("level = %v, want info", e["level"])
	}
	if e["status"] != float64(200) {
		t.Errorf("status = %v, want 200", e["status"])
	}
	if _, ok := e["timestamp"]; !ok {
		t.Error("entry missing timestamp")
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter("warn", &buf)

	log.Debug(context.Background(), "dropped")
	log.Info(context.Background(), "dropped")
	log.Warn(context.Background(), "kept")
	log.Error(context.Background(), "kept")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("Got %d entries, want 2", len(entries))
	}
	if entries[0]["level"] != "warn" || entries[1]["level"] != "error" {
		t.Errorf("Levels = %v, %v, want warn, error", entries[0]["level"], entries[1]["level"])
	}
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter("info", &buf).WithComponent("token_manager")

	log.Info(context.Background(), "token refreshed")

	entries := decodeLines(t, &buf)
	if entries[0]["component"] != "token_manager" {
		t.Errorf("component = %v, want token_manager", entries[0]["component"])
	}
}

func TestLogger_RedactsSensitiveFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter("info", &buf)

	log.Info(context.Background(), "token response",
		Field{Key: "access_token", Value: "secret123"},
		Field{Key: "foo", Value: "bar"},
	)

	entries := decodeLines(t, &buf)
	e := entries[0]
	if e["access_token"] != RedactedMarker {
		t.Errorf("access_token = %v, want %q", e["access_token"], RedactedMarker)
	}
	if e["foo"] != "bar" {
		t.Errorf("foo = %v, want bar (non-sensitive fields untouched)", e["foo"])
	}
	if strings.Contains(buf.String(), "secret123") {
		t.Error("Raw secret leaked into log output")
	}
}

func TestLogger_RedactsNestedValues(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter("info", &buf)

	log.Info(context.Background(), "callback",
		Field{Key: "params", Value: map[string]any{
			"code":  "authcode-xyz",
			"state": "state-1",
		}},
	)

	if strings.Contains(buf.String(), "authcode-xyz") {
		t.Error("Nested sensitive value leaked into log output")
	}
	entries := decodeLines(t, &buf)
	params, ok := entries[0]["params"].(map[string]any)
	if !ok {
		t.Fatalf("params = %T, want map", entries[0]["params"])
	}
	if params["state"] != "state-1" {
		t.Errorf("params.state = %v, want state-1", params["state"])
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
