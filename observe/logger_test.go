package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestLogger_IncludesMetaFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf).With(Meta{
		Component: "gateway",
		Name:      "getTimetable",
		Endpoint:  "https://rail.example.org/graphql",
	})

	logger.Info(context.Background(), "hello", F("station", "BPK"))

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]

	want := map[string]any{
		"level":     "info",
		"msg":       "hello",
		"component": "gateway",
		"op":        "getTimetable",
		"endpoint":  "https://rail.example.org/graphql",
		"station":   "BPK",
	}
	for k, v := range want {
		if e[k] != v {
			t.Errorf("%s = %v, want %v", k, e[k], v)
		}
	}
	if _, ok := e["timestamp"]; !ok {
		t.Error("missing timestamp")
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		want  []string
	}{
		{"debug", []string{"debug", "info", "warn", "error"}},
		{"info", []string{"info", "warn", "error"}},
		{"warn", []string{"warn", "error"}},
		{"error", []string{"error"}},
		{"bogus", []string{"info", "warn", "error"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerWithWriter(tt.level, &buf)
			ctx := context.Background()

			logger.Debug(ctx, "d")
			logger.Info(ctx, "i")
			logger.Warn(ctx, "w")
			logger.Error(ctx, "e")

			entries := decodeLines(t, &buf)
			if len(entries) != len(tt.want) {
				t.Fatalf("got %d entries, want %d", len(entries), len(tt.want))
			}
			for i, lvl := range tt.want {
				if entries[i]["level"] != lvl {
					t.Errorf("entry %d level = %v, want %s", i, entries[i]["level"], lvl)
				}
			}
		})
	}
}

func TestLogger_RedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "auth",
		F("token", "eyJhbGciOi..."),
		F("password", "hunter2"),
		F("subject", "planner"),
	)

	e := decodeLines(t, &buf)[0]
	if e["token"] != "[REDACTED]" {
		t.Errorf("token = %v", e["token"])
	}
	if e["password"] != "[REDACTED]" {
		t.Errorf("password = %v", e["password"])
	}
	if e["subject"] != "planner" {
		t.Errorf("subject = %v", e["subject"])
	}
}

func TestLogger_ErrorValuesRenderAsStrings(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerWithWriter("info", &buf).Warn(context.Background(), "failed", F("error", errors.New("boom")))

	e := decodeLines(t, &buf)[0]
	if e["error"] != "boom" {
		t.Errorf("error = %v, want boom", e["error"])
	}
}

func TestLogger_ChildSharesWriterSafely(t *testing.T) {
	var buf bytes.Buffer
	root := NewLoggerWithWriter("info", &buf)
	a := root.With(Meta{Component: "correlation", Name: "coordinates"})
	b := root.With(Meta{Component: "correlation", Name: "weather"})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); a.Info(context.Background(), "a") }()
		go func() { defer wg.Done(); b.Info(context.Background(), "b") }()
	}
	wg.Wait()

	if got := len(decodeLines(t, &buf)); got != 100 {
		t.Fatalf("got %d lines, want 100", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	for _, s := range []string{"debug", "info", "warn", "error"} {
		if got := ParseLogLevel(s).String(); got != s {
			t.Errorf("ParseLogLevel(%q).String() = %q", s, got)
		}
	}
}
