package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Errorf("Expected FormatJSON, got %v (%v)", f, err)
	}
	if f, err := ParseFormat("text"); err != nil || f != FormatText {
		t.Errorf("Expected FormatText, got %v (%v)", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("Expected an error for an unknown format")
	}
}

func TestInitLoggerJSONWithRunID(t *testing.T) {
	var buf bytes.Buffer
	InitLogger(&buf, LevelInfo, FormatJSON)
	t.Cleanup(func() { InitLogger(&bytes.Buffer{}, LevelInfo, FormatText) })

	Debug("hidden")
	InfoContext(WithRunID(context.Background(), "run-1"), "structured", "nodes", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line (debug filtered), got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("Expected JSON output, got %q: %v", lines[0], err)
	}
	if entry["msg"] != "structured" || entry["run_id"] != "run-1" || entry["nodes"] != float64(3) {
		t.Errorf("Unexpected entry %v", entry)
	}
}

func TestInitLoggerText(t *testing.T) {
	var buf bytes.Buffer
	InitLogger(&buf, LevelDebug, FormatText)
	t.Cleanup(func() { InitLogger(&bytes.Buffer{}, LevelInfo, FormatText) })

	Debug("details", "path", "0.1")
	if !strings.Contains(buf.String(), "msg=details") || !strings.Contains(buf.String(), "path=0.1") {
		t.Errorf("Expected text output, got %q", buf.String())
	}
	if GetRunID(context.Background()) != "" {
		t.Error("Expected no run id on a bare context")
	}
}
