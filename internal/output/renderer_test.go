package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/atikulmunna/logrelay/internal/model"
)

func TestJSONRenderer(t *testing.T) {
	var buf bytes.Buffer
	renderer := NewJSONRenderer(&buf)

	entry := model.LogEntry{
		Timestamp:  "2026-02-17 12:00:00.000000000",
		Level:      "ERROR",
		Message:    "something broke",
		LoggerName: "main",
	}

	if err := renderer.Render(entry); err != nil {
		t.Fatal(err)
	}

	var got map[string]string
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON output: %v\nraw: %s", err, buf.String())
	}

	if got["level"] != "ERROR" {
		t.Errorf("expected level ERROR, got %s", got["level"])
	}
	if got["message"] != "something broke" {
		t.Errorf("expected message 'something broke', got %q", got["message"])
	}
	if got["logger_name"] != "main" {
		t.Errorf("expected logger_name 'main', got %q", got["logger_name"])
	}
	if len(got) != 4 {
		t.Errorf("expected exactly four wire fields, got %v", got)
	}
}

func TestTextRenderer(t *testing.T) {
	var buf bytes.Buffer
	renderer := NewTextRenderer(&buf)

	entry := model.LogEntry{
		Timestamp:  "2026-02-17 12:00:00.000000000",
		Level:      "WARNING",
		Message:    "disk at 90%",
		LoggerName: "main",
	}
	if err := renderer.Render(entry); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"2026-02-17 12:00:00.000000000", "WARNING", "main", "disk at 90%"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output %q", want, out)
		}
	}
	if !strings.HasSuffix(out, "\n") {
		t.Error("expected trailing newline")
	}
}

func TestNewUnknownFormat(t *testing.T) {
	if _, err := New("xml", &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, err := New("json", &bytes.Buffer{}); err != nil {
		t.Errorf("json: %v", err)
	}
}
