package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestJSONLoggerTagsServiceAndFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLoggerTo(&buf, "portal", "WARN")

	logger.Info("upload_submitted", "package_id", "abc123")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered, got %s", buf.String())
	}

	logger.Warn("status_unrecognized", "text", "complete")
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["service"] != "portal" || entry["msg"] != "status_unrecognized" || entry["text"] != "complete" {
		t.Fatalf("unexpected log entry %v", entry)
	}
}
