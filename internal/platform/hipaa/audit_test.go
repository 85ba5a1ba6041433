package hipaa

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mindtwin/mindtwin/internal/platform/middleware"
)

func TestLogRecorder_EmitsStructuredEvent(t *testing.T) {
	var buf bytes.Buffer
	rec := NewLogRecorder(zerolog.New(&buf))

	ev := middleware.SecurityEvent{
		EventType: middleware.EventPHIBlocked,
		UserID:    "user-1",
		Action:    "read",
		Status:    "blocked",
		Path:      "/api/v1/patients",
		Method:    "GET",
		RequestID: "rid-1",
		Details:   map[string]string{"location": "query:ssn"},
	}
	if err := rec.LogSecurityEvent(context.Background(), ev); err != nil {
		t.Fatalf("LogSecurityEvent: %v", err)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("event line is not JSON: %v", err)
	}
	if line["event_type"] != middleware.EventPHIBlocked {
		t.Errorf("event_type = %v", line["event_type"])
	}
	if line["type"] != "phi_security_event" {
		t.Errorf("type = %v", line["type"])
	}
	if line["detail_location"] != "query:ssn" {
		t.Errorf("detail_location = %v", line["detail_location"])
	}
}

func TestLogRecorder_DefaultsRecordedTime(t *testing.T) {
	var buf bytes.Buffer
	rec := NewLogRecorder(zerolog.New(&buf))

	before := time.Now().UTC()
	if err := rec.LogSecurityEvent(context.Background(), middleware.SecurityEvent{
		EventType: middleware.EventPHIMasked,
	}); err != nil {
		t.Fatalf("LogSecurityEvent: %v", err)
	}

	var line struct {
		Recorded time.Time `json:"recorded"`
	}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("event line is not JSON: %v", err)
	}
	if line.Recorded.Before(before.Add(-time.Second)) {
		t.Errorf("recorded time was not defaulted: %v", line.Recorded)
	}
}
