package epoxylog

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewProductionWritesStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{App: "epoxyctl", Output: &buf})

	log.Info().Str("connection_id", "abc").Msg("connected")

	var fields map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &fields); err != nil {
		t.Fatalf("expected structured JSON output, got %q: %v", buf.String(), err)
	}
	if fields["app"] != "epoxyctl" {
		t.Errorf("app = %v, want epoxyctl", fields["app"])
	}
	if fields["connection_id"] != "abc" {
		t.Errorf("connection_id = %v, want abc", fields["connection_id"])
	}
	if fields["message"] != "connected" {
		t.Errorf("message = %v, want connected", fields["message"])
	}
}

func TestNewDevelopmentWritesConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{App: "epoxyctl", Development: true, Output: &buf})

	log.Info().Msg("connected")

	if json.Valid(buf.Bytes()) {
		t.Errorf("console writer output looked like JSON: %q", buf.String())
	}
	if buf.Len() == 0 {
		t.Error("expected non-empty console output")
	}
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{App: "epoxyctl", Output: &buf, Level: zerolog.WarnLevel})

	log.Info().Msg("should be suppressed")
	if buf.Len() != 0 {
		t.Errorf("expected info log to be suppressed at warn level, got %q", buf.String())
	}

	log.Warn().Msg("should appear")
	if buf.Len() == 0 {
		t.Error("expected warn log to appear")
	}
}
