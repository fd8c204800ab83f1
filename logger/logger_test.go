package logger

import (
	"strings"
	"testing"
)

func TestLoggerWritesFields(t *testing.T) {
	var buf strings.Builder
	log := New(&buf, false)

	log.Info("account created", "username", "jdoe")

	out := buf.String()
	if !strings.Contains(out, "account created") {
		t.Errorf("Expected message in output, got %q", out)
	}
	if !strings.Contains(out, "username=jdoe") {
		t.Errorf("Expected field in output, got %q", out)
	}
}

func TestSuccessCarriesStatusField(t *testing.T) {
	var buf strings.Builder
	log := New(&buf, false)

	log.Success("account created", "username", "jdoe")

	if !strings.Contains(buf.String(), "status=success") {
		t.Errorf("Expected status field, got %q", buf.String())
	}
}

func TestDebugSuppressedByDefault(t *testing.T) {
	var buf strings.Builder
	log := New(&buf, false)

	log.Debug("noise")
	if buf.Len() != 0 {
		t.Errorf("Expected debug output to be suppressed, got %q", buf.String())
	}

	log = New(&buf, true)
	log.Debug("noise")
	if !strings.Contains(buf.String(), "noise") {
		t.Errorf("Expected debug output when enabled, got %q", buf.String())
	}
}
