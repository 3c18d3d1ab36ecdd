package logging_test

import (
	"bytes"
	"strings"
	"testing"

	"quicktodo/internal/logging"
)

func TestNew_DebugLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, true)
	logger.Debug().Str("key", "tasks").Msg("cache replaced")

	got := buf.String()
	if !strings.Contains(got, "cache replaced") || !strings.Contains(got, "key=tasks") {
		t.Errorf("expected debug line, got %q", got)
	}
}

func TestNew_QuietByDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, false)
	logger.Debug().Msg("hidden")
	logger.Info().Msg("hidden too")

	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}
