package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	orig := output
	origLogger := log.Logger
	origLevel := zerolog.GlobalLevel()
	output = buf
	t.Cleanup(func() {
		output = orig
		log.Logger = origLogger
		zerolog.SetGlobalLevel(origLevel)
	})
	return buf
}

func TestInitJSON(t *testing.T) {
	buf := captureOutput(t)

	Init("warn", "json", "cot-sentinel")
	log.Info().Msg("dropped")
	log.Warn().Str("market", "GOLD").Msg("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line at warn level, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("expected json output: %v", err)
	}
	if entry["service"] != "cot-sentinel" || entry["market"] != "GOLD" || entry["message"] != "kept" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestInitUnknownLevelDefaultsToInfo(t *testing.T) {
	captureOutput(t)

	Init("chatty", "console", "cot-sentinel")
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info level, got %s", zerolog.GlobalLevel())
	}
}
