package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARNING": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWritesLegacyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "realms.log")
	logger, err := New(Config{Level: "info", Format: "legacy", ToFile: true, File: path})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	logger.Info("match_started")
	_ = logger.Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(raw)
	if !strings.Contains(line, " | INFO | ") || !strings.Contains(line, "match_started") {
		t.Fatalf("unexpected log line: %q", line)
	}
}
