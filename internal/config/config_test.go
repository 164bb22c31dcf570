package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TimeControl != "90/30" {
		t.Fatalf("time control = %q, want 90/30", cfg.TimeControl)
	}
	if cfg.Engine.MoveCeiling != 30*time.Second {
		t.Fatalf("move ceiling = %v", cfg.Engine.MoveCeiling)
	}
	if cfg.Board.MaxAttempts != 3 || cfg.Board.RetryDelay != 5*time.Second || cfg.Board.ProbeInterval != 5*time.Second {
		t.Fatalf("board defaults = %+v", cfg.Board)
	}
	if cfg.Record.Store != "memory" {
		t.Fatalf("store = %q", cfg.Record.Store)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TIME_CONTROL", "10/5")
	t.Setenv("BOARD_ENABLED", "true")
	t.Setenv("BOARD_WS_URL", "ws://127.0.0.1:9000/board")
	t.Setenv("BOARD_RETRY_DELAY", "250ms")
	t.Setenv("RECORD_STORE", "SQLite")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TimeControl != "10/5" || !cfg.Board.Enabled || cfg.Board.RetryDelay != 250*time.Millisecond {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Record.Store != "sqlite" {
		t.Fatalf("store not normalized: %q", cfg.Record.Store)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"board without url":   {"BOARD_ENABLED": "true", "BOARD_WS_URL": ""},
		"postgres without db": {"RECORD_STORE": "postgres", "DATABASE_URL": ""},
		"redis without url":   {"RECORD_STORE": "redis", "REDIS_URL": ""},
		"unknown store":       {"RECORD_STORE": "etcd"},
	}
	for name, envs := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range envs {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
