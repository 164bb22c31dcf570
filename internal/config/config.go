package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type EngineConfig struct {
	StockfishPath string        `env:"STOCKFISH_PATH" envDefault:"stockfish"`
	Threads       int           `env:"ENGINE_THREADS" envDefault:"1"`
	HashMB        int           `env:"ENGINE_HASH_MB" envDefault:"64"`
	MoveCeiling   time.Duration `env:"ENGINE_MOVE_CEILING" envDefault:"30s"`
	FixedBudget   time.Duration `env:"ENGINE_FIXED_BUDGET" envDefault:"1s"`
	AnalyzeDepth  int           `env:"ENGINE_ANALYZE_DEPTH" envDefault:"15"`
}

type BoardConfig struct {
	Enabled       bool          `env:"BOARD_ENABLED" envDefault:"false"`
	WSURL         string        `env:"BOARD_WS_URL"`
	Device        string        `env:"BOARD_DEVICE"`
	AutoReconnect bool          `env:"BOARD_AUTO_RECONNECT" envDefault:"true"`
	MaxAttempts   int           `env:"BOARD_MAX_ATTEMPTS" envDefault:"3"`
	RetryDelay    time.Duration `env:"BOARD_RETRY_DELAY" envDefault:"5s"`
	ProbeInterval time.Duration `env:"BOARD_PROBE_INTERVAL" envDefault:"5s"`
	GraceDelay    time.Duration `env:"BOARD_GRACE_DELAY" envDefault:"1s"`
}

type RecordConfig struct {
	Store          string        `env:"RECORD_STORE" envDefault:"memory"`
	SQLitePath     string        `env:"SQLITE_PATH" envDefault:"data/realms.db"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	RedisURL       string        `env:"REDIS_URL"`
	RedisKeyPrefix string        `env:"REDIS_KEY_PREFIX" envDefault:"realms"`
	TTL            time.Duration `env:"RECORD_TTL" envDefault:"720h"`
	WebhookURL     string        `env:"RESULT_WEBHOOK_URL"`
}

type AppConfig struct {
	Engine EngineConfig
	Board  BoardConfig
	Record RecordConfig

	TimeControl         string        `env:"TIME_CONTROL" envDefault:"90/30"`
	PhysicalMoveTimeout time.Duration `env:"PHYSICAL_MOVE_TIMEOUT" envDefault:"100ms"`
	MessagesDir         string        `env:"MESSAGES_DIR"`
}

// Load reads AppConfig from the environment, applying defaults from struct tags.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) normalize() {
	c.Engine.StockfishPath = strings.TrimSpace(c.Engine.StockfishPath)
	c.Board.WSURL = strings.TrimSpace(c.Board.WSURL)
	c.Board.Device = strings.TrimSpace(c.Board.Device)
	c.Record.Store = strings.ToLower(strings.TrimSpace(c.Record.Store))
	c.TimeControl = strings.TrimSpace(c.TimeControl)
	if c.Engine.Threads <= 0 {
		c.Engine.Threads = 1
	}
	if c.Engine.HashMB <= 0 {
		c.Engine.HashMB = 64
	}
	if c.Engine.AnalyzeDepth <= 0 {
		c.Engine.AnalyzeDepth = 15
	}
}

func (c *AppConfig) Validate() error {
	if c.Engine.MoveCeiling <= 0 {
		return errors.New("ENGINE_MOVE_CEILING must be > 0")
	}
	if c.Engine.FixedBudget <= 0 {
		return errors.New("ENGINE_FIXED_BUDGET must be > 0")
	}
	if c.Board.Enabled {
		if c.Board.WSURL == "" {
			return errors.New("BOARD_WS_URL is required when BOARD_ENABLED=true")
		}
		if c.Board.MaxAttempts <= 0 {
			return errors.New("BOARD_MAX_ATTEMPTS must be > 0")
		}
	}
	switch c.Record.Store {
	case "memory", "sqlite":
	case "postgres":
		if strings.TrimSpace(c.Record.DatabaseURL) == "" {
			return errors.New("DATABASE_URL is required for RECORD_STORE=postgres")
		}
	case "redis":
		if strings.TrimSpace(c.Record.RedisURL) == "" {
			return errors.New("REDIS_URL is required for RECORD_STORE=redis")
		}
	default:
		return fmt.Errorf("unknown RECORD_STORE %q", c.Record.Store)
	}
	return nil
}
