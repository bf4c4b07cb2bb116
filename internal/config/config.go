// Package config loads the server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Stats backends.
const (
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendNone     = "none"
)

var ErrInvalid = errors.New("invalid configuration")

// Config holds every PONG_* setting.
type Config struct {
	Addr            string  `env:"PONG_ADDR"              envDefault:":8080"`
	TickRate        float64 `env:"PONG_TICK_RATE"         envDefault:"60"`
	SendBuffer      int     `env:"PONG_SEND_BUFFER"       envDefault:"256"`
	MaxMessageBytes int64   `env:"PONG_MAX_MESSAGE_BYTES" envDefault:"4096"`
	StaticDir       string  `env:"PONG_STATIC_DIR"`

	LogLevel  string `env:"PONG_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"PONG_LOG_FORMAT" envDefault:"text"`

	JWTSecret     string `env:"PONG_JWT_SECRET"`
	RedisAddr     string `env:"PONG_REDIS_ADDR"`
	RedisSessions bool   `env:"PONG_REDIS_SESSIONS" envDefault:"false"`

	StatsBackend string        `env:"PONG_STATS_BACKEND" envDefault:"sqlite"`
	SQLitePath   string        `env:"PONG_SQLITE_PATH"   envDefault:"pong.db"`
	PostgresDSN  string        `env:"PONG_POSTGRES_DSN"`
	StatsBuffer  int           `env:"PONG_STATS_BUFFER"  envDefault:"64"`
	StatsTimeout time.Duration `env:"PONG_STATS_TIMEOUT" envDefault:"5s"`

	NATSURL     string `env:"PONG_NATS_URL"`
	NATSSubject string `env:"PONG_NATS_SUBJECT" envDefault:"pong.match.finished"`

	ConsulAddr    string `env:"PONG_CONSUL_ADDR"`
	ServiceName   string `env:"PONG_SERVICE_NAME"   envDefault:"pong-session"`
	AdvertiseHost string `env:"PONG_ADVERTISE_HOST"`

	ShutdownTimeout time.Duration `env:"PONG_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads the optional dotenv files, then the process environment.
// Variables already set in the environment win over the files.
func Load(dotenv ...string) (Config, error) {
	if len(dotenv) == 0 {
		dotenv = []string{".env"}
	}
	for _, f := range dotenv {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the cross-field rules.
func (c Config) Validate() error {
	var errs []error
	if c.TickRate < 0 {
		errs = append(errs, fmt.Errorf("PONG_TICK_RATE must be >= 0, got %v", c.TickRate))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, fmt.Errorf("PONG_SEND_BUFFER must be positive"))
	}
	if c.MaxMessageBytes <= 0 {
		errs = append(errs, fmt.Errorf("PONG_MAX_MESSAGE_BYTES must be positive"))
	}
	if c.StatsBuffer <= 0 {
		errs = append(errs, fmt.Errorf("PONG_STATS_BUFFER must be positive"))
	}

	switch c.StatsBackend {
	case BackendSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, fmt.Errorf("PONG_SQLITE_PATH is required for the sqlite backend"))
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			errs = append(errs, fmt.Errorf("PONG_REDIS_ADDR is required for the redis backend"))
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, fmt.Errorf("PONG_POSTGRES_DSN is required for the postgres backend"))
		}
	case BackendMemory, BackendNone:
	default:
		errs = append(errs, fmt.Errorf("unknown PONG_STATS_BACKEND %q", c.StatsBackend))
	}

	if c.RedisSessions && c.RedisAddr == "" {
		errs = append(errs, fmt.Errorf("PONG_REDIS_SESSIONS needs PONG_REDIS_ADDR"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// NeedsRedis reports whether any component talks to Redis.
func (c Config) NeedsRedis() bool {
	return c.StatsBackend == BackendRedis || c.RedisSessions
}

// SessionWritesStats reports whether the session server applies outcomes to
// the stats store itself. With NATS configured it only publishes them and the
// stats worker applies each one, so a match is counted once.
func (c Config) SessionWritesStats() bool {
	return c.NATSURL == "" && c.StatsBackend != BackendNone
}
