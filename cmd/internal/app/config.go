package app

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string `env:"GATEKEEP_HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	LogLevel  string `env:"GATEKEEP_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"GATEKEEP_LOG_FORMAT" envDefault:"json"`

	ReadHeaderTimeout time.Duration `env:"GATEKEEP_HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout       time.Duration `env:"GATEKEEP_HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout      time.Duration `env:"GATEKEEP_HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout       time.Duration `env:"GATEKEEP_HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	MaxHeaderBytes    int           `env:"GATEKEEP_HTTP_MAX_HEADER_BYTES" envDefault:"1048576"`

	// Exactly one user/session backend is chosen: Postgres when DatabaseURL
	// is set, else SQLite when SQLitePath is set, else in-memory.
	DatabaseURL string `env:"GATEKEEP_DATABASE_URL"`
	DBMaxConns  int32  `env:"GATEKEEP_DB_MAX_CONNS" envDefault:"10"`
	DBMinConns  int32  `env:"GATEKEEP_DB_MIN_CONNS" envDefault:"0"`
	DBMigrate   bool   `env:"GATEKEEP_DB_MIGRATE" envDefault:"true"`
	SQLitePath  string `env:"GATEKEEP_SQLITE_PATH"`

	// RedisURL moves session rows to Redis; users stay in the SQL backend.
	RedisURL string `env:"GATEKEEP_REDIS_URL"`

	// SessionPurgeInterval > 0 runs PurgeExpired periodically. Validation
	// never depends on it.
	SessionPurgeInterval time.Duration `env:"GATEKEEP_SESSION_PURGE_INTERVAL" envDefault:"0s"`

	// If true, /readyz returns 503 unless a SQL database is configured and reachable.
	ReadinessRequireDB bool `env:"GATEKEEP_READINESS_REQUIRE_DB" envDefault:"false"`

	CORSAllowedOrigins   []string `env:"GATEKEEP_CORS_ALLOWED_ORIGINS" envSeparator:","`
	CORSAllowCredentials bool     `env:"GATEKEEP_CORS_ALLOW_CREDENTIALS" envDefault:"true"`
	CORSMaxAgeSeconds    int      `env:"GATEKEEP_CORS_MAX_AGE_SECONDS" envDefault:"600"`

	MetricsEnabled bool `env:"GATEKEEP_METRICS_ENABLED" envDefault:"true"`
}

// LoadConfig loads .env (when present) and then Config from the environment.
// Variables already set in the environment win over .env.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("app: load .env: %w", err)
	}
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("app: config: %w", err)
	}
	return cfg, nil
}
