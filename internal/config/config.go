package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates all runtime settings required by the worker.
type Config struct {
	AppName     string
	Environment string
	Database    DatabaseConfig
	Redis       RedisConfig
	Buffer      BufferConfig
	Sweep       SweepConfig
	Metrics     MetricsConfig
	Context     ContextConfig
	Logger      LoggerConfig
	Migrations  MigrationsConfig
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	SSLMode         string
}

type RedisConfig struct {
	URL         string
	Password    string
	DB          int
	TemplateTTL time.Duration
}

type BufferConfig struct {
	Path           string
	RetentionHours int
	SyncInterval   time.Duration
	MaxRetry       int
	BatchSize      int
}

type SweepConfig struct {
	// Schedule is a cron expression with seconds; the default fires at local
	// midnight. The sweep itself additionally holds a per-day lock, so an
	// aggressive schedule cannot make it run twice.
	Schedule string
	Workers  int
	// Timezone decides where "midnight" and "yesterday" live.
	Timezone string
	Enabled  bool
	LockTTL  time.Duration
}

type MetricsConfig struct {
	Enabled bool
	Addr    string
}

type ContextConfig struct {
	SweepTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from environment variables (optionally .env)
// and applies sane defaults so the worker can boot in any environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "challenge-worker"),
		Environment: getString("APP_ENV", "development"),
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "moodlog"),
			User:            getString("DB_USER", "moodlog"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 2),
			MaxConnLifetime: getDuration("DB_MAX_CONN_LIFETIME", time.Hour),
			SSLMode:         getString("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			URL:         getString("REDIS_URL", "redis://localhost:6379/0"),
			Password:    os.Getenv("REDIS_PASSWORD"),
			DB:          getInt("REDIS_DB", 0),
			TemplateTTL: getDuration("TEMPLATE_CACHE_TTL", 10*time.Minute),
		},
		Buffer: BufferConfig{
			Path:           getString("BOLTDB_PATH", "./data/diary_events.db"),
			RetentionHours: getInt("BUFFER_RETENTION_HOURS", 48),
			SyncInterval:   getDuration("BUFFER_SYNC_INTERVAL", 30*time.Second),
			MaxRetry:       getInt("BUFFER_MAX_RETRY", 3),
			BatchSize:      getInt("BUFFER_BATCH_SIZE", 50),
		},
		Sweep: SweepConfig{
			Schedule: getString("SWEEP_SCHEDULE", "0 0 0 * * *"),
			Workers:  getInt("SWEEP_WORKERS", 4),
			Timezone: getString("SWEEP_TIMEZONE", "Asia/Seoul"),
			Enabled:  getBool("SWEEP_ENABLED", true),
			LockTTL:  getDuration("SWEEP_LOCK_TTL", 36*time.Hour),
		},
		Metrics: MetricsConfig{
			Enabled: getBool("METRICS_ENABLED", false),
			Addr:    getString("METRICS_ADDR", ":9102"),
		},
		Context: ContextConfig{
			SweepTimeout:    getDuration("SWEEP_TIMEOUT", 10*time.Minute),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", true),
			Path:    getString("MIGRATIONS_PATH", "./migrations"),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = buildPostgresURL(cfg)
	}

	return cfg, nil
}

func buildPostgresURL(cfg *Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}
