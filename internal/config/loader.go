package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "quizmaster.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "QUIZMASTER_PORT")
	setString(&cfg.Server.CORSOrigin, "QUIZMASTER_CORS_ORIGIN")

	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "QUIZMASTER_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "QUIZMASTER_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "QUIZMASTER_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "QUIZMASTER_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "QUIZMASTER_PG_HEALTH_CHECK")

	setString(&cfg.NATS.URL, "NATS_URL")

	setInt64(&cfg.Cache.L1MaxSizeMB, "QUIZMASTER_CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2Bucket, "QUIZMASTER_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.TTL, "QUIZMASTER_CACHE_TTL")

	setDuration(&cfg.Jobs.ResultTTL, "QUIZMASTER_JOBS_RESULT_TTL")
	setDuration(&cfg.Jobs.SoftLimit, "QUIZMASTER_JOBS_SOFT_LIMIT")
	setDuration(&cfg.Jobs.HardLimit, "QUIZMASTER_JOBS_HARD_LIMIT")
	setInt(&cfg.Jobs.MaxRetries, "QUIZMASTER_JOBS_MAX_RETRIES")
	setDuration(&cfg.Jobs.RetryBackoff, "QUIZMASTER_JOBS_RETRY_BACKOFF")

	setDuration(&cfg.Scheduler.Tick, "QUIZMASTER_SCHEDULER_TICK")
	setDuration(&cfg.Scheduler.LockTTL, "QUIZMASTER_SCHEDULER_LOCK_TTL")

	setString(&cfg.SMTP.Host, "SMTP_SERVER")
	setInt(&cfg.SMTP.Port, "SMTP_PORT")
	setString(&cfg.SMTP.Username, "SMTP_USERNAME")
	setString(&cfg.SMTP.Password, "SMTP_PASSWORD")
	setString(&cfg.SMTP.From, "FROM_EMAIL")

	setString(&cfg.Webhook.URL, "WEBHOOK_URL")

	setString(&cfg.Logging.Level, "QUIZMASTER_LOG_LEVEL")
	setString(&cfg.Logging.Service, "QUIZMASTER_LOG_SERVICE")

	setInt(&cfg.Breaker.MaxFailures, "QUIZMASTER_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "QUIZMASTER_BREAKER_TIMEOUT")

	setString(&cfg.Idempotency.Bucket, "QUIZMASTER_IDEMPOTENCY_BUCKET")
	setDuration(&cfg.Idempotency.TTL, "QUIZMASTER_IDEMPOTENCY_TTL")

	setBool(&cfg.Otel.Enabled, "QUIZMASTER_OTEL_ENABLED")
	setString(&cfg.Otel.Endpoint, "QUIZMASTER_OTEL_ENDPOINT")
}

// validate checks that required fields are set and limits are coherent.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Cache.TTL <= 0 {
		return errors.New("cache.ttl must be positive")
	}
	if cfg.Jobs.HardLimit <= cfg.Jobs.SoftLimit {
		return errors.New("jobs.hard_limit must exceed jobs.soft_limit")
	}
	for name, t := range cfg.Jobs.Tasks {
		soft := t.SoftLimit
		if soft == 0 {
			soft = cfg.Jobs.SoftLimit
		}
		hard := t.HardLimit
		if hard == 0 {
			hard = cfg.Jobs.HardLimit
		}
		if hard <= soft {
			return fmt.Errorf("jobs.tasks.%s: hard_limit must exceed soft_limit", name)
		}
	}
	if cfg.Jobs.ResultTTL <= 0 {
		return errors.New("jobs.result_ttl must be positive")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
