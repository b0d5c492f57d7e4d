// ABOUTME: This file implements configuration management with environment variable support
// ABOUTME: Provides validation and defaults for all trailer-engine components
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// GatewayMode selects which gateway client implementations are constructed.
type GatewayMode string

const (
	GatewayModeLive GatewayMode = "live"
	GatewayModeMock GatewayMode = "mock"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Redis     RedisConfig     `json:"redis"`
	Database  DatabaseConfig  `json:"database"`
	Queue     QueueConfig     `json:"queue"`
	Worker    WorkerConfig    `json:"worker"`
	Gateway   GatewayConfig   `json:"gateway"`
	Aggregate AggregateConfig `json:"aggregate"`
	Retry     RetryConfig     `json:"retry"`
}

type ServerConfig struct {
	Port            int           `json:"port" env:"SERVER_PORT" default:"9300"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	ReadTimeout     time.Duration `json:"read_timeout" env:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `json:"write_timeout" env:"SERVER_WRITE_TIMEOUT" default:"30s"`
}

type RedisConfig struct {
	URL string `json:"url" env:"REDIS_URL" default:"redis://localhost:6379"`
}

type DatabaseConfig struct {
	URL      string `json:"url" env:"DATABASE_URL" default:""`
	MaxConns int    `json:"max_conns" env:"DATABASE_MAX_CONNS" default:"10"`
}

type QueueConfig struct {
	KeyPrefix          string        `json:"key_prefix" env:"QUEUE_KEY_PREFIX" default:"trailer:"`
	MaxRetries         int           `json:"max_retries" env:"QUEUE_MAX_RETRIES" default:"3"`
	RetryBaseDelay     time.Duration `json:"retry_base_delay" env:"QUEUE_RETRY_BASE_DELAY" default:"5s"`
	CompletedRetention int           `json:"completed_retention" env:"QUEUE_COMPLETED_RETENTION" default:"50"`
	FailedRetention    int           `json:"failed_retention" env:"QUEUE_FAILED_RETENTION" default:"20"`
	PromoteInterval    time.Duration `json:"promote_interval" env:"QUEUE_PROMOTE_INTERVAL" default:"1s"`
}

type WorkerConfig struct {
	Concurrency     int           `json:"concurrency" env:"WORKER_CONCURRENCY" default:"4"`
	IdleWait        time.Duration `json:"idle_wait" env:"WORKER_IDLE_WAIT" default:"500ms"`
	PollInterval    time.Duration `json:"poll_interval" env:"WORKER_POLL_INTERVAL" default:"5s"`
	MaxPollAttempts int           `json:"max_poll_attempts" env:"WORKER_MAX_POLL_ATTEMPTS" default:"60"`
}

type GatewayConfig struct {
	Mode             GatewayMode   `json:"mode" env:"GATEWAY_MODE" default:"mock"`
	VideoHost        string        `json:"video_host" env:"VIDEOGEN_HOST" default:"http://videogen:8600"`
	VideoAPIPath     string        `json:"video_api_path" env:"VIDEOGEN_API_PATH" default:"/v1/generations"`
	ScriptHost       string        `json:"script_host" env:"SCRIPTGEN_HOST" default:"http://scriptwriter:11434"`
	ScriptAPIPath    string        `json:"script_api_path" env:"SCRIPTGEN_API_PATH" default:"/api/generate"`
	ScriptModel      string        `json:"script_model" env:"SCRIPTGEN_MODEL" default:"gemma3:4b"`
	Timeout          time.Duration `json:"timeout" env:"GATEWAY_TIMEOUT" default:"30s"`
	ScriptTimeout    time.Duration `json:"script_timeout" env:"SCRIPTGEN_TIMEOUT" default:"120s"`
	SubmitsPerMinute int           `json:"submits_per_minute" env:"GATEWAY_SUBMITS_PER_MINUTE" default:"30"`
}

type AggregateConfig struct {
	// FailureRatio is the fraction of failed segments that marks a whole
	// project failed. The comparison is strictly greater, so the default 0.5
	// leaves a 50/50 split non-failed.
	FailureRatio float64 `json:"failure_ratio" env:"AGGREGATE_FAILURE_RATIO" default:"0.5"`
}

type RetryConfig struct {
	MaxAttempts   int           `json:"max_attempts" env:"RETRY_MAX_ATTEMPTS" default:"3"`
	BaseDelay     time.Duration `json:"base_delay" env:"RETRY_BASE_DELAY" default:"200ms"`
	MaxDelay      time.Duration `json:"max_delay" env:"RETRY_MAX_DELAY" default:"5s"`
	BackoffFactor float64       `json:"backoff_factor" env:"RETRY_BACKOFF_FACTOR" default:"2.0"`
	JitterFactor  float64       `json:"jitter_factor" env:"RETRY_JITTER_FACTOR" default:"0.1"`
}

// LoadConfig reads configuration from environment variables, applies defaults
// and validates the result.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvInt("SERVER_PORT", 9300),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			MaxConns: getEnvInt("DATABASE_MAX_CONNS", 10),
		},
		Queue: QueueConfig{
			KeyPrefix:          getEnv("QUEUE_KEY_PREFIX", "trailer:"),
			MaxRetries:         getEnvInt("QUEUE_MAX_RETRIES", 3),
			RetryBaseDelay:     getEnvDuration("QUEUE_RETRY_BASE_DELAY", 5*time.Second),
			CompletedRetention: getEnvInt("QUEUE_COMPLETED_RETENTION", 50),
			FailedRetention:    getEnvInt("QUEUE_FAILED_RETENTION", 20),
			PromoteInterval:    getEnvDuration("QUEUE_PROMOTE_INTERVAL", time.Second),
		},
		Worker: WorkerConfig{
			Concurrency:     getEnvInt("WORKER_CONCURRENCY", 4),
			IdleWait:        getEnvDuration("WORKER_IDLE_WAIT", 500*time.Millisecond),
			PollInterval:    getEnvDuration("WORKER_POLL_INTERVAL", 5*time.Second),
			MaxPollAttempts: getEnvInt("WORKER_MAX_POLL_ATTEMPTS", 60),
		},
		Gateway: GatewayConfig{
			Mode:             GatewayMode(getEnv("GATEWAY_MODE", string(GatewayModeMock))),
			VideoHost:        getEnv("VIDEOGEN_HOST", "http://videogen:8600"),
			VideoAPIPath:     getEnv("VIDEOGEN_API_PATH", "/v1/generations"),
			ScriptHost:       getEnv("SCRIPTGEN_HOST", "http://scriptwriter:11434"),
			ScriptAPIPath:    getEnv("SCRIPTGEN_API_PATH", "/api/generate"),
			ScriptModel:      getEnv("SCRIPTGEN_MODEL", "gemma3:4b"),
			Timeout:          getEnvDuration("GATEWAY_TIMEOUT", 30*time.Second),
			ScriptTimeout:    getEnvDuration("SCRIPTGEN_TIMEOUT", 120*time.Second),
			SubmitsPerMinute: getEnvInt("GATEWAY_SUBMITS_PER_MINUTE", 30),
		},
		Aggregate: AggregateConfig{
			FailureRatio: getEnvFloat("AGGREGATE_FAILURE_RATIO", 0.5),
		},
		Retry: RetryConfig{
			MaxAttempts:   getEnvInt("RETRY_MAX_ATTEMPTS", 3),
			BaseDelay:     getEnvDuration("RETRY_BASE_DELAY", 200*time.Millisecond),
			MaxDelay:      getEnvDuration("RETRY_MAX_DELAY", 5*time.Second),
			BackoffFactor: getEnvFloat("RETRY_BACKOFF_FACTOR", 2.0),
			JitterFactor:  getEnvFloat("RETRY_JITTER_FACTOR", 0.1),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Gateway.Mode != GatewayModeLive && cfg.Gateway.Mode != GatewayModeMock {
		return fmt.Errorf("invalid gateway mode: %q (must be live or mock)", cfg.Gateway.Mode)
	}
	if cfg.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be positive: %d", cfg.Worker.Concurrency)
	}
	if cfg.Worker.MaxPollAttempts <= 0 {
		return fmt.Errorf("max poll attempts must be positive: %d", cfg.Worker.MaxPollAttempts)
	}
	if cfg.Queue.MaxRetries < 0 {
		return fmt.Errorf("queue max retries cannot be negative: %d", cfg.Queue.MaxRetries)
	}
	if cfg.Queue.CompletedRetention <= 0 || cfg.Queue.FailedRetention <= 0 {
		return fmt.Errorf("retention limits must be positive: completed=%d failed=%d",
			cfg.Queue.CompletedRetention, cfg.Queue.FailedRetention)
	}
	if cfg.Aggregate.FailureRatio < 0 || cfg.Aggregate.FailureRatio > 1 {
		return fmt.Errorf("aggregate failure ratio must be within [0,1]: %f", cfg.Aggregate.FailureRatio)
	}
	if cfg.Gateway.Mode == GatewayModeLive && cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required in live mode")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
