package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr string           `yaml:"listen_addr"`
	PolicyPath string           `yaml:"policy_path"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Audit      AuditConfig      `yaml:"audit"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Log        LogConfig        `yaml:"log"`
}

type EvaluationConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

type AuditConfig struct {
	Driver    string `yaml:"driver"`
	Dir       string `yaml:"dir"`
	DSN       string `yaml:"dsn"`
	QueueSize int    `yaml:"queue_size"`
}

// RateLimitConfig bounds per-session traffic. RPS <= 0 disables the rate
// limiter and SessionQuota <= 0 disables the quota.
type RateLimitConfig struct {
	RPS          float64       `yaml:"rps"`
	Burst        int           `yaml:"burst"`
	SessionQuota int           `yaml:"session_quota"`
	QuotaWindow  time.Duration `yaml:"quota_window"`
	RedisAddr    string        `yaml:"redis_addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const (
	AuditDriverFile     = "file"
	AuditDriverSQLite   = "sqlite"
	AuditDriverPostgres = "postgres"
	AuditDriverMemory   = "memory"
)

func Default() Config {
	return Config{
		ListenAddr: ":8080",
		Evaluation: EvaluationConfig{Timeout: 250 * time.Millisecond},
		Audit: AuditConfig{
			Driver:    AuditDriverFile,
			Dir:       "logs/decision",
			QueueSize: 256,
		},
		RateLimit: RateLimitConfig{
			RPS:         5,
			Burst:       10,
			QuotaWindow: 24 * time.Hour,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads path over Default. ${VAR} references are expanded first. The
// result is not validated so callers can apply overrides before Validate.
func Load(path string) (Config, error) {
	// #nosec G304 -- path is operator-provided config path.
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	expanded := os.ExpandEnv(string(raw))
	expanded = strings.ReplaceAll(expanded, "\r\n", "\n")

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadAndValidate is Load followed by Validate, for callers with no overrides.
func LoadAndValidate(path string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if c.Evaluation.Timeout < 0 {
		return fmt.Errorf("evaluation.timeout must not be negative")
	}

	switch c.Audit.Driver {
	case AuditDriverFile:
		if c.Audit.Dir == "" {
			return fmt.Errorf("audit.dir is required when audit.driver=file")
		}
	case AuditDriverSQLite, AuditDriverPostgres:
		if c.Audit.DSN == "" {
			return fmt.Errorf("audit.dsn is required when audit.driver=%s", c.Audit.Driver)
		}
	case AuditDriverMemory:
	default:
		return fmt.Errorf("unsupported audit.driver: %q", c.Audit.Driver)
	}
	if c.Audit.QueueSize < 0 {
		return fmt.Errorf("audit.queue_size must not be negative")
	}

	if c.RateLimit.RPS > 0 && c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate_limit.burst must be positive when rate_limit.rps is set")
	}
	if c.RateLimit.SessionQuota > 0 && c.RateLimit.QuotaWindow <= 0 {
		return fmt.Errorf("rate_limit.quota_window must be positive when rate_limit.session_quota is set")
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log.level: %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("unsupported log.format: %q", c.Log.Format)
	}
	return nil
}
