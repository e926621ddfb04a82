package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,notEmpty"`
	// RedisURL is optional, locks and sequences fall back to in-process/DB implementations without it.
	RedisURL string `env:"REDIS_URL"`
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// MetricsPort is where the worker exposes /metrics, the server serves it on Port
	MetricsPort string `env:"METRICS_PORT" envDefault:"9091"`

	SMTPHost  string `env:"SMTP_HOST"`
	SMTPPort  string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser  string `env:"SMTP_USER"`
	SMTPPass  string `env:"SMTP_PASS"`
	EmailFrom string `env:"EMAIL_FROM"`

	WahaBaseURL string `env:"WAHA_BASE_URL" envDefault:"http://waha:3000"`
	WahaAPIKey  string `env:"WAHA_API_KEY"`
	WahaSession string `env:"WAHA_SESSION" envDefault:"default"`

	WorkerTick    time.Duration `env:"WORKER_TICK" envDefault:"1m"`
	LockTTL       time.Duration `env:"LOCK_TTL" envDefault:"30s"`
	LockWait      time.Duration `env:"LOCK_WAIT" envDefault:"5s"`
	EmiSweepRRule string        `env:"EMI_SWEEP_RRULE" envDefault:"FREQ=HOURLY;INTERVAL=1"`

	UsernamePrefix string `env:"USERNAME_PREFIX" envDefault:"500550"`
	UsernameSuffix string `env:"USERNAME_SUFFIX" envDefault:"5"`
	AdminEmail     string `env:"ADMIN_EMAIL"`
}

// Load reads an optional .env file and parses the environment into a Config
func Load(files ...string) (*Config, error) {
	// Missing .env files are fine, the environment may already be populated
	_ = godotenv.Load(files...)

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SMTPConfigured reports whether every SMTP credential is present
func (c *Config) SMTPConfigured() bool {
	return c.SMTPHost != "" && c.SMTPPort != "" && c.SMTPUser != "" && c.SMTPPass != ""
}
