// Package config loads runtime configuration from the environment, with
// an optional .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

type Config struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	DBPath   string `env:"DB_PATH" envDefault:"pocketmoney.db"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	JWTSecret   string `env:"JWT_SECRET,required"`
	JWTIssuer   string `env:"JWT_ISSUER" envDefault:"pocketmoney"`
	JWTAudience string `env:"JWT_AUDIENCE" envDefault:"pocketmoney-api"`

	// Web push reminders are disabled when the VAPID keys are unset.
	VAPIDPublicKey  string `env:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `env:"VAPID_PRIVATE_KEY"`
	VAPIDSubject    string `env:"VAPID_SUBJECT" envDefault:"mailto:admin@localhost"`

	// Encrypted S3 backups are disabled when the bucket is unset.
	BackupBucket     string        `env:"BACKUP_S3_BUCKET"`
	BackupRegion     string        `env:"BACKUP_S3_REGION" envDefault:"us-east-1"`
	BackupEndpoint   string        `env:"BACKUP_S3_ENDPOINT"`
	BackupAccessKey  string        `env:"BACKUP_S3_ACCESS_KEY"`
	BackupSecretKey  string        `env:"BACKUP_S3_SECRET_KEY"`
	BackupPassphrase string        `env:"BACKUP_PASSPHRASE"`
	BackupInterval   time.Duration `env:"BACKUP_INTERVAL" envDefault:"24h"`
}

// Load reads .env when present, then parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(cfg.JWTSecret) < 16 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 16 bytes")
	}
	return &cfg, nil
}

// PushEnabled reports whether the web push keys are configured.
func (c *Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

// BackupEnabled reports whether encrypted S3 backups are configured.
func (c *Config) BackupEnabled() bool {
	return c.BackupBucket != "" && c.BackupPassphrase != ""
}
