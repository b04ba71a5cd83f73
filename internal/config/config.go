package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"

	"github.com/kacper-wojtaszczyk/eventalbum/internal/model"
)

const (
	BackendMinIO = "minio"
	BackendS3    = "s3"
)

// Config holds application configuration.
type Config struct {
	Store    StoreConfig    `envPrefix:"STORE_"`
	Upload   UploadConfig   `envPrefix:"UPLOAD_"`
	Download DownloadConfig `envPrefix:"DOWNLOAD_"`
	User     UserConfig     `envPrefix:"USER_"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

type StoreConfig struct {
	Backend    string `env:"BACKEND" envDefault:"minio"`
	Endpoint   string `env:"ENDPOINT"`
	AccessKey  string `env:"ACCESS_KEY"`
	SecretKey  string `env:"SECRET_KEY"`
	Bucket     string `env:"BUCKET"`
	Region     string `env:"REGION" envDefault:"us-east-1"`
	UseSSL     bool   `env:"USE_SSL" envDefault:"false"`
	PublicHost string `env:"PUBLIC_HOST" envDefault:"s3.amazonaws.com"`
}

type UploadConfig struct {
	PartSize    int64 `env:"PART_SIZE" envDefault:"5242880"`
	MaxFileSize int64 `env:"MAX_FILE_SIZE" envDefault:"10485760"`
	Concurrency int   `env:"CONCURRENCY" envDefault:"4"`
}

type DownloadConfig struct {
	Pacing  time.Duration `env:"PACING" envDefault:"800ms"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

// UserConfig is the session identity used when no flags override it.
type UserConfig struct {
	Email string `env:"EMAIL"`
	Name  string `env:"NAME"`
	Role  string `env:"ROLE"`
}

type ErrMissingRequiredEnvVar struct {
	Name string
}

func (e *ErrMissingRequiredEnvVar) Error() string {
	return fmt.Sprintf("required environment variable %q is not set", e.Name)
}

type ErrInvalidEnvVar struct {
	Name   string
	Reason string
}

func (e *ErrInvalidEnvVar) Error() string {
	return fmt.Sprintf("environment variable %q is invalid: %s", e.Name, e.Reason)
}

// Load reads configuration from environment variables.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg.Store.Backend = strings.ToLower(cfg.Store.Backend)
	switch cfg.Store.Backend {
	case BackendMinIO:
		if cfg.Store.Endpoint == "" {
			return nil, &ErrMissingRequiredEnvVar{Name: "STORE_ENDPOINT"}
		}
		if cfg.Store.AccessKey == "" {
			return nil, &ErrMissingRequiredEnvVar{Name: "STORE_ACCESS_KEY"}
		}
		if cfg.Store.SecretKey == "" {
			return nil, &ErrMissingRequiredEnvVar{Name: "STORE_SECRET_KEY"}
		}
	case BackendS3:
	default:
		return nil, &ErrInvalidEnvVar{Name: "STORE_BACKEND", Reason: "must be minio or s3"}
	}
	if cfg.Store.Bucket == "" {
		return nil, &ErrMissingRequiredEnvVar{Name: "STORE_BUCKET"}
	}

	if cfg.Upload.PartSize < 5*1024*1024 {
		return nil, &ErrInvalidEnvVar{Name: "UPLOAD_PART_SIZE", Reason: "must be at least 5MiB"}
	}
	if cfg.Upload.MaxFileSize <= 0 {
		return nil, &ErrInvalidEnvVar{Name: "UPLOAD_MAX_FILE_SIZE", Reason: "must be positive"}
	}
	if cfg.Upload.Concurrency < 1 {
		return nil, &ErrInvalidEnvVar{Name: "UPLOAD_CONCURRENCY", Reason: "must be at least 1"}
	}
	if cfg.Download.Pacing < 0 {
		return nil, &ErrInvalidEnvVar{Name: "DOWNLOAD_PACING", Reason: "must not be negative"}
	}
	if _, err := ParseLogLevel(cfg.LogLevel); err != nil {
		return nil, &ErrInvalidEnvVar{Name: "LOG_LEVEL", Reason: err.Error()}
	}

	return &cfg, nil
}

// Identity returns the session identity configured through USER_* variables.
func (c *Config) Identity() model.Identity {
	return model.Identity{Email: c.User.Email, Name: c.User.Name, Role: c.User.Role}
}

// ParseLogLevel maps debug, info, warn or error onto a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}
