package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. GALLERY_SERVER_PORT
const EnvPrefix = "GALLERY"

// Storage backends
const (
	BackendMemory   = "memory"
	BackendLocal    = "local"
	BackendS3       = "s3"
	BackendPostgres = "postgres"
)

// Config holds all configuration for the application
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Auth    AuthConfig    `yaml:"auth"`
	Upload  UploadConfig  `yaml:"upload"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	Host            string        `yaml:"host"`
	ReadTimeout     time.Duration `yaml:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `yaml:"write_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
	AccessLog       bool          `yaml:"access_log" split_words:"true"`
}

// StorageConfig selects and configures the blob store
type StorageConfig struct {
	Backend string `yaml:"backend"`
	// Timeout bounds every single blob operation
	Timeout time.Duration `yaml:"timeout"`
	// PublicURL is the prefix of photo src values
	PublicURL string         `yaml:"public_url" split_words:"true"`
	Local     LocalConfig    `yaml:"local"`
	S3        S3Config       `yaml:"s3"`
	Postgres  PostgresConfig `yaml:"postgres"`
}

// LocalConfig holds local disk storage configuration
type LocalConfig struct {
	Path string `yaml:"path"`
}

// S3Config holds S3 configuration
type S3Config struct {
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key" split_words:"true"`
	SecretKey string `yaml:"secret_key" split_words:"true"`
	// Endpoint targets S3-compatible providers
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style" split_words:"true"`
}

// PostgresConfig holds database configuration
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// AuthConfig holds the admin secret
type AuthConfig struct {
	AdminKey string        `yaml:"admin_key" split_words:"true"`
	TokenTTL time.Duration `yaml:"token_ttl" split_words:"true"`
}

// UploadConfig holds upload limits
type UploadConfig struct {
	MaxBytes    int64 `yaml:"max_bytes" split_words:"true"`
	Concurrency int   `yaml:"concurrency"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			AccessLog:       true,
		},
		Storage: StorageConfig{
			Backend:   BackendLocal,
			Timeout:   10 * time.Second,
			PublicURL: "/media",
			Local:     LocalConfig{Path: "data"},
			S3:        S3Config{Region: "us-east-1"},
			Postgres:  PostgresConfig{Host: "localhost", Port: 5432, SSLMode: "disable"},
		},
		Auth: AuthConfig{
			TokenTTL: 12 * time.Hour,
		},
		Upload: UploadConfig{
			MaxBytes:    64 << 20,
			Concurrency: 4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads configuration from a YAML file on top of the defaults, then
// applies ADMIN_KEY and GALLERY_* environment overrides. A missing file is
// not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if key, ok := os.LookupEnv("ADMIN_KEY"); ok {
		cfg.Auth.AdminKey = key
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendLocal:
		if c.Storage.Local.Path == "" {
			return fmt.Errorf("storage.local.path is required for the local backend")
		}
	case BackendS3:
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for the s3 backend")
		}
	case BackendPostgres:
		if c.Storage.Postgres.DBName == "" {
			return fmt.Errorf("storage.postgres.dbname is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload.max_bytes must be positive")
	}
	return nil
}

// DSN returns the PostgreSQL connection string
func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
