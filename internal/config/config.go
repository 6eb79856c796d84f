package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default location probed when no -config flag is given.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port           string `yaml:"port"`
	LogLevel       string `yaml:"logLevel"`
	StoreBackend   string `yaml:"storeBackend"`
	DatabaseURL    string `yaml:"databaseURL"`
	RedisAddr      string `yaml:"redisAddr"`
	RedisPassword  string `yaml:"redisPassword"`
	DeepLinkTTL    string `yaml:"deepLinkTTL"`
	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`
	ScanRateLimit  int    `yaml:"scanRateLimit"`
	ImportWorkers  int    `yaml:"importWorkers"`
	CatalogPath    string `yaml:"catalogPath"`
	LoadOnStart    bool   `yaml:"loadOnStart"`
	RunMigrations  bool   `yaml:"runMigrations"`
	MaxUploadBytes int64  `yaml:"maxUploadBytes"`
	ImageURLExpiry string `yaml:"imageURLExpiry"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("MOLTEN_PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("MOLTEN_STORE_BACKEND"); v != "" {
		cfg.StoreBackend = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v == "true" {
		cfg.MinioUseSSL = true
	}
	if v := os.Getenv("MOLTEN_SCAN_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ScanRateLimit = n
		}
	}
	if v := os.Getenv("MOLTEN_CATALOG_PATH"); v != "" {
		cfg.CatalogPath = v
	}
	if v := os.Getenv("MOLTEN_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	switch cfg.StoreBackend {
	case "memory":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return errors.New("config: databaseURL is required for the postgres backend (set in config.yaml or DATABASE_URL)")
		}
	default:
		return fmt.Errorf("config: unknown storeBackend %q (memory or postgres)", cfg.StoreBackend)
	}
	if cfg.MinioEndpoint != "" {
		if cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" {
			return errors.New("config: minioAccessKey and minioSecretKey are required when minioEndpoint is set")
		}
		if cfg.MinioBucket == "" {
			return errors.New("config: minioBucket is required when minioEndpoint is set")
		}
	}
	if cfg.ScanRateLimit < 0 {
		return errors.New("config: scanRateLimit must not be negative")
	}
	if cfg.ScanRateLimit > 0 && cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required when scanRateLimit is set")
	}
	if cfg.ImportWorkers < 0 {
		return errors.New("config: importWorkers must not be negative")
	}
	if cfg.ImportWorkers > 0 && cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required when importWorkers is set")
	}
	if _, err := cfg.DeepLinkCacheTTL(); err != nil {
		return err
	}
	if _, err := cfg.PresignExpiry(); err != nil {
		return err
	}
	return nil
}

// DeepLinkCacheTTL parses deepLinkTTL; empty means one hour.
func (c FileConfig) DeepLinkCacheTTL() (time.Duration, error) {
	return parseDuration("deepLinkTTL", c.DeepLinkTTL, time.Hour)
}

// PresignExpiry parses imageURLExpiry; empty means fifteen minutes.
func (c FileConfig) PresignExpiry() (time.Duration, error) {
	return parseDuration("imageURLExpiry", c.ImageURLExpiry, 15*time.Minute)
}

func parseDuration(field, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: %s must be positive", field)
	}
	return d, nil
}
