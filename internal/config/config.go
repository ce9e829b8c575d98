package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config structure represents the application configuration
type Config struct {
	Server struct {
		Port string `yaml:"port" env:"SERVER_PORT"`
		Mode string `yaml:"mode" env:"SERVER_MODE"`
	} `yaml:"server"`

	Database struct {
		Host            string `yaml:"host" env:"DB_HOST"`
		Port            string `yaml:"port" env:"DB_PORT"`
		User            string `yaml:"user" env:"DB_USER"`
		Password        string `yaml:"password" env:"DB_PASSWORD"`
		DBName          string `yaml:"dbname" env:"DB_NAME"`
		SSLMode         string `yaml:"sslmode" env:"DB_SSLMODE"`
		MaxIdleConns    int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
		MaxOpenConns    int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
	} `yaml:"database"`

	JWT struct {
		Secret                string `yaml:"secret" env:"JWT_SECRET"`
		AccessTokenExpiration string `yaml:"access_token_expiration" env:"JWT_ACCESS_TOKEN_EXPIRATION"`
		Issuer                string `yaml:"issuer" env:"JWT_ISSUER"`
	} `yaml:"jwt"`

	Logging struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Format string `yaml:"format" env:"LOG_FORMAT"`
	} `yaml:"logging"`

	Storage struct {
		PhotoPath         string   `yaml:"photo_path" env:"STORAGE_PHOTO_PATH"`
		PhotoURL          string   `yaml:"photo_url" env:"STORAGE_PHOTO_URL"`
		MaxPhotoSize      int64    `yaml:"max_photo_size" env:"STORAGE_MAX_PHOTO_SIZE"`
		AllowedExtensions []string `yaml:"allowed_extensions" env:"STORAGE_ALLOWED_EXTENSIONS"`
		DefaultAvatar     string   `yaml:"default_avatar" env:"STORAGE_DEFAULT_AVATAR"`
	} `yaml:"storage"`

	Directory struct {
		IdentifierPrefix   string `yaml:"identifier_prefix" env:"DIRECTORY_IDENTIFIER_PREFIX"`
		MaxImportFileSize  int64  `yaml:"max_import_file_size" env:"DIRECTORY_MAX_IMPORT_FILE_SIZE"`
		ImportErrorPreview int    `yaml:"import_error_preview" env:"DIRECTORY_IMPORT_ERROR_PREVIEW"`
	} `yaml:"directory"`

	Retention struct {
		Enabled  bool   `yaml:"enabled" env:"RETENTION_ENABLED"`
		Path     string `yaml:"path" env:"RETENTION_PATH"`
		MaxAge   string `yaml:"max_age" env:"RETENTION_MAX_AGE"`
		Interval string `yaml:"interval" env:"RETENTION_INTERVAL"`
	} `yaml:"retention"`

	Redis struct {
		Addr          string `yaml:"addr" env:"REDIS_ADDR"`
		Password      string `yaml:"password" env:"REDIS_PASSWORD"`
		DB            int    `yaml:"db" env:"REDIS_DB"`
		ClassCacheTTL string `yaml:"class_cache_ttl" env:"REDIS_CLASS_CACHE_TTL"`
	} `yaml:"redis"`

	Auth struct {
		BcryptCost               int    `yaml:"bcrypt_cost" env:"AUTH_BCRYPT_COST"`
		LegacyPlaintextPasswords bool   `yaml:"legacy_plaintext_passwords" env:"AUTH_LEGACY_PLAINTEXT_PASSWORDS"`
		BootstrapAdminUsername   string `yaml:"bootstrap_admin_username" env:"AUTH_BOOTSTRAP_ADMIN_USERNAME"`
		BootstrapAdminPassword   string `yaml:"bootstrap_admin_password" env:"AUTH_BOOTSTRAP_ADMIN_PASSWORD"`
	} `yaml:"auth"`
}

// LoadConfig loads configuration from a .env file, a YAML file and environment variables,
// in increasing order of precedence.
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	config := &Config{}
	setDefaults(config)

	if _, err := os.Stat(configPath); err == nil {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(file, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults sets default values for the configuration
func setDefaults(config *Config) {
	config.Server.Port = "8080"
	config.Server.Mode = "development"

	config.Database.Host = "localhost"
	config.Database.Port = "5432"
	config.Database.User = "postgres"
	config.Database.Password = "postgres"
	config.Database.DBName = "bright_star"
	config.Database.SSLMode = "disable"
	config.Database.MaxIdleConns = 5
	config.Database.MaxOpenConns = 20
	config.Database.ConnMaxLifetime = "1h"

	config.JWT.AccessTokenExpiration = "8h"
	config.JWT.Issuer = "portal.brightstar"

	config.Logging.Level = "info"
	config.Logging.Format = "json"

	config.Storage.PhotoPath = "static/uploads/students"
	config.Storage.PhotoURL = "/uploads/students"
	config.Storage.MaxPhotoSize = 5 * 1024 * 1024
	config.Storage.AllowedExtensions = []string{"png", "jpg", "jpeg", "gif", "webp"}
	config.Storage.DefaultAvatar = "static/images/default_avatar.png"

	config.Directory.IdentifierPrefix = "STU"
	config.Directory.MaxImportFileSize = 5 * 1024 * 1024
	config.Directory.ImportErrorPreview = 10

	config.Retention.Enabled = false
	config.Retention.Path = "static/uploads/archive"
	config.Retention.MaxAge = "720h"
	config.Retention.Interval = "24h"

	config.Redis.ClassCacheTTL = "10m"

	config.Auth.BcryptCost = 12
}

// loadFromEnv overrides configuration with environment variables
func loadFromEnv(config *Config) error {
	return processStructFields(config)
}

// validateConfig ensures that the configuration is valid
func validateConfig(config *Config) error {
	if config.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if config.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	if _, err := time.ParseDuration(config.JWT.AccessTokenExpiration); err != nil {
		return fmt.Errorf("invalid JWT access token expiration format: %w", err)
	}

	if config.Storage.PhotoPath == "" {
		return fmt.Errorf("storage photo path is required")
	}

	if config.Storage.MaxPhotoSize <= 0 {
		return fmt.Errorf("storage max photo size must be positive")
	}

	if len(config.Storage.AllowedExtensions) == 0 {
		return fmt.Errorf("at least one allowed photo extension is required")
	}

	if prefix := config.Directory.IdentifierPrefix; prefix == "" || len(prefix) > 8 {
		return fmt.Errorf("identifier prefix must be 1-8 characters")
	}

	if config.Retention.Enabled {
		if config.Retention.Path == "" {
			return fmt.Errorf("retention path is required when retention is enabled")
		}
		if _, err := time.ParseDuration(config.Retention.MaxAge); err != nil {
			return fmt.Errorf("invalid retention max age: %w", err)
		}
		if _, err := time.ParseDuration(config.Retention.Interval); err != nil {
			return fmt.Errorf("invalid retention interval: %w", err)
		}
	}

	return nil
}

// GetPostgresConnectionString returns postgres connection string
func (c *Config) GetPostgresConnectionString() string {
	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
		sslMode,
	)
}

// GetEnv gets an environment variable or returns a default value
func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt gets an environment variable as an integer or returns a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(GetEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

// GetEnvAsBool gets an environment variable as a boolean or returns a default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	switch strings.ToLower(GetEnv(key, "")) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}
