package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates application settings that may be sourced from files or environment variables.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Editor   EditorConfig   `mapstructure:"editor"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// EditorConfig 描述被编辑的配置文件以及编辑行为。
type EditorConfig struct {
	ConfigPath      string        `mapstructure:"config_path"`
	Debounce        time.Duration `mapstructure:"debounce"`
	HistoryCapacity int           `mapstructure:"history_capacity"`
	Watch           bool          `mapstructure:"watch"`
}

// AuthConfig 配置单密码访问控制。PasswordHash 为空时不启用。
type AuthConfig struct {
	PasswordHash string        `mapstructure:"password_hash"`
	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
}

// Enabled reports whether the password gate is on.
func (a AuthConfig) Enabled() bool {
	return strings.TrimSpace(a.PasswordHash) != ""
}

// DatabaseConfig contains connection options for PostgreSQL.
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig 包含 Redis 连接配置。
type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	Channel string `mapstructure:"channel"`
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// MinIOConfig contains connection options for MinIO/S3-compatible storage.
type MinIOConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Bucket          string `mapstructure:"bucket"`
	// RetentionDays bounds how long offsite backups are kept; 0 keeps them forever.
	RetentionDays int `mapstructure:"retention_days"`
}

// OffsiteBackups reports whether durable writes are shipped to object storage.
// The queue lives in Redis, so both must be configured.
func (c Config) OffsiteBackups() bool {
	return c.Redis.Enabled && c.MinIO.Enabled
}

// DSN builds a lib/pq compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
	)
}

// Load reads configuration solely from environment variables (with optional defaults).
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.API.AllowedOrigins = splitList(cfg.API.AllowedOrigins)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.allowed_origins", []string{})
	v.SetDefault("editor.config_path", "dashboard.yml")
	v.SetDefault("editor.debounce", 300*time.Millisecond)
	v.SetDefault("editor.history_capacity", 50)
	v.SetDefault("editor.watch", true)
	v.SetDefault("auth.token_ttl", 12*time.Hour)
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "dasheditor")
	v.SetDefault("database.user", "dasheditor")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.channel", "config_changes")
	v.SetDefault("minio.enabled", false)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", "dashboard-backups")
	v.SetDefault("minio.retention_days", 30)
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                "API_PORT",
		"api.allowed_origins":     "API_ALLOWED_ORIGINS",
		"editor.config_path":      "DASHBOARD_CONFIG_PATH",
		"editor.debounce":         "EDITOR_DEBOUNCE",
		"editor.history_capacity": "EDITOR_HISTORY_CAPACITY",
		"editor.watch":            "EDITOR_WATCH",
		"auth.password_hash":      "EDITOR_PASSWORD_HASH",
		"auth.jwt_secret":         "EDITOR_JWT_SECRET",
		"auth.token_ttl":          "EDITOR_TOKEN_TTL",
		"database.enabled":        "DATABASE_ENABLED",
		"database.host":           "DATABASE_HOST",
		"database.port":           "DATABASE_PORT",
		"database.name":           "POSTGRES_DB",
		"database.user":           "POSTGRES_USER",
		"database.password":       "POSTGRES_PASSWORD",
		"database.sslmode":        "DATABASE_SSLMODE",
		"redis.enabled":           "REDIS_ENABLED",
		"redis.host":              "REDIS_HOST",
		"redis.port":              "REDIS_PORT",
		"redis.channel":           "REDIS_CHANNEL",
		"minio.enabled":           "MINIO_ENABLED",
		"minio.endpoint":          "MINIO_ENDPOINT",
		"minio.access_key_id":     "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key": "MINIO_SECRET_ACCESS_KEY",
		"minio.use_ssl":           "MINIO_USE_SSL",
		"minio.bucket":            "MINIO_BUCKET",
		"minio.retention_days":    "MINIO_BACKUP_RETENTION_DAYS",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

// splitList accepts both a real list and a single comma separated env value.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func validate(cfg Config) error {
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	if strings.TrimSpace(cfg.Editor.ConfigPath) == "" {
		return errors.New("dashboard config path is required")
	}
	if cfg.Editor.Debounce < 0 {
		return errors.New("editor debounce must not be negative")
	}
	if cfg.Editor.HistoryCapacity <= 0 {
		return errors.New("editor history capacity must be positive")
	}
	if cfg.Auth.Enabled() {
		if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
			return errors.New("jwt secret is required when the password gate is enabled")
		}
		if cfg.Auth.TokenTTL <= 0 {
			return errors.New("token ttl must be positive")
		}
	}
	if cfg.Database.Enabled {
		if cfg.Database.Host == "" {
			return errors.New("database host is required")
		}
		if cfg.Database.Port <= 0 {
			return errors.New("database port must be positive")
		}
		if cfg.Database.Name == "" {
			return errors.New("database name is required")
		}
		if cfg.Database.User == "" {
			return errors.New("database user is required")
		}
		if cfg.Database.Password == "" {
			return errors.New("database password is required")
		}
		if cfg.Database.SSLMode == "" {
			return errors.New("database sslmode is required")
		}
	}
	if cfg.Redis.Enabled {
		if cfg.Redis.Host == "" {
			return errors.New("redis host is required")
		}
		if cfg.Redis.Port <= 0 {
			return errors.New("redis port must be positive")
		}
	}
	if cfg.MinIO.Enabled {
		if cfg.MinIO.Endpoint == "" {
			return errors.New("minio endpoint is required")
		}
		if cfg.MinIO.AccessKeyID == "" {
			return errors.New("minio access key id is required")
		}
		if cfg.MinIO.SecretAccessKey == "" {
			return errors.New("minio secret access key is required")
		}
		if cfg.MinIO.Bucket == "" {
			return errors.New("minio bucket is required")
		}
		if cfg.MinIO.RetentionDays < 0 {
			return errors.New("minio backup retention days must not be negative")
		}
	}
	return nil
}
