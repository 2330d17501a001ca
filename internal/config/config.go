// Package config loads the service configuration.
//
// Sources are layered with koanf, later layers winning:
//
//  1. built-in defaults (defaultConfig)
//  2. an optional YAML file (CONFIG_PATH, or config.yaml in the working dir)
//  3. environment variables (LISTEN_PORT, DB_PATH, UPLOAD_PATH, ...)
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Uploads  UploadsConfig  `koanf:"uploads"`
	Session  SessionConfig  `koanf:"session"`
	Security SecurityConfig `koanf:"security"`
	Admin    AdminConfig    `koanf:"admin"`
	Logging  LoggingConfig  `koanf:"logging"`
}

type ServerConfig struct {
	Port           int      `koanf:"port"`
	Mode           string   `koanf:"mode"` // gin mode: debug, release, test
	TrustedProxies []string `koanf:"trusted_proxies"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type UploadsConfig struct {
	Dir       string `koanf:"dir"`
	URLPrefix string `koanf:"url_prefix"`
	MaxSize   int64  `koanf:"max_size"`
}

type SessionConfig struct {
	Name   string        `koanf:"name"`
	Secret string        `koanf:"secret"`
	MaxAge time.Duration `koanf:"max_age"`
	Secure bool          `koanf:"secure"`
}

type SecurityConfig struct {
	// LoginRateLimit is the number of login attempts allowed per client IP per minute.
	// Zero disables the limiter.
	LoginRateLimit int `koanf:"login_rate_limit"`
}

// AdminConfig describes the account created by cmd/initadmin.
type AdminConfig struct {
	Username string `koanf:"username"`
	Email    string `koanf:"email"`
	Password string `koanf:"password"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			Mode:           "release",
			TrustedProxies: []string{},
		},
		Database: DatabaseConfig{
			Path: "./data/microblog.db",
		},
		Uploads: UploadsConfig{
			Dir:       "./public/uploads",
			URLPrefix: "/uploads",
			MaxSize:   5 << 20,
		},
		Session: SessionConfig{
			Name:   "microblog_session",
			Secret: "fallback-secret-change-in-production",
			MaxAge: 7 * 24 * time.Hour,
			Secure: false,
		},
		Security: SecurityConfig{
			LoginRateLimit: 10,
		},
		Admin: AdminConfig{
			Username: "admin",
			Email:    "admin@example.com",
			Password: "admin123",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
var envMappings = map[string]string{
	"listen_port":      "server.port",
	"gin_mode":         "server.mode",
	"trusted_proxies":  "server.trusted_proxies",
	"db_path":          "database.path",
	"upload_path":      "uploads.dir",
	"upload_url":       "uploads.url_prefix",
	"upload_max_size":  "uploads.max_size",
	"session_name":     "session.name",
	"cookie_secret":    "session.secret",
	"session_max_age":  "session.max_age",
	"cookie_secure":    "session.secure",
	"login_rate_limit": "security.login_rate_limit",
	"admin_username":   "admin.username",
	"admin_email":      "admin.email",
	"admin_password":   "admin.password",
	"log_level":        "logging.level",
	"log_format":       "logging.format",
	"log_caller":       "logging.caller",
}

// envTransformFunc returns "" for variables that are not ours so koanf skips them.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

var sliceConfigPaths = []string{"server.trusted_proxies"}

// Load builds the configuration from defaults, an optional YAML file and the environment.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := splitSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// splitSliceFields turns comma-separated env values into slices.
func splitSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := []string{}
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// Validate checks the values that would otherwise fail late at startup.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("server.mode must be debug, release or test, got %q", c.Server.Mode))
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if strings.TrimSpace(c.Uploads.Dir) == "" {
		errs = append(errs, errors.New("uploads.dir is required"))
	}
	if !strings.HasPrefix(c.Uploads.URLPrefix, "/") {
		errs = append(errs, fmt.Errorf("uploads.url_prefix must start with /, got %q", c.Uploads.URLPrefix))
	}
	if c.Uploads.MaxSize <= 0 {
		errs = append(errs, errors.New("uploads.max_size must be positive"))
	}
	if c.Session.Secret == "" {
		errs = append(errs, errors.New("session.secret is required"))
	}
	if c.Security.LoginRateLimit < 0 {
		errs = append(errs, errors.New("security.login_rate_limit must not be negative"))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
