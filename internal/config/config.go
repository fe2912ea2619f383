// Package config loads the server configuration from the environment and an
// optional YAML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Port         string
	DatabasePath string

	SessionSecret string
	SessionTTL    time.Duration
	CookieSecure  bool

	// TrustProxy honours X-Forwarded-For and X-Real-IP. Enable only behind a
	// reverse proxy that overwrites them.
	TrustProxy bool

	AllowedEmails []string

	GoogleCredentialsFile string
	OAuthRedirectURL      string

	PageSize           int
	RefreshBatchSize   int
	RefreshItemTimeout time.Duration
	RefreshConcurrency int

	LogLevel slog.Level
}

// fileConfig is the shape of CONFIG_FILE. Every field is optional.
type fileConfig struct {
	Port          string   `yaml:"port"`
	DatabasePath  string   `yaml:"database_path"`
	AllowedEmails []string `yaml:"allowed_emails"`
	PageSize      int      `yaml:"page_size"`
	Refresh       struct {
		BatchSize   int    `yaml:"batch_size"`
		ItemTimeout string `yaml:"item_timeout"`
		Concurrency int    `yaml:"concurrency"`
	} `yaml:"refresh"`
}

func defaults() *Config {
	return &Config{
		Port:                  "8080",
		DatabasePath:          "data/data.db",
		SessionTTL:            24 * time.Hour,
		CookieSecure:          true,
		GoogleCredentialsFile: "credentials.json",
		PageSize:              40,
		RefreshBatchSize:      10,
		RefreshItemTimeout:    10 * time.Second,
		RefreshConcurrency:    4,
		LogLevel:              slog.LevelInfo,
	}
}

// Load builds the configuration: defaults, then CONFIG_FILE if set, then
// environment variables.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Port != "" {
		c.Port = fc.Port
	}
	if fc.DatabasePath != "" {
		c.DatabasePath = fc.DatabasePath
	}
	if len(fc.AllowedEmails) > 0 {
		c.AllowedEmails = fc.AllowedEmails
	}
	if fc.PageSize != 0 {
		c.PageSize = fc.PageSize
	}
	if fc.Refresh.BatchSize != 0 {
		c.RefreshBatchSize = fc.Refresh.BatchSize
	}
	if fc.Refresh.Concurrency != 0 {
		c.RefreshConcurrency = fc.Refresh.Concurrency
	}
	if fc.Refresh.ItemTimeout != "" {
		d, err := time.ParseDuration(fc.Refresh.ItemTimeout)
		if err != nil {
			return fmt.Errorf("config file refresh.item_timeout: %w", err)
		}
		c.RefreshItemTimeout = d
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Port = envOrDefault("PORT", c.Port)
	c.DatabasePath = envOrDefault("DATABASE_PATH", c.DatabasePath)
	c.SessionSecret = os.Getenv("SESSION_SECRET")
	c.GoogleCredentialsFile = envOrDefault("GOOGLE_CREDENTIALS_FILE", c.GoogleCredentialsFile)
	c.OAuthRedirectURL = os.Getenv("OAUTH_REDIRECT_URL")

	// Secure cookies unless explicitly disabled for local development.
	if os.Getenv("COOKIE_SECURE") == "false" {
		c.CookieSecure = false
	}
	c.TrustProxy = os.Getenv("TRUST_PROXY") == "true"

	if v := os.Getenv("ALLOWED_EMAILS"); v != "" {
		c.AllowedEmails = splitList(v)
	}

	var err error
	if c.PageSize, err = envInt("PAGE_SIZE", c.PageSize); err != nil {
		return err
	}
	if c.RefreshBatchSize, err = envInt("REFRESH_BATCH_SIZE", c.RefreshBatchSize); err != nil {
		return err
	}
	if c.RefreshConcurrency, err = envInt("REFRESH_CONCURRENCY", c.RefreshConcurrency); err != nil {
		return err
	}
	if c.RefreshItemTimeout, err = envDuration("REFRESH_ITEM_TIMEOUT", c.RefreshItemTimeout); err != nil {
		return err
	}
	if c.SessionTTL, err = envDuration("SESSION_TTL", c.SessionTTL); err != nil {
		return err
	}

	c.LogLevel = ParseLevel(os.Getenv("LOG_LEVEL"))
	return nil
}

func (c *Config) validate() error {
	var errs []error
	if c.SessionSecret == "" {
		errs = append(errs, errors.New("SESSION_SECRET is required"))
	} else if len(c.SessionSecret) < 32 {
		errs = append(errs, errors.New("SESSION_SECRET must be at least 32 characters"))
	}
	if len(c.AllowedEmails) == 0 {
		errs = append(errs, errors.New("ALLOWED_EMAILS must name at least one account"))
	}
	if c.PageSize < 1 {
		errs = append(errs, fmt.Errorf("PAGE_SIZE must be positive, got %d", c.PageSize))
	}
	if c.RefreshBatchSize < 1 {
		errs = append(errs, fmt.Errorf("REFRESH_BATCH_SIZE must be positive, got %d", c.RefreshBatchSize))
	}
	if c.RefreshConcurrency < 1 {
		errs = append(errs, fmt.Errorf("REFRESH_CONCURRENCY must be positive, got %d", c.RefreshConcurrency))
	}
	if c.RefreshItemTimeout <= 0 {
		errs = append(errs, errors.New("REFRESH_ITEM_TIMEOUT must be positive"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	return errors.Join(errs...)
}

// ParseLevel maps LOG_LEVEL values to slog levels, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
