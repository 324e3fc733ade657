// Package config loads settings for the command line tools from a YAML file,
// a .env file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	pkgerrs "github.com/jamesprial/go-ruqqus/pkg/errors"
)

const (
	DefaultDomain       = "ruqqus.com"
	DefaultPollInterval = 10 * time.Second
	DefaultStorePath    = "ruqqus.db"
	DefaultListenAddr   = ":9090"
	DefaultRedirectURI  = "http://localhost:8080/callback"
	DefaultLogLevel     = "info"
)

// Config holds the settings shared by the command line tools.
type Config struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	// RefreshToken seeds the session when nothing is persisted yet.
	RefreshToken string `yaml:"refresh_token"`
	// AccessCode is a one-time authorization code.
	AccessCode string `yaml:"access_code"`
	UserAgent  string `yaml:"user_agent"`
	Domain     string `yaml:"domain"`
	AuthDomain string `yaml:"auth_domain"`

	RedirectURI string   `yaml:"redirect_uri"`
	Scopes      []string `yaml:"scopes"`
	Permanent   bool     `yaml:"permanent"`

	PollInterval    time.Duration `yaml:"poll_interval"`
	RecencyCapacity int           `yaml:"recency_capacity"`

	StorePath  string `yaml:"store_path"`
	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`
}

// LoadDotEnv loads variables from the given .env files (default ".env") without
// overriding variables already set. A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads path (if non-empty), applies environment overrides and defaults and
// checks the required fields.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.ClientID = getEnvString("RUQQUS_CLIENT_ID", c.ClientID)
	c.ClientSecret = getEnvString("RUQQUS_CLIENT_SECRET", c.ClientSecret)
	c.RefreshToken = getEnvString("RUQQUS_REFRESH_TOKEN", c.RefreshToken)
	c.AccessCode = getEnvString("RUQQUS_ACCESS_CODE", c.AccessCode)
	c.UserAgent = getEnvString("RUQQUS_USER_AGENT", c.UserAgent)
	c.Domain = getEnvString("RUQQUS_DOMAIN", c.Domain)
	c.AuthDomain = getEnvString("RUQQUS_AUTH_DOMAIN", c.AuthDomain)
	c.RedirectURI = getEnvString("RUQQUS_REDIRECT_URI", c.RedirectURI)
	if v := os.Getenv("RUQQUS_SCOPES"); v != "" {
		c.Scopes = strings.Split(v, ",")
	}
	c.Permanent = getEnvBool("RUQQUS_PERMANENT", c.Permanent)
	c.PollInterval = getEnvDuration("RUQQUS_POLL_INTERVAL", c.PollInterval)
	c.RecencyCapacity = getEnvInt("RUQQUS_RECENCY_CAPACITY", c.RecencyCapacity)
	c.StorePath = getEnvString("RUQQUS_STORE_PATH", c.StorePath)
	c.ListenAddr = getEnvString("RUQQUS_LISTEN_ADDR", c.ListenAddr)
	c.LogLevel = getEnvString("RUQQUS_LOG_LEVEL", c.LogLevel)
}

func (c *Config) applyDefaults() {
	if c.Domain == "" {
		c.Domain = DefaultDomain
	}
	if c.AuthDomain == "" {
		c.AuthDomain = c.Domain
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.StorePath == "" {
		c.StorePath = DefaultStorePath
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.RedirectURI == "" {
		c.RedirectURI = DefaultRedirectURI
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if len(c.Scopes) == 0 {
		c.Scopes = []string{"all"}
	}
}

// Validate reports the first missing required field.
func (c *Config) Validate() error {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if len(missing) > 0 {
		return &pkgerrs.ConfigError{
			Field:   missing[0],
			Message: fmt.Sprintf("required settings are not set: %v", missing),
		}
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level. Unknown names fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
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

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
