// Package config loads wcx settings from defaults, an optional YAML file,
// .env files and WCX_* environment variables, in that order.
package config

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/pthm/wcx/lib/mount"
)

// Config is the flat set of wcx settings. List values in the environment
// are separated by semicolons.
type Config struct {
	URLMapping      string   `yaml:"url_mapping" env:"WCX_URL_MAPPING"`
	AsyncSupported  bool     `yaml:"async_supported" env:"WCX_ASYNC_SUPPORTED"`
	LoadOnStartup   bool     `yaml:"load_on_startup" env:"WCX_LOAD_ON_STARTUP"`
	LaunchBrowser   bool     `yaml:"launch_browser" env:"WCX_LAUNCH_BROWSER"`
	AllowedPackages []string `yaml:"allowed_packages" env:"WCX_ALLOWED_PACKAGES"`
	BlockedPackages []string `yaml:"blocked_packages" env:"WCX_BLOCKED_PACKAGES"`
	DevmodeCaching  bool     `yaml:"devmode_caching" env:"WCX_DEVMODE_CACHING"`

	Addr       string `yaml:"addr" env:"WCX_ADDR"`
	SecretKey  string `yaml:"secret_key" env:"WCX_SECRET_KEY"`
	Production bool   `yaml:"production" env:"WCX_PRODUCTION"`
	LogLevel   string `yaml:"log_level" env:"WCX_LOG_LEVEL"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		URLMapping:     mount.RootMapping,
		AsyncSupported: true,
		LoadOnStartup:  true,
		DevmodeCaching: true,
		Addr:           ":8080",
		LogLevel:       "info",
	}
}

// Load builds a Config. path names an optional YAML file; envFiles are
// .env files loaded into the process environment (".env" when none are
// given, ignored if absent). Variables already set in the environment win
// over .env files.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if len(envFiles) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}

	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings.
func (c *Config) Validate() error {
	if err := mount.ValidateMapping(c.URLMapping); err != nil {
		return fmt.Errorf("url_mapping: %w", err)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.Production && c.SecretKey == "" {
		return errors.New("secret_key is required in production")
	}
	for _, p := range c.AllowedPackages {
		if strings.TrimSpace(p) == "" {
			return errors.New("allowed_packages: empty entry")
		}
	}
	return nil
}

// Key returns the token key. Outside production an empty SecretKey yields a
// random key, so tokens do not survive restarts.
func (c *Config) Key() ([]byte, error) {
	if c.SecretKey != "" {
		return []byte(c.SecretKey), nil
	}
	if c.Production {
		return nil, errors.New("secret_key is required in production")
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// NewLogger builds a production or development zap logger at LogLevel.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewDevelopmentConfig()
	if c.Production {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
