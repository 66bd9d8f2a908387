// Package config provides configuration management for the rex CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Default configuration locations.
const (
	DefaultConfigDir  = ".config/rex"
	DefaultConfigFile = "config.yaml"
	DefaultCacheDir   = ".cache/rex"
)

// Sentinel errors for configuration operations.
var (
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// validate is the shared validator instance.
var validate = validator.New()

// Config represents the full rex configuration.
type Config struct {
	Registry string          `mapstructure:"registry" validate:"required,hostname_port|hostname|fqdn"`
	Output   string          `mapstructure:"output" validate:"oneof=table json"`
	Cache    CacheConfig     `mapstructure:"cache" validate:"required"`
	Fetch    FetchConfig     `mapstructure:"fetch" validate:"required"`
	Auth     map[string]Auth `mapstructure:"auth" validate:"dive"`
}

// CacheConfig holds cache location and staleness settings.
type CacheConfig struct {
	Dir        string        `mapstructure:"dir" validate:"required"`
	CatalogTTL time.Duration `mapstructure:"catalog_ttl" validate:"min=0"`
	TagListTTL time.Duration `mapstructure:"tag_list_ttl" validate:"min=0"`
	ResolveTTL time.Duration `mapstructure:"resolve_ttl" validate:"min=0"`
}

// FetchConfig holds concurrency and timeout settings.
type FetchConfig struct {
	Concurrency int           `mapstructure:"concurrency" validate:"min=1,max=64"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"min=0"`
	MaxRetries  uint64        `mapstructure:"max_retries" validate:"max=10"`
	PlainHTTP   bool          `mapstructure:"plain_http"`
}

// Auth holds the credential for one registry host. Token takes
// precedence over username/password.
type Auth struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Token    string `mapstructure:"token"`
}

// Validate checks the configuration for errors using struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Loader provides configuration loading.
type Loader struct {
	v       *viper.Viper
	path    string
	homeDir string
}

// NewLoader creates a configuration loader rooted at the user's home
// directory.
func NewLoader() (*Loader, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home directory: %w", err)
	}
	return newLoaderAt(home), nil
}

// newLoaderAt builds a loader against an explicit home directory.
func newLoaderAt(home string) *Loader {
	configPath := filepath.Join(home, DefaultConfigDir, DefaultConfigFile)

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("REX")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	l := &Loader{
		v:       v,
		path:    configPath,
		homeDir: home,
	}
	l.setDefaults()
	return l
}

// setDefaults sets all default configuration values using Viper.
func (l *Loader) setDefaults() {
	l.v.SetDefault("registry", "docker.io")
	l.v.SetDefault("output", "table")
	l.v.SetDefault("cache.dir", "~/"+DefaultCacheDir)
	l.v.SetDefault("cache.catalog_ttl", 5*time.Minute)
	l.v.SetDefault("cache.tag_list_ttl", 5*time.Minute)
	l.v.SetDefault("cache.resolve_ttl", 5*time.Minute)
	l.v.SetDefault("fetch.concurrency", 4)
	l.v.SetDefault("fetch.timeout", 30*time.Second)
	l.v.SetDefault("fetch.max_retries", 3)
	l.v.SetDefault("fetch.plain_http", false)
}

// Load reads the configuration file if present and returns the merged
// configuration. A missing file is not an error; defaults apply.
func (l *Loader) Load() (*Config, error) {
	if _, err := os.Stat(l.path); err == nil {
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Cache.Dir = l.expandPath(cfg.Cache.Dir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Path returns the configuration file path.
func (l *Loader) Path() string {
	return l.path
}

// expandPath replaces ~ with the home directory.
func (l *Loader) expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(l.homeDir, path[2:])
	}
	if path == "~" {
		return l.homeDir
	}
	return path
}
