package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/johnrirwin/feedformatter/internal/models"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig        `yaml:"server"`
	TemplatesDir string              `yaml:"templates_dir"`
	Fetch        FetchConfig         `yaml:"fetch"`
	Cache        CacheConfig         `yaml:"cache"`
	Logging      LoggingConfig       `yaml:"logging"`
	LockFile     string              `yaml:"lock_file"`
	FeedDefaults models.FeedDefaults `yaml:"feed_defaults"`
	Feeds        []models.FeedConfig `yaml:"feeds"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Addr is the listen address for the configured port.
func (s ServerConfig) Addr() string {
	return ":" + strconv.Itoa(s.Port)
}

// FetchConfig controls upstream requests
type FetchConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	UserAgent    string        `yaml:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

// CacheConfig holds response cache configuration
type CacheConfig struct {
	MaxAgeMinutes int    `yaml:"max_age_minutes"`
	Backend       string `yaml:"backend"` // "memory" or "redis"
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix"`
}

// Enabled reports whether responses are cached at all.
func (c CacheConfig) Enabled() bool {
	return c.MaxAgeMinutes > 0
}

func (c CacheConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeMinutes) * time.Minute
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

var (
	ErrNoFeeds         = errors.New("no feeds configured")
	ErrInvalidPort     = errors.New("port must be between 1 and 65535")
	ErrInvalidFeed     = errors.New("invalid feed")
	ErrDuplicateFeed   = errors.New("duplicate feed id")
	ErrInvalidCache    = errors.New("invalid cache configuration")
	ErrNoTemplatesDir  = errors.New("templates_dir is required")
	ErrInvalidFetchCfg = errors.New("invalid fetch configuration")
)

// Default returns the configuration used for anything the file leaves out.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		TemplatesDir: "templates",
		Fetch: FetchConfig{
			Timeout:      10 * time.Second,
			UserAgent:    "FeedFormatter/1.0",
			MaxBodyBytes: 10 << 20,
		},
		Cache: CacheConfig{
			Backend:     CacheBackendMemory,
			RedisAddr:   "localhost:6379",
			RedisPrefix: "feedformatter:",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path, applies environment overrides and
// validates the result. Relative paths in the file are resolved against the
// file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	cfg.resolvePaths(filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}

// Validate checks everything that can be checked without touching the network.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Server.Port)
	}
	if c.TemplatesDir == "" {
		return ErrNoTemplatesDir
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidFetchCfg)
	}
	if c.Fetch.MaxBodyBytes < 0 {
		return fmt.Errorf("%w: max_body_bytes must not be negative", ErrInvalidFetchCfg)
	}

	if c.Cache.MaxAgeMinutes < 0 {
		return fmt.Errorf("%w: max_age_minutes must not be negative", ErrInvalidCache)
	}
	if !lo.Contains([]string{CacheBackendMemory, CacheBackendRedis}, c.Cache.Backend) {
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidCache, c.Cache.Backend)
	}
	if c.Cache.Backend == CacheBackendRedis && c.Cache.RedisAddr == "" {
		return fmt.Errorf("%w: redis_addr is required for the redis backend", ErrInvalidCache)
	}

	if len(c.Feeds) == 0 {
		return ErrNoFeeds
	}
	for i, feed := range c.Feeds {
		if err := validateFeed(feed); err != nil {
			return fmt.Errorf("feeds[%d]: %w", i, err)
		}
	}
	if dupes := lo.FindDuplicatesBy(c.Feeds, func(f models.FeedConfig) string { return f.ID }); len(dupes) > 0 {
		return fmt.Errorf("%w: %q", ErrDuplicateFeed, dupes[0].ID)
	}

	return nil
}

func validateFeed(f models.FeedConfig) error {
	switch {
	case f.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidFeed)
	case f.Title == "":
		return fmt.Errorf("%w %q: title is required", ErrInvalidFeed, f.ID)
	case f.ProviderID == "":
		return fmt.Errorf("%w %q: provider_id is required", ErrInvalidFeed, f.ID)
	case !f.Provider.Valid():
		return fmt.Errorf("%w %q: %w", ErrInvalidFeed, f.ID, models.ErrUnknownProvider)
	}
	return nil
}

func (c *Config) resolvePaths(base string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	c.TemplatesDir = resolve(c.TemplatesDir)
	c.LockFile = resolve(c.LockFile)
	c.Logging.File = resolve(c.Logging.File)
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FEEDFORMATTER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	cfg.TemplatesDir = getEnvOrDefault("FEEDFORMATTER_TEMPLATES_DIR", cfg.TemplatesDir)
	if v := os.Getenv("FEEDFORMATTER_CACHE_MAX_AGE"); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			cfg.Cache.MaxAgeMinutes = m
		}
	}
	cfg.Cache.Backend = getEnvOrDefault("FEEDFORMATTER_CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.RedisAddr = getEnvOrDefault("FEEDFORMATTER_REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Logging.Level = getEnvOrDefault("FEEDFORMATTER_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.File = getEnvOrDefault("FEEDFORMATTER_LOG_FILE", cfg.Logging.File)
	if v := os.Getenv("FEEDFORMATTER_FETCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Fetch.Timeout = d
		}
	}
}
