package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"mealcal/internal/model"
)

// Defaults used for a fresh config file and for zero values in an older one.
const (
	DefaultListen           = "127.0.0.1:8080"
	DefaultTimezone         = "America/Los_Angeles"
	DefaultRefreshCron      = "*/15 * * * *"
	DefaultHorizonDays      = 7
	DefaultFetchTimeout     = 10 * time.Second
	DefaultUserAgent        = "mealcal/1.0 (+calendar fetcher)"
	DefaultMaxBodyBytes     = 10 << 20
	DefaultCacheSize        = 512
	DefaultFetchConcurrency = 8
	DefaultLogLevel         = "info"
)

// SourceConfig describes a single ICS subscription.
type SourceConfig struct {
	// ID is optional; the registry assigns one when empty.
	ID    string `yaml:"id,omitempty" json:"id,omitempty"`
	Name  string `yaml:"name" json:"name"`
	URL   string `yaml:"url" json:"url"`
	Color string `yaml:"color,omitempty" json:"color,omitempty"`
	// Enabled defaults to true when omitted.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used when a request does not carry one.
	Timezone string `yaml:"timezone" json:"timezone"`

	// EventFilterHour hides timed events starting before this local hour.
	EventFilterHour FilterHour `yaml:"event_filter_hour" json:"event_filter_hour"`

	// RefreshCron is a five-field cron schedule for the cache refresh job.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays is the number of upcoming days warmed by the refresh job.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	FetchTimeout     time.Duration `yaml:"fetch_timeout" json:"fetch_timeout"`
	FetchRetries     int           `yaml:"fetch_retries" json:"fetch_retries"`
	UserAgent        string        `yaml:"user_agent" json:"user_agent"`
	MaxBodyBytes     int64         `yaml:"max_body_bytes" json:"max_body_bytes"`
	CacheSize        int           `yaml:"cache_size" json:"cache_size"`
	FetchConcurrency int           `yaml:"fetch_concurrency" json:"fetch_concurrency"`
	LogLevel         string        `yaml:"log_level" json:"log_level"`

	Sources []SourceConfig `yaml:"sources" json:"sources"`

	// CORSOrigins lists browser origins allowed to call the API.
	CORSOrigins []string `yaml:"cors_origins,omitempty" json:"cors_origins,omitempty"`

	// BasicAuth, if set with both fields non-empty, protects every endpoint
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:           DefaultListen,
		Timezone:         DefaultTimezone,
		RefreshCron:      DefaultRefreshCron,
		HorizonDays:      DefaultHorizonDays,
		FetchTimeout:     DefaultFetchTimeout,
		UserAgent:        DefaultUserAgent,
		MaxBodyBytes:     DefaultMaxBodyBytes,
		CacheSize:        DefaultCacheSize,
		FetchConcurrency: DefaultFetchConcurrency,
		LogLevel:         DefaultLogLevel,
		Sources:          []SourceConfig{},
	}
}

// Normalize fills in missing or invalid values so that partially-filled
// configs still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = DefaultRefreshCron
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = DefaultHorizonDays
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.FetchRetries < 0 {
		c.FetchRetries = 0
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.CacheSize <= 0 {
		c.CacheSize = DefaultCacheSize
	}
	if c.FetchConcurrency <= 0 {
		c.FetchConcurrency = DefaultFetchConcurrency
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Sources == nil {
		c.Sources = []SourceConfig{}
	}
}

// CalendarSources converts the configured subscriptions into registry seeds.
// Entries without a URL are dropped.
func (c *Config) CalendarSources() []model.CalendarSource {
	out := make([]model.CalendarSource, 0, len(c.Sources))
	for _, s := range c.Sources {
		if strings.TrimSpace(s.URL) == "" {
			continue
		}
		enabled := true
		if s.Enabled != nil {
			enabled = *s.Enabled
		}
		name := s.Name
		if name == "" {
			name = s.URL
		}
		out = append(out, model.CalendarSource{
			ID:      s.ID,
			Name:    name,
			URL:     s.URL,
			Color:   s.Color,
			Enabled: enabled,
		})
	}
	return out
}

// BasicAuthEnabled reports whether both credentials are configured.
func (c *Config) BasicAuthEnabled() bool {
	return c.BasicAuth != nil && c.BasicAuth.Username != "" && c.BasicAuth.Password != ""
}

// Load loads configuration from the given YAML path and applies environment
// overrides on top.
//
// If the file does not exist a default config is written there with 0600
// permissions and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := Save(path, cfg); err != nil {
			return cfg, err
		}
	case err != nil:
		return nil, err
	default:
		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, nil
}

// applyEnv overrides cfg with any MEALCAL_* variables that are set. The
// unprefixed DEFAULT_TIMEZONE and EVENT_FILTER_HOUR are honoured as well.
func applyEnv(cfg *Config) error {
	v := viper.New()
	v.SetEnvPrefix("MEALCAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	_ = v.BindEnv("listen", "MEALCAL_LISTEN")
	_ = v.BindEnv("timezone", "MEALCAL_TIMEZONE", "DEFAULT_TIMEZONE")
	_ = v.BindEnv("event_filter_hour", "MEALCAL_EVENT_FILTER_HOUR", "EVENT_FILTER_HOUR")
	_ = v.BindEnv("refresh", "MEALCAL_REFRESH")
	_ = v.BindEnv("horizon_days", "MEALCAL_HORIZON_DAYS")
	_ = v.BindEnv("fetch_timeout", "MEALCAL_FETCH_TIMEOUT")
	_ = v.BindEnv("fetch_retries", "MEALCAL_FETCH_RETRIES")
	_ = v.BindEnv("log_level", "MEALCAL_LOG_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("cors_origins", "MEALCAL_CORS_ORIGINS")
	_ = v.BindEnv("basic_auth.username", "MEALCAL_BASIC_AUTH_USERNAME")
	_ = v.BindEnv("basic_auth.password", "MEALCAL_BASIC_AUTH_PASSWORD")

	if v.IsSet("listen") {
		cfg.Listen = strings.TrimSpace(v.GetString("listen"))
	}
	if v.IsSet("timezone") {
		cfg.Timezone = strings.TrimSpace(v.GetString("timezone"))
	}
	if v.IsSet("event_filter_hour") {
		h, err := ParseFilterHour(v.GetString("event_filter_hour"))
		if err != nil {
			return fmt.Errorf("event_filter_hour: %w", err)
		}
		cfg.EventFilterHour = h
	}
	if v.IsSet("refresh") {
		cfg.RefreshCron = v.GetString("refresh")
	}
	if v.IsSet("horizon_days") {
		n, err := strconv.Atoi(v.GetString("horizon_days"))
		if err != nil {
			return fmt.Errorf("horizon_days: %w", err)
		}
		cfg.HorizonDays = n
	}
	if v.IsSet("fetch_timeout") {
		d, err := time.ParseDuration(v.GetString("fetch_timeout"))
		if err != nil {
			return fmt.Errorf("fetch_timeout: %w", err)
		}
		cfg.FetchTimeout = d
	}
	if v.IsSet("fetch_retries") {
		n, err := strconv.Atoi(v.GetString("fetch_retries"))
		if err != nil {
			return fmt.Errorf("fetch_retries: %w", err)
		}
		cfg.FetchRetries = n
	}
	if v.IsSet("log_level") {
		cfg.LogLevel = v.GetString("log_level")
	}
	if v.IsSet("cors_origins") {
		cfg.CORSOrigins = nil
		for _, o := range strings.Split(v.GetString("cors_origins"), ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}
	if v.IsSet("basic_auth.username") || v.IsSet("basic_auth.password") {
		if cfg.BasicAuth == nil {
			cfg.BasicAuth = &BasicAuthConfig{}
		}
		if v.IsSet("basic_auth.username") {
			cfg.BasicAuth.Username = v.GetString("basic_auth.username")
		}
		if v.IsSet("basic_auth.password") {
			cfg.BasicAuth.Password = v.GetString("basic_auth.password")
		}
	}
	return nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".mealcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
