package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the livesearch API configuration.
type Config struct {
	HTTP      HTTPConfig       `yaml:"http"`
	Database  DatabaseConfig   `yaml:"database"`
	Auth      AuthConfig       `yaml:"auth"`
	Search    SearchConfig     `yaml:"search"`
	Cache     CacheConfig      `yaml:"cache"`
	Probe     ProbeConfig      `yaml:"probe"`
	Proxy     ProxyConfig      `yaml:"proxy"`
	Media     []MediaConfig    `yaml:"media"`
	Providers []ProviderConfig `yaml:"providers"`
	Logging   LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds connection settings for the store behind the index and caches.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Replicas         []string `yaml:"replicas"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// SearchConfig holds pagination settings.
type SearchConfig struct {
	MaxResultWindow    int     `yaml:"max_result_window"`
	MaxPaginationDepth int     `yaml:"max_pagination_depth"`
	DeadLinkRatio      float64 `yaml:"dead_link_ratio"`
	WideningFactor     float64 `yaml:"widening_factor"`
	MaxWidenings       int     `yaml:"max_widenings"`
	RelatedPageSize    int     `yaml:"related_page_size"`
	DefaultPageSize    int     `yaml:"default_page_size"`
	MaxPageSize        int     `yaml:"max_page_size"`
	MergeTimeoutMs     int     `yaml:"merge_timeout_ms"`
}

// CacheConfig holds cache lifetimes and the breaker guarding each cache namespace.
type CacheConfig struct {
	MaskTTLSec              int           `yaml:"mask_ttl_sec"`
	FilteredProvidersTTLSec int           `yaml:"filtered_providers_ttl_sec"`
	ProvidersTTLSec         int           `yaml:"providers_ttl_sec"`
	Breaker                 BreakerConfig `yaml:"breaker"`
}

// BreakerConfig holds circuit breaker settings.
type BreakerConfig struct {
	Failures         uint32 `yaml:"failures"`
	OpenSec          int    `yaml:"open_sec"`
	IntervalSec      int    `yaml:"interval_sec"`
	HalfOpenRequests uint32 `yaml:"half_open_requests"`
}

// ProbeConfig holds liveness probe settings.
type ProbeConfig struct {
	Concurrency int          `yaml:"concurrency"`
	TimeoutMs   int          `yaml:"timeout_ms"`
	RatePerSec  float64      `yaml:"rate_per_sec"` // 0 = unlimited
	Burst       int          `yaml:"burst"`
	UserAgent   string       `yaml:"user_agent"`
	Policy      PolicyConfig `yaml:"policy"`
}

// PolicyConfig classifies probe status codes. Empty uses the default policy.
type PolicyConfig struct {
	Alive   []StatusRange `yaml:"alive"`
	Dead    []int         `yaml:"dead"`
	Unknown []int         `yaml:"unknown"`
}

// StatusRange is an inclusive range of HTTP status codes.
type StatusRange struct {
	From int `yaml:"from"`
	To   int `yaml:"to"`
}

// ProxyConfig holds thumbnail proxy settings.
type ProxyConfig struct {
	Enabled  bool     `yaml:"enabled"`
	URL      string   `yaml:"url"`
	Width    int      `yaml:"width"`
	ProxyAll []string `yaml:"proxy_all"` // providers whose thumbnails are always proxied
}

// MediaConfig describes one searchable media type.
type MediaConfig struct {
	Name          string        `yaml:"name"`
	Index         string        `yaml:"index"`
	SearchFields  []FieldConfig `yaml:"search_fields"`
	RelatedFields []string      `yaml:"related_fields"`
	DetailURL     string        `yaml:"detail_url"`
}

// FieldConfig is a weighted full-text field.
type FieldConfig struct {
	Name   string  `yaml:"name"`
	Weight float64 `yaml:"weight"`
}

// ProviderConfig seeds the provider registry at startup.
type ProviderConfig struct {
	ID            string `yaml:"id"`
	MediaType     string `yaml:"media_type"`
	FilterContent bool   `yaml:"filter_content"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
// Search tunables left at zero are defaulted by the search service itself.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Search.DefaultPageSize <= 0 {
		c.Search.DefaultPageSize = 20
	}
	if c.Search.MaxPageSize <= 0 {
		c.Search.MaxPageSize = 500
	}
	if c.Cache.MaskTTLSec <= 0 {
		c.Cache.MaskTTLSec = 300
	}
	if c.Cache.FilteredProvidersTTLSec <= 0 {
		c.Cache.FilteredProvidersTTLSec = 900
	}
	if c.Cache.ProvidersTTLSec <= 0 {
		c.Cache.ProvidersTTLSec = 3600
	}
	if c.Probe.Concurrency <= 0 {
		c.Probe.Concurrency = 16
	}
	if c.Probe.TimeoutMs <= 0 {
		c.Probe.TimeoutMs = 2000
	}
	if c.Probe.UserAgent == "" {
		c.Probe.UserAgent = "livesearch-link-validator"
	}
	if c.Proxy.Width <= 0 {
		c.Proxy.Width = 600
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if r := c.Search.DeadLinkRatio; r < 0 || r >= 1 {
		return fmt.Errorf("search.dead_link_ratio must be in [0, 1), got %v", r)
	}
	if c.Search.DefaultPageSize > c.Search.MaxPageSize {
		return fmt.Errorf("search.default_page_size %d exceeds max_page_size %d",
			c.Search.DefaultPageSize, c.Search.MaxPageSize)
	}
	if c.Proxy.Enabled && c.Proxy.URL == "" {
		return fmt.Errorf("proxy.url is required when proxy is enabled")
	}
	for i, p := range c.Providers {
		if p.ID == "" {
			return fmt.Errorf("providers[%d].id is required", i)
		}
	}
	return nil
}

// MaskTTL returns the liveness mask lifetime.
func (c CacheConfig) MaskTTL() time.Duration { return time.Duration(c.MaskTTLSec) * time.Second }

// FilteredProvidersTTL returns the lifetime of the cached exclusion list.
func (c CacheConfig) FilteredProvidersTTL() time.Duration {
	return time.Duration(c.FilteredProvidersTTLSec) * time.Second
}

// ProvidersTTL returns the lifetime of cached provider counts.
func (c CacheConfig) ProvidersTTL() time.Duration {
	return time.Duration(c.ProvidersTTLSec) * time.Second
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
