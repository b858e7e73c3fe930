// Package config loads the search-pager configuration from defaults, an
// optional YAML file and SEARCHPAGER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/Sternrassler/search-pager/pkg/client"
	"github.com/Sternrassler/search-pager/pkg/logging"
	"github.com/Sternrassler/search-pager/pkg/pagination"
	"github.com/Sternrassler/search-pager/pkg/provider"
	"github.com/Sternrassler/search-pager/pkg/ratelimit"
)

// EnvPrefix prefixes every environment override, e.g. SEARCHPAGER_PAGINATION_PAGESIZE.
const EnvPrefix = "SEARCHPAGER"

// Config is the complete application configuration.
// Limiter keys sit at the top level; durations are plain integers in
// milliseconds or seconds as the key name says.
type Config struct {
	EmptyResultThreshold  int `mapstructure:"emptyResultThreshold"`
	InitialBackoffMs      int `mapstructure:"initialBackoffMs"`
	MaxBackoffMs          int `mapstructure:"maxBackoffMs"`
	MinJitterMs           int `mapstructure:"minJitterMs"`
	MaxJitterMs           int `mapstructure:"maxJitterMs"`
	FailureThreshold      int `mapstructure:"failureThreshold"`
	CircuitResetTimeoutMs int `mapstructure:"circuitResetTimeoutMs"`
	MaxRetries            int `mapstructure:"maxRetries"`
	RetryDelayMs          int `mapstructure:"retryDelayMs"`

	Pagination PaginationConfig `mapstructure:"pagination"`
	Provider   ProviderConfig   `mapstructure:"provider"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Log        LogConfig        `mapstructure:"log"`
	Server     ServerConfig     `mapstructure:"server"`
}

// PaginationConfig holds the default pagination options.
type PaginationConfig struct {
	MaxResults             int  `mapstructure:"maxResults"`
	PageSize               int  `mapstructure:"pageSize"`
	MaxPages               int  `mapstructure:"maxPages"`
	DelayBetweenRequestsMs int  `mapstructure:"delayBetweenRequestsMs"`
	DebugMode              bool `mapstructure:"debugMode"`
}

// ProviderConfig configures the HTTP search backend.
type ProviderConfig struct {
	BaseURL   string `mapstructure:"baseURL"`
	UserAgent string `mapstructure:"userAgent"`
	TimeoutMs int    `mapstructure:"timeoutMs"`
}

// CacheConfig configures the result and token caches.
type CacheConfig struct {
	ResultTTLSeconds   int `mapstructure:"resultTTLSeconds"`
	TokenCacheSize     int `mapstructure:"tokenCacheSize"`
	TokenMaxAgeSeconds int `mapstructure:"tokenMaxAgeSeconds"`
}

// RedisConfig configures the optional shared result cache. An empty URL
// disables it.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// ServerConfig configures the HTTP server of the serve command.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// New returns a viper instance carrying every default and wired to the
// environment. Callers may bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()

	limiter := ratelimit.DefaultConfig()
	v.SetDefault("emptyResultThreshold", limiter.EmptyResultThreshold)
	v.SetDefault("initialBackoffMs", limiter.InitialBackoff.Milliseconds())
	v.SetDefault("maxBackoffMs", limiter.MaxBackoff.Milliseconds())
	v.SetDefault("minJitterMs", limiter.MinJitter.Milliseconds())
	v.SetDefault("maxJitterMs", limiter.MaxJitter.Milliseconds())
	v.SetDefault("failureThreshold", limiter.FailureThreshold)
	v.SetDefault("circuitResetTimeoutMs", limiter.CircuitResetTimeout.Milliseconds())
	v.SetDefault("maxRetries", limiter.MaxRetries)
	v.SetDefault("retryDelayMs", limiter.RetryDelay.Milliseconds())

	opts := pagination.DefaultOptions()
	v.SetDefault("pagination.maxResults", opts.MaxResults)
	v.SetDefault("pagination.pageSize", opts.PageSize)
	v.SetDefault("pagination.maxPages", opts.MaxPages)
	v.SetDefault("pagination.delayBetweenRequestsMs", opts.DelayBetweenRequests.Milliseconds())
	v.SetDefault("pagination.debugMode", opts.DebugMode)

	prov := provider.DefaultConfig("http://localhost:8090")
	v.SetDefault("provider.baseURL", prov.BaseURL)
	v.SetDefault("provider.userAgent", prov.UserAgent)
	v.SetDefault("provider.timeoutMs", prov.Timeout.Milliseconds())

	cl := client.DefaultConfig()
	v.SetDefault("cache.resultTTLSeconds", int(cl.ResultTTL.Seconds()))
	v.SetDefault("cache.tokenCacheSize", cl.TokenCacheSize)
	v.SetDefault("cache.tokenMaxAgeSeconds", int(cl.TokenMaxAge.Seconds()))

	v.SetDefault("redis.url", "")
	v.SetDefault("log.level", string(logging.LevelInfo))
	v.SetDefault("log.pretty", false)
	v.SetDefault("server.addr", ":8080")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the optional config file into v and decodes the result.
// An empty file skips file loading.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	))); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section and joins all violations.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Limiter().Validate(); err != nil {
		errs = append(errs, err)
	}
	if ce := c.PaginationOptions().Validate(); ce != nil {
		errs = append(errs, ce)
	}
	if c.Provider.BaseURL == "" {
		errs = append(errs, errors.New("provider.baseURL is required"))
	}
	if c.Provider.UserAgent == "" {
		errs = append(errs, errors.New("provider.userAgent is required"))
	}
	if c.Provider.TimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("provider.timeoutMs must be > 0 (got %d)", c.Provider.TimeoutMs))
	}
	if c.Cache.ResultTTLSeconds < 0 {
		errs = append(errs, fmt.Errorf("cache.resultTTLSeconds must be >= 0 (got %d)", c.Cache.ResultTTLSeconds))
	}
	if c.Cache.TokenCacheSize < 1 {
		errs = append(errs, fmt.Errorf("cache.tokenCacheSize must be >= 1 (got %d)", c.Cache.TokenCacheSize))
	}
	if c.Cache.TokenMaxAgeSeconds < 0 {
		errs = append(errs, fmt.Errorf("cache.tokenMaxAgeSeconds must be >= 0 (got %d)", c.Cache.TokenMaxAgeSeconds))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	return errors.Join(errs...)
}

// Limiter returns the rate limiter configuration.
func (c *Config) Limiter() ratelimit.Config {
	return ratelimit.Config{
		EmptyResultThreshold: c.EmptyResultThreshold,
		InitialBackoff:       ms(c.InitialBackoffMs),
		MaxBackoff:           ms(c.MaxBackoffMs),
		MinJitter:            ms(c.MinJitterMs),
		MaxJitter:            ms(c.MaxJitterMs),
		FailureThreshold:     c.FailureThreshold,
		CircuitResetTimeout:  ms(c.CircuitResetTimeoutMs),
		MaxRetries:           c.MaxRetries,
		RetryDelay:           ms(c.RetryDelayMs),
		Clock:                time.Now,
	}
}

// PaginationOptions returns the default pagination options.
func (c *Config) PaginationOptions() pagination.Options {
	return pagination.Options{
		MaxResults:           c.Pagination.MaxResults,
		PageSize:             c.Pagination.PageSize,
		MaxPages:             c.Pagination.MaxPages,
		DelayBetweenRequests: ms(c.Pagination.DelayBetweenRequestsMs),
		DebugMode:            c.Pagination.DebugMode,
	}
}

// ProviderConfig returns the HTTP provider configuration.
func (c *Config) ProviderConfig() provider.Config {
	return provider.Config{
		BaseURL:   c.Provider.BaseURL,
		UserAgent: c.Provider.UserAgent,
		Timeout:   ms(c.Provider.TimeoutMs),
	}
}

// ClientConfig returns the client configuration. redisClient may be nil.
func (c *Config) ClientConfig(redisClient *redis.Client) client.Config {
	return client.Config{
		Limiter:        c.Limiter(),
		Pagination:     c.PaginationOptions(),
		ResultTTL:      time.Duration(c.Cache.ResultTTLSeconds) * time.Second,
		TokenCacheSize: c.Cache.TokenCacheSize,
		TokenMaxAge:    time.Duration(c.Cache.TokenMaxAgeSeconds) * time.Second,
		Redis:          redisClient,
	}
}

// Logging returns the logger configuration. Level was checked by Validate.
func (c *Config) Logging() logging.Config {
	level, _ := logging.ParseLevel(c.Log.Level)
	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Pretty = c.Log.Pretty
	return cfg
}

// RedisOptions parses redis.url. Returns nil when no URL is configured.
// A bare host:port is accepted as well as a redis:// URL.
func (c *Config) RedisOptions() (*redis.Options, error) {
	url := strings.TrimSpace(c.Redis.URL)
	if url == "" {
		return nil, nil
	}
	if !strings.Contains(url, "://") {
		return &redis.Options{Addr: url}, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis.url: %w", err)
	}
	return opts, nil
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
