// Package config loads service settings from the environment, with an
// optional .env file for local runs.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"comic-edge/internal/edge"
	"comic-edge/internal/persist"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppAddr     string `mapstructure:"APP_ADDR"`
	OriginURL   string `mapstructure:"ORIGIN_URL"`
	APIBaseURL  string `mapstructure:"API_BASE_URL"`
	CDNImageURL string `mapstructure:"CDN_IMAGE_URL"`

	LogLevel   string `mapstructure:"LOG_LEVEL"`
	LogHistory int    `mapstructure:"LOG_HISTORY"`

	// --- tiered cache ---
	CacheBackend         string        `mapstructure:"CACHE_BACKEND"`
	CacheSQLitePath      string        `mapstructure:"CACHE_SQLITE_PATH"`
	RedisAddr            string        `mapstructure:"REDIS_ADDR"`
	RedisDB              int           `mapstructure:"REDIS_DB"`
	RedisPassword        string        `mapstructure:"REDIS_PASSWORD"`
	CacheMemoryItems     int           `mapstructure:"CACHE_MEMORY_ITEMS"`
	CacheDefaultTTL      time.Duration `mapstructure:"CACHE_DEFAULT_TTL"`
	CacheCleanupInterval time.Duration `mapstructure:"CACHE_CLEANUP_INTERVAL"`

	// --- edge ---
	EdgeMaxBodyBytes      int64  `mapstructure:"EDGE_MAX_BODY_BYTES"`
	EdgeBucketMaxEntries  int    `mapstructure:"EDGE_BUCKET_MAX_ENTRIES"`
	EdgeBucketMaxBytes    int64  `mapstructure:"EDGE_BUCKET_MAX_BYTES"`
	EdgeRoutes            string `mapstructure:"EDGE_ROUTES"`
	EdgePopularCategories string `mapstructure:"EDGE_POPULAR_CATEGORIES"`

	PrefetchIdle        bool          `mapstructure:"PREFETCH_IDLE"`
	PrefetchSeenTTL     time.Duration `mapstructure:"PREFETCH_SEEN_TTL"`
	ImageWebP           bool          `mapstructure:"IMAGE_WEBP"`
	OriginProbeInterval time.Duration `mapstructure:"ORIGIN_PROBE_INTERVAL"`
}

var defaults = map[string]any{
	"APP_ADDR":                ":8080",
	"ORIGIN_URL":              "http://localhost:3000",
	"API_BASE_URL":            "https://otruyenapi.com/v1/api",
	"CDN_IMAGE_URL":           "https://img.otruyenapi.com",
	"LOG_LEVEL":               "INFO",
	"LOG_HISTORY":             1000,
	"CACHE_BACKEND":           persist.BackendSQLite,
	"CACHE_SQLITE_PATH":       "data/cache.db",
	"REDIS_ADDR":              "localhost:6379",
	"REDIS_DB":                0,
	"REDIS_PASSWORD":          "",
	"CACHE_MEMORY_ITEMS":      100,
	"CACHE_DEFAULT_TTL":       5 * time.Minute,
	"CACHE_CLEANUP_INTERVAL":  time.Minute,
	"EDGE_MAX_BODY_BYTES":     int64(edge.DefaultMaxBodyBytes),
	"EDGE_BUCKET_MAX_ENTRIES": edge.DefaultBucketMaxEntries,
	"EDGE_BUCKET_MAX_BYTES":   edge.DefaultBucketMaxBytes,
	"EDGE_ROUTES":             "",
	"EDGE_POPULAR_CATEGORIES": strings.Join(edge.DefaultPopularCategories(), ","),
	"PREFETCH_IDLE":           true,
	"PREFETCH_SEEN_TTL":       time.Duration(0),
	"IMAGE_WEBP":              true,
	"ORIGIN_PROBE_INTERVAL":   30 * time.Second,
}

// Load reads envFile (if it exists) into the process environment without
// overriding variables already set, then decodes the environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("load %s: %w", envFile, err)
			}
		}
	}
	return fromEnv()
}

func fromEnv() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	for k, def := range defaults {
		v.SetDefault(k, def)
		_ = v.BindEnv(k)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	for name, raw := range map[string]string{
		"ORIGIN_URL":    c.OriginURL,
		"API_BASE_URL":  c.APIBaseURL,
		"CDN_IMAGE_URL": c.CDNImageURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s: %q is not an absolute URL", name, raw))
		}
	}

	switch c.CacheBackend {
	case persist.BackendSQLite, persist.BackendRedis, persist.BackendNone:
	default:
		errs = append(errs, fmt.Errorf("CACHE_BACKEND: %w: %q", persist.ErrUnknownBackend, c.CacheBackend))
	}
	if c.CacheMemoryItems <= 0 {
		errs = append(errs, errors.New("CACHE_MEMORY_ITEMS must be positive"))
	}
	if c.CacheDefaultTTL <= 0 {
		errs = append(errs, errors.New("CACHE_DEFAULT_TTL must be positive"))
	}
	if c.CacheCleanupInterval <= 0 {
		errs = append(errs, errors.New("CACHE_CLEANUP_INTERVAL must be positive"))
	}
	if c.EdgeMaxBodyBytes <= 0 {
		errs = append(errs, errors.New("EDGE_MAX_BODY_BYTES must be positive"))
	}
	if c.EdgeBucketMaxEntries <= 0 {
		errs = append(errs, errors.New("EDGE_BUCKET_MAX_ENTRIES must be positive"))
	}
	if c.EdgeBucketMaxBytes < c.EdgeMaxBodyBytes {
		errs = append(errs, errors.New("EDGE_BUCKET_MAX_BYTES must be at least EDGE_MAX_BODY_BYTES"))
	}
	if c.OriginProbeInterval <= 0 {
		errs = append(errs, errors.New("ORIGIN_PROBE_INTERVAL must be positive"))
	}
	if _, err := c.Routes(); err != nil {
		errs = append(errs, fmt.Errorf("EDGE_ROUTES: %w", err))
	}
	return errors.Join(errs...)
}

// Routes is the edge route table; an empty EDGE_ROUTES keeps the defaults.
func (c *Config) Routes() ([]edge.Route, error) {
	if strings.TrimSpace(c.EdgeRoutes) == "" {
		return edge.DefaultRoutes(), nil
	}
	return edge.ParseRoutes(c.EdgeRoutes)
}

func (c *Config) PopularCategories() []string {
	var out []string
	for _, s := range strings.Split(c.EdgePopularCategories, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// String masks secrets.
func (c *Config) String() string {
	var sb strings.Builder
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "  AppAddr: %s\n", c.AppAddr)
	fmt.Fprintf(&sb, "  OriginURL: %s\n", c.OriginURL)
	fmt.Fprintf(&sb, "  APIBaseURL: %s\n", c.APIBaseURL)
	fmt.Fprintf(&sb, "  CDNImageURL: %s\n", c.CDNImageURL)
	fmt.Fprintf(&sb, "  LogLevel: %s (history %d)\n", c.LogLevel, c.LogHistory)

	fmt.Fprintf(&sb, "  CacheBackend: %s\n", c.CacheBackend)
	switch c.CacheBackend {
	case persist.BackendSQLite:
		fmt.Fprintf(&sb, "  CacheSQLitePath: %s\n", c.CacheSQLitePath)
	case persist.BackendRedis:
		fmt.Fprintf(&sb, "  RedisAddr: %s db=%d\n", c.RedisAddr, c.RedisDB)
		if c.RedisPassword != "" {
			sb.WriteString("  RedisPassword: ********\n")
		} else {
			sb.WriteString("  RedisPassword: (empty)\n")
		}
	}
	fmt.Fprintf(&sb, "  CacheMemoryItems: %d\n", c.CacheMemoryItems)
	fmt.Fprintf(&sb, "  CacheDefaultTTL: %s\n", c.CacheDefaultTTL)
	fmt.Fprintf(&sb, "  CacheCleanupInterval: %s\n", c.CacheCleanupInterval)

	fmt.Fprintf(&sb, "  EdgeMaxBodyBytes: %d\n", c.EdgeMaxBodyBytes)
	fmt.Fprintf(&sb, "  EdgeBucketLimits: %d entries, %d bytes\n", c.EdgeBucketMaxEntries, c.EdgeBucketMaxBytes)
	if c.EdgeRoutes != "" {
		fmt.Fprintf(&sb, "  EdgeRoutes: %s\n", c.EdgeRoutes)
	} else {
		sb.WriteString("  EdgeRoutes: (default)\n")
	}
	fmt.Fprintf(&sb, "  EdgePopularCategories: %s\n", c.EdgePopularCategories)
	fmt.Fprintf(&sb, "  PrefetchIdle: %v\n", c.PrefetchIdle)
	fmt.Fprintf(&sb, "  PrefetchSeenTTL: %s\n", c.PrefetchSeenTTL)
	fmt.Fprintf(&sb, "  ImageWebP: %v\n", c.ImageWebP)
	fmt.Fprintf(&sb, "  OriginProbeInterval: %s\n", c.OriginProbeInterval)
	return sb.String()
}
