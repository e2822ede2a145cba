// Package config parses predictor configuration from command-line flags
// and environment variables, with flags taking precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/calibrant/payband/pkg/tls"
)

// Config holds all predictor configuration.
type Config struct {
	Listen string

	LogFormat string
	LogLevel  string

	Registry      string
	RegistryDir   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	// RunID pins a specific artifact. Empty serves the latest run and
	// follows new runs as they appear.
	RunID          string
	ReloadInterval time.Duration

	ZoneCache     string
	ZoneCachePath string

	GeocoderURL     string
	GeocoderAgent   string
	GeocoderTimeout time.Duration

	TLS tls.Config
}

// ParseFlags parses command-line flags with environment variable fallbacks.
func ParseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":8082"), "HTTP listen address")

	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	flag.StringVar(&cfg.Registry, "registry", getEnv("REGISTRY", "fs"), "Artifact registry backend: fs, memory, or redis")
	flag.StringVar(&cfg.RegistryDir, "registry-dir", getEnv("REGISTRY_DIR", "./artifacts"), "Artifact directory for the fs registry")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	flag.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	flag.StringVar(&cfg.RedisPrefix, "redis-prefix", getEnv("REDIS_PREFIX", "payband"), "Redis key prefix")

	flag.StringVar(&cfg.RunID, "run-id", getEnv("RUN_ID", ""), "Pin a specific artifact run id (default: latest)")
	flag.DurationVar(&cfg.ReloadInterval, "reload-interval", getEnvDuration("RELOAD_INTERVAL", 30*time.Second), "Registry poll interval for new artifacts")

	flag.StringVar(&cfg.ZoneCache, "zone-cache", getEnv("ZONE_CACHE", "file"), "Zone cache backend: file, memory, or redis")
	flag.StringVar(&cfg.ZoneCachePath, "zone-cache-path", getEnv("ZONE_CACHE_PATH", "./zone_cache.json"), "Zone cache file for the file backend")

	flag.StringVar(&cfg.GeocoderURL, "geocoder-url", getEnv("GEOCODER_URL", "https://nominatim.openstreetmap.org/search"), "Nominatim-compatible search endpoint")
	flag.StringVar(&cfg.GeocoderAgent, "geocoder-agent", getEnv("GEOCODER_AGENT", "payband-predictor"), "User-Agent for geocoding requests")
	flag.DurationVar(&cfg.GeocoderTimeout, "geocoder-timeout", getEnvDuration("GEOCODER_TIMEOUT", 5*time.Second), "Per-lookup geocoding timeout")

	flag.BoolVar(&cfg.TLS.Enabled, "tls-enabled", getEnvBool("TLS_ENABLED", false), "Enable mTLS for the HTTP server")
	flag.StringVar(&cfg.TLS.CertFile, "tls-cert-file", getEnv("TLS_CERT_FILE", ""), "TLS certificate file")
	flag.StringVar(&cfg.TLS.KeyFile, "tls-key-file", getEnv("TLS_KEY_FILE", ""), "TLS private key file")
	flag.StringVar(&cfg.TLS.CAFile, "tls-ca-file", getEnv("TLS_CA_FILE", ""), "TLS CA certificate file for client verification")

	flag.Parse()
	return cfg
}

// Validate checks enum values and required combinations.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return errors.New("listen address required")
	}
	switch c.Registry {
	case "fs", "memory", "redis":
	default:
		return fmt.Errorf("unknown registry backend %q", c.Registry)
	}
	switch c.ZoneCache {
	case "file", "memory", "redis":
	default:
		return fmt.Errorf("unknown zone cache backend %q", c.ZoneCache)
	}
	if c.ReloadInterval <= 0 {
		return errors.New("reload interval must be positive")
	}
	if err := c.TLS.Validate(); err != nil {
		return err
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}
