// Package config loads service configuration from environment variables.
package config

import (
	"fmt"

	pkgconfig "github.com/angelmartinezt1/cs-products-sub000/pkg/config"
)

// Config holds all configuration shared by the indexer and the query server.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server (query side only)
	HTTPPort int `env:"CATALOG_HTTP_PORT" envDefault:"8020"`

	// Upstream product API
	UpstreamURL      string `env:"UPSTREAM_URL" envDefault:"http://localhost:8080/api/products"`
	UpstreamPageSize int    `env:"UPSTREAM_PAGE_SIZE" envDefault:"100"`

	// Search engine
	EngineURL        string `env:"ENGINE_URL" envDefault:"http://localhost:8108"`
	EngineAPIKey     string `env:"ENGINE_API_KEY" envDefault:"xyz"`
	EngineCollection string `env:"ENGINE_COLLECTION" envDefault:"products"`
	EngineQueryBy    string `env:"ENGINE_QUERY_BY" envDefault:"title,brand"`

	// PostgreSQL catalog mirror
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"catalog"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"catalog_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"catalog"`
	PostgresSSL  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	DBMaxConns   int32  `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns   int32  `env:"DB_MIN_CONNS" envDefault:"5"`

	// MirrorEnabled toggles the relational mirror; the indexer runs
	// without Postgres when it is off.
	MirrorEnabled bool `env:"MIRROR_ENABLED" envDefault:"true"`

	// Redis search cache
	RedisHost       string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort       int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword   string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB         int    `env:"REDIS_DB" envDefault:"0"`
	CacheEnabled    bool   `env:"CACHE_ENABLED" envDefault:"true"`
	CacheTTLSeconds int    `env:"CACHE_TTL_SECONDS" envDefault:"60"`

	// Kafka progress events
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`

	// Indexer run artifacts
	LogDir string `env:"LOG_DIR" envDefault:"logs"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load catalog config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.UpstreamURL == "" {
		return fmt.Errorf("UPSTREAM_URL is required")
	}
	if c.UpstreamPageSize < 1 {
		return fmt.Errorf("invalid upstream page size: %d", c.UpstreamPageSize)
	}
	if c.EngineURL == "" {
		return fmt.Errorf("ENGINE_URL is required")
	}
	if c.EngineCollection == "" {
		return fmt.Errorf("ENGINE_COLLECTION is required")
	}
	if c.CacheTTLSeconds < 0 {
		return fmt.Errorf("invalid cache TTL: %d", c.CacheTTLSeconds)
	}
	return nil
}
