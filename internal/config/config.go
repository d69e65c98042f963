package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Server   ServerConfig   `envPrefix:"SERVER_"`
	Catalog  CatalogConfig  `envPrefix:"CATALOG_"`
	Listing  ListingConfig  `envPrefix:"LISTING_"`
	Session  SessionConfig  `envPrefix:"SESSION_"`
	Store    StoreConfig    `envPrefix:"STORE_"`
	Database DatabaseConfig `envPrefix:"DATABASE_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Kafka    KafkaConfig    `envPrefix:"KAFKA_"`
}

type ServerConfig struct {
	Addr        string `env:"ADDR" envDefault:"0.0.0.0:8080"`
	EnablePprof bool   `env:"ENABLE_PPROF" envDefault:"false"`
	PprofPrefix string `env:"PPROF_PREFIX" envDefault:""`
	CORSOrigins string `env:"CORS_ORIGINS" envDefault:""`
}

type CatalogConfig struct {
	URL      string        `env:"URL" envDefault:"https://dummyjson.com/products"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"10s"`
	Retries  int           `env:"RETRIES" envDefault:"0"`
	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	Fixture  string        `env:"FIXTURE"`
}

type ListingConfig struct {
	Breakpoint   int `env:"BREAKPOINT" envDefault:"768"`
	WideSize     int `env:"WIDE_PAGE_SIZE" envDefault:"16"`
	NarrowSize   int `env:"NARROW_PAGE_SIZE" envDefault:"8"`
	DefaultWidth int `env:"DEFAULT_WIDTH" envDefault:"1024"`
}

type SessionConfig struct {
	CookieName   string        `env:"COOKIE_NAME" envDefault:"sid"`
	IdleTTL      time.Duration `env:"IDLE_TTL" envDefault:"30m"`
	CleanupEvery time.Duration `env:"CLEANUP_EVERY" envDefault:"1m"`
}

type StoreConfig struct {
	// Catalog lists CatalogStore drivers: memory, mongo, kafka.
	Catalog []string `env:"CATALOG" envDefault:"memory" envSeparator:","`
	// Search is one of memory, redis.
	Search string `env:"SEARCH" envDefault:"memory"`
}

type DatabaseConfig struct {
	URI         string        `env:"URI" envDefault:"mongodb://localhost:27017"`
	Database    string        `env:"DATABASE" envDefault:"storefront"`
	Collection  string        `env:"COLLECTION" envDefault:"catalog_snapshots"`
	MaxPoolSize uint64        `env:"MAX_POOL_SIZE" envDefault:"10"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

type RedisConfig struct {
	Addr     string        `env:"ADDR" envDefault:"localhost:6379"`
	Password string        `env:"PASSWORD"`
	DB       int           `env:"DB" envDefault:"0"`
	Prefix   string        `env:"PREFIX" envDefault:"storefront:search"`
	TTL      time.Duration `env:"TTL" envDefault:"30m"`
}

type KafkaConfig struct {
	Brokers []string `env:"BROKERS" envDefault:"localhost:9092" envSeparator:","`
	Topic   string   `env:"TOPIC" envDefault:"storefront.catalog"`
	GroupID string   `env:"GROUP_ID" envDefault:"storefront"`
	// Consume primes the local catalog cache from snapshots of other instances.
	Consume bool `env:"CONSUME" envDefault:"false"`
	// ConsumeTimeout bounds handling and committing one message.
	ConsumeTimeout time.Duration `env:"CONSUME_TIMEOUT" envDefault:"30s"`
}

// HasCatalogDriver reports whether driver is among the configured catalog stores.
func (c StoreConfig) HasCatalogDriver(driver string) bool {
	for _, d := range c.Catalog {
		if d == driver {
			return true
		}
	}
	return false
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
