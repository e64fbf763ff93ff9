package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/thriftx/storefront/internal/domain/pricing"
)

// Config holds the complete application configuration, loadable from
// environment variables (THRIFTX_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (THRIFTX_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL     string `default:"" usage:"Redis URL for the coupon cache and shared rate limits; empty keeps both in process (THRIFTX_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	ImageBaseURL string `default:"" usage:"Base URL for product images (e.g. https://cdn.example.com/images)" flag:"image-base-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (THRIFTX_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Pricing      PricingConfig
	CouponCache  CouponCacheConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
	Health       HealthConfig
}

// HealthConfig controls the background health checks.
type HealthConfig struct {
	Interval time.Duration `default:"10s" usage:"How often health checks run" flag:"health-interval"`
}

// PricingConfig holds the store-wide pricing constants, in minor units and
// whole percent.
type PricingConfig struct {
	DeliveryFee     int64 `default:"15" usage:"Delivery fee charged on every non-empty cart" flag:"delivery-fee"`
	FallbackPercent int64 `default:"20" usage:"One-time first-order discount percent" flag:"fallback-percent"`
}

// Rules converts the config into pricing rules.
func (c PricingConfig) Rules() pricing.Rules {
	return pricing.Rules{DeliveryFee: c.DeliveryFee, FallbackPercent: c.FallbackPercent}
}

// CouponCacheConfig controls the Redis coupon lookup cache.
type CouponCacheConfig struct {
	TTL time.Duration `default:"1m" usage:"Coupon cache entry lifetime" flag:"coupon-cache-ttl"`
}

// RateLimitConfig controls the per-shopper rate limit. The budget lives in
// Redis when it is configured, otherwise in process.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "THRIFTX",
		Files:     []string{"config.yaml", "/etc/thriftx/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports configuration the server cannot start with.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set THRIFTX_DATABASE_URL or DATABASE_URL")
	}
	if err := c.Pricing.Rules().Validate(); err != nil {
		return errors.Wrap(err, "pricing")
	}
	if c.RedisURL != "" && c.CouponCache.TTL <= 0 {
		return errors.New("coupon cache TTL must be positive")
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("rate limit max and window must be positive")
	}
	if c.Health.Interval <= 0 {
		return errors.New("health check interval must be positive")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's THRIFTX_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.RedisURL == "" {
		c.RedisURL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
