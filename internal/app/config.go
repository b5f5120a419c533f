package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/order"
)

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (STOREFRONT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL string `default:"" usage:"Base URL for product images (e.g. https://cdn.example.com/images/)" flag:"image-base-url"`
	DB           DBConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
	Sessions     SessionsConfig
	Snapshots    SnapshotsConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Pricing      PricingConfig
	Checkout     CheckoutConfig
	Payment      PaymentConfig
}

// DBConfig tunes the PostgreSQL pool.
type DBConfig struct {
	MaxConns int32 `default:"10" usage:"Maximum pool connections" flag:"db-max-conns"`
	MinConns int32 `default:"0"  usage:"Minimum idle pool connections" flag:"db-min-conns"`
}

// RateLimitConfig controls the per-client token bucket limiter. Pay is a
// separate, stricter bucket keyed by session.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Requests a client may burst"`
	Window time.Duration `default:"1m"  usage:"Time for an empty bucket to refill"`
	Pay    PayRateLimitConfig
}

// PayRateLimitConfig is the per-session bucket in front of /checkout/pay.
type PayRateLimitConfig struct {
	Max    int           `default:"5"  usage:"Payment attempts a session may burst" flag:"pay-rate-max"`
	Window time.Duration `default:"1m" usage:"Refill time of the payment bucket" flag:"pay-rate-window"`
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

// SessionsConfig controls shopper sessions held in memory.
type SessionsConfig struct {
	Idle          time.Duration `default:"30m"  usage:"Evict sessions idle for this long" flag:"session-idle"`
	MaxQuantity   int           `default:"999"  usage:"Upper bound of a single cart line" flag:"max-quantity"`
	CookieMaxAge  time.Duration `default:"720h" usage:"Lifetime of the sid cookie, 0 disables it" flag:"session-cookie-max-age"`
	SecureCookies bool          `default:"false" usage:"Mark the sid cookie Secure" flag:"session-secure-cookie"`
}

// SnapshotsConfig selects where session snapshots are kept.
type SnapshotsConfig struct {
	Backend    string        `default:"postgres" usage:"Snapshot backend: postgres or redis" flag:"snapshot-backend"`
	TTL        time.Duration `default:"720h" usage:"Redis snapshot expiry" flag:"snapshot-ttl"`
	PruneAfter time.Duration `default:"720h" usage:"Delete postgres snapshots untouched for this long, 0 disables" flag:"snapshot-prune-after"`
}

// RedisConfig is used when Snapshots.Backend is redis.
type RedisConfig struct {
	Addr     string `default:"localhost:6379" usage:"Redis address" flag:"redis-addr"`
	Password string `usage:"Redis password" flag:"redis-password"`
	DB       int    `default:"0" usage:"Redis database" flag:"redis-db"`
}

// KafkaConfig enables order confirmation events when Brokers is set.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka brokers; empty disables events" flag:"kafka-brokers"`
	Topic   string   `default:"orders.confirmed" usage:"Topic for confirmed orders" flag:"kafka-topic"`
}

// PricingConfig tunes custom-size pricing.
type PricingConfig struct {
	UnitsPerAreaUnit int64 `default:"144" usage:"Square dimension units per area unit (144 sq in per sq ft)" flag:"units-per-area-unit"`
}

// CheckoutConfig is the store policy applied to order totals.
type CheckoutConfig struct {
	FreeShippingThreshold string `default:"500"  usage:"Subtotal above which shipping is free" flag:"free-shipping-threshold"`
	ShippingFee           string `default:"50"   usage:"Standard shipping fee" flag:"shipping-fee"`
	TaxEnabled            bool   `default:"true" usage:"Apply tax to the subtotal" flag:"tax-enabled"`
	TaxRate               string `default:"0.18" usage:"Tax rate as a fraction" flag:"tax-rate"`
	CODEnabled            bool   `default:"true" usage:"Offer cash on delivery" flag:"cod-enabled"`
	CODFee                string `default:"25"   usage:"Cash on delivery surcharge" flag:"cod-fee"`
}

// PaymentConfig controls the simulated provider and its circuit breaker.
type PaymentConfig struct {
	Latency     time.Duration `default:"1s"   usage:"Simulated charge latency" flag:"payment-latency"`
	SuccessRate float64       `default:"0.9"  usage:"Probability that a simulated charge succeeds" flag:"payment-success-rate"`
	Timeout     time.Duration `default:"10s"  usage:"Deadline of a single charge" flag:"payment-timeout"`
	Breaker     BreakerConfig
}

// BreakerConfig controls the circuit breaker around the payment provider.
type BreakerConfig struct {
	ConsecutiveFailures uint32        `default:"5"   usage:"Transport failures that open the breaker" flag:"breaker-failures"`
	OpenTimeout         time.Duration `default:"30s" usage:"How long the breaker stays open" flag:"breaker-open-timeout"`
}

// Policy parses the checkout section into an order policy.
func (c CheckoutConfig) Policy() (order.Policy, error) {
	parse := func(name, v string) (decimal.Decimal, error) {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, errors.Wrapf(err, "parse %s", name)
		}
		if d.IsNegative() {
			return decimal.Zero, errors.Errorf("%s must not be negative", name)
		}
		return d, nil
	}

	var (
		p   = order.Policy{TaxEnabled: c.TaxEnabled, CODEnabled: c.CODEnabled}
		err error
	)
	if p.FreeShippingThreshold, err = parse("free shipping threshold", c.FreeShippingThreshold); err != nil {
		return order.Policy{}, err
	}
	if p.StandardShippingFee, err = parse("shipping fee", c.ShippingFee); err != nil {
		return order.Policy{}, err
	}
	if p.TaxRate, err = parse("tax rate", c.TaxRate); err != nil {
		return order.Policy{}, err
	}
	if p.CODFee, err = parse("cod fee", c.CODFee); err != nil {
		return order.Policy{}, err
	}
	return p, nil
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STOREFRONT",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set STOREFRONT_DATABASE_URL or DATABASE_URL")
	}
	switch c.Snapshots.Backend {
	case "postgres", "redis":
	default:
		return errors.Errorf("unknown snapshot backend %q", c.Snapshots.Backend)
	}
	if _, err := c.Checkout.Policy(); err != nil {
		return errors.Wrap(err, "checkout policy")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's STOREFRONT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
