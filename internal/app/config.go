package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (SHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (SHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	// MaxBodyBytes bounds request and webhook payloads.
	MaxBodyBytes int64 `default:"65536" usage:"Maximum request body size in bytes" flag:"max-body-bytes"`
	Stripe       StripeConfig
	Kafka        KafkaConfig
	Session      SessionConfig
	Observer     ObserverConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// StripeConfig holds payment provider credentials.
type StripeConfig struct {
	SecretKey     string `usage:"Stripe secret key (SHOP_STRIPE_SECRET_KEY or STRIPE_SECRET_KEY)" flag:"stripe-secret-key"`
	WebhookSecret string `usage:"Stripe webhook signing secret (SHOP_STRIPE_WEBHOOK_SECRET or STRIPE_WEBHOOK_SECRET)" flag:"stripe-webhook-secret"`
}

// KafkaConfig controls the order status event stream. No brokers disables it.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka broker addresses" flag:"kafka-brokers"`
	Topic   string   `default:"shop.order-status" usage:"Topic for order status changes" flag:"kafka-topic"`
}

// SessionConfig controls session token lookup.
type SessionConfig struct {
	Pepper string `usage:"HMAC pepper for session token hashing (SHOP_SESSION_PEPPER)" flag:"session-pepper"`
	Cookie string `default:"session" usage:"Session cookie name" flag:"session-cookie"`
}

// ObserverConfig bounds the push status stream.
type ObserverConfig struct {
	Interval    time.Duration `default:"3s" usage:"Status poll interval" flag:"observer-interval"`
	MaxAttempts int           `default:"20" usage:"Status polls before giving up" flag:"observer-max-attempts"`
}

// RateLimitConfig controls the per-client token bucket limiter.
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
		EnvPrefix: "SHOP",
		Files:     []string{"config.yaml", "/etc/shop/config.yaml"},
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
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set SHOP_DATABASE_URL or DATABASE_URL")
	case c.Stripe.SecretKey == "":
		return errors.New("stripe secret key is required: set SHOP_STRIPE_SECRET_KEY or STRIPE_SECRET_KEY")
	case c.Session.Pepper == "":
		return errors.New("session pepper is required: set SHOP_SESSION_PEPPER")
	}
	return nil
}

// applyPlatformDefaults maps the unprefixed variables hosting platforms and
// the payment provider's tooling set by convention.
func (c *Config) applyPlatformDefaults() {
	fallback := func(dst *string, env string) {
		if *dst != "" {
			return
		}
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	fallback(&c.DatabaseURL, "DATABASE_URL")
	fallback(&c.Stripe.SecretKey, "STRIPE_SECRET_KEY")
	fallback(&c.Stripe.WebhookSecret, "STRIPE_WEBHOOK_SECRET")

	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
