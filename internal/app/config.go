package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Document store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (GREENHOUSE_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	ImageBaseURL string `default:"" usage:"Base URL for product images" flag:"image-base-url"`
	Store        StoreConfig
	Redis        RedisConfig
	RabbitMQ     RabbitMQConfig
	Auth         AuthConfig
	Payment      PaymentConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// StoreConfig selects and configures the document store.
type StoreConfig struct {
	Driver        string `default:"memory" usage:"Document store driver: memory, postgres or mongo"`
	PostgresURL   string `usage:"PostgreSQL connection URL (or DATABASE_URL)" flag:"database-url"`
	MongoURI      string `usage:"MongoDB connection URI" flag:"mongo-uri"`
	MongoDatabase string `default:"greenhouse" usage:"MongoDB database name"`
	Breaker       BreakerConfig
}

// BreakerConfig controls the circuit breaker in front of the store.
type BreakerConfig struct {
	Enabled             bool          `default:"true" usage:"Wrap the store in a circuit breaker"`
	ConsecutiveFailures uint32        `default:"5" usage:"Failures that open the breaker"`
	OpenTimeout         time.Duration `default:"30s" usage:"How long the breaker stays open"`
	HalfOpenRequests    uint32        `default:"1" usage:"Probe requests while half-open"`
}

// RedisConfig configures cart persistence. An empty Addr keeps carts in
// memory.
type RedisConfig struct {
	Addr     string        `default:"" usage:"Redis address for cart snapshots" flag:"redis-addr"`
	Password string        `default:"" usage:"Redis password"`
	DB       int           `default:"0" usage:"Redis database number"`
	CartTTL  time.Duration `default:"720h" usage:"Idle cart expiry"`
}

// RabbitMQConfig configures order events. An empty URL disables them.
type RabbitMQConfig struct {
	URL string `default:"" usage:"AMQP URL for order events" flag:"amqp-url"`
}

// AuthConfig configures the identity provider.
type AuthConfig struct {
	TokenPepper      string        `usage:"HMAC pepper for session token hashing (GREENHOUSE_AUTH_TOKEN_PEPPER)" flag:"token-pepper"`
	SessionTTL       time.Duration `default:"168h" usage:"Session lifetime"`
	FederationSecret string        `default:"" usage:"Shared secret of the federated sign-in gateway"`
}

// PaymentConfig configures the simulated gateway.
type PaymentConfig struct {
	Delay time.Duration `default:"1.5s" usage:"Simulated payment latency"`
}

// RateLimitConfig controls the per-client token bucket.
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
		EnvPrefix: "GREENHOUSE",
		Files:     []string{"config.yaml", "/etc/greenhouse/config.yaml"},
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
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Store.PostgresURL == "" {
			return errors.New("postgres store requires GREENHOUSE_STORE_POSTGRES_URL or DATABASE_URL")
		}
	case DriverMongo:
		if c.Store.MongoURI == "" {
			return errors.New("mongo store requires GREENHOUSE_STORE_MONGO_URI")
		}
	default:
		return errors.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Auth.TokenPepper == "" {
		return errors.New("token pepper is required: set GREENHOUSE_AUTH_TOKEN_PEPPER")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's GREENHOUSE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Store.PostgresURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.Store.PostgresURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
