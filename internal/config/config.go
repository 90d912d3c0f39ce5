package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port              string        `mapstructure:"PORT"`
	Env               string        `mapstructure:"ENV"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL          string        `mapstructure:"REDIS_URL"`
	AuthIssuer        string        `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL       string        `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience      string        `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey    string        `mapstructure:"AUTH_SIGNING_KEY"`
	DefaultBusinessID int64         `mapstructure:"DEFAULT_BUSINESS_ID"`
	CORSOrigins       []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS      float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst    int           `mapstructure:"RATE_LIMIT_BURST"`
	RateLimitFailOpen bool          `mapstructure:"RATE_LIMIT_FAIL_OPEN"`
	RequestTimeout    time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	ProviderCacheTTL  time.Duration `mapstructure:"PROVIDER_CACHE_TTL"`
	MetricsEnabled    bool          `mapstructure:"METRICS_ENABLED"`
	KafkaBrokers      string        `mapstructure:"KAFKA_BROKERS"`
	KafkaTopicPrefix  string        `mapstructure:"KAFKA_TOPIC_PREFIX"`
	OTelEnabled       bool          `mapstructure:"OTEL_ENABLED"`
	OTelEndpoint      string        `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelSamplingRatio float64       `mapstructure:"OTEL_SAMPLING_RATIO"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
	"DEFAULT_BUSINESS_ID", "CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"RATE_LIMIT_FAIL_OPEN", "REQUEST_TIMEOUT", "PROVIDER_CACHE_TTL", "METRICS_ENABLED",
	"KAFKA_BROKERS", "KAFKA_TOPIC_PREFIX",
	"OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_SAMPLING_RATIO",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DEFAULT_BUSINESS_ID", 1)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("RATE_LIMIT_FAIL_OPEN", true)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("PROVIDER_CACHE_TTL", "30s")
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("KAFKA_TOPIC_PREFIX", "scheduling")
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	v.SetDefault("OTEL_SAMPLING_RATIO", 1.0)

	// Unmarshal only sees keys viper knows about.
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	// .env is optional.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Brokers returns the configured Kafka bootstrap servers, or nil when event
// publishing is disabled.
func (c *Config) Brokers() []string {
	return splitList(c.KafkaBrokers)
}

// Validate checks that the configuration is safe to run. Outside development
// a token verifier (issuer with JWKS, or a shared signing key) is required.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthIssuer == "" && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_ISSUER or AUTH_SIGNING_KEY must be set when ENV=%q", c.Env)
	}
	if c.AuthIssuer != "" && c.AuthJWKSURL == "" && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_JWKS_URL is required when AUTH_ISSUER is set without AUTH_SIGNING_KEY")
	}
	if c.DefaultBusinessID <= 0 {
		return fmt.Errorf("DEFAULT_BUSINESS_ID must be positive, got %d", c.DefaultBusinessID)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit settings must not be negative")
	}
	if c.OTelSamplingRatio < 0 || c.OTelSamplingRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLING_RATIO must be within [0,1], got %v", c.OTelSamplingRatio)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.ProviderCacheTTL < 0 {
		return fmt.Errorf("PROVIDER_CACHE_TTL must not be negative")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
