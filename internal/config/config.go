package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	AuthIssuer     string   `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL    string   `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience   string   `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey string   `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`
	TLSEnabled     bool     `mapstructure:"TLS_ENABLED"`
	TLSCertFile    string   `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile     string   `mapstructure:"TLS_KEY_FILE"`

	// Transition lock. Empty REDIS_URL disables per-patient locking.
	RedisURL              string `mapstructure:"REDIS_URL"`
	PathwayLockTTLSeconds int    `mapstructure:"PATHWAY_LOCK_TTL_SECONDS"`

	// Manual-review queue for failed enrichment steps. Empty AMQP_URL disables it.
	AMQPURL         string `mapstructure:"AMQP_URL"`
	ReviewQueueName string `mapstructure:"REVIEW_QUEUE_NAME"`

	// Discharge summary archive. Empty MINIO_ENDPOINT keeps summaries in memory.
	MinioEndpoint  string `mapstructure:"MINIO_ENDPOINT"`
	MinioAccessKey string `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `mapstructure:"MINIO_SECRET_KEY"`
	MinioBucket    string `mapstructure:"MINIO_BUCKET"`
	MinioUseSSL    bool   `mapstructure:"MINIO_USE_SSL"`

	EnrichmentMaxAttempts int `mapstructure:"ENRICHMENT_MAX_ATTEMPTS"`
	EnrichmentBackoffMS   int `mapstructure:"ENRICHMENT_BACKOFF_MS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("PATHWAY_LOCK_TTL_SECONDS", 30)
	v.SetDefault("REVIEW_QUEUE_NAME", "pathway_enrichment_review")
	v.SetDefault("MINIO_BUCKET", "discharge-summaries")
	v.SetDefault("ENRICHMENT_MAX_ATTEMPTS", 3)
	v.SetDefault("ENRICHMENT_BACKOFF_MS", 200)

	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
		"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
		"TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
		"REDIS_URL", "PATHWAY_LOCK_TTL_SECONDS",
		"AMQP_URL", "REVIEW_QUEUE_NAME",
		"MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "MINIO_BUCKET", "MINIO_USE_SSL",
		"ENRICHMENT_MAX_ATTEMPTS", "ENRICHMENT_BACKOFF_MS",
	} {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active, unauthenticated requests act as a default clinician.")
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

// PathwayLockTTL is how long a per-patient transition lock may be held.
func (c *Config) PathwayLockTTL() time.Duration {
	return time.Duration(c.PathwayLockTTLSeconds) * time.Second
}

// EnrichmentBackoff is the base delay between enrichment retries.
func (c *Config) EnrichmentBackoff() time.Duration {
	return time.Duration(c.EnrichmentBackoffMS) * time.Millisecond
}

// Validate checks that the configuration is safe to run. Outside development a
// token verifier (issuer, JWKS URL or signing key) must be configured.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthIssuer == "" && c.AuthJWKSURL == "" && c.AuthSigningKey == "" {
		return fmt.Errorf(
			"one of AUTH_ISSUER, AUTH_JWKS_URL or AUTH_SIGNING_KEY must be set when ENV=%q", c.Env)
	}

	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	if c.PathwayLockTTLSeconds <= 0 {
		return fmt.Errorf("PATHWAY_LOCK_TTL_SECONDS must be positive, got %d", c.PathwayLockTTLSeconds)
	}
	if c.EnrichmentMaxAttempts < 1 {
		return fmt.Errorf("ENRICHMENT_MAX_ATTEMPTS must be at least 1, got %d", c.EnrichmentMaxAttempts)
	}
	if c.EnrichmentBackoffMS < 0 {
		return fmt.Errorf("ENRICHMENT_BACKOFF_MS must not be negative, got %d", c.EnrichmentBackoffMS)
	}

	if c.MinioEndpoint != "" && (c.MinioAccessKey == "" || c.MinioSecretKey == "") {
		return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when MINIO_ENDPOINT is set")
	}

	return nil
}
