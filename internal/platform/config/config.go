package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures top-level service configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	// Admin credential. AdminTokenHash (bcrypt) wins over AdminToken when
	// both are set; the plaintext form exists for development.
	AdminToken     string
	AdminTokenHash string

	PostgresURL string
	Redis       RedisConfig

	// CatalogCacheTTL bounds staleness of the cached active-step snapshot.
	CatalogCacheTTL time.Duration

	// KafkaBrokers enables the audit forwarder when non-empty.
	KafkaBrokers    []string
	AuditTopic      string
	AuditBufferSize int

	// SeedBootstrapStep creates the order-1 credentials step on startup.
	SeedBootstrapStep bool
}

// RedisConfig captures Redis connection settings. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:              envOr("MANASIK_ADDR", ":8080"),
		JWTSigningKey:     envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:         envOr("JWT_ISSUER", "manasik-identity"),
		JWTAudience:       envOr("JWT_AUDIENCE", "manasik"),
		AdminToken:        os.Getenv("ADMIN_TOKEN"),
		AdminTokenHash:    os.Getenv("ADMIN_TOKEN_HASH"),
		PostgresURL:       os.Getenv("POSTGRES_URL"),
		CatalogCacheTTL:   envDurationOr("CATALOG_CACHE_TTL", 30*time.Second),
		AuditTopic:        envOr("AUDIT_TOPIC", "manasik.audit"),
		AuditBufferSize:   envIntOr("AUDIT_BUFFER_SIZE", 256),
		SeedBootstrapStep: os.Getenv("SEED_BOOTSTRAP_STEP") != "false",
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	cfg.Redis = RedisConfig{
		URL:          os.Getenv("REDIS_URL"),
		PoolSize:     envIntOr("REDIS_POOL_SIZE", 10),
		MinIdleConns: envIntOr("REDIS_MIN_IDLE_CONNS", 2),
		DialTimeout:  envDurationOr("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  envDurationOr("REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: envDurationOr("REDIS_WRITE_TIMEOUT", 3*time.Second),
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
