package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Server captures process-level configuration. Loaded once at startup and
// never mutated afterwards; secret rotation happens via redeploy.
type Server struct {
	Addr              string
	JWTSigningKey     string
	SessionTTL        time.Duration
	BcryptCost        int
	DeviceFingerprint bool

	PostgresDSN  string
	Redis        RedisConfig
	KafkaBrokers []string
	AuditTopic   string

	Lockout LockoutConfig
}

// RedisConfig holds connection settings for the optional Redis-backed
// lockout store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// LockoutConfig bounds authentication guessing. The PIN space is only 10,000
// values, so an unbounded caller could enumerate it; these limits are a
// required control, not optional hardening.
type LockoutConfig struct {
	AttemptsPerWindow int
	WindowDuration    time.Duration
	LockDuration      time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("COREBANK_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:              addr,
		JWTSigningKey:     jwtSigningKey,
		SessionTTL:        envDuration("SESSION_TTL", 7*24*time.Hour),
		BcryptCost:        envInt("BCRYPT_COST", bcrypt.DefaultCost),
		DeviceFingerprint: envBool("DEVICE_FINGERPRINT", true),
		PostgresDSN:       os.Getenv("POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		KafkaBrokers: splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
		AuditTopic:   envString("AUDIT_TOPIC", "corebank.audit"),
		Lockout: LockoutConfig{
			AttemptsPerWindow: envInt("LOCKOUT_ATTEMPTS", 5),
			WindowDuration:    envDuration("LOCKOUT_WINDOW", 15*time.Minute),
			LockDuration:      envDuration("LOCKOUT_DURATION", 15*time.Minute),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
