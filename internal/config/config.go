package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DeliveryPolicy controls what happens to a secret once it has been
// matched to a recipient.
type DeliveryPolicy string

const (
	// PolicyClaimOnce delivers each secret to at most one recipient.
	PolicyClaimOnce DeliveryPolicy = "claim_once"
	// PolicyPermanent leaves every secret available to all non-authors.
	PolicyPermanent DeliveryPolicy = "permanent"
)

// ExclusionStrategy selects which request signals feed the author
// fingerprint used to prevent self-matching.
type ExclusionStrategy string

const (
	StrategySession     ExclusionStrategy = "session"
	StrategyNetwork     ExclusionStrategy = "network"
	StrategyFingerprint ExclusionStrategy = "fingerprint"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string // PostgreSQL; when empty, SQLite is used
	SQLitePath  string
	RedisURL    string

	// Identity
	IdentitySalt      string
	ExclusionStrategy ExclusionStrategy

	// Matching
	DeliveryPolicy DeliveryPolicy
	MatchMinAge    time.Duration

	// Content bounds
	TextMinLen    int
	TextMaxLen    int
	AudioMaxBytes int64
	DenyPatterns  []string

	// Rate limiting
	RateLimitWhitelist []string // IPs or CIDRs exempt from rate limiting
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		Env:               getEnv("ENV", "development"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		SQLitePath:        getEnv("SQLITE_PATH", "./data/secretos.db"),
		RedisURL:          os.Getenv("REDIS_URL"),
		IdentitySalt:      getEnv("IDENTITY_SALT", "dev-only-salt"),
		ExclusionStrategy: ExclusionStrategy(getEnv("EXCLUSION_STRATEGY", string(StrategySession))),
		DeliveryPolicy:    DeliveryPolicy(getEnv("DELIVERY_POLICY", string(PolicyClaimOnce))),
		MatchMinAge:       getDuration("MATCH_MIN_AGE", 5*time.Second),
		TextMinLen:        getInt("TEXT_MIN_LEN", 5),
		TextMaxLen:        getInt("TEXT_MAX_LEN", 1000),
		AudioMaxBytes:     int64(getInt("AUDIO_MAX_BYTES", 10<<20)),
	}

	switch cfg.DeliveryPolicy {
	case PolicyClaimOnce, PolicyPermanent:
	default:
		panic("DELIVERY_POLICY must be claim_once or permanent")
	}
	switch cfg.ExclusionStrategy {
	case StrategySession, StrategyNetwork, StrategyFingerprint:
	default:
		panic("EXCLUSION_STRATEGY must be session, network or fingerprint")
	}

	cfg.DenyPatterns = splitList(os.Getenv("DENY_PATTERNS"))
	cfg.RateLimitWhitelist = splitList(os.Getenv("RATE_LIMIT_WHITELIST"))

	// The fingerprint must not be reproducible by anyone who can guess
	// the default salt.
	if cfg.Env == "production" && cfg.IdentitySalt == "dev-only-salt" {
		panic("IDENTITY_SALT is required in production")
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			out = append(out, entry)
		}
	}
	return out
}
