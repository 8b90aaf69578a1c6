package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/DukeRupert/applygate/internal/domain"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Entitlement engine
	DefaultPlan      domain.PlanID // plan assumed when no active subscription exists
	StoreTimeout     time.Duration // upper bound on any single store access
	SnapshotCacheTTL time.Duration // how long snapshot reads may be served from cache

	// Stripe billing pull path
	// Optional: the sync endpoint functions as a stub if these are empty.
	StripeSecretKey string

	// Stripe price IDs mapped to plans
	StripeStandardMonthlyPriceID   string
	StripeStandardYearlyPriceID    string
	StripePremiumMonthlyPriceID    string
	StripePremiumYearlyPriceID     string
	StripeInstitutionYearlyPriceID string

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		DefaultPlan:      domain.PlanID(getEnv("DEFAULT_PLAN", string(domain.PlanFree))),
		StoreTimeout:     getEnvDuration("STORE_TIMEOUT", 3*time.Second),
		SnapshotCacheTTL: getEnvDuration("SNAPSHOT_CACHE_TTL", 30*time.Second),

		StripeSecretKey: getEnv("STRIPE_SECRET_KEY", ""),

		StripeStandardMonthlyPriceID:   getEnv("STRIPE_STANDARD_MONTHLY_PRICE_ID", ""),
		StripeStandardYearlyPriceID:    getEnv("STRIPE_STANDARD_YEARLY_PRICE_ID", ""),
		StripePremiumMonthlyPriceID:    getEnv("STRIPE_PREMIUM_MONTHLY_PRICE_ID", ""),
		StripePremiumYearlyPriceID:     getEnv("STRIPE_PREMIUM_YEARLY_PRICE_ID", ""),
		StripeInstitutionYearlyPriceID: getEnv("STRIPE_INSTITUTION_YEARLY_PRICE_ID", ""),

		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	// The default plan must resolve in the catalog; failing at boot beats
	// failing on the first entitlement check.
	if !domain.DefaultCatalog().Has(cfg.DefaultPlan) {
		return nil, fmt.Errorf("DEFAULT_PLAN %q is not a registered plan", cfg.DefaultPlan)
	}

	if cfg.StoreTimeout <= 0 {
		return nil, fmt.Errorf("STORE_TIMEOUT must be positive, got: %s", cfg.StoreTimeout)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
