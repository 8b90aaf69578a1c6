package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DukeRupert/applygate/internal"
	"github.com/DukeRupert/applygate/internal/billing"
	"github.com/DukeRupert/applygate/internal/domain"
	"github.com/DukeRupert/applygate/internal/handler"
	"github.com/DukeRupert/applygate/internal/metrics"
	"github.com/DukeRupert/applygate/internal/middleware"
	"github.com/DukeRupert/applygate/internal/repository"
	"github.com/DukeRupert/applygate/internal/service"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	// Initialize repository
	repo := repository.New(db)

	// Initialize services
	catalog := domain.DefaultCatalog()
	subscriptionService := service.NewSubscriptionService(repo, catalog, logger, cfg.StoreTimeout, cfg.SnapshotCacheTTL)
	usageService := service.NewUsageService(repo, logger, cfg.StoreTimeout)
	entitlementService := service.NewEntitlementService(service.EntitlementConfig{
		Catalog:     catalog,
		Snapshots:   subscriptionService,
		Usage:       usageService,
		DefaultPlan: cfg.DefaultPlan,
		Logger:      logger,
	})

	// Stripe is optional; the sync endpoint degrades to 503 without it.
	var billingService billing.Service
	if cfg.StripeSecretKey != "" {
		billingService = billing.NewStripeService(cfg.StripeSecretKey, billing.PriceConfig{
			StandardMonthlyPriceID:   cfg.StripeStandardMonthlyPriceID,
			StandardYearlyPriceID:    cfg.StripeStandardYearlyPriceID,
			PremiumMonthlyPriceID:    cfg.StripePremiumMonthlyPriceID,
			PremiumYearlyPriceID:     cfg.StripePremiumYearlyPriceID,
			InstitutionYearlyPriceID: cfg.StripeInstitutionYearlyPriceID,
		})
		logger.Info("Stripe billing configured")
	} else {
		logger.Warn("Stripe billing not configured, sync endpoint disabled")
	}

	// Initialize middleware
	principalMw := middleware.NewPrincipalMiddleware(logger)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	metricsAuthMw := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)

	// Initialize handlers
	entitlementHandler := handler.NewEntitlementHandler(entitlementService, logger)
	billingHandler := handler.NewBillingHandler(subscriptionService, billingService, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Metrics (optionally basic-auth protected)
	mux.Handle("GET /metrics", metricsAuthMw.Handler(promhttp.Handler()))

	// Entitlement routes require an authenticated principal
	entitlementMux := http.NewServeMux()
	entitlementHandler.RegisterRoutes(entitlementMux)
	mux.Handle("/entitlement/", principalMw.Require(entitlementMux))

	// Billing intake is internal: reachable only from the trusted pipeline
	billingHandler.RegisterRoutes(mux)

	// ==========================================================================
	// Start server
	// ==========================================================================

	stack := middleware.Stack(
		loggingMw.Handler,
		metrics.Middleware,
	)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: stack(mux),
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
