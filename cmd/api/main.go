package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"order-settlement/internal/config"
	"order-settlement/internal/coupon"
	"order-settlement/internal/database"
	"order-settlement/internal/events"
	"order-settlement/internal/handler"
	"order-settlement/internal/repository"
	"order-settlement/internal/router"
	"order-settlement/internal/service"
	"order-settlement/internal/tracing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting order settlement API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Tracing.Enabled {
		tp, err := tracing.Init(ctx, cfg.Tracing.ServiceName, cfg.Tracing.Endpoint)
		if err != nil {
			return fmt.Errorf("failed to initialise tracing: %w", err)
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Error().Err(err).Msg("failed to flush traces")
			}
		}()
		logger.Info().Str("endpoint", cfg.Tracing.Endpoint).Msg("tracing enabled")
	}

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(cfg.Database.ConnectionString(), logger); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	// Initialize database connection pool
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	// Initialize repositories
	txm := repository.NewTxManager(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)
	productRepo := repository.NewProductRepository(pool, logger)
	loyaltyRepo := repository.NewLoyaltyRepository(pool, logger)
	returnRepo := repository.NewReturnRepository(pool, logger)
	userRepo := repository.NewUserRepository(logger)
	couponRepo := repository.NewCouponRepository(logger)
	addressRepo := repository.NewAddressRepository(logger)

	if cfg.Coupon.SyncOnStart {
		if err := syncCoupons(ctx, cfg, txm, couponRepo, logger); err != nil {
			return err
		}
	}

	publisher := newPublisher(cfg.Kafka, logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close event publisher")
		}
	}()

	// Initialize services
	vatRate := decimal.NewFromFloat(cfg.Business.VATRate)
	ledger := service.NewPointsLedger(txm, loyaltyRepo, userRepo, orderRepo, vatRate, logger)
	inventory := service.NewInventoryAdjuster(productRepo, logger)
	couponUsage := service.NewCouponUsageTracker(couponRepo, logger)

	lifecycle := service.NewOrderLifecycle(txm, orderRepo, ledger, inventory, publisher, logger)
	returns := service.NewReturnSettlement(txm, returnRepo, orderRepo, ledger, inventory, couponUsage, publisher, logger)
	pos := service.NewPOSOrderBuilder(service.POSDependencies{
		TxManager:   txm,
		Orders:      orderRepo,
		Products:    productRepo,
		Users:       userRepo,
		Addresses:   addressRepo,
		Validator:   coupon.NewValidator(couponRepo, logger),
		CouponUsage: couponUsage,
		Ledger:      ledger,
		Inventory:   inventory,
		Publisher:   publisher,
	}, service.StoreLocation{
		Phone:       cfg.Business.StorePhone,
		AddressLine: cfg.Business.StoreAddressLine,
		City:        cfg.Business.StoreCity,
	}, vatRate, logger)

	// Initialize router
	var mux http.Handler = router.New(router.Handlers{
		Orders:  handler.NewOrderHandler(lifecycle, ledger, logger),
		Points:  handler.NewPointsHandler(ledger, logger),
		POS:     handler.NewPOSHandler(pos, logger),
		Returns: handler.NewReturnHandler(returns, logger),
	}, router.Options{
		APIKey:         cfg.Auth.APIKey,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
	}, logger)
	if cfg.Tracing.Enabled {
		mux = otelhttp.NewHandler(mux, "http.server")
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}

// syncCoupons loads the coupon catalog from S3, falling back to the local
// file system, and upserts it into the coupons table.
func syncCoupons(ctx context.Context, cfg *config.Config, txm repository.TxManager, repo repository.CouponRepository, logger zerolog.Logger) error {
	fileLoader := coupon.NewFileLoader(logger)
	var s3Loader coupon.Loader

	s3Enabled := cfg.S3.Enabled
	if s3Enabled {
		loader, err := coupon.NewS3Loader(ctx, cfg.S3.Bucket, cfg.S3.Region, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("failed to initialise S3 loader, falling back to local file system only")
			s3Enabled = false
		} else {
			s3Loader = loader
		}
	} else {
		logger.Info().Msg("using local file system for coupon catalog (S3 disabled)")
	}

	loader := coupon.NewFallbackLoader(s3Loader, fileLoader, cfg.S3.Prefix, s3Enabled, logger)
	written, err := coupon.NewSyncer(loader, txm, repo, logger).Sync(ctx, cfg.Coupon.CatalogPath)
	if err != nil {
		return fmt.Errorf("failed to sync coupon catalog: %w", err)
	}

	logger.Info().Int("coupons", written).Str("path", cfg.Coupon.CatalogPath).Msg("coupon catalog synced")
	return nil
}

// newPublisher returns the Kafka publisher when enabled and a no-op otherwise.
func newPublisher(cfg config.KafkaConfig, logger zerolog.Logger) events.Publisher {
	if !cfg.Enabled {
		logger.Info().Msg("order events disabled")
		return events.NewNopPublisher()
	}
	logger.Info().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Msg("publishing order events to kafka")
	return events.NewKafkaPublisher(cfg.Brokers, cfg.Topic, logger)
}
