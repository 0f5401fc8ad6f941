package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/discount"
	"storefront/internal/events"
	"storefront/internal/handler"
	"storefront/internal/metrics"
	"storefront/internal/notification"
	"storefront/internal/payment"
	"storefront/internal/reaper"
	"storefront/internal/repository"
	"storefront/internal/router"
	"storefront/internal/service"
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
	logger.Info().Msg("starting storefront API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	// Initialize repositories
	productRepo := repository.NewProductRepository(pool, logger)
	cartRepo := repository.NewCartRepository(pool, logger)
	discountRepo := repository.NewDiscountRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)

	// Initialize payment gateway client and notification sender
	gateway := payment.NewGateway(cfg.Payment.BaseURL, cfg.Payment.APIKey, cfg.Payment.Timeout, logger)
	notifier := notification.NewSender(cfg.Notification.BaseURL, cfg.Notification.Timeout, logger)

	// Optional startup import of discount-code files
	if cfg.Import.Enabled {
		var loader discount.Loader
		if cfg.Import.S3Enabled {
			s3Loader, err := discount.NewS3Loader(ctx, cfg.Import.S3Bucket, cfg.Import.S3Region, cfg.Import.S3Prefix, logger)
			if err != nil {
				logger.Warn().
					Err(err).
					Msg("failed to initialise S3 loader, falling back to local file system")
				loader = discount.NewFileLoader(logger)
			} else {
				loader = s3Loader
			}
		} else {
			loader = discount.NewFileLoader(logger)
		}

		importer := discount.NewImporter(loader, discountRepo, logger)
		count, err := importer.Import(ctx, cfg.Import.FilePaths)
		if err != nil {
			return fmt.Errorf("failed to import discount codes: %w", err)
		}
		logger.Info().Int("count", count).Msg("discount codes imported")
	}

	// Initialize services
	cartService := service.NewCartService(cartRepo, productRepo, logger)
	checkoutService := service.NewCheckoutService(
		cartRepo, productRepo, discountRepo, orderRepo,
		gateway, cfg.Checkout, cfg.Payment, cfg.Kafka.Topic, logger,
	)
	orderService := service.NewOrderService(
		orderRepo, productRepo, discountRepo, cartRepo,
		gateway, notifier, cfg.Kafka.Topic, logger,
	)

	// Initialize HTTP handlers
	cartHandler := handler.NewCartHandler(cartService, logger)
	checkoutHandler := handler.NewCheckoutHandler(checkoutService, logger)
	orderHandler := handler.NewOrderHandler(orderService, logger)
	webhookHandler := handler.NewWebhookHandler(orderService, cfg.Payment.WebhookSecret, logger)

	// Initialize metrics and router
	serverMetrics := metrics.NewServerMetrics(prometheus.DefaultRegisterer)
	mux := router.New(
		cartHandler, checkoutHandler, orderHandler, webhookHandler,
		serverMetrics, cfg.Auth.APIKey, cfg.Auth.JWTSecret, logger,
	)

	// Start the outbox dispatcher when a broker is configured. Without one,
	// outbox rows still accumulate as an audit trail.
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer publisher.Close()

		dispatcher := events.NewDispatcher(pool, publisher, cfg.Kafka.DispatchInterval, logger)
		go dispatcher.Run(ctx)
	} else {
		logger.Info().Msg("no Kafka brokers configured, outbox dispatch disabled")
	}

	// Start the stale-order reaper
	orderReaper := reaper.New(orderRepo, cfg.Checkout.PendingOrderTTL, cfg.Checkout.ReaperInterval, logger)
	go orderReaper.Run(ctx)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
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

		// Stop background workers before draining the server
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}
