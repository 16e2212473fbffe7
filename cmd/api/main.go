package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/davazhoo/storefront/internal/config"
	"github.com/davazhoo/storefront/internal/gateway"
	"github.com/davazhoo/storefront/internal/handler"
	"github.com/davazhoo/storefront/internal/notifier"
	"github.com/davazhoo/storefront/internal/repository"
	"github.com/davazhoo/storefront/internal/service"
	"github.com/davazhoo/storefront/internal/validator"
	"github.com/davazhoo/storefront/pkg/database"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize zerolog based on configuration
	initLogger(cfg)

	// Create context for startup
	ctx := context.Background()

	// Initialize database pool with retry
	pool, err := database.NewPool(ctx, cfg.DB.DSN(), 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Initialize Fiber with production-ready configuration
	app := fiber.New(fiber.Config{
		AppName:      "Davazhoo Storefront",
		ReadTimeout:  30 * time.Second,  // Max time to read request
		WriteTimeout: 30 * time.Second,  // Max time to write response
		IdleTimeout:  120 * time.Second, // Max time for keep-alive connections
		BodyLimit:    1 * 1024 * 1024,   // 1MB body limit (explicit, prevents large payloads)
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New()) // Adds X-Request-ID header to all requests
	app.Use(logger.New())

	// Initialize validator with custom validations
	validate := validator.New()

	// Repositories
	productRepo := repository.NewProductRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)
	cartRepo := repository.NewCartRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	paymentRepo := repository.NewPaymentRepository(pool)
	shippingRepo := repository.NewShippingRepository(pool)

	// External collaborators
	zarinpal := gateway.NewClient(cfg.Gateway)
	sms := notifier.NewSender(cfg.SMS)

	// Services (layered architecture)
	couponValidator := service.NewCouponValidator(couponRepo)
	cartService := service.NewCartService(cartRepo, productRepo, couponRepo, couponValidator)
	checkoutService := service.NewCheckoutService(
		pool, cartRepo, productRepo, productRepo, couponRepo, couponRepo,
		orderRepo, shippingRepo, couponValidator, cfg.Checkout.PaymentWindow(),
	)
	paymentService := service.NewPaymentService(
		pool, orderRepo, paymentRepo, productRepo, cartRepo,
		zarinpal, sms, cfg.Gateway.CallbackURL, cfg.Checkout.PaymentWindow(),
	)

	// Handlers
	healthHandler := handler.NewHealthHandler(pool)
	cartHandler := handler.NewCartHandler(cartService, validate)
	orderHandler := handler.NewOrderHandler(checkoutService, paymentService, validate)
	paymentHandler := handler.NewPaymentHandler(paymentService)

	// Routes
	app.Get("/health", healthHandler.Check)

	app.Get("/api/cart", cartHandler.GetCart)
	app.Delete("/api/cart", cartHandler.Clear)
	app.Post("/api/cart/items", cartHandler.AddItem)
	app.Put("/api/cart/items/:productID", cartHandler.UpdateItem)
	app.Delete("/api/cart/items/:productID", cartHandler.RemoveItem)
	app.Post("/api/cart/coupon", cartHandler.ApplyCoupon)
	app.Delete("/api/cart/coupon", cartHandler.RemoveCoupon)
	app.Post("/api/cart/merge", cartHandler.Merge)

	app.Get("/api/shipping-methods", orderHandler.ListShippingMethods)
	app.Post("/api/orders", orderHandler.CreateOrder)
	app.Get("/api/orders/:id", orderHandler.GetOrder)
	app.Post("/api/orders/:id/cancel", orderHandler.CancelOrder)
	app.Post("/api/orders/:id/pay", paymentHandler.Pay)
	app.Get("/payments/callback", paymentHandler.Callback)

	app.Post("/api/admin/orders/:id/status", orderHandler.UpdateStatus)

	// Expiry sweeper runs until shutdown
	sweeperCtx, stopSweeper := context.WithCancel(ctx)
	sweeper := service.NewSweeper(paymentService, cfg.Checkout.SweepInterval())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(sweeperCtx)
	}()

	// Start server with graceful shutdown
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	log.Info().Int("timeout_seconds", cfg.Server.ShutdownTimeout).Msg("shutting down server...")

	// Stop the sweeper before taking the server down
	stopSweeper()
	wg.Wait()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	// Shutdown server (waits for in-flight requests)
	log.Info().Msg("waiting for in-flight requests to complete...")
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	// Close database pool AFTER server shutdown (even if shutdown timed out)
	log.Info().Msg("closing database connections...")
	pool.Close()
	log.Info().Msg("database connections closed")
	log.Info().Msg("server stopped")
}

// initLogger configures zerolog based on the application configuration.
func initLogger(cfg *config.Config) {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Configure output format
	if cfg.Log.Pretty {
		// Human-readable output for development
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	} else {
		// JSON output for production
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
