package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quickcart/order-service/internal/application"
	"github.com/quickcart/order-service/internal/application/services"
	"github.com/quickcart/order-service/internal/config"
	"github.com/quickcart/order-service/internal/infrastructure/geocoder"
	"github.com/quickcart/order-service/internal/infrastructure/payment"
	"github.com/quickcart/order-service/internal/infrastructure/persistence/postgres"
	"github.com/quickcart/order-service/internal/interfaces/rest/handlers"
	"github.com/quickcart/order-service/internal/interfaces/rest/middleware"
	"github.com/quickcart/order-service/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting order service",
		"port", cfg.Server.Port,
		"env", cfg.Primary.Env,
		"log_level", cfg.Logger.Level,
	)

	ctx := context.Background()
	db, err := postgres.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	catalogRepo := postgres.NewCatalogRepository(db)
	inventoryRepo := postgres.NewInventoryRepository(db)
	orderRepo := postgres.NewOrderRepository(db)
	idempotencyRepo := postgres.NewIdempotencyRepository(db)
	txCoordinator := postgres.NewTransactionCoordinator(db)

	// The in-process collaborator fallbacks are development-only; a
	// production deployment must point at real services.
	var geo application.Geocoder
	if cfg.Geocoder.BaseURL != "" {
		geo = geocoder.NewHTTPGeocoder(cfg.Geocoder)
	} else if cfg.Primary.IsDevelopment() {
		logger.Warn("no geocoder configured, using static city table")
		geo = geocoder.NewStaticGeocoder()
	} else {
		logger.Error("geocoder base url is required in production")
		os.Exit(1)
	}

	var gateway application.PaymentGateway
	if cfg.Payment.BaseURL != "" {
		gateway = payment.NewHTTPGateway(cfg.Payment)
	} else if cfg.Primary.IsDevelopment() {
		logger.Warn("no payment gateway configured, using in-process stub")
		gateway = payment.NewStubGateway()
	} else {
		logger.Error("payment gateway base url is required in production")
		os.Exit(1)
	}

	idempotencyService := services.NewIdempotencyService(idempotencyRepo, logger)
	orderService := services.NewOrderService(
		catalogRepo,
		orderRepo,
		idempotencyService,
		geo,
		gateway,
		txCoordinator,
		logger,
	)

	inventoryService := services.NewInventoryService(catalogRepo, inventoryRepo, logger)

	orderHandler := handlers.NewOrderHandler(orderService, logger)
	inventoryHandler := handlers.NewInventoryHandler(inventoryService, logger)

	mux := http.NewServeMux()
	orderHandler.RegisterRoutes(mux)
	inventoryHandler.RegisterRoutes(mux)

	handler := middleware.Recovery(logger)(mux)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.CORS(cfg.CORS.AllowedOrigin)(handler)
	handler = middleware.Timeout(cfg.Server.ReadTimeout)(handler)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	reaper := worker.NewReaper(
		idempotencyRepo,
		cfg.Worker.Interval,
		cfg.Worker.Retention,
		logger,
	)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go reaper.Start(workerCtx)

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
