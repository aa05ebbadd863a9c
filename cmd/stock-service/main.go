package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sunilkumartc/vet-cares-sub000/internal/stock/consumers"
	"github.com/sunilkumartc/vet-cares-sub000/internal/stock/events"
	"github.com/sunilkumartc/vet-cares-sub000/internal/stock/handler"
	"github.com/sunilkumartc/vet-cares-sub000/internal/stock/repository"
	"github.com/sunilkumartc/vet-cares-sub000/internal/stock/service"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/config"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/database"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/httputil"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/logger"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("stock-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("stock-service", cfg.Server.Environment)
	log.Info().Msg("starting Stock Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	publisher, err := events.NewStockEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Initialize repositories
	productRepo := repository.NewProductRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	movementRepo := repository.NewMovementRepository(db)

	// Initialize service
	stockService := service.NewStockService(db, productRepo, batchRepo, movementRepo, publisher, cfg.Stock.LockTimeout, log)

	// Initialize handlers
	productHandler := handler.NewProductHandler(stockService, log)
	batchHandler := handler.NewBatchHandler(stockService, log)
	allocationHandler := handler.NewAllocationHandler(stockService, log)
	movementHandler := handler.NewMovementHandler(stockService, log)
	reportHandler := handler.NewReportHandler(stockService, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start billing event consumer
	billingConsumer, err := consumers.NewBillingConsumer(rmq, stockService, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create billing consumer")
	}
	if err := billingConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start billing consumer")
	}

	// Start expiry scanner
	scanner := service.NewExpiryScanner(batchRepo, publisher, log)
	scheduler := service.NewExpiryScheduler(scanner, cfg.Stock.ExpiryScanInterval, log)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(httputil.ActorMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", "X-User-ID", "X-User-Name", "X-User-Email"},
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "stock-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// API routes
	r.Route("/api/v1/stock", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.List)
			r.Post("/", productHandler.Create)
			r.Get("/{id}", productHandler.Get)
			r.Delete("/{id}", productHandler.Deactivate)
			r.Post("/{id}/allocate", allocationHandler.Allocate)
			r.Get("/{id}/batches", batchHandler.ListByProduct)
			r.Post("/{id}/batches", batchHandler.Receive)
			r.Post("/{id}/reconcile", productHandler.Reconcile)
		})

		r.Route("/batches", func(r chi.Router) {
			r.Get("/{id}", batchHandler.Get)
			r.Post("/{id}/adjust", batchHandler.Adjust)
			r.Post("/{id}/status", batchHandler.SetStatus)
			r.Get("/{id}/movements", batchHandler.History)
			r.Get("/{id}/chain", batchHandler.VerifyChain)
		})

		r.Get("/movements", movementHandler.List)
		r.Get("/reports/expiry", reportHandler.Expiry)
		r.Get("/dashboard/stats", reportHandler.DashboardStats)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Cancel context to stop the consumer and scheduler
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
