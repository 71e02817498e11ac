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
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/auth"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/config"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/database"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/handler"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/notify"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/repository"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg)

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting workflow core service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	// Repositories
	purchaseOrderRepo := repository.NewPurchaseOrderRepository(db)
	productionOrderRepo := repository.NewProductionOrderRepository(db)
	qualityCheckRepo := repository.NewQualityCheckRepository(db)
	supplierRepo := repository.NewSupplierRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	userRepo := repository.NewUserRepository(db)

	// Real-time push is optional; without NATS notifications are persisted only.
	var publisher notify.RealtimePublisher
	if cfg.NATS.URL != "" {
		natsPublisher, err := notify.NewNATSPublisher(cfg.NATS.URL, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
		log.Info().Str("nats_url", cfg.NATS.URL).Msg("Real-time notification transport connected")
	} else {
		publisher = notify.NoopPublisher{}
		log.Info().Msg("NATS_URL not set; real-time push disabled")
	}

	dispatcher := notify.NewDispatcher(notificationRepo, userRepo, publisher, log)

	// Services
	readinessCascade := service.NewReadinessCascade(purchaseOrderRepo, productionOrderRepo, dispatcher, cfg.Workflow.CascadeConcurrency, log)
	purchaseOrderService := service.NewPurchaseOrderService(purchaseOrderRepo, supplierRepo, qualityCheckRepo, dispatcher, readinessCascade, cfg.Workflow.AdminApprovalThreshold, log)
	productionOrderService := service.NewProductionOrderService(productionOrderRepo, qualityCheckRepo, log)
	approvalService := service.NewApprovalService(purchaseOrderRepo, dispatcher, log)
	qualityGateService := service.NewQualityGateService(qualityCheckRepo, purchaseOrderRepo, productionOrderRepo, dispatcher, readinessCascade, log)

	httpHandler := handler.NewHTTPHandler(purchaseOrderService, productionOrderService, approvalService, qualityGateService, supplierRepo, notificationRepo, log)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(cfg.Server.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy"}`))
	})
	r.Get("/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.Write([]byte(`{"status":"ready"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth.JWTSecret))
		httpHandler.Routes(r)
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}

// newLogger builds the root zerolog logger. Development gets a console
// writer; everywhere else logs structured JSON.
func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var out = os.Stdout
	logger := zerolog.New(out)
	if cfg.Service.Environment == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	}

	return logger.Level(level).With().
		Timestamp().
		Str("service", cfg.Service.Name).
		Logger()
}

// requestLogger logs one line per completed request.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			log.Info().
				Str("request_id", chimiddleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request completed")
		})
	}
}
