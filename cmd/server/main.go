package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crou-platform/be-validations/internal/client"
	"github.com/crou-platform/be-validations/internal/handler"
	"github.com/crou-platform/be-validations/internal/metrics"
	"github.com/crou-platform/be-validations/internal/platform/config"
	"github.com/crou-platform/be-validations/internal/platform/database"
	"github.com/crou-platform/be-validations/internal/platform/logger"
	"github.com/crou-platform/be-validations/internal/platform/middleware"
	natsclient "github.com/crou-platform/be-validations/internal/platform/nats"
	"github.com/crou-platform/be-validations/internal/repository"
	"github.com/crou-platform/be-validations/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:       os.Getenv("LOG_LEVEL"),
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting Validations Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, database.Config{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		Database:    cfg.Database.Database,
		SSLMode:     cfg.Database.SSLMode,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxConnTime: cfg.Database.MaxConnTime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
		HealthCheck: cfg.Database.HealthCheck,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	var nc *natsclient.Client
	if cfg.NATS.Enabled {
		nc, err = natsclient.Connect(ctx, cfg.NATS.URL, cfg.NATS.Stream, []string{"validations.>"})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer nc.Close()
		log.Info().Str("stream", cfg.NATS.Stream).Msg("NATS JetStream connected")
	} else {
		log.Warn().Msg("NATS disabled, workflow events will not be published")
	}

	// Repositories
	templateRepo := repository.NewWorkflowRepository(db)
	instanceRepo := repository.NewInstanceRepository(db)
	actionRepo := repository.NewActionRepository(db)
	budgetRepo := repository.NewBudgetRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)

	// External clients
	identityClient := client.NewIdentityClient(cfg.Identity.BaseURL, cfg.Identity.Timeout)
	notifier := client.NewNotificationPublisher(nc, log.Logger)
	log.Info().Str("identity", cfg.Identity.BaseURL).Msg("Service clients initialized")

	// Services
	workflowService := service.NewWorkflowService(templateRepo, log)
	validationService := service.NewValidationService(
		templateRepo, instanceRepo, actionRepo,
		budgetRepo, transactionRepo,
		identityClient, notifier, log)
	budgetService := service.NewBudgetService(budgetRepo, validationService, log)
	transactionService := service.NewTransactionService(transactionRepo, budgetRepo, validationService, log)

	// Background expiry sweeper
	if cfg.Sweeper.Enabled {
		sweeper := service.NewExpirySweeper(validationService, cfg.Sweeper.Schedule, cfg.Sweeper.Batch, log)
		if err := sweeper.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start expiry sweeper")
		}
		defer sweeper.Stop()
	}

	// HTTP routes
	httpHandler := handler.NewHTTPHandler(workflowService, validationService, budgetService, transactionService, log)

	api := http.NewServeMux()
	httpHandler.Register(api)

	mux := http.NewServeMux()
	mux.Handle("/api/", middleware.Auth(cfg.Auth.JWTSecret)(api))
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			http.Error(w, `{"status":"unhealthy"}`, http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	h := middleware.Chain(mux,
		middleware.RequestID,
		middleware.Logger(&log.Logger),
		middleware.Recovery(&log.Logger),
		middleware.CORS([]string{"*"}),
		middleware.Timeout(30*time.Second),
	)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
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
