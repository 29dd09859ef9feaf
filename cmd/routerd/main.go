package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agent-mesh/region-router/internal/catalog"
	"github.com/agent-mesh/region-router/internal/config"
	"github.com/agent-mesh/region-router/internal/handler"
	"github.com/agent-mesh/region-router/internal/middleware"
	"github.com/agent-mesh/region-router/internal/service"
	"github.com/agent-mesh/region-router/pkg/logger"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
)

const (
	version         = "1.0.0"
	shutdownTimeout = 30 * time.Second
)

func main() {
	// Optional .env for local development; real deployments set the
	// environment directly
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
		File:   cfg.Logging.File,
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("Starting region router")

	cat, err := catalog.New(cfg.Regions)
	if err != nil {
		log.WithError(err).Fatal("Failed to build region catalog")
	}

	policy := cfg.ToRoutingPolicy()

	log.WithFields(map[string]interface{}{
		"version":  version,
		"strategy": policy.Strategy,
		"port":     cfg.Server.Port,
		"regions":  cat.Len(),
	}).Info("Region router configuration loaded")

	router := service.NewRegionRouter(cat, policy, cfg.Routing.LatencyWindow, log)

	routerHandler := handler.NewRouterHandler(router, log)
	healthHandler := handler.NewHealthHandler(version, router.IsMonitoring)

	// API routes
	r := mux.NewRouter()
	routerHandler.RegisterRoutes(r)
	r.HandleFunc("/liveness", healthHandler.LivenessHandler).Methods(http.MethodGet)
	r.HandleFunc("/readiness", healthHandler.ReadinessHandler).Methods(http.MethodGet)

	// Middleware chain
	var middlewares []func(http.Handler) http.Handler
	middlewares = append(middlewares,
		middleware.RecoveryMiddleware(log),
		middleware.LoggingMiddleware(log),
		middleware.CORSMiddleware(),
		middleware.SecurityHeadersMiddleware(),
	)

	if cfg.RateLimit.Enabled {
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimit, log)
		middlewares = append(middlewares, rateLimiter.RateLimitMiddleware())
		log.Info("Rate limiting enabled")
	}

	if cfg.Auth.Enabled {
		auth := middleware.NewAuthMiddleware(cfg.Auth, log)
		middlewares = append(middlewares, auth.Authenticate())
		log.Info("Bearer-token authentication enabled")
	}

	var finalHandler http.Handler = r
	for i := len(middlewares) - 1; i >= 0; i-- {
		finalHandler = middlewares[i](finalHandler)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      finalHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	if err := router.StartHealthChecks(); err != nil {
		log.WithError(err).Fatal("Failed to start health checks")
	}

	go func() {
		log.WithFields(map[string]interface{}{
			"port":     cfg.Server.Port,
			"strategy": policy.Strategy,
			"regions":  cat.Len(),
		}).Info("Starting HTTP server")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	log.Info("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	router.StopHealthChecks()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down HTTP server")
	}

	log.Info("Region router stopped gracefully")
}
