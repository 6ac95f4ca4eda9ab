package main

import (
	"alcyxob/equipment-app/internal/api"
	"alcyxob/equipment-app/internal/app"
	"alcyxob/equipment-app/internal/config"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// @title Workshop Equipment API
// @version 1.0
// @description Equipment lock-out, competency-gated loans and the training progress ledger.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and an operator token. Only required when jwt.secret is set.
func main() {
	log.Println("Starting Equipment App Server...")

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}
	log.Printf("Configuration loaded (store=%s, audit=%s).", cfg.Store.Backend, cfg.Audit.Backend)
	if cfg.JWT.Secret == "" {
		log.Println("WARN: jwt.secret is empty; operators are taken from the X-Operator header")
	}

	// --- Metrics ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// --- Store and Services ---
	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	application, err := app.New(initCtx, cfg, registry)
	cancelInit()
	if err != nil {
		log.Fatalf("FATAL: Could not initialize application: %v", err)
	}
	defer func() {
		log.Println("Closing record store...")
		if err := application.Close(); err != nil {
			log.Printf("ERROR: Failed to close record store: %v", err)
		}
	}()

	// --- Ensure Indexes ---
	log.Println("Ensuring database indexes...")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		if err := application.EnsureIndexes(ctx); err != nil {
			log.Printf("ERROR: Index creation failed: %v", err)
			return
		}
		log.Println("Index creation process completed.")
	}()

	// --- Initialize Gin Engine ---
	router := gin.Default()

	log.Println("Setting up API routes...")
	api.SetupRoutes(router, cfg.JWT.Secret, application.Services(), promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Server starting on %s", cfg.Server.Address)

	// --- Graceful Shutdown ---
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: ListenAndServe Error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Printf("ERROR: Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}
