/*
Package main is the entry point for the NYSC assistant development server.

It loads configuration, initializes the global logging system, picks the record store
(Postgres when DATABASE_URL is set, in-memory otherwise) and the attachment storage (S3 when
configured, placeholder links otherwise), serves the REST API and shuts down gracefully on
SIGINT or SIGTERM.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nyscmate/internal/app/db"
	"nyscmate/internal/app/storage"
	"nyscmate/internal/configs"
	"nyscmate/internal/handler"
	"nyscmate/internal/pkg/logx"
)

func main() {
	cfg, err := configs.LoadServerConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.InitGlobalLogger(logx.Options{
		Development: cfg.Environment == "development",
		Level:       cfg.LogLevel,
	})
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Bool("postgres", cfg.DatabaseDSN != "").
		Bool("s3", cfg.StorageEnabled()).
		Dur("ask_latency", cfg.AskLatency).
		Bool("maintenance_mode", cfg.MaintenanceMode).
		Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		logx.Fatal(err, "Failed to open the record store")
	}
	defer store.Close()

	files, err := openStorage(cfg)
	if err != nil {
		logx.Fatal(err, "Failed to initialize attachment storage")
	}

	router := handler.Router(ctx, &handler.AppDeps{
		Config:  cfg,
		Store:   store,
		Storage: files,
	})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Answers may be held back by the configured latency.
		WriteTimeout: 30*time.Second + cfg.AskLatency,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("NYSC assistant dev server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	logx.Info("Server gracefully stopped.")
}

func openStore(ctx context.Context, cfg *configs.ServerConfig) (db.Store, error) {
	if cfg.DatabaseDSN == "" {
		logx.Warn("DATABASE_URL not set, records are kept in memory and lost on exit")
		return db.NewMemoryStore(), nil
	}
	pg, err := db.OpenPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	return pg, nil
}

func openStorage(cfg *configs.ServerConfig) (storage.StorageService, error) {
	if !cfg.StorageEnabled() {
		logx.Warn("S3 storage not configured, clearance letters get placeholder links")
		return storage.MockStorage{}, nil
	}
	return storage.NewStorageService(storage.ServiceConfig{
		S3BucketName:      cfg.S3BucketName,
		S3Endpoint:        cfg.S3Endpoint,
		S3AccessKeyID:     cfg.S3AccessKeyID,
		S3SecretAccessKey: cfg.S3SecretAccessKey,
	})
}
