// Package main is the entry point for the FramePress composition server.
// It loads configuration, connects to services, sets up routing, and starts
// the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"framepress/internal/assets"
	"framepress/internal/cache"
	"framepress/internal/config"
	"framepress/internal/database"
	"framepress/internal/dispatch"
	"framepress/internal/handlers"
	"framepress/internal/platform"
	"framepress/internal/publish"
	"framepress/internal/renderer"
	"framepress/internal/roles"
	"framepress/internal/router"
	"framepress/internal/storage"
	"framepress/internal/store"
)

func main() {
	// Structured logger. Text output is readable in both dev and prod logs.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
	)

	// Load the role vocabulary compiled into the binary.
	registry, err := roles.Load()
	if err != nil {
		slog.Error("failed to load role catalog", "error", err)
		os.Exit(1)
	}
	slog.Info("role catalog loaded", "roles", len(registry.Tokens()))

	// Connect to PostgreSQL.
	db, err := database.Connect(cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run pending migrations.
	if err := database.Migrate(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Seed development data (no-op if data already exists).
	if cfg.IsDev() {
		if err := database.Seed(db); err != nil {
			slog.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
	}

	// Connect to Valkey for the output-status cache.
	valkeyClient, err := cache.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
	if err != nil {
		slog.Error("failed to connect to valkey", "error", err)
		os.Exit(1)
	}
	defer valkeyClient.Close()

	statusCache := cache.NewStatusCache(valkeyClient, cache.DefaultStatusTTL)

	// Initialize data stores.
	templateStore := store.NewTemplateStore(db, registry)
	compositionStore := store.NewCompositionStore(db)
	versionStore := store.NewVersionStore(db)
	outputStore := store.NewOutputStore(db)
	uploadStore := store.NewUploadStore(db)

	// Connect to S3-compatible object storage (optional; image URLs are
	// served as-is without it).
	storageClient, err := storage.New(
		cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3PublicURL,
	)
	if err != nil {
		slog.Error("failed to initialize S3 storage", "error", err)
		os.Exit(1)
	}
	if storageClient != nil {
		slog.Info("s3 storage connected", "endpoint", cfg.S3Endpoint)
	} else {
		slog.Warn("s3 storage not configured, stored image urls served as-is")
	}

	// External collaborator clients.
	assetGateway := assets.NewHTTPGateway(cfg.AssetGatewayURL)
	renderClient := renderer.NewHTTPRenderer(cfg.RendererURL, cfg.RenderTimeout)

	var platformPublisher platform.Publisher
	if cfg.PublisherURL != "" {
		platformPublisher = platform.NewHTTPPublisher(cfg.PublisherURL)
	} else {
		slog.Warn("platform publisher not configured, publish skips uploads")
	}

	// The dispatcher runs renders; the machine runs the publish lifecycle.
	dispatcher := dispatch.New(
		compositionStore, outputStore, templateStore,
		assetGateway, renderClient, statusCache, cfg.RenderTimeout,
	)
	var imageStore publish.ImageStore
	if storageClient != nil {
		imageStore = storageClient
	}
	machine := publish.New(outputStore, uploadStore, platformPublisher, imageStore)

	// Create the API handler group and the Chi router.
	api := handlers.New(
		registry, templateStore, compositionStore, versionStore,
		outputStore, uploadStore, dispatcher, machine, storageClient,
	)
	r := router.New(api)

	// Create the HTTP server with sensible timeouts. Dispatch returns as
	// soon as renders are queued, so the write timeout stays short; the
	// renders themselves run in the background.
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start the server in a goroutine so we can listen for shutdown signals.
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	// Give active requests up to 30 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	// Let in-flight renders finish so their results land before exit.
	slog.Info("waiting for in-flight renders")
	dispatcher.Wait()

	slog.Info("server stopped gracefully")
}
