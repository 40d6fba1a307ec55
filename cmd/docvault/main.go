package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/platinummonkey/docvault/pkg/api"
	"github.com/platinummonkey/docvault/pkg/auth"
	"github.com/platinummonkey/docvault/pkg/blob"
	"github.com/platinummonkey/docvault/pkg/config"
	"github.com/platinummonkey/docvault/pkg/observability"
	"github.com/platinummonkey/docvault/pkg/store"
)

func main() {
	postgresURL := flag.String("postgres-url", "", "PostgreSQL connection URL (overrides DOCVAULT_POSTGRES_URL)")
	port := flag.String("port", "", "Port to listen on (overrides DOCVAULT_PORT)")
	blobBackend := flag.String("blob-backend", "", "Blob backend: filesystem or s3 (overrides DOCVAULT_BLOB_BACKEND)")
	blobRoot := flag.String("blob-root", "", "Filesystem blob root (overrides DOCVAULT_BLOB_ROOT)")
	flag.Parse()

	if *postgresURL != "" {
		os.Setenv("DOCVAULT_POSTGRES_URL", *postgresURL)
	}
	if *port != "" {
		os.Setenv("DOCVAULT_PORT", *port)
	}
	if *blobBackend != "" {
		os.Setenv("DOCVAULT_BLOB_BACKEND", *blobBackend)
	}
	if *blobRoot != "" {
		os.Setenv("DOCVAULT_BLOB_ROOT", *blobRoot)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("server exited")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	if err := store.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	entityStore := store.New(db)
	if _, err := entityStore.EnsureDefaultGroup(ctx); err != nil {
		return fmt.Errorf("ensure default group: %w", err)
	}

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize blob store: %w", err)
	}
	logger.WithField("backend", cfg.Blob.Backend).Info("blob store initialized")

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	server := api.NewServer(api.Options{
		Store:          entityStore,
		Blobs:          blobs,
		Tokens:         auth.NewTokenManager(entityStore, cfg.Auth.TokenTTL),
		Logger:         logger,
		Metrics:        metrics,
		Health:         observability.NewHealthChecker(db),
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return db.Close()
	})

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", addr).Info("docvault listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	shutdownCh := make(chan error, 1)
	go func() { shutdownCh <- shutdown.WaitForShutdown() }()

	select {
	case err := <-errCh:
		return err
	case err := <-shutdownCh:
		return err
	}
}

func newBlobStore(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	switch cfg.Blob.Backend {
	case "s3":
		return blob.NewS3Store(ctx, cfg.Blob.S3)
	default:
		return blob.NewFileSystemStore(cfg.Blob.FilesystemRoot)
	}
}
