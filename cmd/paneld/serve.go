package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"maintenance-panel-backend/config"
	"maintenance-panel-backend/internal/api"
	"maintenance-panel-backend/internal/blob"
	"maintenance-panel-backend/internal/db"
	"maintenance-panel-backend/internal/identity"
	"maintenance-panel-backend/internal/manager"
	"maintenance-panel-backend/internal/metrics"
	"maintenance-panel-backend/internal/rules"
	"maintenance-panel-backend/internal/store"
)

const shutdownTimeout = 5 * time.Second

// loadRules returns the configured rule set, or the embedded one.
func loadRules(cfg *config.Config) (*rules.Set, error) {
	if cfg.Rules.Path == "" {
		return rules.Default(), nil
	}
	return rules.LoadFile(cfg.Rules.Path)
}

// newServer wires every component of the panel behind one HTTP server.
func newServer(cfg *config.Config, logger *zap.Logger) (*http.Server, error) {
	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	ruleSet, err := loadRules(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("rule set loaded", zap.Strings("collections", ruleSet.Collections()))

	bucket, err := blob.NewFileBucket(cfg.Storage.Bucket, "/files")
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	s := store.New(gormDB, ruleSet, logger)
	registry, err := manager.NewRegistry(s, m, logger)
	if err != nil {
		return nil, err
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.Deps{
		Server:      cfg.Server,
		Store:       s,
		Registry:    registry,
		Attachments: manager.NewAttachments(registry.Reports, bucket, logger),
		Identity:    identity.NewGormProvider(gormDB, cfg.Auth.SessionTTL),
		Metrics:     m,
		Logger:      logger,
	})

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// serve runs the server until SIGINT or SIGTERM, then drains it.
func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	server, err := newServer(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server ListenAndServe: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutdown signal received, stopping server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server Shutdown: %w", err)
	}
	logger.Info("server gracefully stopped")
	return nil
}
