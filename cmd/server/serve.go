package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sitecms/internal/assetstore"
	"github.com/sitecms/internal/cache"
	"github.com/sitecms/internal/config"
	"github.com/sitecms/internal/db"
	"github.com/sitecms/internal/handler"
	"github.com/sitecms/internal/logging"
	"github.com/sitecms/internal/router"
	"github.com/sitecms/internal/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if listenAddr != "" {
			cfg.ListenAddr = listenAddr
		}
		return serve(cfg)
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "listen address, overrides listen_addr")
}

func serve(cfg config.AppConfig) error {
	if err := logging.Init(cfg.Logging); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logging.Sync()

	logger := logging.L()
	logger.Info("starting sitecms", zap.String("version", version))

	telemetryShutdown, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer telemetryShutdown()

	if err := db.Init(cfg.DatabaseDSN, logging.GormLogger(cfg.Logging.Level)); err != nil {
		return fmt.Errorf("init database: %w", err)
	}

	redisCache, err := cache.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	defer redisCache.Close()

	mediaStore, err := assetstore.New(assetstore.Options{
		BaseDir:  cfg.AssetDir,
		Root:     cfg.MediaRoot,
		BaseURL:  cfg.StaticBaseURL,
		Kind:     assetstore.KindImage,
		MaxBytes: cfg.MaxUploadBytes,
	})
	if err != nil {
		return fmt.Errorf("init media store: %w", err)
	}
	fileStore, err := assetstore.New(assetstore.Options{
		BaseDir:  cfg.AssetDir,
		Root:     cfg.FilesRoot,
		BaseURL:  cfg.StaticBaseURL,
		Kind:     assetstore.KindDocument,
		MaxBytes: cfg.MaxUploadBytes,
	})
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	gin.SetMode(cfg.GinMode)
	api := handler.NewAPI(handler.Options{
		DB:             db.DB,
		Cache:          redisCache,
		MediaStore:     mediaStore,
		FileStore:      fileStore,
		RelatedLimit:   cfg.RelatedLimit,
		TokenTTL:       cfg.TokenTTL,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router.SetupRouter(cfg, api),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-quit:
	}

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}
