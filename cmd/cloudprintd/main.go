package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/potlam/cloudprint/internal/api"
	"github.com/potlam/cloudprint/internal/api/handlers"
	"github.com/potlam/cloudprint/internal/api/middleware"
	"github.com/potlam/cloudprint/internal/backend"
	"github.com/potlam/cloudprint/internal/config"
	"github.com/potlam/cloudprint/internal/core"
	"github.com/potlam/cloudprint/internal/db"
	"github.com/potlam/cloudprint/internal/logging"
	"github.com/potlam/cloudprint/internal/render"
)

func main() {
	configPath := flag.String("config", "./conf/cloudprint.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "cloudprintd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	for _, dir := range []string{cfg.Printing.TempDir, filepath.Dir(cfg.Database.Path)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	store, err := db.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	queue := core.NewOrderQueue()
	authCache := core.NewAuthCache(cfg.Printing.AuthToken, cfg.Printing.AuthWindow)
	client := backend.NewClient(cfg.Backend, logger)
	generator := render.NewGenerator(cfg.Printing, logger)

	admitter := core.NewAdmitter(queue, client, store, client,
		cfg.Backend.FetchInterval, cfg.Backend.AnnounceInProgress, logger)
	admitter.Start()
	defer admitter.Stop()

	authMW, err := middleware.NewAuthMiddleware(store)
	if err != nil {
		return fmt.Errorf("failed to init admin auth: %w", err)
	}

	cpHandler := handlers.NewCloudPrintHandler(queue, authCache, store, client,
		generator, cfg.Printing.MediaType, logger)
	adminHandler := handlers.NewAdminHandler(queue, authCache, store, logger)

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(cpHandler, adminHandler, authMW)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("cloud print service listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}
