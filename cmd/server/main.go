package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eagleisbatman/agrivision-mcp-server/internal/api"
	"github.com/eagleisbatman/agrivision-mcp-server/internal/config"
	"github.com/eagleisbatman/agrivision-mcp-server/internal/logging"
	"github.com/eagleisbatman/agrivision-mcp-server/internal/mcp"
	"github.com/eagleisbatman/agrivision-mcp-server/internal/services"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// Cancelled on SIGINT/SIGTERM; stops the catalog refresher and the server
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize services. A missing credential leaves the tool answering
	// ServiceUnavailable instead of failing startup.
	gemini, err := services.NewGeminiService(ctx, cfg.APIKey, cfg.Service.ModelID, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Gemini service", zap.Error(err))
	}

	composer, err := services.NewPromptComposer(cfg.Service)
	if err != nil {
		logger.Fatal("Failed to initialize prompt composer", zap.Error(err))
	}

	catalog := services.NewCropCatalog(cfg.CatalogURL, cfg.CatalogAPIKey, logger)
	diagnosis := services.NewDiagnosisService(
		gemini,
		services.NewImageCodec(cfg.Service.MaxImageSizeMB),
		catalog,
		composer,
		cfg.UpstreamTimeout,
		logger,
	)

	mcpServer := mcp.NewServer(services.DiagnoseToolName, diagnosis, catalog, logger)
	router := api.SetupRouter(cfg, mcpServer, diagnosis, catalog, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("AgriVision MCP server starting",
		zap.String("port", cfg.Port),
		zap.String("model", diagnosis.Model()),
		zap.Bool("model_configured", diagnosis.Enabled()),
		zap.String("advisory_mode", string(cfg.Service.AdvisoryMode)),
		zap.String("output_format", string(cfg.Service.OutputFormat)),
		zap.Float64("max_image_size_mb", cfg.Service.MaxImageSizeMB))

	g, gctx := errgroup.WithContext(ctx)

	// Crop catalog: one refresh at startup, then periodic if configured
	g.Go(func() error {
		catalog.Start(gctx, cfg.CatalogRefreshInterval)
		return nil
	})

	g.Go(func() error {
		logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Give outstanding requests a deadline to complete
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Server forced to shutdown", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
	logger.Info("Server exited")
}
