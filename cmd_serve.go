package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fakesociety/RentGuard360/config"
	"github.com/fakesociety/RentGuard360/handler"
	"github.com/fakesociety/RentGuard360/middleware"
	"github.com/fakesociety/RentGuard360/pkg/logger"
	"github.com/fakesociety/RentGuard360/service"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		config.GlobalConfig = cfg

		logger.Init(&logger.Config{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
		})
		slog.Info("configuration loaded successfully", "path", configPath)

		return serve(cmd.Context(), cfg)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")
}

// routeHandlers groups the handlers mounted by newRouter
type routeHandlers struct {
	core      *handler.CoreHandler
	contracts *handler.ContractHandler
	callback  *handler.CallbackHandler
}

func serve(ctx context.Context, cfg *config.Config) error {
	minioSvc, err := service.NewMinioService(&cfg.Minio)
	if err != nil {
		return fmt.Errorf("failed to initialize MINIO service: %w", err)
	}
	if err := minioSvc.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to ensure MINIO bucket: %w", err)
	}

	mineruSvc := service.NewMineruService(&cfg.Mineru)
	reasonerSvc := service.NewReasonerService(&cfg.Reasoner)
	store := service.NewContractStore(&cfg.Store)
	pipeline := service.NewPipeline(mineruSvc, reasonerSvc, minioSvc, store, cfg.Reasoner.MaxTextLength)

	router := newRouter(cfg, routeHandlers{
		core:      handler.NewCoreHandler(),
		contracts: handler.NewContractHandler(minioSvc, pipeline, store),
		callback:  handler.NewCallbackHandler(mineruSvc, pipeline, store, &cfg.Mineru),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server exited gracefully")
	return nil
}

func newRouter(cfg *config.Config, h routeHandlers) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS())
	router.Use(middleware.NoCache())
	router.Use(middleware.RateLimit(cfg.Server.RateLimit, time.Minute))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// MinerU calls back without a user scope
	router.POST("/api/mineru/callback", h.callback.HandleCallback)

	api := router.Group("/api")
	api.Use(middleware.UserScope())
	{
		api.POST("/sanitize", h.core.Sanitize)
		api.POST("/score", h.core.Score)
		api.POST("/analysis/parse", h.core.ParseAnalysis)
		api.GET("/analysis/schema", h.core.Schema)
		api.GET("/rules", h.core.Rules)

		api.POST("/contracts/upload", h.contracts.Upload)
		api.GET("/contracts", h.contracts.List)
		api.GET("/contracts/:id", h.contracts.Get)
		api.GET("/contracts/:id/status", h.contracts.GetStatus)
		api.PATCH("/contracts/:id", h.contracts.Rename)
		api.POST("/contracts/:id/edited", h.contracts.SaveEdited)
		api.DELETE("/contracts/:id", h.contracts.Delete)
	}

	return router
}
