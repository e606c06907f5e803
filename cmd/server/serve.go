package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/dfryer1193/goblog-images/blog/application"
	"github.com/dfryer1193/goblog-images/blog/persistence"
	"github.com/dfryer1193/goblog-images/internal/config"
	"github.com/dfryer1193/goblog-images/internal/middleware"
	"github.com/dfryer1193/goblog-images/internal/rest"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the image HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	addStoreFlags(cmd.Flags())
	addServeFlags(cmd.Flags())
	return cmd
}

func newRouter(handler *rest.ImageHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(middleware.LoggingMiddleware())
	router.Use(gin.CustomRecovery(middleware.HandlePanics()))
	rest.NewApi(router, handler)
	return router
}

func serve(ctx context.Context, cfg *config.Config) error {
	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	kv, err := openStore(cfg)
	if err != nil {
		return err
	}
	cache := persistence.NewCache(kv)
	defer func() {
		if err := cache.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close image cache")
		}
	}()

	worker := application.NewResizeWorker(application.NewPNGTranscoder(), application.WorkerConfig{
		QueueSize:  cfg.Worker.QueueSize,
		JobTimeout: cfg.Worker.JobTimeout,
	})
	defer func() {
		if err := worker.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to stop resize worker")
		}
	}()

	service := application.NewImageService(registry, cache, worker, application.ServiceConfig{
		MaxWidth:       cfg.MaxWidth,
		DedupeInFlight: cfg.DedupeInFlight,
	})

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: newRouter(rest.NewImageHandler(service, cfg.CacheBustParam)),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// A failed purge leaves dead entries behind but does not stop serving.
		if _, err := cache.PurgeRetired(gctx); err != nil {
			log.Error().Err(err).Msg("Failed to purge retired image cache entries")
		}
		return nil
	})

	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Server stopped")
	return nil
}
