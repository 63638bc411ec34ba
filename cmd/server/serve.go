package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yuki5321/AIsindan/internal/api"
	"github.com/yuki5321/AIsindan/internal/config"
	"github.com/yuki5321/AIsindan/internal/observability"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	observability.InitLogger(cfg.OTelServiceName, cfg.Env, cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTelServiceName, version, cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn().Err(err).Msg("trace flush failed")
		}
	}()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if cfg.PreloadIndex {
		if _, err := a.svc.ReloadIndex(ctx); err != nil {
			log.Warn().Err(err).Msg("index preload failed, will load on first request")
		}
	}

	router := api.NewRouter(a.svc, a.db, api.Options{
		ServiceName:    cfg.OTelServiceName,
		FrontendOrigin: cfg.FrontendOrigin,
		AdminToken:     cfg.AdminToken,
		MaxBodyBytes:   maxBodyBytes(cfg.MaxImageBytes),
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.ClassifierTimeout*time.Duration(cfg.ClassifierRetries+1) + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	log.Info().Str("port", cfg.Port).Msg("server listening")
	return waitForShutdown(server, errCh)
}

// maxBodyBytes leaves room for base64 expansion of the largest accepted image.
func maxBodyBytes(maxImage int) int64 {
	return int64(maxImage)*4/3 + 64<<10
}

func waitForShutdown(server *http.Server, errCh <-chan error) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-errCh:
		return err
	case <-stop:
	}

	log.Info().Msg("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}
	return nil
}
