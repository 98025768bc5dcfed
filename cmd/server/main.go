// Command server runs the Deep Travel Collection guide shop API.
//
//	@title			Deep Travel Collection API
//	@version		1.0
//	@description	Travel guide catalog, checkout and fulfillment.
//	@BasePath		/api/v1
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
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	_ "github.com/SoulfulBloom/deeptravelcollection-sub001/docs"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/app"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/config"
	httpapi "github.com/SoulfulBloom/deeptravelcollection-sub001/internal/http"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/observability"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/sysutil"
)

var version = "dev"

func main() {
	// .env is optional; real environment wins
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = sysutil.NewLogger(os.Stderr, cfg.LogPretty)
	logger := log.With().Str("service", cfg.OTEL.ServiceName).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		logger.Fatal().Err(err).Msg("otel setup failed")
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	if err := a.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("background workers failed to start")
	}

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{DB: a.DB, Services: a.Services()}, cfg)

	srv := &http.Server{
		Addr:              ":" + sysutil.FirstNonEmpty(cfg.Port, "8080"),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Str("version", version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	if err := a.Close(); err != nil {
		logger.Error().Err(err).Msg("close app")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("otel shutdown")
	}
}
