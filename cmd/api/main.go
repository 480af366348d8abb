package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"authgrid/api/internal/cache"
	"authgrid/api/internal/config"
	"authgrid/api/internal/database"
	"authgrid/api/internal/handlers"
	"authgrid/api/internal/i18n"
	"authgrid/api/internal/jobs"
	"authgrid/api/internal/log"
	"authgrid/api/internal/mail"
	"authgrid/api/internal/revocation"
	"authgrid/api/internal/server"
	"authgrid/api/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)
	i18n.SetDefaultLocale(cfg.Frontend.DefaultLocale)

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	var archive *storage.ArchiveStore
	if cfg.Archive.Enabled {
		archive, err = storage.NewArchiveStore(cfg.Archive)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init audit archive store")
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			logger.Warn().Err(err).Msg("ensure archive bucket failed")
		}
	}

	mailer := mail.NewMailer(mail.NewSMTPSender(cfg.Mail), cfg.Mail.QueueSize, logger)

	handlerSet := handlers.NewHandlerSet(logger, dbPool, redisClient, mailer, cfg)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(dbPool, revocation.NewIndex(redisClient), archive, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, mailer, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, mailer *mail.Mailer, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("forced shutdown failed")
		}
	}

	scheduler.Stop()
	mailer.Close()

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
	os.Exit(0)
}
