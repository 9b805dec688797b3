package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/medicalcenter/clinic-system/internal/api"
	"github.com/medicalcenter/clinic-system/internal/api/handler"
	"github.com/medicalcenter/clinic-system/internal/core/service"
	"github.com/medicalcenter/clinic-system/internal/infrastructure/db/mongo"
	"github.com/medicalcenter/clinic-system/internal/infrastructure/db/redis"
	"github.com/medicalcenter/clinic-system/internal/infrastructure/http/handlers"
	"github.com/medicalcenter/clinic-system/internal/infrastructure/queue"
	"github.com/medicalcenter/clinic-system/internal/pkg/config"
	"github.com/medicalcenter/clinic-system/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(cmd.Context())
		},
	}
}

func runServer(parent context.Context) error {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "clinic",
		Env:     cfg.Env,
	})

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mongoClient, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = mongoClient.Disconnect(disconnectCtx)
	}()
	if err := mongo.EnsureIndexes(ctx, db); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	rdb, err := redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		return err
	}
	defer rdb.Close()

	// --- Dependencies ---
	store := mongo.NewAuthRepository(db)
	revocations := redis.NewRevocationStore(rdb)
	tokens := service.NewTokenManager(cfg.Session.JWTSecret, cfg.Session.TTL)

	auditService := service.NewAuditService(mongo.NewAuditRepository(db), logger.Component("audit"))
	dispatcher := queue.NewDispatcher(cfg.Audit.Workers, auditService, logger.Component("audit"))
	workersCtx, stopWorkers := context.WithCancel(context.Background())
	dispatcher.Start(workersCtx)

	authService := service.NewAuthService(store, tokens, revocations, dispatcher, logger.Component("auth"))

	e := api.NewRouter(api.Deps{
		Log:         log,
		Auth:        authService,
		Verifier:    tokens,
		Revocations: revocations,
		Tags:        service.NewTagService(mongo.NewTagRepository(db), logger.Component("tags")),
		Rooms:       service.NewRoomService(mongo.NewRoomRepository(db), logger.Component("rooms")),
		Audit:       auditService,
		AuditSink:   dispatcher,
		Checks: map[string]handlers.Check{
			"mongodb": mongo.Ping(db),
			"redis":   redis.Ping(rdb),
		},
		Cookie:      handler.CookieConfig{Name: cfg.Session.CookieName, Secure: cfg.Session.CookieSecure},
		LoginPath:   cfg.Paths.Login,
		LandingPath: cfg.Paths.Landing,
		SealPath:    cfg.Radiology.SealPath,
	})

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		stopWorkers()
		dispatcher.Wait()
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	stopWorkers()
	dispatcher.Wait()
	log.Info().Msg("server stopped")
	return nil
}
