package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/loomchat/loom-backend/internal/config"
	"github.com/loomchat/loom-backend/internal/dispatch"
	"github.com/loomchat/loom-backend/internal/httpapi"
	"github.com/loomchat/loom-backend/internal/match"
	"github.com/loomchat/loom-backend/internal/profile"
	"github.com/loomchat/loom-backend/internal/ratelimit"
	"github.com/loomchat/loom-backend/internal/registry"
	"github.com/loomchat/loom-backend/internal/room"
	"github.com/loomchat/loom-backend/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	profiles := newProfileProvider(cfg, logger)

	reg := registry.New(logger)
	limiter := ratelimit.New(logger)
	store := session.NewStore(logger)
	rooms := room.NewManager(store, profiles, logger)
	queue := match.NewQueue(store, profiles, logger)
	d := dispatch.New(reg, limiter, store, rooms, queue, logger)

	go limiter.Run(ctx)

	handler := httpapi.SetupRoutes(d, httpapi.Stats{
		Registry: reg,
		Store:    store,
		Queue:    queue,
	}, logger, cfg.AllowedOrigins)

	server := &http.Server{Addr: cfg.Addr, Handler: handler}

	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}

func newLogger(level string) *zap.Logger {
	lvl := zapcore.InfoLevel
	switch level {
	case "debug":
		lvl = zapcore.DebugLevel
	case "warn":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := zcfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}

// newProfileProvider connects to the profile store when a DSN is
// configured; without one the coordinator runs stand-alone and every
// broadcast uses placeholder display data.
func newProfileProvider(cfg config.Config, logger *zap.Logger) profile.Provider {
	if cfg.DatabaseDSN == "" {
		logger.Info("no database configured, using placeholder profiles")
		return profile.Static{}
	}
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		logger.Warn("database unavailable, using placeholder profiles", zap.Error(err))
		return profile.Static{}
	}
	return profile.NewStore(db, logger)
}
