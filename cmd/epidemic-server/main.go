// Package main is the entry point for the Epidemic Express game server.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/epidemicexpress/server/internal/infra/storage"
	"github.com/epidemicexpress/server/internal/network"
	"github.com/epidemicexpress/server/internal/platform/config"
	"github.com/epidemicexpress/server/internal/platform/logger"
	"github.com/epidemicexpress/server/internal/platform/metrics"
	"github.com/epidemicexpress/server/internal/platform/random"
	"github.com/epidemicexpress/server/internal/session"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Exitf("epidemic-server: %v", err)
	}
	tuning := cfg.Tuning()
	appLogger := logger.NewLogger()
	mc := metrics.Get()

	appLogger.Infof("Starting Epidemic Express server (profile %s, %d max live games)", tuning.Name, cfg.MaxSessions)

	opts := session.Options{
		Rules:       cfg.Rules,
		MaxSessions: cfg.MaxSessions,
		TTL:         cfg.SessionTTL,
		Seeds:       random.NewSource(cfg.Seed),
		Metrics:     mc,
		Logger:      appLogger,
	}

	// An empty EPIDEMIC_DB_PATH keeps every game in memory.
	var summaries storage.GameRepository
	if cfg.DBPath != "" {
		appLogger.Infof("Initializing SQLite database %q...", cfg.DBPath)
		db, err := storage.InitSQLite(cfg.DBPath, storage.PoolConfig{
			MaxOpenConns:    tuning.DBMaxOpenConns,
			MaxIdleConns:    tuning.DBMaxIdleConns,
			ConnMaxLifetime: tuning.DBConnMaxLifetime,
		})
		if err != nil {
			config.Exitf("epidemic-server: %v", err)
		}
		defer db.Close()
		gameRepo := storage.NewSQLiteGameRepository(db)
		opts.Events = storage.NewSQLiteEventRepository(db)
		opts.Games = gameRepo
		summaries = gameRepo
	} else {
		appLogger.Warn("No database configured, games will not survive eviction or restarts")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appLogger.Info("Bootstrapping WebSocket Hub...")
	hub := network.NewHub(appLogger, mc, tuning)
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		hub.Run(ctx)
	}()

	opts.Publisher = hub
	games := session.NewManager(opts)

	mux := http.NewServeMux()
	network.NewGameAPI(games, summaries, hub, tuning, mc, appLogger).RegisterRoutes(mux)
	network.NewReplayHandler(games, appLogger).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		appLogger.Infof("HTTP API & WS Server listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		appLogger.Infof("Received %s, shutting down...", sig)
	case err := <-serveErr:
		appLogger.Errorf("Server failed: %v", err)
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Errorf("HTTP shutdown: %v", err)
	}
	cancel()
	<-hubDone

	// Flushes the event logs and summaries of every live game.
	games.Close()
	appLogger.Info("Server stopped.")
}
