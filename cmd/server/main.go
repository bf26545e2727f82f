package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/duelarena/backend/internal/config"
	"github.com/duelarena/backend/internal/history"
	"github.com/duelarena/backend/internal/httpapi"
	"github.com/duelarena/backend/internal/hub"
	"github.com/duelarena/backend/internal/session"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.Load()

	var store *history.Store
	var recorder session.Recorder
	if cfg.DatabaseDSN != "" {
		store, err = history.Open(cfg.DatabaseDSN, logger)
		if err != nil {
			logger.Fatal("failed to open match history store", zap.Error(err))
		}
		recorder = store
	} else {
		logger.Info("match history disabled, no DATABASE_DSN set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h := hub.NewHub(ctx, session.Options{
		MaxPeers: cfg.MaxPeers,
		Recorder: recorder,
		Logger:   logger,
	})

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: httpapi.SetupRoutes(h, store, cfg.Rules, logger),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		h.Inbox() <- hub.ShutdownHub{}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
	logger.Info("server stopped")
}
