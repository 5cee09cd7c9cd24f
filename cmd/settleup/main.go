package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/binshadcs/settle-up/internal/cache"
	"github.com/binshadcs/settle-up/internal/cloudsync"
	"github.com/binshadcs/settle-up/internal/config"
	"github.com/binshadcs/settle-up/internal/database"
	"github.com/binshadcs/settle-up/internal/ident"
	"github.com/binshadcs/settle-up/internal/localstore"
	"github.com/binshadcs/settle-up/internal/logging"
	"github.com/binshadcs/settle-up/internal/remotestore"
	"github.com/binshadcs/settle-up/internal/server"
)

func main() {
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	local := localstore.New(db, cfg.LegacyDataPath, logger.With("component", "localstore"))

	var remote cloudsync.Remote
	var remoteCache cache.RemoteWriter
	if cfg.RemoteDatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		store, err := remotestore.New(ctx, cfg.RemoteDatabaseURL)
		cancel()
		if err != nil {
			// Cloud sync is opportunistic: a dead remote degrades to
			// local-only, it never blocks startup.
			logger.Error("remote store unavailable, running local-only", "error", err)
		} else {
			defer store.Close()
			remote = store
			remoteCache = store
		}
	}

	clock := ident.SystemClock{}
	c := cache.New(local, remoteCache, clock, logger.With("component", "cache"))
	defer c.Close()

	if err := c.Init(context.Background()); err != nil {
		logger.Error("init storage", "error", err)
		os.Exit(1)
	}

	srv := server.New(c, remote, clock, logger)

	if cfg.AccountID != "" && remote != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := srv.SyncManager().Bind(ctx, cfg.AccountID); err != nil {
			logger.Warn("startup sync failed, local data kept", "account", cfg.AccountID, "error", err)
		}
		cancel()
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("settleup running at http://localhost:%s\n", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	// The deferred cache.Close drains pending snapshot writes before the
	// backing stores close.
}
