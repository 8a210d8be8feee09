package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vhp90/esports-team-finder/internal/auth"
	"github.com/vhp90/esports-team-finder/internal/chat"
	"github.com/vhp90/esports-team-finder/internal/config"
	"github.com/vhp90/esports-team-finder/internal/logging"
	"github.com/vhp90/esports-team-finder/internal/server"
	"github.com/vhp90/esports-team-finder/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET must be set")
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	st, err := store.Open(cfg.DBPath, log)
	if err != nil {
		log.Fatal("store_open_failed", zap.String("path", cfg.DBPath), zap.Error(err))
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, "esports-team-finder", cfg.TokenTTL(), cfg.RefreshTTL())
	registry := chat.NewRegistry()
	fanout := chat.NewFanout(registry, log)

	srv := server.New(cfg, log, st, tokens, registry, fanout)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("server_failed", zap.Error(err))
		}
	case sig := <-stop:
		log.Info("shutdown_signal", zap.String("signal", sig.String()))
		if err := srv.Shutdown(shutdownTimeout); err != nil {
			log.Warn("shutdown_incomplete", zap.Error(err))
		}
	}

	if err := st.Close(); err != nil {
		log.Error("store_close_failed", zap.Error(err))
	}
}
