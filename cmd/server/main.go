package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/thereayou/artem-chat/internal/config"
	"github.com/thereayou/artem-chat/internal/logger"
)

func main() {
	boot := logger.NewLogger("server")

	cfg, err := config.Load()
	if err != nil {
		boot.Fatal().Err(err).Msg("load config")
	}
	log := logger.New(os.Stdout, "server", cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := NewServer(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init server")
	}
	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}
