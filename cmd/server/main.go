package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/okulov/Relay/internal/adapters/http"
	"github.com/okulov/Relay/internal/adapters/ws"
	"github.com/okulov/Relay/internal/auth"
	"github.com/okulov/Relay/internal/config"
	"github.com/okulov/Relay/internal/history"
	"github.com/okulov/Relay/internal/hub"
	"github.com/okulov/Relay/internal/presence"
	"github.com/okulov/Relay/internal/session"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	hist, err := history.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open history store")
	}
	defer func() {
		if err := hist.Close(); err != nil {
			log.Error().Err(err).Msg("history store close")
		}
	}()

	authMgr := auth.NewManager(auth.Config{
		Secret: cfg.Secret,
		TTL:    cfg.TokenTTL,
		Issuer: "relay",
	})
	store := presence.NewStore()
	fanout := hub.New(store)
	sessions := session.NewService(store, fanout, hist, cfg.HistoryLimit)
	ctl := ws.NewController(authMgr, fanout, sessions, cfg)

	r := router.SetupRouter(ctx, cfg, authMgr, hist, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Relay server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
