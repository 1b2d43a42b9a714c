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

	router "github.com/astralforge/lobby/internal/adapters/http"
	wsignal "github.com/astralforge/lobby/internal/adapters/signal"
	"github.com/astralforge/lobby/internal/app"
	"github.com/astralforge/lobby/internal/config"
	"github.com/astralforge/lobby/internal/matchmaker"
	"github.com/astralforge/lobby/internal/party"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	registry := app.NewRegistry()
	guard := app.NewStateGuard()
	parties := party.NewRegistry()
	dispatcher := party.NewDispatcher(registry)
	invites := party.NewInviteRateLimiter(cfg.InviteLimit, cfg.InviteWindow)
	partySvc := party.NewService(parties, guard, registry, dispatcher, invites)
	mm := matchmaker.NewService(guard, registry)

	ctl := wsignal.NewLobbyWSController(registry, guard, partySvc, mm, cfg)

	r := router.SetupRouter(ctx, cfg, ctl, registry, parties)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("lobby server started")
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
