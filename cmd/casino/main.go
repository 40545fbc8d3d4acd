// Package main is the entry point for the casino server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"casino-bot/internal/api"
	"casino-bot/internal/bet"
	"casino-bot/internal/config"
	"casino-bot/internal/cooldown"
	"casino-bot/internal/game"
	"casino-bot/internal/game/blackjack"
	"casino-bot/internal/game/rob"
	"casino-bot/internal/game/roulette"
	"casino-bot/internal/jobs"
	"casino-bot/internal/ledger"
	"casino-bot/internal/pkg/db"
	"casino-bot/internal/pkg/lock"
	"casino-bot/internal/repository"
	"casino-bot/internal/service"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Journal
	var (
		journal interface {
			ledger.Journal
			api.History
		}
		health api.HealthChecker
	)
	switch cfg.Journal.Driver {
	case config.JournalPostgres:
		dbPool, err := db.NewPool(ctx, &cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer dbPool.Close()

		if err := db.Migrate(ctx, dbPool.Pool); err != nil {
			log.Fatal().Err(err).Msg("Failed to run database migrations")
		}
		journal = repository.NewTransactionRepository(dbPool.Pool)
		health = dbPool
	default:
		journal = repository.NewMemoryTransactionRepository(repository.WithCapacity(cfg.Journal.MemoryCapacity))
	}

	// Core state
	accounts := ledger.New(cfg.Economy.StartingBalance, ledger.WithJournal(journal))
	cooldowns := cooldown.NewTracker(cooldown.FixedZone(cfg.Economy.UTCOffsetHours))
	userLock := lock.NewUserLock()
	limits := bet.Limits{MaxBet: cfg.Bets.MaxBet, NegativeMaxBet: cfg.Bets.NegativeMaxBet}

	// Services
	accountService := service.NewAccountService(accounts, cooldowns, userLock, service.DailyConfig{
		Reward:     cfg.Economy.DailyReward,
		Bonus:      cfg.Economy.DailyBonus,
		BonusEvery: cfg.Economy.BonusEvery,
	})
	transferService := service.NewTransferService(accounts, userLock)
	rankingService := service.NewRankingService(accounts)

	// Table events go to the log and to websocket clients.
	hub := api.NewHub()
	go hub.Run(ctx)

	events := game.NewBus()
	events.Subscribe("", hub.Publish)
	events.Subscribe(game.EventSettled, func(evt game.Event) {
		log.Info().Str("table", evt.Table).Msg("Blackjack round settled")
	})

	// Games
	rouletteEngine := roulette.New(accounts, userLock, game.DefaultRand, limits)
	robGame := rob.NewRobGame(accounts, cooldowns, userLock, game.DefaultRand, rob.Config{
		MinAmount:      cfg.Rob.MinAmount,
		MaxAmount:      cfg.Rob.MaxAmount,
		SuccessPercent: cfg.Rob.SuccessPercent,
	})
	blackjackEngine := blackjack.New(accounts, userLock, blackjack.Config{
		Limits:       limits,
		MaxPlayers:   cfg.Blackjack.MaxPlayers,
		MinPlayers:   cfg.Blackjack.MinPlayers,
		LobbyTimeout: cfg.Blackjack.LobbyTimeout,
		BetTimeout:   cfg.Blackjack.BetTimeout,
		TurnTimeout:  cfg.Blackjack.TurnTimeout,
	}, blackjack.WithNotifier(game.Fanout{game.LogNotifier{}, events}))

	dispatcher := service.NewDispatcher(game.NewRegistry())
	handlers := service.Handlers(accountService, transferService, rankingService)
	handlers = append(handlers, rouletteEngine, robGame)
	handlers = append(handlers, blackjackEngine.Handlers()...)
	if err := dispatcher.Register(handlers...); err != nil {
		log.Fatal().Err(err).Msg("Failed to register action handlers")
	}
	log.Info().Strs("actions", dispatcher.Types()).Msg("Actions registered")

	// Background jobs
	scheduler := jobs.NewScheduler(blackjackEngine, cfg.Blackjack.IdleTimeout)
	if err := scheduler.Start(cfg.Blackjack.SweepSchedule); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	// HTTP server
	server := api.NewServer(dispatcher, rankingService, journal, hub, health)
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("Server is starting...")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	<-scheduler.Stop().Done()
	blackjackEngine.Close()
	cancel()

	log.Info().Msg("Server stopped gracefully")
}
