// Up/Down arbitrage bot for Polymarket 15-minute markets.
//
// Strategy: buy YES + NO when their best asks sum below 100¢
// (e.g. 28¢ + 66¢ = 94¢ → 6¢ locked profit per matched pair).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/New-Pari/poly-kalshi-arb/internal/clob"
	"github.com/New-Pari/poly-kalshi-arb/internal/config"
	"github.com/New-Pari/poly-kalshi-arb/internal/engine"
	"github.com/New-Pari/poly-kalshi-arb/internal/feed"
	"github.com/New-Pari/poly-kalshi-arb/internal/gamma"
	"github.com/New-Pari/poly-kalshi-arb/internal/ledger"
	"github.com/New-Pari/poly-kalshi-arb/internal/market"
	"github.com/New-Pari/poly-kalshi-arb/internal/notify"
	"github.com/New-Pari/poly-kalshi-arb/internal/scheduler"
)

const version = "1.2.0"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().
		Str("version", version).
		Strs("assets", cfg.Assets).
		Str("threshold", cfg.ArbThreshold.StringFixed(3)).
		Bool("dry_run", cfg.DryRun).
		Msg("🎯 Up/Down arbitrage bot starting...")

	if cfg.DryRun {
		log.Info().Msg("Mode: DRY RUN (set DRY_RUN=0 to execute)")
	} else {
		log.Warn().Msg("Mode: LIVE EXECUTION")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Order client. Missing credentials in live mode are fatal; nothing
	// else at startup is.
	orders, err := clob.NewClient(cfg.CLOBURL, cfg.ChainID, cfg.PrivateKey, cfg.FunderAddress, cfg.DryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create CLOB client")
	}
	if err := orders.DeriveCreds(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to derive CLOB credentials")
	}

	// Position ledger.
	dsn := cfg.DatabaseURL
	if dsn == "" {
		dsn = cfg.DatabasePath
	}
	book, err := ledger.Open(dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger")
	}
	defer book.Close()

	if summary, err := book.GetSummary(); err != nil {
		log.Warn().Err(err).Msg("Failed to load ledger summary")
	} else {
		daily, err := book.DailyPnL()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to compute daily PnL")
		}
		allTime, err := book.AllTimePnL()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to compute all-time PnL")
		}
		log.Info().
			Int64("fills", summary.Fills).
			Str("daily_pnl", daily.StringFixed(2)).
			Str("all_time_pnl", allTime.StringFixed(2)).
			Msg("📥 Ledger loaded")
	}

	notifier, err := notify.NewNotifier(cfg.TelegramToken, cfg.TelegramChatID)
	if err != nil {
		log.Warn().Err(err).Msg("Telegram alerts disabled")
	}
	notifier.Startup(cfg.Assets, cfg.ArbThreshold, cfg.DryRun)

	// Shared state store and the tasks around it.
	store := market.NewStore(cfg.ArbThreshold)

	catalog := gamma.NewClient(cfg.GammaAPIURL, cfg.CatalogTimeout)
	sched := scheduler.New(catalog, store, scheduler.Config{
		Assets:        cfg.Assets,
		WindowLength:  cfg.WindowLength,
		Lookahead:     cfg.LookaheadWindows,
		PreloadBuffer: cfg.PreloadBuffer,
		ExpiryGrace:   cfg.ExpiryGrace,
		RetryDelay:    cfg.RetryDelay,
	})

	processor := feed.NewProcessor(store, feed.Config{
		URL:               cfg.WSURL,
		HeartbeatInterval: cfg.HeartbeatInterval,
		StaleThreshold:    cfg.StaleThreshold,
		ReconnectDelay:    cfg.ReconnectDelay,
		EmptyStoreDelay:   cfg.EmptyStoreDelay,
	})

	eng := engine.New(orders, book, notifier, engine.Config{
		MinTradeSize:       cfg.MinTradeSize,
		MaxTradeSize:       cfg.MaxTradeSize,
		UnmatchedTolerance: cfg.UnmatchedTolerance,
		DryRun:             orders.IsDryRun(),
	})

	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("Scheduler exited")
		}
	}()
	go func() {
		if err := processor.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("Feed supervisor exited")
		}
	}()
	go func() {
		if err := eng.Run(ctx, processor.Triggers()); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("Execution engine exited")
		}
	}()

	log.Info().Msg("✅ All systems online")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("🛑 Shutting down...")
	cancel()
	log.Info().Msg("👋 Goodbye!")
}
