// Package engine turns arbitrage triggers into paired immediate-or-cancel
// orders and reconciles the fills.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/New-Pari/poly-kalshi-arb/internal/clob"
	"github.com/New-Pari/poly-kalshi-arb/internal/ledger"
	"github.com/New-Pari/poly-kalshi-arb/internal/market"
	"github.com/New-Pari/poly-kalshi-arb/internal/notify"
)

// OrderClient submits immediate-or-cancel buys. The venue resolves every
// order without blocking; there is no order management on this side.
type OrderClient interface {
	BuyIOC(ctx context.Context, tokenID string, limitPrice, size decimal.Decimal) (clob.Fill, error)
}

// FillSink receives executed legs for persistence.
type FillSink interface {
	RecordFill(ledger.FillRecord)
}

// Config carries the engine's sizing and reporting knobs.
type Config struct {
	MinTradeSize       decimal.Decimal
	MaxTradeSize       decimal.Decimal
	UnmatchedTolerance decimal.Decimal // filled-size gap that flags one-sided exposure
	DryRun             bool
}

// Engine consumes triggered market states and fires both legs together.
type Engine struct {
	orders   OrderClient
	fills    FillSink
	notifier *notify.Notifier
	cfg      Config
}

// New creates an engine. fills and notifier may be nil.
func New(orders OrderClient, fills FillSink, notifier *notify.Notifier, cfg Config) *Engine {
	return &Engine{
		orders:   orders,
		fills:    fills,
		notifier: notifier,
		cfg:      cfg,
	}
}

// Run executes triggers until the channel closes or ctx is cancelled.
// Execution failures are reported, never fatal.
func (e *Engine) Run(ctx context.Context, triggers <-chan market.State) error {
	mode := "LIVE"
	if e.cfg.DryRun {
		mode = "DRY RUN"
	}
	log.Info().
		Str("mode", mode).
		Str("min_size", e.cfg.MinTradeSize.String()).
		Str("max_size", e.cfg.MaxTradeSize.String()).
		Msg("⚡ Execution engine started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case state, ok := <-triggers:
			if !ok {
				return nil
			}
			if err := e.Execute(ctx, state); err != nil {
				log.Error().Err(err).Str("asset", state.Asset).Msg("❌ Execution failed")
			}
		}
	}
}

// Execute sizes and submits both legs of one arbitrage opportunity. The
// state is a detached copy; no store lock is held anywhere in here.
func (e *Engine) Execute(ctx context.Context, state market.State) error {
	profit := state.ProfitCents()
	size := state.TradeSize(e.cfg.MinTradeSize, e.cfg.MaxTradeSize)
	sum := state.YesPrice.Add(state.NoPrice)

	log.Info().
		Str("asset", state.Asset).
		Str("yes", state.YesPrice.StringFixed(3)).
		Str("no", state.NoPrice.StringFixed(3)).
		Str("sum", sum.StringFixed(3)).
		Str("profit_cents", profit.StringFixed(1)).
		Str("size", size.StringFixed(2)).
		Msg("🎯 Arbitrage found")

	if e.cfg.DryRun {
		log.Info().Str("asset", state.Asset).Msg("Dry run, skipping execution")
		return nil
	}

	// Both legs go out together; submitting sequentially would widen the
	// window in which the venue can move one side.
	start := time.Now()

	type legResult struct {
		fill clob.Fill
		err  error
	}
	yesCh := make(chan legResult, 1)
	noCh := make(chan legResult, 1)

	go func() {
		fill, err := e.orders.BuyIOC(ctx, state.YesToken, state.YesPrice, size)
		yesCh <- legResult{fill, err}
	}()
	go func() {
		fill, err := e.orders.BuyIOC(ctx, state.NoToken, state.NoPrice, size)
		noCh <- legResult{fill, err}
	}()

	yes, no := <-yesCh, <-noCh
	elapsed := time.Since(start)

	if yes.err != nil {
		// The NO leg may have filled; it stays open. One-sided exposure is
		// an accepted risk, surfaced but not unwound.
		return fmt.Errorf("yes leg: %w", yes.err)
	}
	if no.err != nil {
		return fmt.Errorf("no leg: %w", no.err)
	}

	e.reconcile(state, yes.fill, no.fill, elapsed)
	return nil
}

// reconcile reports the outcome of two filled legs and forwards them to
// the ledger.
func (e *Engine) reconcile(state market.State, yes, no clob.Fill, elapsed time.Duration) {
	totalCost := yes.FillCost.Add(no.FillCost)
	matched := decimal.Min(yes.FilledSize, no.FilledSize)
	realized := matched.Sub(totalCost)

	log.Info().
		Str("asset", state.Asset).
		Dur("elapsed", elapsed).
		Str("yes_filled", yes.FilledSize.StringFixed(2)).
		Str("no_filled", no.FilledSize.StringFixed(2)).
		Str("total_cost", totalCost.StringFixed(2)).
		Str("realized", realized.StringFixed(2)).
		Msg("✅ Both legs filled")

	if side, gap, unmatched := e.unmatchedSide(yes, no); unmatched {
		log.Warn().
			Str("asset", state.Asset).
			Str("side", side).
			Str("gap", gap.StringFixed(2)).
			Msg("⚠️ Unmatched exposure")
		e.notifier.UnmatchedExposure(state.Asset, side, gap)
	} else {
		e.notifier.ArbExecuted(state.Asset, yes.FilledSize, no.FilledSize, realized)
	}

	if e.fills != nil {
		e.fills.RecordFill(ledger.FillRecord{
			MarketID: state.Question,
			Question: state.Question,
			Venue:    "polymarket",
			Side:     "yes",
			Size:     yes.FilledSize,
			Price:    state.YesPrice,
			Fee:      yes.Fee,
			OrderID:  yes.OrderID,
		})
		e.fills.RecordFill(ledger.FillRecord{
			MarketID: state.Question,
			Question: state.Question,
			Venue:    "polymarket",
			Side:     "no",
			Size:     no.FilledSize,
			Price:    state.NoPrice,
			Fee:      no.Fee,
			OrderID:  no.OrderID,
		})
	}
}

// unmatchedSide names the over-filled side when the two legs' filled
// sizes differ by more than the configured tolerance.
func (e *Engine) unmatchedSide(yes, no clob.Fill) (string, decimal.Decimal, bool) {
	gap := yes.FilledSize.Sub(no.FilledSize)
	if gap.Abs().LessThanOrEqual(e.cfg.UnmatchedTolerance) {
		return "", decimal.Zero, false
	}
	if gap.IsPositive() {
		return "YES", gap, true
	}
	return "NO", gap.Neg(), true
}
