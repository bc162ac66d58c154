// Package scheduler discovers up/down markets window by window and keeps
// the shared store aligned with the venue's current and next intervals.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/New-Pari/poly-kalshi-arb/internal/gamma"
	"github.com/New-Pari/poly-kalshi-arb/internal/market"
)

// Catalog looks up instrument metadata by derived slug.
type Catalog interface {
	LookupSlug(ctx context.Context, slug string) (*gamma.Market, error)
}

// Config carries the scheduler's timing knobs.
type Config struct {
	Assets        []string
	WindowLength  time.Duration
	Lookahead     int           // how many windows ahead to preload
	PreloadBuffer time.Duration // lead time before close to preload the next window
	ExpiryGrace   time.Duration // slack after close before retiring records
	RetryDelay    time.Duration // delay after a failed or empty discovery round
}

// Scheduler drives the discover → preload → retire cycle.
type Scheduler struct {
	catalog Catalog
	store   *market.Store
	cfg     Config

	// now is swappable for tests.
	now func() time.Time
}

// New creates a scheduler over the given catalog and store.
func New(catalog Catalog, store *market.Store, cfg Config) *Scheduler {
	return &Scheduler{
		catalog: catalog,
		store:   store,
		cfg:     cfg,
		now:     time.Now,
	}
}

// SlugFor derives the deterministic market slug for an asset and a window
// offset from now. Offset 0 names the interval currently open; each
// additional offset moves one window later.
func SlugFor(asset string, now time.Time, window time.Duration, offset int) (string, int64) {
	windowSecs := int64(window / time.Second)
	end := (now.Unix()/windowSecs + 1 + int64(offset)) * windowSecs
	return fmt.Sprintf("%s-updown-15m-%d", asset, end), end
}

// Run executes discovery cycles until ctx is cancelled. No failure inside
// a cycle is fatal; a bad round backs off RetryDelay and starts over.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Info().
		Strs("assets", s.cfg.Assets).
		Dur("window", s.cfg.WindowLength).
		Dur("preload_buffer", s.cfg.PreloadBuffer).
		Msg("🔍 Market scheduler started")

	for {
		if err := s.cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Dur("retry_in", s.cfg.RetryDelay).Msg("Discovery cycle failed")
			if !sleepCtx(ctx, s.cfg.RetryDelay) {
				return ctx.Err()
			}
		}
	}
}

// cycle runs one full window: discover current, preload next ahead of
// close, retire after expiry.
func (s *Scheduler) cycle(ctx context.Context) error {
	current, err := s.DiscoverWindow(ctx, 0)
	if err != nil {
		return err
	}
	if len(current) == 0 {
		return fmt.Errorf("no active markets for current window")
	}

	inserted := 0
	for _, inst := range current {
		if s.store.InsertIfAbsent(inst) {
			inserted++
		}
	}

	// All current instruments share one close time.
	closeAt := time.Unix(current[0].EndTimestamp, 0)

	log.Info().
		Int("markets", len(current)).
		Int("new", inserted).
		Time("window_close", closeAt).
		Msg("Current window populated")

	// Preload deadline is recomputed from the wall clock, not accumulated
	// from sleep durations.
	if !sleepUntil(ctx, s.now, closeAt.Add(-s.cfg.PreloadBuffer)) {
		return ctx.Err()
	}

	for offset := 1; offset <= s.cfg.Lookahead; offset++ {
		next, err := s.DiscoverWindow(ctx, offset)
		if err != nil {
			log.Warn().Err(err).Int("offset", offset).Msg("Failed to preload next window")
			continue
		}
		preloaded := 0
		for _, inst := range next {
			if s.store.InsertIfAbsent(inst) {
				preloaded++
			}
		}
		log.Info().
			Int("markets", len(next)).
			Int("new", preloaded).
			Int("offset", offset).
			Msg("Next window preloaded")
	}

	if !sleepUntil(ctx, s.now, closeAt.Add(s.cfg.ExpiryGrace)) {
		return ctx.Err()
	}

	s.RetireExpired(current)
	return nil
}

// DiscoverWindow derives every asset's slug for the given window offset and
// queries them concurrently, returning only instruments that are tradeable
// and expose exactly two outcome tokens.
func (s *Scheduler) DiscoverWindow(ctx context.Context, offset int) ([]market.Instrument, error) {
	now := s.now()

	var (
		mu          sync.Mutex
		instruments []market.Instrument
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, asset := range s.cfg.Assets {
		slug, end := SlugFor(asset, now, s.cfg.WindowLength, offset)

		g.Go(func() error {
			m, err := s.catalog.LookupSlug(gctx, slug)
			if err != nil {
				// One bad query must not sink the round; the window is
				// simply thinner this cycle.
				log.Warn().Err(err).Str("slug", slug).Msg("Catalog query failed")
				return nil
			}
			if m == nil {
				log.Debug().Str("slug", slug).Msg("Market not minted yet")
				return nil
			}

			inst, ok := instrumentFrom(m, end)
			if !ok {
				return nil
			}

			mu.Lock()
			instruments = append(instruments, inst)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return instruments, nil
}

// instrumentFrom validates a catalog record and converts it into an
// Instrument. Markets that are not tradeable or lack the two outcome
// tokens are logged and dropped.
func instrumentFrom(m *gamma.Market, end int64) (market.Instrument, bool) {
	if !m.Tradeable() {
		log.Debug().Str("slug", m.Slug).Msg("Market exists but is not tradeable")
		return market.Instrument{}, false
	}

	yes, no, ok := m.TokenIDs()
	if !ok {
		log.Warn().Str("slug", m.Slug).Msg("Market has no outcome token pair, dropping")
		return market.Instrument{}, false
	}

	return market.Instrument{
		Slug:         m.Slug,
		Asset:        m.Asset(),
		Question:     m.Question,
		YesToken:     yes,
		NoToken:      no,
		EndTimestamp: end,
	}, true
}

// RetireExpired removes exactly the store records whose tokens belong to
// the expired instrument set.
func (s *Scheduler) RetireExpired(expired []market.Instrument) {
	tokens := make(map[string]struct{}, len(expired)*2)
	for _, inst := range expired {
		tokens[inst.YesToken] = struct{}{}
		tokens[inst.NoToken] = struct{}{}
	}

	removed := s.store.Retire(func(st *market.State) bool {
		_, yes := tokens[st.YesToken]
		_, no := tokens[st.NoToken]
		return yes || no
	})

	if removed > 0 {
		log.Info().
			Int("removed", removed).
			Int("remaining", s.store.Len()).
			Msg("Expired markets cleaned up")
	}
}

// sleepUntil blocks until the deadline or ctx cancellation; already-passed
// deadlines return immediately. It reports false when ctx ended the wait.
func sleepUntil(ctx context.Context, now func() time.Time, deadline time.Time) bool {
	d := deadline.Sub(now())
	if d <= 0 {
		return ctx.Err() == nil
	}
	return sleepCtx(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
