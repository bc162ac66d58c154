// Package feed maintains the streaming order-book subscription and turns
// inbound snapshots into state-store updates and arbitrage triggers.
package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/New-Pari/poly-kalshi-arb/internal/market"
)

// Config carries the processor's connection knobs.
type Config struct {
	URL               string
	HeartbeatInterval time.Duration // outbound ping cadence
	StaleThreshold    time.Duration // max silence before forcing a reconnect
	ReconnectDelay    time.Duration // fixed wait between sessions
	EmptyStoreDelay   time.Duration // wait when there are no tokens to subscribe to
}

// Processor owns one live subscription covering the store's full token set.
// A session ends on any read error or staleness; the supervisor loop in Run
// reconnects after a fixed delay, forever.
type Processor struct {
	store    *market.Store
	cfg      Config
	triggers chan market.State
}

// NewProcessor creates a feed processor over the given store. Triggered
// state snapshots are delivered on the Triggers channel.
func NewProcessor(store *market.Store, cfg Config) *Processor {
	return &Processor{
		store:    store,
		cfg:      cfg,
		triggers: make(chan market.State, 64),
	}
}

// Triggers returns the channel of detached state snapshots that satisfied
// the arbitrage predicate at update time.
func (p *Processor) Triggers() <-chan market.State {
	return p.triggers
}

// Run supervises the connection until ctx is cancelled. There is no
// backoff growth and no give-up condition.
func (p *Processor) Run(ctx context.Context) error {
	log.Info().Str("url", p.cfg.URL).Msg("📡 Feed supervisor started")

	for {
		tokens := p.store.TrackedTokens()
		if len(tokens) == 0 {
			log.Debug().Msg("No markets to monitor, waiting...")
			if !sleepCtx(ctx, p.cfg.EmptyStoreDelay) {
				return ctx.Err()
			}
			continue
		}

		if err := p.session(ctx, tokens); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Dur("reconnect_in", p.cfg.ReconnectDelay).Msg("Feed disconnected")
		}

		if !sleepCtx(ctx, p.cfg.ReconnectDelay) {
			return ctx.Err()
		}
	}
}

// session runs one connection: subscribe once with the full token set,
// then read until error, staleness, or cancellation.
func (p *Processor) session(ctx context.Context, tokens []string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, p.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	log.Info().Int("tokens", len(tokens)).Msg("🔌 Feed connected")

	if err := conn.WriteJSON(subscribeMessage{AssetIDs: tokens, Type: "market"}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	// Any traffic, control frames included, refreshes the staleness clock.
	// A fully silent connection fails its read deadline and is torn down.
	refresh := func() error {
		return conn.SetReadDeadline(time.Now().Add(p.cfg.StaleThreshold))
	}
	if err := refresh(); err != nil {
		return err
	}

	conn.SetPongHandler(func(string) error { return refresh() })
	conn.SetPingHandler(func(data string) error {
		_ = conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
		return refresh()
	})

	// Close the connection when ctx ends so the blocked read returns.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	go p.heartbeat(conn, done)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}
		if err := refresh(); err != nil {
			return err
		}
		if msgType != websocket.TextMessage {
			continue
		}

		for _, book := range parseBooks(data) {
			p.processBook(book)
		}
	}
}

// heartbeat sends keep-alive pings at a fixed cadence. WriteControl is
// safe to call concurrently with the read loop's pong replies.
func (p *Processor) heartbeat(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(p.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				log.Warn().Err(err).Msg("Failed to send ping")
				return
			}
		}
	}
}

// processBook extracts the best ask from one snapshot and applies it to
// the store. A triggered instrument's detached state goes onto the
// triggers channel; a full channel drops the signal rather than stalling
// ingestion.
func (p *Processor) processBook(book bookSnapshot) {
	price, size, ok := bestAsk(book.Asks)
	if !ok {
		return
	}

	state, triggered := p.store.UpdateSide(book.AssetID, price, size)
	if !triggered {
		return
	}

	select {
	case p.triggers <- state:
	default:
		log.Warn().
			Str("asset", state.Asset).
			Msg("Trigger queue full, dropping arbitrage signal")
	}
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
