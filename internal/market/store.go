package market

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Store is the mutually-exclusive map from outcome-token id to live market
// state. The scheduler inserts and retires records, the feed processor
// mutates prices, the execution engine reads detached copies. The mutex is
// held only for in-memory work, never across network calls.
type Store struct {
	mu        sync.Mutex
	byToken   map[string]*State
	threshold decimal.Decimal
}

// NewStore creates an empty store. threshold is the combined-price level
// below which UpdateSide flags an arbitrage trigger.
func NewStore(threshold decimal.Decimal) *Store {
	return &Store{
		byToken:   make(map[string]*State),
		threshold: threshold,
	}
}

// InsertIfAbsent registers an instrument under both of its outcome tokens.
// It reports whether a new record was created; re-inserting a known
// instrument is a no-op.
func (s *Store) InsertIfAbsent(inst Instrument) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byToken[inst.YesToken]; ok {
		return false
	}
	if _, ok := s.byToken[inst.NoToken]; ok {
		return false
	}

	st := newState(inst)
	s.byToken[inst.YesToken] = st
	s.byToken[inst.NoToken] = st
	return true
}

// UpdateSide applies a best-ask update to whichever side of a record owns
// tokenID. It returns a detached copy of the record's state and whether the
// updated instrument now satisfies the arbitrage predicate; the copy lets
// execution run without re-entering the lock. An untracked token is a
// no-op.
func (s *Store) UpdateSide(tokenID string, price, size decimal.Decimal) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.byToken[tokenID]
	if !ok {
		return State{}, false
	}

	switch tokenID {
	case st.YesToken:
		st.YesPrice = price
		st.YesSize = size
	case st.NoToken:
		st.NoPrice = price
		st.NoSize = size
	}
	st.LastUpdate = time.Now()

	if st.HasArb(s.threshold) {
		return *st, true
	}
	return State{}, false
}

// Retire removes every record matching the predicate and returns how many
// instruments were dropped. Idempotent under repeated calls.
func (s *Store) Retire(match func(*State) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, st := range s.byToken {
		if !match(st) {
			continue
		}
		delete(s.byToken, token)
		// Each record is keyed twice; count it once.
		if token == st.YesToken {
			removed++
			log.Debug().Str("asset", st.Asset).Str("question", st.Question).Msg("Market retired")
		}
	}
	return removed
}

// TrackedTokens returns a snapshot of every outcome-token id currently in
// the store.
func (s *Store) TrackedTokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens := make([]string, 0, len(s.byToken))
	for token := range s.byToken {
		tokens = append(tokens, token)
	}
	return tokens
}

// Len returns the number of tracked instruments.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byToken) / 2
}
