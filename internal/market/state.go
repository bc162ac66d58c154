// Package market holds the shared live state for tracked up/down markets.
package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// Instrument describes one discovered up/down market. Immutable once
// discovered.
type Instrument struct {
	Slug         string
	Asset        string
	Question     string
	YesToken     string // "Up" outcome token
	NoToken      string // "Down" outcome token
	EndTimestamp int64  // unix seconds when the window closes
}

// State is the live view of one instrument: best ask and resting size for
// each side, fed by the streaming book. Both outcome tokens of an
// instrument resolve to the same record.
type State struct {
	Asset    string
	Question string
	YesToken string
	NoToken  string

	YesPrice decimal.Decimal
	NoPrice  decimal.Decimal
	YesSize  decimal.Decimal
	NoSize   decimal.Decimal

	LastUpdate time.Time
}

func newState(inst Instrument) *State {
	return &State{
		Asset:    inst.Asset,
		Question: inst.Question,
		YesToken: inst.YesToken,
		NoToken:  inst.NoToken,
	}
}

// HasArb reports whether both sides have a known positive ask and their
// sum is strictly below threshold.
func (s *State) HasArb(threshold decimal.Decimal) bool {
	if !s.YesPrice.IsPositive() || !s.NoPrice.IsPositive() {
		return false
	}
	return s.YesPrice.Add(s.NoPrice).LessThan(threshold)
}

// ProfitCents returns the expected gross profit in cents per matched
// contract pair, zero when either side is unknown.
func (s *State) ProfitCents() decimal.Decimal {
	if !s.YesPrice.IsPositive() || !s.NoPrice.IsPositive() {
		return decimal.Zero
	}
	return decimal.NewFromInt(1).
		Sub(s.YesPrice.Add(s.NoPrice)).
		Mul(decimal.NewFromInt(100))
}

// TradeSize sizes one leg from the thinner side's resting liquidity,
// clamped into [min, max]. Liquidity below min still trades min; the
// aggressive floor is deliberate.
func (s *State) TradeSize(min, max decimal.Decimal) decimal.Decimal {
	size := decimal.Min(s.YesSize, s.NoSize)
	if size.GreaterThan(max) {
		size = max
	}
	if size.LessThan(min) {
		size = min
	}
	return size
}
