package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/New-Pari/poly-kalshi-arb/internal/clob"
	"github.com/New-Pari/poly-kalshi-arb/internal/ledger"
	"github.com/New-Pari/poly-kalshi-arb/internal/market"
)

// fakeOrderClient serves canned fills keyed by token and records calls.
type fakeOrderClient struct {
	mu    sync.Mutex
	fills map[string]clob.Fill
	errs  map[string]error
	calls []orderCall
}

type orderCall struct {
	tokenID string
	price   decimal.Decimal
	size    decimal.Decimal
}

func (f *fakeOrderClient) BuyIOC(_ context.Context, tokenID string, limitPrice, size decimal.Decimal) (clob.Fill, error) {
	f.mu.Lock()
	f.calls = append(f.calls, orderCall{tokenID, limitPrice, size})
	f.mu.Unlock()
	if err, ok := f.errs[tokenID]; ok {
		return clob.Fill{}, err
	}
	return f.fills[tokenID], nil
}

type fakeSink struct {
	mu      sync.Mutex
	records []ledger.FillRecord
}

func (f *fakeSink) RecordFill(r ledger.FillRecord) {
	f.mu.Lock()
	f.records = append(f.records, r)
	f.mu.Unlock()
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func arbState() market.State {
	return market.State{
		Asset:    "btc",
		Question: "Bitcoin Up or Down",
		YesToken: "tok-yes",
		NoToken:  "tok-no",
		YesPrice: dec("0.28"),
		NoPrice:  dec("0.66"),
		YesSize:  dec("40"),
		NoSize:   dec("60"),
	}
}

func liveConfig() Config {
	return Config{
		MinTradeSize:       dec("1"),
		MaxTradeSize:       dec("50"),
		UnmatchedTolerance: dec("0.5"),
	}
}

func TestExecuteDryRunPlacesNoOrders(t *testing.T) {
	orders := &fakeOrderClient{}
	sink := &fakeSink{}
	cfg := liveConfig()
	cfg.DryRun = true
	eng := New(orders, sink, nil, cfg)

	if err := eng.Execute(context.Background(), arbState()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(orders.calls) != 0 {
		t.Errorf("dry run placed %d orders", len(orders.calls))
	}
	if len(sink.records) != 0 {
		t.Errorf("dry run recorded %d fills", len(sink.records))
	}
}

func TestExecuteSubmitsBothLegsAtSharedSize(t *testing.T) {
	orders := &fakeOrderClient{
		fills: map[string]clob.Fill{
			"tok-yes": {FilledSize: dec("40"), FillCost: dec("11.20"), OrderID: "oy"},
			"tok-no":  {FilledSize: dec("40"), FillCost: dec("26.40"), OrderID: "on"},
		},
	}
	sink := &fakeSink{}
	eng := New(orders, sink, nil, liveConfig())

	if err := eng.Execute(context.Background(), arbState()); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(orders.calls) != 2 {
		t.Fatalf("placed %d orders, want 2", len(orders.calls))
	}
	seen := map[string]orderCall{}
	for _, c := range orders.calls {
		seen[c.tokenID] = c
	}
	yes, ok := seen["tok-yes"]
	if !ok {
		t.Fatal("no YES leg submitted")
	}
	no, ok := seen["tok-no"]
	if !ok {
		t.Fatal("no NO leg submitted")
	}
	// Size is the smaller side's depth, identical on both legs.
	if !yes.size.Equal(dec("40")) || !no.size.Equal(dec("40")) {
		t.Errorf("leg sizes = %s / %s, want 40 / 40", yes.size, no.size)
	}
	if !yes.price.Equal(dec("0.28")) || !no.price.Equal(dec("0.66")) {
		t.Errorf("leg prices = %s / %s", yes.price, no.price)
	}

	if len(sink.records) != 2 {
		t.Fatalf("recorded %d fills, want 2", len(sink.records))
	}
	sides := map[string]ledger.FillRecord{}
	for _, r := range sink.records {
		sides[r.Side] = r
	}
	if r := sides["yes"]; r.OrderID != "oy" || !r.Size.Equal(dec("40")) || r.Venue != "polymarket" {
		t.Errorf("yes record = %+v", r)
	}
	if r := sides["no"]; r.OrderID != "on" || !r.Price.Equal(dec("0.66")) {
		t.Errorf("no record = %+v", r)
	}
}

func TestExecuteOneLegFailure(t *testing.T) {
	orders := &fakeOrderClient{
		fills: map[string]clob.Fill{
			"tok-yes": {FilledSize: dec("40"), FillCost: dec("11.20")},
		},
		errs: map[string]error{
			"tok-no": errors.New("insufficient liquidity"),
		},
	}
	sink := &fakeSink{}
	eng := New(orders, sink, nil, liveConfig())

	err := eng.Execute(context.Background(), arbState())
	if err == nil {
		t.Fatal("Execute succeeded with a failed leg")
	}
	// Both legs must still have been attempted; the failure is reported,
	// not unwound.
	if len(orders.calls) != 2 {
		t.Errorf("placed %d orders, want 2", len(orders.calls))
	}
	if len(sink.records) != 0 {
		t.Errorf("recorded %d fills after failed leg, want 0", len(sink.records))
	}
}

func TestUnmatchedSide(t *testing.T) {
	eng := New(&fakeOrderClient{}, nil, nil, liveConfig())

	tests := []struct {
		name      string
		yes, no   string
		wantSide  string
		wantGap   string
		unmatched bool
	}{
		{"matched", "40", "40", "", "", false},
		{"inside tolerance", "40", "39.6", "", "", false},
		{"yes over-filled", "40", "38", "YES", "2", true},
		{"no over-filled", "12", "30", "NO", "18", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			side, gap, unmatched := eng.unmatchedSide(
				clob.Fill{FilledSize: dec(tt.yes)},
				clob.Fill{FilledSize: dec(tt.no)},
			)
			if unmatched != tt.unmatched {
				t.Fatalf("unmatched = %v, want %v", unmatched, tt.unmatched)
			}
			if !unmatched {
				return
			}
			if side != tt.wantSide {
				t.Errorf("side = %q, want %q", side, tt.wantSide)
			}
			if !gap.Equal(dec(tt.wantGap)) {
				t.Errorf("gap = %s, want %s", gap, tt.wantGap)
			}
		})
	}
}

func TestRunConsumesTriggers(t *testing.T) {
	orders := &fakeOrderClient{
		fills: map[string]clob.Fill{
			"tok-yes": {FilledSize: dec("40"), FillCost: dec("11.20")},
			"tok-no":  {FilledSize: dec("40"), FillCost: dec("26.40")},
		},
	}
	eng := New(orders, &fakeSink{}, nil, liveConfig())

	triggers := make(chan market.State, 2)
	triggers <- arbState()
	triggers <- arbState()
	close(triggers)

	if err := eng.Run(context.Background(), triggers); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(orders.calls) != 4 {
		t.Errorf("placed %d orders across 2 triggers, want 4", len(orders.calls))
	}
}
