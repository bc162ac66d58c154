package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "fills.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return l
}

func pairedFills(marketID string, yesPrice, noPrice, size string) []FillRecord {
	return []FillRecord{
		{MarketID: marketID, Venue: "polymarket", Side: "yes", Size: dec(size), Price: dec(yesPrice)},
		{MarketID: marketID, Venue: "polymarket", Side: "no", Size: dec(size), Price: dec(noPrice)},
	}
}

func TestRecordFillAndSummary(t *testing.T) {
	l := openTestLedger(t)

	for _, f := range pairedFills("Bitcoin Up or Down", "0.28", "0.66", "40") {
		l.RecordFill(f)
	}
	for _, f := range pairedFills("Ethereum Up or Down", "0.45", "0.50", "10") {
		l.RecordFill(f)
	}
	l.Close() // drains the write queue

	s, err := l.GetSummary()
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if s.Fills != 4 {
		t.Errorf("Fills = %d, want 4", s.Fills)
	}
	if s.OpenMarkets != 2 {
		t.Errorf("OpenMarkets = %d, want 2", s.OpenMarkets)
	}
	// 40*(0.28+0.66) + 10*(0.45+0.50)
	if want := dec("47.1"); !s.GrossCost.Equal(want) {
		t.Errorf("GrossCost = %s, want %s", s.GrossCost, want)
	}
}

func TestPnLMatchedPairs(t *testing.T) {
	l := openTestLedger(t)

	// Matched 40/40 at a 0.94 sum locks in 40 - 37.6 = 2.4.
	for _, f := range pairedFills("Bitcoin Up or Down", "0.28", "0.66", "40") {
		l.RecordFill(f)
	}
	// An unmatched leg contributes cost with no locked payout.
	l.RecordFill(FillRecord{
		MarketID: "Solana Up or Down",
		Venue:    "polymarket",
		Side:     "yes",
		Size:     dec("10"),
		Price:    dec("0.40"),
	})
	l.Close()

	pnl, err := l.AllTimePnL()
	if err != nil {
		t.Fatalf("AllTimePnL: %v", err)
	}
	// 2.4 from the matched market, -4.0 from the one-sided market.
	if want := dec("-1.6"); !pnl.Equal(want) {
		t.Errorf("AllTimePnL = %s, want %s", pnl, want)
	}

	daily, err := l.DailyPnL()
	if err != nil {
		t.Fatalf("DailyPnL: %v", err)
	}
	if !daily.Equal(pnl) {
		t.Errorf("DailyPnL = %s, want %s for fills recorded today", daily, pnl)
	}
}

func TestQueriesSurfaceErrorsAfterConnectionLoss(t *testing.T) {
	l := openTestLedger(t)
	l.Close()

	sqlDB, err := l.db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.Close()

	if _, err := l.DailyPnL(); err == nil {
		t.Error("DailyPnL returned nil error on a closed connection")
	}
	if _, err := l.AllTimePnL(); err == nil {
		t.Error("AllTimePnL returned nil error on a closed connection")
	}
	if _, err := l.GetSummary(); err == nil {
		t.Error("GetSummary returned nil error on a closed connection")
	}
}

func TestPnLSinceCutoff(t *testing.T) {
	l := openTestLedger(t)

	for _, f := range pairedFills("Bitcoin Up or Down", "0.28", "0.66", "40") {
		l.RecordFill(f)
	}
	l.Close()

	pnl, err := l.pnlSince(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("pnlSince: %v", err)
	}
	if !pnl.IsZero() {
		t.Errorf("pnlSince(future) = %s, want 0", pnl)
	}
}
