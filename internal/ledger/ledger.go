// Package ledger persists fills and answers position/PnL queries.
package ledger

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// FillRecord is one executed leg forwarded by the execution engine.
type FillRecord struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	MarketID  string `gorm:"index"`
	Question  string
	Venue     string
	Side      string          // "yes" or "no"
	Size      decimal.Decimal `gorm:"type:decimal(20,6)"`
	Price     decimal.Decimal `gorm:"type:decimal(10,6)"`
	Fee       decimal.Decimal `gorm:"type:decimal(20,6)"`
	OrderID   string          `gorm:"index"`
	CreatedAt time.Time
}

// Summary aggregates the ledger's current view.
type Summary struct {
	Fills       int64
	OpenMarkets int64
	GrossCost   decimal.Decimal
}

// Ledger wraps the fill store. Writes go through a buffered channel and a
// single writer goroutine so recording a fill never blocks execution.
type Ledger struct {
	db     *gorm.DB
	writes chan FillRecord
	done   chan struct{}
}

// Open connects to postgres when dsn looks like a connection string,
// otherwise to a local sqlite file at dsn.
func Open(dsn string) (*Ledger, error) {
	var db *gorm.DB
	var err error

	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dsn), gormCfg)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("💾 Ledger connected (PostgreSQL)")
	} else {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		db, err = gorm.Open(sqlite.Open(dsn), gormCfg)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", dsn).Msg("💾 Ledger initialized (SQLite)")
	}

	if err := db.AutoMigrate(&FillRecord{}); err != nil {
		return nil, err
	}

	l := &Ledger{
		db:     db,
		writes: make(chan FillRecord, 256),
		done:   make(chan struct{}),
	}
	go l.writerLoop()

	return l, nil
}

// RecordFill queues a fill for persistence. A saturated queue drops the
// record with a warning rather than stalling the caller.
func (l *Ledger) RecordFill(rec FillRecord) {
	select {
	case l.writes <- rec:
	default:
		log.Warn().Str("order_id", rec.OrderID).Msg("Ledger queue full, dropping fill record")
	}
}

func (l *Ledger) writerLoop() {
	for rec := range l.writes {
		if err := l.db.Create(&rec).Error; err != nil {
			log.Error().Err(err).Str("order_id", rec.OrderID).Msg("Failed to persist fill")
		}
	}
	close(l.done)
}

// Close drains pending writes and shuts the writer down.
func (l *Ledger) Close() {
	close(l.writes)
	<-l.done
}

// GetSummary reports fill count, distinct markets, and gross cost.
func (l *Ledger) GetSummary() (Summary, error) {
	var s Summary

	if err := l.db.Model(&FillRecord{}).Count(&s.Fills).Error; err != nil {
		return s, err
	}
	if err := l.db.Model(&FillRecord{}).Distinct("market_id").Count(&s.OpenMarkets).Error; err != nil {
		return s, err
	}

	var result struct{ Total decimal.Decimal }
	err := l.db.Model(&FillRecord{}).
		Select("COALESCE(SUM(price * size + fee), 0) as total").
		Scan(&result).Error
	if err != nil {
		return s, err
	}
	s.GrossCost = result.Total

	return s, nil
}

// DailyPnL returns the locked-in profit across fills recorded since
// midnight local time.
func (l *Ledger) DailyPnL() (decimal.Decimal, error) {
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return l.pnlSince(midnight)
}

// AllTimePnL returns the locked-in profit across every recorded fill.
func (l *Ledger) AllTimePnL() (decimal.Decimal, error) {
	return l.pnlSince(time.Time{})
}

// pnlSince treats matched yes/no quantity per market as locked profit:
// each matched pair resolves to exactly one unit of payout regardless of
// outcome, so profit is matched size minus the cost attributable to it.
func (l *Ledger) pnlSince(since time.Time) (decimal.Decimal, error) {
	var fills []FillRecord
	if err := l.db.Where("created_at >= ?", since).Find(&fills).Error; err != nil {
		return decimal.Zero, err
	}

	type book struct {
		yesSize, noSize decimal.Decimal
		cost            decimal.Decimal
	}
	books := make(map[string]*book)

	for _, f := range fills {
		b, ok := books[f.MarketID]
		if !ok {
			b = &book{}
			books[f.MarketID] = b
		}
		if f.Side == "yes" {
			b.yesSize = b.yesSize.Add(f.Size)
		} else {
			b.noSize = b.noSize.Add(f.Size)
		}
		b.cost = b.cost.Add(f.Price.Mul(f.Size)).Add(f.Fee)
	}

	total := decimal.Zero
	for _, b := range books {
		matched := decimal.Min(b.yesSize, b.noSize)
		total = total.Add(matched.Sub(b.cost))
	}
	return total, nil
}
