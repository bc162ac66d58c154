package feed

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// subscribeMessage names the full tracked token set for one connection.
type subscribeMessage struct {
	AssetIDs []string `json:"assets_ids"`
	Type     string   `json:"type"`
}

// bookSnapshot is one order-book snapshot from the market channel.
type bookSnapshot struct {
	AssetID string       `json:"asset_id"`
	Bids    []priceLevel `json:"bids"`
	Asks    []priceLevel `json:"asks"`
}

type priceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// parseBooks decodes a data frame into book snapshots. The feed also
// carries event objects and bare acknowledgements on the same channel;
// anything that is not a snapshot array is ignored.
func parseBooks(data []byte) []bookSnapshot {
	var books []bookSnapshot
	if err := json.Unmarshal(data, &books); err != nil {
		return nil
	}
	return books
}

// bestAsk returns the lowest positive ask with positive size. ok is false
// when no level qualifies.
func bestAsk(asks []priceLevel) (price, size decimal.Decimal, ok bool) {
	for _, l := range asks {
		p, err := decimal.NewFromString(l.Price)
		if err != nil || !p.IsPositive() {
			continue
		}
		s, err := decimal.NewFromString(l.Size)
		if err != nil || !s.IsPositive() {
			continue
		}
		if !ok || p.LessThan(price) {
			price, size = p, s
			ok = true
		}
	}
	return price, size, ok
}
