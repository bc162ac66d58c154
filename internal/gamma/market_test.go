package gamma

import (
	"encoding/json"
	"testing"
)

func TestMarketDecodeStringEncodedFields(t *testing.T) {
	raw := `{
		"id": "516710",
		"question": "Bitcoin Up or Down - 8:45 PM ET",
		"slug": "btc-updown-15m-1766100600",
		"clobTokenIds": "[\"yes-token-id\", \"no-token-id\"]",
		"active": true,
		"closed": false,
		"acceptingOrders": true,
		"outcomes": "[\"Up\", \"Down\"]"
	}`

	var m Market
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if m.ID != 516710 {
		t.Errorf("ID = %d, want 516710", m.ID)
	}
	yes, no, ok := m.TokenIDs()
	if !ok || yes != "yes-token-id" || no != "no-token-id" {
		t.Errorf("TokenIDs() = %q, %q, %v", yes, no, ok)
	}
	if len(m.Outcomes) != 2 || m.Outcomes[0] != "Up" {
		t.Errorf("Outcomes = %v", m.Outcomes)
	}
	if !m.Tradeable() {
		t.Error("Tradeable() = false for active market")
	}
	if m.Asset() != "btc" {
		t.Errorf("Asset() = %q, want btc", m.Asset())
	}
}

func TestMarketDecodeNumericIDAndPlainArrays(t *testing.T) {
	raw := `{
		"id": 42,
		"slug": "eth-updown-15m-1766100600",
		"clobTokenIds": ["a", "b"],
		"outcomes": ["Up", "Down"],
		"active": true,
		"closed": false,
		"acceptingOrders": true
	}`

	var m Market
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.ID != 42 {
		t.Errorf("ID = %d, want 42", m.ID)
	}
	if _, _, ok := m.TokenIDs(); !ok {
		t.Error("TokenIDs() not ok for plain array form")
	}
}

func TestTradeable(t *testing.T) {
	tests := []struct {
		name                      string
		active, closed, accepting bool
		want                      bool
	}{
		{"fully open", true, false, true, true},
		{"closed", true, true, true, false},
		{"not active", false, false, true, false},
		{"not accepting orders", true, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Market{Active: tt.active, Closed: tt.closed, AcceptingOrders: tt.accepting}
			if got := m.Tradeable(); got != tt.want {
				t.Errorf("Tradeable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTokenIDsMissing(t *testing.T) {
	m := Market{ClobTokenIDs: EncodedStrings{"only-one"}}
	if _, _, ok := m.TokenIDs(); ok {
		t.Error("TokenIDs() ok with a single token, want false")
	}
	empty := Market{}
	if _, _, ok := empty.TokenIDs(); ok {
		t.Error("TokenIDs() ok with no tokens, want false")
	}
}
