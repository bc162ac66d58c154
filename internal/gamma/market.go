package gamma

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Market is the Gamma API market record, limited to the fields the bot
// consumes. The venue serialises some fields inconsistently (ids arrive as
// either numbers or strings, token ids as a JSON array embedded in a
// string), so the awkward shapes get dedicated wrapper types.
type Market struct {
	ID              FlexID          `json:"id"`
	Question        string          `json:"question"`
	Slug            string          `json:"slug"`
	ClobTokenIDs    EncodedStrings  `json:"clobTokenIds"`
	Active          bool            `json:"active"`
	Closed          bool            `json:"closed"`
	AcceptingOrders bool            `json:"acceptingOrders"`
	StartDate       string          `json:"startDate"`
	EndDate         string          `json:"endDate"`
	Outcomes        EncodedStrings  `json:"outcomes"`
}

// Tradeable reports whether the market currently accepts flow.
func (m *Market) Tradeable() bool {
	return m.Active && !m.Closed && m.AcceptingOrders
}

// TokenIDs returns the YES ("Up") and NO ("Down") outcome token ids.
// ok is false unless the market carries at least two tokens.
func (m *Market) TokenIDs() (yes, no string, ok bool) {
	if len(m.ClobTokenIDs) < 2 {
		return "", "", false
	}
	return m.ClobTokenIDs[0], m.ClobTokenIDs[1], true
}

// Asset extracts the asset symbol from the slug, e.g.
// "btc-updown-15m-1766100600" -> "btc".
func (m *Market) Asset() string {
	if i := strings.IndexByte(m.Slug, '-'); i > 0 {
		return m.Slug[:i]
	}
	return m.Slug
}

// FlexID decodes a JSON field that arrives as either a number or a
// numeric string.
type FlexID uint64

func (f *FlexID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return err
	}
	*f = FlexID(v)
	return nil
}

// EncodedStrings decodes a string array that arrives either as a plain
// JSON array or as a JSON-encoded string containing one.
type EncodedStrings []string

func (e *EncodedStrings) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*e = nil
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return err
		}
		if inner == "" {
			*e = nil
			return nil
		}
		var out []string
		if err := json.Unmarshal([]byte(inner), &out); err != nil {
			return err
		}
		*e = out
		return nil
	}

	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*e = out
	return nil
}
