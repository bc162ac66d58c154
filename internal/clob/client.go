// Package clob places orders against the Polymarket CLOB API.
package clob

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Fill is the venue's report for one immediate-or-cancel order.
type Fill struct {
	FilledSize decimal.Decimal
	FillCost   decimal.Decimal
	Fee        decimal.Decimal
	OrderID    string
}

// Creds are the API credentials derived from the wallet key.
type Creds struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// Client signs and submits CLOB orders. In dry-run mode submission is
// skipped and a synthetic full fill is returned, so detection logic can
// run against live data without capital risk.
type Client struct {
	baseURL    string
	chainID    int64
	privateKey *ecdsa.PrivateKey
	address    string
	funder     string
	creds      Creds
	dryRun     bool
	httpClient *http.Client
}

// NewClient builds a client from a hex wallet key and funder address.
// The key is optional in dry-run mode.
func NewClient(baseURL string, chainID int64, privateKeyHex, funder string, dryRun bool) (*Client, error) {
	c := &Client{
		baseURL:    baseURL,
		chainID:    chainID,
		funder:     funder,
		dryRun:     dryRun,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	if privateKeyHex != "" {
		pk, err := crypto.HexToECDSA(privateKeyHex)
		if err != nil {
			return nil, fmt.Errorf("clob: invalid private key: %w", err)
		}
		c.privateKey = pk
		c.address = crypto.PubkeyToAddress(pk.PublicKey).Hex()
	} else if !dryRun {
		return nil, fmt.Errorf("clob: private key required for live execution")
	}

	mode := "DRY RUN"
	if !dryRun {
		mode = "LIVE"
	}
	log.Info().
		Str("mode", mode).
		Str("address", c.address).
		Msg("💳 CLOB client initialized")

	return c, nil
}

// DeriveCreds derives API credentials from the wallet key. Dry-run mode
// returns placeholder credentials without touching the venue.
func (c *Client) DeriveCreds(ctx context.Context) error {
	if c.dryRun {
		c.creds = Creds{APIKey: "dry-run"}
		return nil
	}

	body, err := c.post(ctx, "/auth/derive-api-key", nil)
	if err != nil {
		return fmt.Errorf("clob: derive credentials: %w", err)
	}

	if err := json.Unmarshal(body, &c.creds); err != nil {
		return fmt.Errorf("clob: parse credentials: %w", err)
	}
	if c.creds.APIKey == "" {
		return fmt.Errorf("clob: venue returned empty API key")
	}

	log.Info().Msg("CLOB credentials derived")
	return nil
}

// BuyIOC submits an immediate-or-cancel buy: fill whatever is resting at
// or under limitPrice up to size, cancel the rest. The venue guarantees
// non-blocking resolution; there is no follow-up order management here.
func (c *Client) BuyIOC(ctx context.Context, tokenID string, limitPrice, size decimal.Decimal) (Fill, error) {
	if c.dryRun {
		return Fill{
			FilledSize: size,
			FillCost:   limitPrice.Mul(size),
			OrderID:    "DRY_" + uuid.NewString(),
		}, nil
	}

	order := map[string]interface{}{
		"tokenID":       tokenID,
		"price":         limitPrice.String(),
		"size":          size.String(),
		"side":          "BUY",
		"orderType":     "FAK",
		"clientID":      uuid.NewString(),
		"nonce":         time.Now().UnixNano(),
		"feeRateBps":    "0",
		"signatureType": 0,
		"maker":         c.funder,
		"signer":        c.address,
	}

	signature, err := c.signOrder(order)
	if err != nil {
		return Fill{}, fmt.Errorf("clob: sign order: %w", err)
	}
	order["signature"] = signature

	body, err := c.post(ctx, "/order", order)
	if err != nil {
		return Fill{}, err
	}

	var result struct {
		OrderID      string `json:"orderID"`
		Status       string `json:"status"`
		Error        string `json:"error"`
		MakingAmount string `json:"makingAmount"`
		TakingAmount string `json:"takingAmount"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return Fill{}, fmt.Errorf("clob: parse order response: %w", err)
	}
	if result.Error != "" {
		return Fill{}, fmt.Errorf("clob: order rejected: %s", result.Error)
	}

	filled, _ := decimal.NewFromString(result.TakingAmount)
	cost, _ := decimal.NewFromString(result.MakingAmount)

	return Fill{
		FilledSize: filled,
		FillCost:   cost,
		OrderID:    result.OrderID,
	}, nil
}

// IsDryRun reports whether the client skips real submission.
func (c *Client) IsDryRun() bool {
	return c.dryRun
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&buf).Encode(payload); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.addAuthHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("clob: HTTP %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func (c *Client) addAuthHeaders(req *http.Request) {
	timestamp := fmt.Sprintf("%d", time.Now().Unix())

	req.Header.Set("POLY_ADDRESS", c.address)
	req.Header.Set("POLY_API_KEY", c.creds.APIKey)
	req.Header.Set("POLY_TIMESTAMP", timestamp)
	req.Header.Set("POLY_PASSPHRASE", c.creds.Passphrase)

	if c.creds.Secret != "" {
		message := timestamp + req.Method + req.URL.Path
		req.Header.Set("POLY_SIGNATURE", c.hmacSign(message))
	}
}

func (c *Client) signOrder(order map[string]interface{}) (string, error) {
	if c.privateKey == nil {
		return "", fmt.Errorf("private key not loaded")
	}

	orderBytes, err := json.Marshal(order)
	if err != nil {
		return "", err
	}
	hash := crypto.Keccak256(orderBytes)

	sig, err := crypto.Sign(hash, c.privateKey)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(sig), nil
}

func (c *Client) hmacSign(message string) string {
	hash := crypto.Keccak256([]byte(message + c.creds.Secret))
	return hexutil.Encode(hash)
}
