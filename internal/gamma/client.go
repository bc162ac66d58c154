// Package gamma queries the Polymarket Gamma API for market metadata.
package gamma

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is the REST client for the Gamma market registry.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Gamma client with a fixed per-request timeout.
//
// baseURL is the API root, e.g. "https://gamma-api.polymarket.com".
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// LookupSlug queries the registry for a market by slug. It returns
// (nil, nil) when the venue has no market under that slug; retry policy
// belongs to the caller.
func (c *Client) LookupSlug(ctx context.Context, slug string) (*Market, error) {
	endpoint := fmt.Sprintf("%s/markets?slug=%s", c.baseURL, url.QueryEscape(slug))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("gamma: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gamma: query %s: %w", slug, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// The venue answers non-2xx for slugs it has never minted.
		io.Copy(io.Discard, resp.Body)
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gamma: read body for %s: %w", slug, err)
	}

	var markets []Market
	if err := json.Unmarshal(body, &markets); err != nil {
		return nil, fmt.Errorf("gamma: decode %s: %w", slug, err)
	}

	if len(markets) == 0 {
		return nil, nil
	}
	return &markets[0], nil
}
