package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all configuration for the bot
type Config struct {
	// Tracked assets (slug prefixes), e.g. btc, eth, sol, xrp
	Assets []string

	// Mode
	DryRun bool
	Debug  bool

	// Polymarket endpoints
	GammaAPIURL string
	CLOBURL     string
	WSURL       string

	// Wallet / CLOB credentials
	PrivateKey    string
	FunderAddress string
	ChainID       int64

	// Window scheduling
	WindowLength     time.Duration // length of one up/down interval
	LookaheadWindows int           // intervals tracked ahead of the current one
	PreloadBuffer    time.Duration // how early the next interval is discovered
	ExpiryGrace      time.Duration // how long after close a record lingers
	RetryDelay       time.Duration // delay before retrying a failed discovery cycle

	// Feed
	ReconnectDelay    time.Duration
	HeartbeatInterval time.Duration
	StaleThreshold    time.Duration
	EmptyStoreDelay   time.Duration // wait when there is nothing to subscribe to

	// Arbitrage
	ArbThreshold       decimal.Decimal // YES+NO must be below this to trade
	MinTradeSize       decimal.Decimal // dollars per leg
	MaxTradeSize       decimal.Decimal // dollars per leg
	UnmatchedTolerance decimal.Decimal // filled-size gap that flags exposure

	// Catalog
	CatalogTimeout time.Duration

	// Persistence
	DatabasePath string
	DatabaseURL  string // postgres DSN; sqlite file when empty

	// Telegram (optional)
	TelegramToken  string
	TelegramChatID int64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Assets: splitAssets(getEnv("UPDOWN_ASSETS", "btc,eth,sol,xrp")),

		DryRun: getEnvBool("DRY_RUN", true),
		Debug:  getEnvBool("DEBUG", false),

		GammaAPIURL: getEnv("POLYMARKET_API_URL", "https://gamma-api.polymarket.com"),
		CLOBURL:     getEnv("POLYMARKET_CLOB_URL", "https://clob.polymarket.com"),
		WSURL:       getEnv("POLYMARKET_WS_URL", "wss://ws-subscriptions-clob.polymarket.com/ws/market"),

		PrivateKey:    os.Getenv("POLY_PRIVATE_KEY"),
		FunderAddress: os.Getenv("POLY_FUNDER"),
		ChainID:       int64(getEnvInt("POLY_CHAIN_ID", 137)),

		WindowLength:     getEnvDuration("WINDOW_LENGTH", 15*time.Minute),
		LookaheadWindows: getEnvInt("LOOKAHEAD_WINDOWS", 1),
		PreloadBuffer:    getEnvDuration("PRELOAD_BUFFER", 60*time.Second),
		ExpiryGrace:      getEnvDuration("EXPIRY_GRACE", 5*time.Second),
		RetryDelay:       getEnvDuration("SCAN_RETRY_DELAY", 10*time.Second),

		ReconnectDelay:    getEnvDuration("WS_RECONNECT_DELAY", 5*time.Second),
		HeartbeatInterval: getEnvDuration("WS_HEARTBEAT_INTERVAL", 30*time.Second),
		StaleThreshold:    getEnvDuration("WS_STALE_THRESHOLD", 120*time.Second),
		EmptyStoreDelay:   getEnvDuration("WS_EMPTY_STORE_DELAY", 10*time.Second),

		ArbThreshold:       getEnvDecimal("ARB_THRESHOLD", decimal.NewFromFloat(0.995)),
		MinTradeSize:       getEnvDecimal("MIN_TRADE_SIZE", decimal.NewFromInt(1)),
		MaxTradeSize:       getEnvDecimal("MAX_TRADE_SIZE", decimal.NewFromInt(50)),
		UnmatchedTolerance: getEnvDecimal("UNMATCHED_TOLERANCE", decimal.NewFromFloat(0.5)),

		CatalogTimeout: getEnvDuration("CATALOG_TIMEOUT", 5*time.Second),

		DatabasePath: getEnv("DATABASE_PATH", "data/updown.db"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
	}

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Assets) == 0 {
		return fmt.Errorf("UPDOWN_ASSETS must name at least one asset")
	}
	if c.WindowLength <= 0 {
		return fmt.Errorf("WINDOW_LENGTH must be positive")
	}
	if c.PreloadBuffer >= c.WindowLength {
		return fmt.Errorf("PRELOAD_BUFFER must be shorter than WINDOW_LENGTH")
	}
	if !c.ArbThreshold.IsPositive() || c.ArbThreshold.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("ARB_THRESHOLD must be in (0, 1)")
	}
	if c.MinTradeSize.GreaterThan(c.MaxTradeSize) {
		return fmt.Errorf("MIN_TRADE_SIZE exceeds MAX_TRADE_SIZE")
	}
	if !c.DryRun {
		if c.PrivateKey == "" {
			return fmt.Errorf("POLY_PRIVATE_KEY is required for live execution")
		}
		if c.FunderAddress == "" {
			return fmt.Errorf("POLY_FUNDER is required for live execution")
		}
	}
	return nil
}

func splitAssets(s string) []string {
	var assets []string
	for _, a := range strings.Split(s, ",") {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" {
			assets = append(assets, a)
		}
	}
	return assets
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}
