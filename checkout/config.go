package checkout

import (
	"os"
	"time"

	"github.com/cardflow-labs/pci-checkout/checkout/models"
)

// Config is the configuration for the checkout gateway. It is resolved
// once at process start and passed in explicitly so tests can substitute
// fakes.
type Config struct {
	HTTPAddr string

	// APIBaseURL is the processor environment the gateway talks to.
	APIBaseURL string
	MerchantID string
	// AuthScheme selects how requests authenticate: "wallet" sends the
	// identity header pair directly, "session-key" negotiates a
	// short-lived key first.
	AuthScheme string
	// WalletAddress is the resolved user identity for this session.
	// Empty means no identity yet; flows fail fast on it.
	WalletAddress  string
	AuthBlockchain string

	// DefaultSubtotal is displayed and charged until the totals endpoint
	// supplies real amounts.
	DefaultSubtotal models.CurrencyAmount

	// TokenizeTimeout bounds widget token retrieval; the CVV-only widget
	// hangs forever when no CVV was entered.
	TokenizeTimeout time.Duration
	// CheckoutTimeout bounds the processor checkout calls.
	CheckoutTimeout time.Duration

	// DatabaseDSN enables the Postgres receipts backend; empty keeps
	// receipts in memory.
	DatabaseDSN string
}

func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:        "localhost:8480",
		APIBaseURL:      "https://api-sandbox.coinflow.cash",
		MerchantID:      "swe-challenge",
		AuthScheme:      "wallet",
		AuthBlockchain:  "solana",
		DefaultSubtotal: models.CurrencyAmount{Currency: "USD", Cents: 20_00},
		TokenizeTimeout: 6 * time.Second,
		CheckoutTimeout: 8 * time.Second,
	}
}

// ConfigFromEnv layers environment overrides over the defaults.
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()
	cfg.HTTPAddr = getenv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.APIBaseURL = getenv("COINFLOW_API_BASE_URL", cfg.APIBaseURL)
	cfg.MerchantID = getenv("COINFLOW_MERCHANT_ID", cfg.MerchantID)
	cfg.AuthScheme = getenv("COINFLOW_AUTH_SCHEME", cfg.AuthScheme)
	cfg.WalletAddress = getenv("WALLET_ADDRESS", cfg.WalletAddress)
	cfg.AuthBlockchain = getenv("AUTH_BLOCKCHAIN", cfg.AuthBlockchain)
	cfg.DatabaseDSN = getenv("DB_DSN", cfg.DatabaseDSN)
	if d, err := time.ParseDuration(getenv("TOKENIZE_TIMEOUT", "")); err == nil && d > 0 {
		cfg.TokenizeTimeout = d
	}
	if d, err := time.ParseDuration(getenv("CHECKOUT_TIMEOUT", "")); err == nil && d > 0 {
		cfg.CheckoutTimeout = d
	}
	return cfg
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
