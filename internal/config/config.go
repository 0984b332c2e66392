// Package config loads server configuration through viper. Values come from
// an optional quickpay.yaml, QUICKPAY_* environment variables, or defaults;
// the loaded Config is passed explicitly into constructors so nothing reads
// process-global state after startup.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config is the full server configuration.
type Config struct {
	// Port the HTTP server listens on.
	Port int

	// DBPath is the SQLite database location.
	DBPath string

	// JWTSecret signs cashier session tokens.
	JWTSecret string

	// TokenTTL is how long session tokens stay valid.
	TokenTTL time.Duration

	// AutoSave and AutoSubmit are the dialog defaults for saving/submitting
	// the invoice after applying payments. Cashiers can override per commit.
	AutoSave   bool
	AutoSubmit bool

	// SearchDebounce is the window coalescing rapid search keystrokes.
	SearchDebounce time.Duration

	// PageLimit caps how many pending transactions one query returns.
	PageLimit int

	// Tolerances maps currency code to the absolute exact-match tolerance.
	// Currencies not listed use 0.01; zero-decimal currencies should set 1.
	Tolerances map[string]decimal.Decimal
}

// Load reads configuration from the given viper instance. A nil instance gets
// a fresh one wired to quickpay.yaml and QUICKPAY_* env vars.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
		v.SetConfigName("quickpay")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/quickpay")
	}

	v.SetEnvPrefix("QUICKPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", 8080)
	v.SetDefault("db_path", "./data/quickpay.db")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("token_ttl", "24h")
	v.SetDefault("auto_save", true)
	// POS usually needs manual review before submit.
	v.SetDefault("auto_submit", false)
	v.SetDefault("search_debounce", "300ms")
	v.SetDefault("page_limit", 100)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		Port:           v.GetInt("port"),
		DBPath:         v.GetString("db_path"),
		JWTSecret:      v.GetString("jwt_secret"),
		TokenTTL:       v.GetDuration("token_ttl"),
		AutoSave:       v.GetBool("auto_save"),
		AutoSubmit:     v.GetBool("auto_submit"),
		SearchDebounce: v.GetDuration("search_debounce"),
		PageLimit:      v.GetInt("page_limit"),
		Tolerances:     make(map[string]decimal.Decimal),
	}

	for currency, raw := range v.GetStringMapString("tolerances") {
		tolerance, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid tolerance for %s: %w", currency, err)
		}
		cfg.Tolerances[strings.ToUpper(currency)] = tolerance
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret must be set (QUICKPAY_JWT_SECRET)")
	}
	if cfg.PageLimit <= 0 {
		return nil, fmt.Errorf("page_limit must be positive")
	}
	return cfg, nil
}

// ToleranceFor returns the exact-match tolerance for a currency, defaulting
// to 0.01.
func (c *Config) ToleranceFor(currency string) decimal.Decimal {
	if tolerance, ok := c.Tolerances[strings.ToUpper(currency)]; ok {
		return tolerance
	}
	return decimal.RequireFromString("0.01")
}
