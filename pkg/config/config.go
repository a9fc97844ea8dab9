// Package config loads and validates platform configuration.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all daemon configuration.
type Config struct {
	API         APIConfig         `mapstructure:"api"`
	Ledger      LedgerConfig      `mapstructure:"ledger"`
	TokenLedger TokenLedgerConfig `mapstructure:"token_ledger"`
	Rates       RatesConfig       `mapstructure:"rates"`
	Fees        FeesConfig        `mapstructure:"fees"`
	Pin         PinConfig         `mapstructure:"pin"`
	Escrow      EscrowConfig      `mapstructure:"escrow"`
	Fraud       FraudConfig       `mapstructure:"fraud"`
	RateLimiter RateLimiterConfig `mapstructure:"rate_limiter"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Features    FeaturesConfig    `mapstructure:"features"`
	Currencies  []CurrencyLimit   `mapstructure:"currencies"`
}

// APIConfig for the REST+WebSocket API server.
type APIConfig struct {
	Port           int           `mapstructure:"port"`
	Host           string        `mapstructure:"host"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxRequestSize int64         `mapstructure:"max_request_size"`
	EnableCORS     bool          `mapstructure:"enable_cors"`
	TrustedProxies []string      `mapstructure:"trusted_proxies"`
}

// LedgerConfig for the SQLite-backed data store.
type LedgerConfig struct {
	DBPath string `mapstructure:"db_path"`
	// JWTSecret signs the internal service tokens every collaborator
	// service presents to pkg/ledger's verifyCaller (HS256). This is not
	// an end-user credential: end users authenticate with their PIN at
	// the service layer on every call.
	JWTSecret string `mapstructure:"jwt_secret"`
}

// TokenLedgerConfig for the ICRC-1-style external ledger adapter.
type TokenLedgerConfig struct {
	Endpoints         []string      `mapstructure:"endpoints"`
	Quorum            string        `mapstructure:"quorum"` // e.g. "2/3"
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	CkBTCLedgerID     string        `mapstructure:"ckbtc_ledger_id"`
	CkUSDCLedgerID    string        `mapstructure:"ckusdc_ledger_id"`
	PlatformSubaccount string       `mapstructure:"platform_subaccount"` // hex, first byte 0x01, rest zero
}

// RatesConfig for the fiat<->crypto rate oracle adapter.
type RatesConfig struct {
	OracleURL   string        `mapstructure:"oracle_url"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	RedisAddr   string        `mapstructure:"redis_addr"` // empty => in-memory cache only
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// FeesConfig for platform/agent commission math, in basis points except
// AgentCommissionPct, which is a percentage of the transfer fee.
type FeesConfig struct {
	TransferFeeBps        int64 `mapstructure:"transfer_fee_bps"`
	AgentCommissionPct    int64 `mapstructure:"agent_commission_pct"` // of the transfer fee
	DepositPlatformFeeBps int64 `mapstructure:"deposit_platform_fee_bps"`
	DepositAgentCommissionBps int64 `mapstructure:"deposit_agent_commission_bps"`
	WithdrawPlatformFeeBps    int64 `mapstructure:"withdraw_platform_fee_bps"`
	WithdrawAgentCommissionBps int64 `mapstructure:"withdraw_agent_commission_bps"`
	SwapSpreadBps         int64 `mapstructure:"swap_spread_bps"`
	SwapMaxSlippageBps     int64 `mapstructure:"swap_max_slippage_bps"`
	BuySellSpreadBps      int64 `mapstructure:"buy_sell_spread_bps"`
}

// PinConfig for PIN lockout policy.
type PinConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Cooldown    time.Duration `mapstructure:"cooldown"`
}

// EscrowConfig for escrow TTL.
type EscrowConfig struct {
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
}

// FraudConfig for the pure fraud/limits evaluator's thresholds.
type FraudConfig struct {
	DailyMaxTxCount   int64 `mapstructure:"daily_max_tx_count"`
	VelocityMaxPerHour int64 `mapstructure:"velocity_max_per_hour"`
}

// RateLimiterConfig for request rate limiting (IP, phone, operation class).
type RateLimiterConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	IPLimit         int           `mapstructure:"ip_limit"`
	IPWindow        time.Duration `mapstructure:"ip_window"`
	PhoneLimit      int           `mapstructure:"phone_limit"`
	PhoneWindow     time.Duration `mapstructure:"phone_window"`
	GlobalLimit     int           `mapstructure:"global_limit"`
	GlobalWindow    time.Duration `mapstructure:"global_window"`
	BurstMultiplier float64       `mapstructure:"burst_multiplier"`
}

// MetricsConfig for the Prometheus exporter.
type MetricsConfig struct {
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
	Enabled bool   `mapstructure:"enabled"`
}

// FeaturesConfig for feature flags.
type FeaturesConfig struct {
	EnableGovernance    bool `mapstructure:"enable_governance"`
	EnableSwap          bool `mapstructure:"enable_swap"`
	StrictAddressChecks bool `mapstructure:"strict_address_checks"`
}

// CurrencyLimit is one row of the fiat currency catalog (§6).
type CurrencyLimit struct {
	Code string `mapstructure:"code"`
	Min  uint64 `mapstructure:"min"`
	Max  uint64 `mapstructure:"max"`
}

// DefaultConfig returns the platform's default configuration.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Port:           8443,
			Host:           "0.0.0.0",
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			MaxRequestSize: 1 * 1024 * 1024,
			EnableCORS:     true,
			TrustedProxies: []string{},
		},
		Ledger: LedgerConfig{
			DBPath:    "afritokeni.db",
			JWTSecret: "",
		},
		TokenLedger: TokenLedgerConfig{
			Endpoints:          []string{"http://localhost:8090"},
			Quorum:             "2/3",
			RequestTimeout:     10 * time.Second,
			CkBTCLedgerID:      "ckbtc-ledger",
			CkUSDCLedgerID:     "ckusdc-ledger",
			PlatformSubaccount: "01" + repeat00(31),
		},
		Rates: RatesConfig{
			OracleURL:      "http://localhost:8091",
			CacheTTL:       30 * time.Second,
			RedisAddr:      "",
			RequestTimeout: 5 * time.Second,
		},
		Fees: FeesConfig{
			TransferFeeBps:             50,   // 0.5%
			AgentCommissionPct:         90,   // of the fee
			DepositPlatformFeeBps:      100,  // 1%
			DepositAgentCommissionBps:  90,   // 0.9%
			WithdrawPlatformFeeBps:     100,
			WithdrawAgentCommissionBps: 90,
			SwapSpreadBps:              50,  // 0.5%
			SwapMaxSlippageBps:         100, // 1%
			BuySellSpreadBps:           50,
		},
		Pin: PinConfig{
			MaxAttempts: 5,
			Cooldown:    15 * time.Minute,
		},
		Escrow: EscrowConfig{
			DefaultTTL: 24 * time.Hour,
		},
		Fraud: FraudConfig{
			DailyMaxTxCount:    50,
			VelocityMaxPerHour: 10,
		},
		RateLimiter: RateLimiterConfig{
			Enabled:         true,
			IPLimit:         100,
			IPWindow:        time.Minute,
			PhoneLimit:      30,
			PhoneWindow:     time.Minute,
			GlobalLimit:     10000,
			GlobalWindow:    time.Minute,
			BurstMultiplier: 1.5,
		},
		Metrics: MetricsConfig{
			Port:    9090,
			Path:    "/metrics",
			Enabled: true,
		},
		Features: FeaturesConfig{
			EnableGovernance:    true,
			EnableSwap:          true,
			StrictAddressChecks: true,
		},
		Currencies: DefaultCurrencyCatalog(),
	}
}

func repeat00(n int) string {
	b := make([]byte, n*2)
	for i := range b {
		b[i] = '0'
	}
	return string(b)
}

// LoadConfig loads configuration from a YAML file, falling back to defaults
// when path is empty.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration for internal consistency.
func (c *Config) Validate() error {
	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("invalid API port: %d", c.API.Port)
	}
	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Metrics.Port)
	}
	if c.Fees.TransferFeeBps < 0 || c.Fees.TransferFeeBps > 10_000 {
		return fmt.Errorf("invalid transfer_fee_bps: %d", c.Fees.TransferFeeBps)
	}
	if c.Fees.SwapMaxSlippageBps < 0 || c.Fees.SwapMaxSlippageBps > 10_000 {
		return fmt.Errorf("invalid swap_max_slippage_bps: %d", c.Fees.SwapMaxSlippageBps)
	}
	if c.Pin.MaxAttempts < 1 {
		return fmt.Errorf("invalid pin.max_attempts: %d", c.Pin.MaxAttempts)
	}
	if len(c.Currencies) == 0 {
		return fmt.Errorf("currency catalog must not be empty")
	}
	return nil
}

// CurrencyLimits returns the currency catalog keyed by code.
func (c *Config) CurrencyLimits() map[string]CurrencyLimit {
	out := make(map[string]CurrencyLimit, len(c.Currencies))
	for _, cl := range c.Currencies {
		out[cl.Code] = cl
	}
	return out
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8443)
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("ledger.db_path", "afritokeni.db")
	v.SetDefault("token_ledger.quorum", "2/3")
	v.SetDefault("rates.cache_ttl", 30*time.Second)
	v.SetDefault("fees.transfer_fee_bps", 50)
	v.SetDefault("pin.max_attempts", 5)
	v.SetDefault("pin.cooldown", 15*time.Minute)
	v.SetDefault("escrow.default_ttl", 24*time.Hour)
	v.SetDefault("rate_limiter.enabled", true)
	v.SetDefault("metrics.enabled", true)
}
