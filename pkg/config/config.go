package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds environment-driven settings for the sniper core.
type Config struct {
	Port string

	// Solana RPC
	RPCURL            string
	RPCRequestsPerSec float64

	// Telegram notifications
	TelegramBotToken string

	// External signer service that assembles and signs venue transactions.
	// Empty means no signer: the process runs observe-only.
	SignerURL string

	// Execution toggle: when false, buy/sell submission is refused and the
	// process runs in observe-only mode (reconcile sweep and monitor still run).
	ExecutionEnabled bool

	// Position monitor (TP/SL)
	MonitorIntervalSec int

	// Reconcile sweep
	SweepEnabled     bool
	SweepIntervalSec int
	SweepBatchLimit  int

	// Confirmation polling
	ConfirmRetries  int
	ConfirmDelaySec int

	// Database
	DBPath string

	// Optional per-channel policy overrides (YAML file)
	ChannelPolicyPath string

	// Auth
	JWTSecret string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	rpcURL := strings.TrimSpace(getEnv("SOLANA_RPC_URL", ""))
	if rpcURL == "" {
		// Works for dev checks; set a dedicated RPC for reliability.
		rpcURL = "https://api.mainnet-beta.solana.com"
	}

	return &Config{
		Port:               getEnv("PORT", "8080"),
		RPCURL:             rpcURL,
		RPCRequestsPerSec:  getEnvFloat("SOLANA_RPC_RPS", 10),
		TelegramBotToken:   strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
		SignerURL:          strings.TrimSpace(getEnv("SIGNER_URL", "")),
		ExecutionEnabled:   getEnv("EXECUTION_ENABLED", "true") == "true",
		MonitorIntervalSec: getEnvInt("MONITOR_INTERVAL_SEC", 10),
		SweepEnabled:       getEnv("SWEEP_ENABLED", "true") == "true",
		SweepIntervalSec:   getEnvInt("SWEEP_INTERVAL_SEC", 10),
		SweepBatchLimit:    getEnvInt("SWEEP_BATCH_LIMIT", 50),
		ConfirmRetries:     getEnvInt("CONFIRM_RETRIES", 15),
		ConfirmDelaySec:    getEnvInt("CONFIRM_DELAY_SEC", 2),
		DBPath:             getEnv("DB_PATH", "./data/sniper.db"),
		ChannelPolicyPath:  getEnv("CHANNEL_POLICY_PATH", ""),
		JWTSecret:          getEnv("JWT_SECRET", "dev-secret"),
	}, nil
}

// ChannelPolicy is an optional file-based overlay of per-channel trade policy.
// Values left out of the YAML fall through to each user's stored defaults.
type ChannelPolicy struct {
	Channels map[string]ChannelOverride `yaml:"channels"`
}

// ChannelOverride holds nullable per-channel overrides; nil means
// "use the user's default".
type ChannelOverride struct {
	AutoBuyEnabled   *bool    `yaml:"auto_buy_enabled"`
	BuyAmountSOL     *float64 `yaml:"buy_amount_sol"`
	BuySlippagePct   *float64 `yaml:"buy_slippage_pct"`
	SellSlippagePct  *float64 `yaml:"sell_slippage_pct"`
	TPSLEnabled      *bool    `yaml:"tp_sl_enabled"`
	TakeProfitPct    *float64 `yaml:"take_profit_pct"`
	StopLossPct      *float64 `yaml:"stop_loss_pct"`
	ConfirmTxEnabled *bool    `yaml:"confirm_tx_enabled"`
}

// LoadChannelPolicy parses the YAML policy file at path. An empty path yields
// an empty policy, not an error.
func LoadChannelPolicy(path string) (*ChannelPolicy, error) {
	policy := &ChannelPolicy{Channels: map[string]ChannelOverride{}}
	if path == "" {
		return policy, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read channel policy: %w", err)
	}
	if err := yaml.Unmarshal(raw, policy); err != nil {
		return nil, fmt.Errorf("parse channel policy: %w", err)
	}
	if policy.Channels == nil {
		policy.Channels = map[string]ChannelOverride{}
	}
	return policy, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
