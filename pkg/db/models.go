package db

import (
	"database/sql"
	"time"
)

// Side of a trade.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Pending-trade statuses.
const (
	StatusPending = "PENDING"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// Position tracks per-(user, mint) holdings and realized PnL.
// Rows are created on first buy and never deleted; Open flips to false when
// the balance drains to zero.
type Position struct {
	ID               int64
	UserID           string
	Mint             string
	TokenBalance     float64
	AvgEntrySOL      float64
	TotalSpentSOL    float64
	TotalReceivedSOL float64
	RealizedPnLSOL   float64
	Open             bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Trade is an immutable record of one applied buy or sell.
type Trade struct {
	ID          string
	UserID      string
	Mint        string
	Side        string
	TokenAmount float64
	SOLAmount   float64
	PriceSOL    float64
	TxSig       string
	CreatedAt   time.Time
}

// PendingTrade is a submitted transaction awaiting a terminal outcome,
// keyed by its signature.
type PendingTrade struct {
	Signature            string
	UserID               string
	Mint                 string
	Side                 string
	RequestedTokenAmount sql.NullFloat64
	RequestedSOLAmount   sql.NullFloat64
	ActualTokenAmount    sql.NullFloat64
	ActualSOLAmount      sql.NullFloat64
	Status               string
	Error                sql.NullString
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// UserSettings is the per-user trade policy row.
type UserSettings struct {
	UserID             string
	AutoBuyEnabled     bool
	BuyAmountSOL       float64
	BuySlippagePct     float64
	SellSlippagePct    float64
	TPSLEnabled        bool
	TakeProfitPct      float64
	StopLossPct        float64
	DuplicateMintBlock bool
	ConfirmTxEnabled   bool
	CooldownSeconds    int
	MaxTradesPerDay    int
	UpdatedAt          time.Time
}

// ChannelSettings holds nullable per-channel overrides of UserSettings.
type ChannelSettings struct {
	UserID           string
	ChannelID        int64
	AutoBuyEnabled   sql.NullBool
	BuyAmountSOL     sql.NullFloat64
	BuySlippagePct   sql.NullFloat64
	SellSlippagePct  sql.NullFloat64
	TPSLEnabled      sql.NullBool
	TakeProfitPct    sql.NullFloat64
	StopLossPct      sql.NullFloat64
	ConfirmTxEnabled sql.NullBool
}

// Signal is a detected mint mention recorded for audit.
type Signal struct {
	ID         int64
	ChannelID  int64
	MessageID  int64
	Mint       string
	Confidence int
	CreatedAt  time.Time
}

// APIUser is an HTTP API account (separate from trading users, which are
// keyed by their chat identity).
type APIUser struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
