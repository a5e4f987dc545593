package events

import "time"

// Event enumerates high-level topics inside the sniper core.
type Event string

const (
	EventSignalDetected Event = "signal.detected"
	EventTradeSubmitted Event = "trade.submitted"
	EventTradeConfirmed Event = "trade.confirmed"
	EventTradeFailed    Event = "trade.failed"
	EventPositionChange Event = "position.change"
	EventStopTriggered  Event = "stop.triggered"
	EventPriceTick      Event = "price.tick"
)

// SignalPayload announces a mint detected in a channel message.
type SignalPayload struct {
	ChannelID  int64     `json:"channel_id"`
	Mint       string    `json:"mint"`
	Confidence int       `json:"confidence"`
	At         time.Time `json:"at"`
}

// TradePayload carries a lifecycle update for a submitted trade.
type TradePayload struct {
	UserID    string  `json:"user_id"`
	Mint      string  `json:"mint"`
	Side      string  `json:"side"`
	Signature string  `json:"signature"`
	SOLAmount float64 `json:"sol_amount,omitempty"`
	Tokens    float64 `json:"tokens,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// PositionPayload carries the position state after a ledger apply.
type PositionPayload struct {
	UserID       string  `json:"user_id"`
	Mint         string  `json:"mint"`
	TokenBalance float64 `json:"token_balance"`
	RealizedPnL  float64 `json:"realized_pnl_sol"`
	Open         bool    `json:"open"`
}

// PricePayload is a fresh curve price observation for a mint.
type PricePayload struct {
	Mint     string    `json:"mint"`
	PriceSOL float64   `json:"price_sol"`
	At       time.Time `json:"at"`
}

// StopPayload announces a take-profit or stop-loss trigger.
type StopPayload struct {
	UserID    string  `json:"user_id"`
	Mint      string  `json:"mint"`
	Kind      string  `json:"kind"` // "take_profit" or "stop_loss"
	Price     float64 `json:"price"`
	AvgEntry  float64 `json:"avg_entry_sol"`
	ChangePct float64 `json:"change_pct"`
}
