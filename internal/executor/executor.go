// Package executor turns trade requests into venue submissions and drives
// them through receipt confirmation. It owns the policy gates (auto-buy
// switch, amount defaults) and the unit conversion between UI token
// amounts and raw base units.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"sniper-core/internal/events"
	"sniper-core/internal/intent"
	"sniper-core/internal/ledger"
	"sniper-core/internal/reconcile"
	"sniper-core/internal/settings"
	"sniper-core/pkg/cache"
	"sniper-core/pkg/db"
	"sniper-core/pkg/pump"
)

// ErrAutoBuyDisabled is returned when a buy is requested for a user whose
// effective settings have auto-buy switched off.
var ErrAutoBuyDisabled = errors.New("executor: auto-buy is disabled")

// TxFailedError reports a trade whose receipt came back as an explicit
// on-chain failure.
type TxFailedError struct {
	Signature string
	Reason    string
}

func (e *TxFailedError) Error() string {
	return fmt.Sprintf("transaction %s failed: %s", e.Signature, e.Reason)
}

// TxPendingError reports a trade that was submitted but could not be
// confirmed within the configured retry budget. The intent stays PENDING
// and the sweep will pick it up later.
type TxPendingError struct {
	Signature string
	Note      string
}

func (e *TxPendingError) Error() string {
	return fmt.Sprintf("transaction %s unconfirmed: %s", e.Signature, e.Note)
}

// Venue submits trades against the bonding curve.
type Venue interface {
	SubmitBuy(ctx context.Context, owner, mint string, solIn, slippagePct float64) (*pump.BuySubmission, error)
	SubmitSell(ctx context.Context, owner, mint string, tokensInRaw uint64) (*pump.SellSubmission, error)
}

// DecimalsSource resolves a mint's decimals on cache miss.
type DecimalsSource interface {
	GetMintDecimals(ctx context.Context, mint string) (int, error)
}

// Confirmer reconciles a submitted signature against its receipt.
type Confirmer interface {
	Confirm(ctx context.Context, userID, signature, mint, owner, side string, retries int, delay time.Duration) (*reconcile.Result, error)
}

// Wallets resolves a user's on-chain address.
type Wallets interface {
	Address(userID string) (string, error)
}

// Executor is the trade entry point used by the bridge, the monitor and
// the API.
type Executor struct {
	venue    Venue
	wallets  Wallets
	confirm  Confirmer
	intents  *intent.Tracker
	settings *settings.Service
	q        *db.Queries
	mints    *cache.MintCache
	dec      DecimalsSource
	bus      *events.Bus

	confirmRetries int
	confirmDelay   time.Duration
}

func New(venue Venue, wallets Wallets, confirm Confirmer, intents *intent.Tracker,
	svc *settings.Service, q *db.Queries, mints *cache.MintCache, dec DecimalsSource,
	bus *events.Bus, confirmRetries int, confirmDelay time.Duration) *Executor {
	if confirmRetries < 1 {
		confirmRetries = 1
	}
	return &Executor{
		venue:          venue,
		wallets:        wallets,
		confirm:        confirm,
		intents:        intents,
		settings:       svc,
		q:              q,
		mints:          mints,
		dec:            dec,
		bus:            bus,
		confirmRetries: confirmRetries,
		confirmDelay:   confirmDelay,
	}
}

// decimals resolves a mint's decimals through the cache, falling back to
// the chain. The second return reports whether the value is known.
func (e *Executor) decimals(ctx context.Context, mint string) (int, bool) {
	if d, ok := e.mints.Decimals(mint); ok {
		return d, true
	}
	d, err := e.dec.GetMintDecimals(ctx, mint)
	if err != nil {
		log.Printf("executor: decimals lookup for %s failed: %v", mint, err)
		return 0, false
	}
	e.mints.SetDecimals(mint, d)
	return d, true
}

// BuyRequest describes a buy. SOLAmount and SlippagePct fall back to the
// user's effective settings when zero. ForceBuy bypasses the auto-buy
// gate for manually requested trades.
type BuyRequest struct {
	UserID      string
	Mint        string
	ChannelID   int64
	SOLAmount   float64
	SlippagePct float64
	ForceBuy    bool
}

// SubmitBuy sends a buy to the venue and records the pending intent. It
// does not wait for confirmation.
func (e *Executor) SubmitBuy(ctx context.Context, req BuyRequest) (*pump.BuySubmission, error) {
	cfg, err := e.settings.Effective(ctx, req.UserID, req.ChannelID)
	if err != nil {
		return nil, err
	}
	if !cfg.AutoBuyEnabled && !req.ForceBuy {
		return nil, ErrAutoBuyDisabled
	}

	solIn := req.SOLAmount
	if solIn <= 0 {
		solIn = cfg.BuyAmountSOL
	}
	if solIn <= 0 {
		return nil, ledger.ErrInvalidAmount
	}
	slip := req.SlippagePct
	if slip <= 0 {
		slip = cfg.BuySlippagePct
	}

	owner, err := e.wallets.Address(req.UserID)
	if err != nil {
		return nil, err
	}

	sub, err := e.venue.SubmitBuy(ctx, owner, req.Mint, solIn, slip)
	if err != nil {
		return nil, err
	}

	// Requested tokens are informational only, so a failed decimals
	// lookup leaves them NULL rather than blocking the trade.
	var reqTokens *float64
	if d, ok := e.decimals(ctx, req.Mint); ok {
		t := float64(sub.TokensOutRaw) / math.Pow10(d)
		reqTokens = &t
	}
	if err := e.intents.Enqueue(ctx, req.UserID, req.Mint, db.SideBuy, sub.Signature, reqTokens, &solIn); err != nil {
		return nil, fmt.Errorf("record intent: %w", err)
	}

	e.publishSubmitted(req.UserID, req.Mint, db.SideBuy, sub.Signature, solIn, 0)
	log.Printf("executor: BUY submitted user=%s mint=%s sol=%.6f sig=%s", req.UserID, req.Mint, solIn, sub.Signature)
	return sub, nil
}

// SubmitSell sends a sell to the venue and records the pending intent.
// tokenAmount <= 0 liquidates the full position; a positive amount sells
// that many tokens and must fit inside the tracked balance. Decimals
// must be known to convert the amount into raw base units.
func (e *Executor) SubmitSell(ctx context.Context, userID, mint string, tokenAmount float64) (*pump.SellSubmission, error) {
	pos, err := e.q.GetPosition(userID, mint)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ledger.ErrNoOpenPosition
	}
	if err != nil {
		return nil, err
	}
	if !pos.Open || pos.TokenBalance <= 0 {
		return nil, ledger.ErrNoOpenPosition
	}

	if tokenAmount <= 0 {
		tokenAmount = pos.TokenBalance
	}
	if tokenAmount > pos.TokenBalance {
		return nil, fmt.Errorf("sell %s: %w: %.6f tokens requested, %.6f held",
			mint, ledger.ErrInsufficientBalance, tokenAmount, pos.TokenBalance)
	}

	d, ok := e.decimals(ctx, mint)
	if !ok {
		return nil, fmt.Errorf("sell %s: %w: unknown mint decimals", mint, ledger.ErrInvalidAmount)
	}
	raw := uint64(tokenAmount * math.Pow10(d))
	if raw == 0 {
		return nil, fmt.Errorf("sell %s: %w: amount rounds to zero base units", mint, ledger.ErrInvalidAmount)
	}

	owner, err := e.wallets.Address(userID)
	if err != nil {
		return nil, err
	}

	sub, err := e.venue.SubmitSell(ctx, owner, mint, raw)
	if err != nil {
		return nil, err
	}

	tokens := tokenAmount
	if err := e.intents.Enqueue(ctx, userID, mint, db.SideSell, sub.Signature, &tokens, nil); err != nil {
		return nil, fmt.Errorf("record intent: %w", err)
	}

	e.publishSubmitted(userID, mint, db.SideSell, sub.Signature, 0, tokens)
	log.Printf("executor: SELL submitted user=%s mint=%s tokens=%.6f sig=%s", userID, mint, tokens, sub.Signature)
	return sub, nil
}

// AutoBuy submits a buy and drives it through confirmation. When receipt
// confirmation is disabled in the user's settings the submission returns
// immediately with a nil result and the sweep settles the intent later.
func (e *Executor) AutoBuy(ctx context.Context, req BuyRequest) (*pump.BuySubmission, *reconcile.Result, error) {
	cfg, err := e.settings.Effective(ctx, req.UserID, req.ChannelID)
	if err != nil {
		return nil, nil, err
	}
	sub, err := e.SubmitBuy(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.ConfirmTxEnabled {
		return sub, nil, nil
	}
	res, err := e.settle(ctx, req.UserID, sub.Signature, req.Mint, sub.Owner, db.SideBuy)
	return sub, res, err
}

// AutoSell submits a full-position sell and drives it through
// confirmation.
func (e *Executor) AutoSell(ctx context.Context, userID, mint string) (*pump.SellSubmission, *reconcile.Result, error) {
	sub, err := e.SubmitSell(ctx, userID, mint, 0)
	if err != nil {
		return nil, nil, err
	}
	res, err := e.settle(ctx, userID, sub.Signature, mint, sub.Owner, db.SideSell)
	return sub, res, err
}

// settle confirms a submitted signature and maps non-success outcomes to
// typed errors.
func (e *Executor) settle(ctx context.Context, userID, signature, mint, owner, side string) (*reconcile.Result, error) {
	res, err := e.confirm.Confirm(ctx, userID, signature, mint, owner, side, e.confirmRetries, e.confirmDelay)
	if err != nil {
		return nil, err
	}
	switch res.Status {
	case db.StatusFailed:
		return res, &TxFailedError{Signature: signature, Reason: res.Note}
	case db.StatusPending:
		return res, &TxPendingError{Signature: signature, Note: res.Note}
	}
	return res, nil
}

func (e *Executor) publishSubmitted(userID, mint, side, signature string, sol, tokens float64) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(events.EventTradeSubmitted, events.TradePayload{
		UserID:    userID,
		Mint:      mint,
		Side:      side,
		Signature: signature,
		SOLAmount: sol,
		Tokens:    tokens,
	})
}
