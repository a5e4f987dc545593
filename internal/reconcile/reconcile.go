// Package reconcile resolves submitted transactions against the chain:
// it polls for the receipt, classifies the outcome, and commits terminal
// results to the ledger and the intent tracker.
//
// Ambiguity never escalates to FAILED here. A receipt that lags, or one
// with missing balance snapshots, resolves to PENDING and stays
// recoverable by the sweep; only an explicit on-chain error is terminal.
package reconcile

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
	"sniper-core/internal/poll"
	"sniper-core/pkg/db"
	"sniper-core/pkg/solana"
)

// Chain is the RPC surface the reconciler reads.
type Chain interface {
	GetTransaction(ctx context.Context, signature string) (*solana.TxReceipt, error)
	GetSignatureStatus(ctx context.Context, signature string) (*solana.SignatureStatus, error)
	GetTokenBalance(ctx context.Context, owner, mint string) (float64, error)
}

// Diagnostic notes attached to PENDING results.
const (
	NoteMissingDeltas  = "missing token deltas"
	NoteReceiptPending = "receipt pending"
	NoteNotFound       = "not found on-chain"
)

// Result is the outcome of one confirmation attempt.
type Result struct {
	Status      string
	Signature   string
	TokenAmount float64
	SOLAmount   float64
	Note        string
}

// Reconciler drives receipt confirmation and the standalone sweep.
type Reconciler struct {
	chain   Chain
	ledger  *ledger.Ledger
	intents *intent.Tracker
	q       *db.Queries
	bus     *events.Bus
	clock   poll.Clock
}

func New(chain Chain, l *ledger.Ledger, tr *intent.Tracker, q *db.Queries, bus *events.Bus) *Reconciler {
	return &Reconciler{
		chain:   chain,
		ledger:  l,
		intents: tr,
		q:       q,
		bus:     bus,
		clock:   poll.RealClock{},
	}
}

// SetClock swaps the polling clock; tests drive confirmation loops
// without wall-clock sleeps.
func (r *Reconciler) SetClock(c poll.Clock) { r.clock = c }

// receiptOutcome is what the bounded receipt poll produced.
type receiptOutcome struct {
	solDelta   *int64
	tokenDelta *float64
	failErr    string // explicit on-chain error; terminal
	note       string // PENDING diagnostic when not terminal
}

// waitForReceipt polls for the receipt up to retries times. It returns a
// terminal failure only when the chain itself reports an error; every
// ambiguous shape degrades to a PENDING note.
func (r *Reconciler) waitForReceipt(ctx context.Context, signature, owner, mint string, retries int, delay time.Duration) receiptOutcome {
	var out receiptOutcome
	confirmedSeen := false

	err := poll.Run(ctx, retries, delay, r.clock, func(ctx context.Context, attempt int) (poll.Outcome, error) {
		receipt, err := r.chain.GetTransaction(ctx, signature)
		switch {
		case err == nil:
			if receipt.Failed() {
				out.failErr = string(receipt.Meta.Err)
				return poll.Done, nil
			}
			sol, tok := receipt.ExtractDeltas(owner, mint)
			if sol != nil && tok != nil {
				out.solDelta, out.tokenDelta = sol, tok
				return poll.Done, nil
			}
			// Receipt landed without an error but the snapshots are
			// incomplete; hand over to the same-amount fallback.
			out.solDelta = sol
			out.note = NoteMissingDeltas
			return poll.Done, nil
		case errors.Is(err, solana.ErrTxNotFound):
			status, serr := r.chain.GetSignatureStatus(ctx, signature)
			if serr == nil && status != nil {
				if len(status.Err) > 0 && string(status.Err) != "null" {
					out.failErr = string(status.Err)
					return poll.Done, nil
				}
				if status.ConfirmationStatus == "processed" || status.Confirmed() {
					confirmedSeen = true
				}
			}
			return poll.Continue, nil
		default:
			// RPC hiccup; retry.
			return poll.Continue, nil
		}
	})
	if err != nil && out.failErr == "" && out.note == "" {
		if confirmedSeen {
			out.note = NoteReceiptPending
		} else {
			out.note = NoteNotFound
		}
	}
	return out
}

// Confirm resolves one submitted transaction. retries/delay bound the
// receipt poll. The stored intent's terminal status gates re-application:
// once SUCCESS, a repeated Confirm returns without touching the ledger.
func (r *Reconciler) Confirm(ctx context.Context, userID, signature, mint, owner, side string, retries int, delay time.Duration) (*Result, error) {
	if side != db.SideBuy && side != db.SideSell {
		return nil, fmt.Errorf("reconcile: side must be BUY or SELL, got %q", side)
	}

	if prior, err := r.intents.Get(ctx, signature); err == nil && prior.Status == db.StatusSuccess {
		return &Result{
			Status:      db.StatusSuccess,
			Signature:   signature,
			TokenAmount: prior.ActualTokenAmount.Float64,
			SOLAmount:   prior.ActualSOLAmount.Float64,
		}, nil
	}

	out := r.waitForReceipt(ctx, signature, owner, mint, retries, delay)

	switch {
	case out.failErr != "":
		if err := r.intents.Resolve(ctx, signature, db.StatusFailed, nil, nil, out.failErr); err != nil {
			log.Printf("reconcile: resolve FAILED %s: %v", signature, err)
		}
		r.publish(events.EventTradeFailed, userID, mint, side, signature, 0, 0, out.failErr)
		return &Result{Status: db.StatusFailed, Signature: signature, Note: out.failErr}, nil

	case out.note == NoteMissingDeltas:
		return r.confirmWithFallback(ctx, userID, signature, mint, owner, side, out.solDelta)

	case out.note != "":
		return &Result{Status: db.StatusPending, Signature: signature, Note: out.note}, nil
	}

	solAmount := math.Abs(float64(*out.solDelta)) / solana.LamportsPerSOL
	tokenAmount := math.Abs(*out.tokenDelta)
	return r.commitSuccess(ctx, userID, signature, mint, owner, side, tokenAmount, solAmount, true)
}

// confirmWithFallback handles a receipt with no error but incomplete
// balance snapshots. The fill amount comes from diffing the live on-chain
// balance against the last tracked position balance; the settlement
// amount for a BUY falls back to the requested SOL. The requested-amount
// approximation is a documented tolerance: the true fill may differ.
func (r *Reconciler) confirmWithFallback(ctx context.Context, userID, signature, mint, owner, side string, solDelta *int64) (*Result, error) {
	var solAmount float64
	if solDelta != nil {
		solAmount = math.Abs(float64(*solDelta)) / solana.LamportsPerSOL
	}
	pending, perr := r.intents.Get(ctx, signature)
	if side == db.SideBuy && perr == nil && pending.RequestedSOLAmount.Valid {
		solAmount = pending.RequestedSOLAmount.Float64
	}

	var tokenAmount float64
	if onchain, err := r.chain.GetTokenBalance(ctx, owner, mint); err == nil {
		var prevBal float64
		if pos, err := r.q.GetPosition(userID, mint); err == nil {
			prevBal = pos.TokenBalance
		}
		delta := onchain - prevBal
		if side == db.SideSell {
			delta = prevBal - onchain
		}
		if delta > 0 {
			tokenAmount = delta
		}
	}
	if tokenAmount == 0 && perr == nil && pending.RequestedTokenAmount.Valid {
		tokenAmount = pending.RequestedTokenAmount.Float64
	}

	if solAmount > 0 && tokenAmount > 0 {
		return r.commitSuccess(ctx, userID, signature, mint, owner, side, tokenAmount, solAmount, false)
	}
	return &Result{Status: db.StatusPending, Signature: signature, Note: NoteMissingDeltas}, nil
}

// commitSuccess applies the trade and resolves the intent. When the
// receipt deltas were authoritative, the tracked balance is additionally
// snapped to the live on-chain balance (best effort).
func (r *Reconciler) commitSuccess(ctx context.Context, userID, signature, mint, owner, side string, tokenAmount, solAmount float64, snapBalance bool) (*Result, error) {
	pos, err := r.ledger.ApplyTrade(ctx, userID, mint, side, tokenAmount, solAmount, signature)
	if err != nil {
		// An apply failure must not flip the intent to FAILED: the chain
		// says the trade landed. Leave it PENDING for the sweep.
		log.Printf("reconcile: apply %s %s for %s: %v", side, mint, userID, err)
		return &Result{Status: db.StatusPending, Signature: signature, Note: err.Error()}, nil
	}
	if err := r.intents.Resolve(ctx, signature, db.StatusSuccess, &tokenAmount, &solAmount, ""); err != nil {
		log.Printf("reconcile: resolve SUCCESS %s: %v", signature, err)
	}

	if snapBalance {
		if onchain, err := r.chain.GetTokenBalance(ctx, owner, mint); err == nil {
			if snapped, err := r.ledger.ReconcileBalance(ctx, userID, mint, onchain); err == nil {
				pos = snapped
			}
		}
	}

	r.publish(events.EventTradeConfirmed, userID, mint, side, signature, solAmount, tokenAmount, "")
	if r.bus != nil {
		r.bus.Publish(events.EventPositionChange, events.PositionPayload{
			UserID:       userID,
			Mint:         mint,
			TokenBalance: pos.TokenBalance,
			RealizedPnL:  pos.RealizedPnLSOL,
			Open:         pos.Open,
		})
	}
	return &Result{
		Status:      db.StatusSuccess,
		Signature:   signature,
		TokenAmount: tokenAmount,
		SOLAmount:   solAmount,
	}, nil
}

func (r *Reconciler) publish(e events.Event, userID, mint, side, signature string, sol, tokens float64, errMsg string) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(e, events.TradePayload{
		UserID:    userID,
		Mint:      mint,
		Side:      side,
		Signature: signature,
		SOLAmount: sol,
		Tokens:    tokens,
		Error:     errMsg,
	})
}

// Sweep re-runs classification over stored intents, oldest first. It is
// what lets a trade confirm after the submitting process has exited.
// Each intent gets a single receipt fetch; still-ambiguous intents stay
// PENDING for the next pass.
func (r *Reconciler) Sweep(ctx context.Context, status string, limit int) (resolved int, err error) {
	if status == "" {
		status = db.StatusPending
	}
	intents, err := r.intents.List(ctx, status, limit)
	if err != nil {
		return 0, fmt.Errorf("sweep list: %w", err)
	}
	for _, it := range intents {
		if err := ctx.Err(); err != nil {
			return resolved, err
		}
		owner, err := r.q.GetWallet(it.UserID)
		if err != nil {
			log.Printf("reconcile: sweep %s: no wallet for user %s", it.Signature, it.UserID)
			continue
		}
		res, err := r.Confirm(ctx, it.UserID, it.Signature, it.Mint, owner, it.Side, 1, 0)
		if err != nil {
			log.Printf("reconcile: sweep %s: %v", it.Signature, err)
			continue
		}
		if res.Status != db.StatusPending {
			resolved++
		}
	}
	return resolved, nil
}
