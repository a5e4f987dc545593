// Package intent records every submitted transaction as a pending intent
// keyed by its signature, until the reconciler resolves a terminal status.
package intent

import (
	"context"
	"database/sql"

	"sniper-core/pkg/db"
)

// Tracker is the pending-intent store. Creation belongs to the executor,
// resolution to the reconciler; everyone else reads snapshots.
type Tracker struct {
	q *db.Queries
}

func NewTracker(q *db.Queries) *Tracker {
	return &Tracker{q: q}
}

// Enqueue upserts an intent keyed by signature. Re-enqueueing the same
// signature replaces the requested amounts without duplicating the row.
// Nil requested amounts stay NULL, meaning "unknown", not zero.
func (t *Tracker) Enqueue(ctx context.Context, userID, mint, side, signature string, requestedTokens, requestedSOL *float64) error {
	pt := &db.PendingTrade{
		Signature: signature,
		UserID:    userID,
		Mint:      mint,
		Side:      side,
		Status:    db.StatusPending,
	}
	if requestedTokens != nil {
		pt.RequestedTokenAmount = sql.NullFloat64{Float64: *requestedTokens, Valid: true}
	}
	if requestedSOL != nil {
		pt.RequestedSOLAmount = sql.NullFloat64{Float64: *requestedSOL, Valid: true}
	}
	return t.q.UpsertPendingTrade(pt)
}

// Resolve writes a status and the observed amounts. Last write wins;
// callers gate on the stored status before re-applying ledger effects.
func (t *Tracker) Resolve(ctx context.Context, signature, status string, actualTokens, actualSOL *float64, errMsg string) error {
	var at, as sql.NullFloat64
	if actualTokens != nil {
		at = sql.NullFloat64{Float64: *actualTokens, Valid: true}
	}
	if actualSOL != nil {
		as = sql.NullFloat64{Float64: *actualSOL, Valid: true}
	}
	return t.q.ResolvePendingTrade(signature, status, at, as, errMsg)
}

// Get returns the intent for a signature, or db.ErrNotFound.
func (t *Tracker) Get(ctx context.Context, signature string) (*db.PendingTrade, error) {
	return t.q.GetPendingTrade(signature)
}

// List returns intents oldest-first, optionally filtered by status.
func (t *Tracker) List(ctx context.Context, status string, limit int) ([]db.PendingTrade, error) {
	return t.q.ListPendingTrades("", status, limit)
}

// ListForUser returns one user's intents oldest-first.
func (t *Tracker) ListForUser(ctx context.Context, userID, status string, limit int) ([]db.PendingTrade, error) {
	return t.q.ListPendingTrades(userID, status, limit)
}
