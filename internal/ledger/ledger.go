// Package ledger owns the append-only trade log and the derived
// per-(user, mint) position aggregate. Pure bookkeeping, no network I/O.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"sniper-core/pkg/db"
)

var (
	ErrInvalidAmount       = errors.New("ledger: amounts must be positive")
	ErrInvalidSide         = errors.New("ledger: side must be BUY or SELL")
	ErrNoOpenPosition      = errors.New("ledger: no open position")
	ErrInsufficientBalance = errors.New("ledger: insufficient token balance")
)

// Epsilon below which a post-sell balance is treated as fully drained.
// Dust from float8 token math never keeps a position open.
const balanceEpsilon = 1e-9

// Ledger applies trades to positions atomically.
type Ledger struct {
	db *sql.DB
}

func New(database *db.Database) *Ledger {
	return &Ledger{db: database.DB}
}

// ApplyTrade records one buy or sell: inserts the Trade row and upserts
// the Position row in a single transaction, so both land or neither does.
//
// BUY moves the average entry to (totalSpent + solAmount) / newBalance.
// SELL leaves the average entry untouched and accrues realized PnL as
// proceeds - tokens*avgEntry; a balance within epsilon of zero snaps to
// exactly zero and closes the position.
func (l *Ledger) ApplyTrade(ctx context.Context, userID, mint, side string, tokenAmount, solAmount float64, txSig string) (*db.Position, error) {
	if tokenAmount <= 0 || solAmount <= 0 {
		return nil, ErrInvalidAmount
	}
	if side != db.SideBuy && side != db.SideSell {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSide, side)
	}
	if userID == "" {
		return nil, db.ErrUserIDRequired
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	pos, err := lockPosition(ctx, tx, userID, mint)
	if err != nil {
		return nil, err
	}

	switch side {
	case db.SideBuy:
		newBalance := pos.TokenBalance + tokenAmount
		pos.TotalSpentSOL += solAmount
		pos.AvgEntrySOL = pos.TotalSpentSOL / newBalance
		pos.TokenBalance = newBalance
		pos.Open = true
	case db.SideSell:
		if pos.TokenBalance <= 0 {
			return nil, ErrNoOpenPosition
		}
		if tokenAmount > pos.TokenBalance {
			return nil, fmt.Errorf("%w: sell %f > balance %f", ErrInsufficientBalance, tokenAmount, pos.TokenBalance)
		}
		pos.RealizedPnLSOL += solAmount - tokenAmount*pos.AvgEntrySOL
		pos.TotalReceivedSOL += solAmount
		pos.TokenBalance -= tokenAmount
		if pos.TokenBalance <= balanceEpsilon {
			pos.TokenBalance = 0
			pos.AvgEntrySOL = 0
			pos.Open = false
		}
	}

	if err := upsertPosition(ctx, tx, pos); err != nil {
		return nil, err
	}
	price := solAmount / tokenAmount
	if err := insertTrade(ctx, tx, userID, mint, side, tokenAmount, solAmount, price, txSig); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return pos, nil
}

// ReconcileBalance overwrites a position's token balance with a known-good
// on-chain value. It never touches the average entry or realized PnL and
// never fabricates Trade rows; it exists purely for drift correction when
// receipt deltas were unreliable.
func (l *Ledger) ReconcileBalance(ctx context.Context, userID, mint string, onchainBalance float64) (*db.Position, error) {
	if userID == "" {
		return nil, db.ErrUserIDRequired
	}
	if onchainBalance < 0 {
		return nil, ErrInvalidAmount
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	pos, err := lockPosition(ctx, tx, userID, mint)
	if err != nil {
		return nil, err
	}
	pos.TokenBalance = onchainBalance
	if onchainBalance <= balanceEpsilon {
		pos.TokenBalance = 0
		pos.Open = false
	} else {
		pos.Open = true
	}
	if err := upsertPosition(ctx, tx, pos); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return pos, nil
}

// lockPosition reads the position inside the transaction, returning a
// zero-valued row when none exists yet.
func lockPosition(ctx context.Context, tx *sql.Tx, userID, mint string) (*db.Position, error) {
	pos := &db.Position{UserID: userID, Mint: mint}
	err := tx.QueryRowContext(ctx, `SELECT id, token_balance, avg_entry_sol,
		total_spent_sol, total_received_sol, realized_pnl_sol, open
		FROM positions WHERE user_id = ? AND mint = ?`, userID, mint).Scan(
		&pos.ID, &pos.TokenBalance, &pos.AvgEntrySOL,
		&pos.TotalSpentSOL, &pos.TotalReceivedSOL, &pos.RealizedPnLSOL, &pos.Open)
	if errors.Is(err, sql.ErrNoRows) {
		return pos, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read position: %w", err)
	}
	return pos, nil
}

func upsertPosition(ctx context.Context, tx *sql.Tx, pos *db.Position) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO positions
		(user_id, mint, token_balance, avg_entry_sol, total_spent_sol,
		 total_received_sol, realized_pnl_sol, open, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, mint) DO UPDATE SET
		token_balance = excluded.token_balance,
		avg_entry_sol = excluded.avg_entry_sol,
		total_spent_sol = excluded.total_spent_sol,
		total_received_sol = excluded.total_received_sol,
		realized_pnl_sol = excluded.realized_pnl_sol,
		open = excluded.open,
		updated_at = CURRENT_TIMESTAMP`,
		pos.UserID, pos.Mint, pos.TokenBalance, pos.AvgEntrySOL,
		pos.TotalSpentSOL, pos.TotalReceivedSOL, pos.RealizedPnLSOL, pos.Open)
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	return nil
}

func insertTrade(ctx context.Context, tx *sql.Tx, userID, mint, side string, tokens, sol, price float64, txSig string) error {
	var sig any
	if txSig != "" {
		sig = txSig
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO trades
		(id, user_id, mint, side, token_amount, sol_amount, price_sol, tx_sig)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), userID, mint, side, tokens, sol, price, sig)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}
