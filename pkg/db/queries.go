package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUserIDRequired is returned when a user-scoped query is called
	// with an empty user id.
	ErrUserIDRequired = errors.New("db: user id required")

	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("db: not found")
)

// Queries is the data-access layer. Every user-scoped method takes the
// user id explicitly so callers can never leak across accounts.
type Queries struct {
	db *sql.DB
}

func NewQueries(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// --- users / wallets ------------------------------------------------------

// EnsureUser inserts the user row if it does not exist yet.
func (q *Queries) EnsureUser(userID string) error {
	if userID == "" {
		return ErrUserIDRequired
	}
	_, err := q.db.Exec(`INSERT INTO users (id) VALUES (?)
		ON CONFLICT(id) DO NOTHING`, userID)
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

func (q *Queries) SetWallet(userID, pubkey string) error {
	if userID == "" {
		return ErrUserIDRequired
	}
	_, err := q.db.Exec(`INSERT INTO wallets (user_id, pubkey, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET pubkey = excluded.pubkey, updated_at = CURRENT_TIMESTAMP`,
		userID, pubkey)
	if err != nil {
		return fmt.Errorf("set wallet: %w", err)
	}
	return nil
}

// GetWallet returns the user's wallet pubkey, or ErrNotFound when none is
// registered.
func (q *Queries) GetWallet(userID string) (string, error) {
	if userID == "" {
		return "", ErrUserIDRequired
	}
	var pubkey string
	err := q.db.QueryRow(`SELECT pubkey FROM wallets WHERE user_id = ?`, userID).Scan(&pubkey)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get wallet: %w", err)
	}
	return pubkey, nil
}

// SetTelegramChatID links the user to the Telegram chat that receives
// their notifications.
func (q *Queries) SetTelegramChatID(userID string, chatID int64) error {
	if userID == "" {
		return ErrUserIDRequired
	}
	_, err := q.db.Exec(`UPDATE users SET telegram_chat_id = ? WHERE id = ?`, chatID, userID)
	if err != nil {
		return fmt.Errorf("set telegram chat id: %w", err)
	}
	return nil
}

// GetTelegramChatID returns the user's notification chat, or ErrNotFound
// when the user never linked one.
func (q *Queries) GetTelegramChatID(userID string) (int64, error) {
	if userID == "" {
		return 0, ErrUserIDRequired
	}
	var chatID sql.NullInt64
	err := q.db.QueryRow(`SELECT telegram_chat_id FROM users WHERE id = ?`, userID).Scan(&chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get telegram chat id: %w", err)
	}
	if !chatID.Valid {
		return 0, ErrNotFound
	}
	return chatID.Int64, nil
}

// --- channels / subscriptions --------------------------------------------

// UpsertChannel registers a source channel by its chat id.
func (q *Queries) UpsertChannel(channelID int64, handle string) error {
	_, err := q.db.Exec(`INSERT INTO channels (id, handle) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET handle = excluded.handle`, channelID, handle)
	if err != nil {
		return fmt.Errorf("upsert channel: %w", err)
	}
	return nil
}

func (q *Queries) Subscribe(userID string, channelID int64) error {
	if userID == "" {
		return ErrUserIDRequired
	}
	_, err := q.db.Exec(`INSERT INTO subscriptions (user_id, channel_id, status)
		VALUES (?, ?, 'ACTIVE')
		ON CONFLICT(user_id, channel_id) DO UPDATE SET status = 'ACTIVE'`, userID, channelID)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

func (q *Queries) Unsubscribe(userID string, channelID int64) error {
	if userID == "" {
		return ErrUserIDRequired
	}
	_, err := q.db.Exec(`UPDATE subscriptions SET status = 'PAUSED'
		WHERE user_id = ? AND channel_id = ?`, userID, channelID)
	if err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	return nil
}

// ActiveSubscribers returns the user ids actively subscribed to a channel.
func (q *Queries) ActiveSubscribers(channelID int64) ([]string, error) {
	rows, err := q.db.Query(`SELECT user_id FROM subscriptions
		WHERE channel_id = ? AND status = 'ACTIVE' ORDER BY user_id`, channelID)
	if err != nil {
		return nil, fmt.Errorf("active subscribers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// --- messages / signals ---------------------------------------------------

// ErrDuplicateMessage is returned when a (channel, source message) pair has
// already been recorded; callers skip reprocessing such messages.
var ErrDuplicateMessage = errors.New("db: duplicate message")

// InsertMessage records a raw channel message and returns its row id.
func (q *Queries) InsertMessage(channelID, sourceMessageID int64, text string) (int64, error) {
	res, err := q.db.Exec(`INSERT INTO messages (channel_id, source_message_id, text)
		VALUES (?, ?, ?) ON CONFLICT(channel_id, source_message_id) DO NOTHING`,
		channelID, sourceMessageID, text)
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return 0, ErrDuplicateMessage
	}
	return res.LastInsertId()
}

func (q *Queries) InsertSignal(channelID, messageID int64, mint string, confidence int) (int64, error) {
	res, err := q.db.Exec(`INSERT INTO signals (channel_id, message_id, mint, confidence)
		VALUES (?, ?, ?, ?)`, channelID, messageID, mint, confidence)
	if err != nil {
		return 0, fmt.Errorf("insert signal: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) RecentSignals(limit int) ([]Signal, error) {
	rows, err := q.db.Query(`SELECT id, channel_id, message_id, mint, confidence, created_at
		FROM signals ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent signals: %w", err)
	}
	defer rows.Close()

	var out []Signal
	for rows.Next() {
		var s Signal
		if err := rows.Scan(&s.ID, &s.ChannelID, &s.MessageID, &s.Mint, &s.Confidence, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// --- settings -------------------------------------------------------------

// EnsureSettings creates the default settings row for the user if missing.
// Defaults live in the schema so a fresh row carries them.
func (q *Queries) EnsureSettings(userID string) error {
	if userID == "" {
		return ErrUserIDRequired
	}
	_, err := q.db.Exec(`INSERT INTO user_settings (user_id) VALUES (?)
		ON CONFLICT(user_id) DO NOTHING`, userID)
	if err != nil {
		return fmt.Errorf("ensure settings: %w", err)
	}
	return nil
}

func (q *Queries) GetSettings(userID string) (*UserSettings, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	if err := q.EnsureSettings(userID); err != nil {
		return nil, err
	}
	s := &UserSettings{UserID: userID}
	err := q.db.QueryRow(`SELECT auto_buy_enabled, buy_amount_sol, buy_slippage_pct,
		sell_slippage_pct, tp_sl_enabled, take_profit_pct, stop_loss_pct,
		duplicate_mint_block, confirm_tx_enabled, cooldown_seconds,
		max_trades_per_day, updated_at
		FROM user_settings WHERE user_id = ?`, userID).Scan(
		&s.AutoBuyEnabled, &s.BuyAmountSOL, &s.BuySlippagePct,
		&s.SellSlippagePct, &s.TPSLEnabled, &s.TakeProfitPct, &s.StopLossPct,
		&s.DuplicateMintBlock, &s.ConfirmTxEnabled, &s.CooldownSeconds,
		&s.MaxTradesPerDay, &s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return s, nil
}

func (q *Queries) UpdateSettings(s *UserSettings) error {
	if s.UserID == "" {
		return ErrUserIDRequired
	}
	if err := q.EnsureSettings(s.UserID); err != nil {
		return err
	}
	_, err := q.db.Exec(`UPDATE user_settings SET
		auto_buy_enabled = ?, buy_amount_sol = ?, buy_slippage_pct = ?,
		sell_slippage_pct = ?, tp_sl_enabled = ?, take_profit_pct = ?,
		stop_loss_pct = ?, duplicate_mint_block = ?, confirm_tx_enabled = ?,
		cooldown_seconds = ?, max_trades_per_day = ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ?`,
		s.AutoBuyEnabled, s.BuyAmountSOL, s.BuySlippagePct,
		s.SellSlippagePct, s.TPSLEnabled, s.TakeProfitPct,
		s.StopLossPct, s.DuplicateMintBlock, s.ConfirmTxEnabled,
		s.CooldownSeconds, s.MaxTradesPerDay, s.UserID)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return nil
}

// GetChannelSettings returns the per-channel override row, or ErrNotFound
// when the user has no overrides for the channel.
func (q *Queries) GetChannelSettings(userID string, channelID int64) (*ChannelSettings, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	cs := &ChannelSettings{UserID: userID, ChannelID: channelID}
	err := q.db.QueryRow(`SELECT auto_buy_enabled, buy_amount_sol, buy_slippage_pct,
		sell_slippage_pct, tp_sl_enabled, take_profit_pct, stop_loss_pct, confirm_tx_enabled
		FROM channel_settings WHERE user_id = ? AND channel_id = ?`, userID, channelID).Scan(
		&cs.AutoBuyEnabled, &cs.BuyAmountSOL, &cs.BuySlippagePct,
		&cs.SellSlippagePct, &cs.TPSLEnabled, &cs.TakeProfitPct,
		&cs.StopLossPct, &cs.ConfirmTxEnabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get channel settings: %w", err)
	}
	return cs, nil
}

func (q *Queries) UpsertChannelSettings(cs *ChannelSettings) error {
	if cs.UserID == "" {
		return ErrUserIDRequired
	}
	_, err := q.db.Exec(`INSERT INTO channel_settings (user_id, channel_id,
		auto_buy_enabled, buy_amount_sol, buy_slippage_pct, sell_slippage_pct,
		tp_sl_enabled, take_profit_pct, stop_loss_pct, confirm_tx_enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, channel_id) DO UPDATE SET
		auto_buy_enabled = excluded.auto_buy_enabled,
		buy_amount_sol = excluded.buy_amount_sol,
		buy_slippage_pct = excluded.buy_slippage_pct,
		sell_slippage_pct = excluded.sell_slippage_pct,
		tp_sl_enabled = excluded.tp_sl_enabled,
		take_profit_pct = excluded.take_profit_pct,
		stop_loss_pct = excluded.stop_loss_pct,
		confirm_tx_enabled = excluded.confirm_tx_enabled`,
		cs.UserID, cs.ChannelID,
		cs.AutoBuyEnabled, cs.BuyAmountSOL, cs.BuySlippagePct, cs.SellSlippagePct,
		cs.TPSLEnabled, cs.TakeProfitPct, cs.StopLossPct, cs.ConfirmTxEnabled)
	if err != nil {
		return fmt.Errorf("upsert channel settings: %w", err)
	}
	return nil
}

// --- positions ------------------------------------------------------------

func (q *Queries) GetPosition(userID, mint string) (*Position, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	p := &Position{}
	err := q.db.QueryRow(`SELECT id, user_id, mint, token_balance, avg_entry_sol,
		total_spent_sol, total_received_sol, realized_pnl_sol, open, created_at, updated_at
		FROM positions WHERE user_id = ? AND mint = ?`, userID, mint).Scan(
		&p.ID, &p.UserID, &p.Mint, &p.TokenBalance, &p.AvgEntrySOL,
		&p.TotalSpentSOL, &p.TotalReceivedSOL, &p.RealizedPnLSOL, &p.Open,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get position: %w", err)
	}
	return p, nil
}

func (q *Queries) ListPositions(userID string, openOnly bool) ([]Position, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	query := `SELECT id, user_id, mint, token_balance, avg_entry_sol,
		total_spent_sol, total_received_sol, realized_pnl_sol, open, created_at, updated_at
		FROM positions WHERE user_id = ?`
	if openOnly {
		query += ` AND open = 1`
	}
	query += ` ORDER BY updated_at DESC`
	rows, err := q.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()
	return scanPositions(rows)
}

// ListOpenPositionsAll returns every open position across users, for the
// profit monitor sweep.
func (q *Queries) ListOpenPositionsAll() ([]Position, error) {
	rows, err := q.db.Query(`SELECT id, user_id, mint, token_balance, avg_entry_sol,
		total_spent_sol, total_received_sol, realized_pnl_sol, open, created_at, updated_at
		FROM positions WHERE open = 1 ORDER BY user_id, mint`)
	if err != nil {
		return nil, fmt.Errorf("list open positions: %w", err)
	}
	defer rows.Close()
	return scanPositions(rows)
}

func scanPositions(rows *sql.Rows) ([]Position, error) {
	var out []Position
	for rows.Next() {
		var p Position
		if err := rows.Scan(&p.ID, &p.UserID, &p.Mint, &p.TokenBalance, &p.AvgEntrySOL,
			&p.TotalSpentSOL, &p.TotalReceivedSOL, &p.RealizedPnLSOL, &p.Open,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// --- trades ---------------------------------------------------------------

func (q *Queries) ListTrades(userID string, limit int) ([]Trade, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := q.db.Query(`SELECT id, user_id, mint, side, token_amount, sol_amount,
		price_sol, COALESCE(tx_sig, ''), created_at
		FROM trades WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	var out []Trade
	for rows.Next() {
		var t Trade
		if err := rows.Scan(&t.ID, &t.UserID, &t.Mint, &t.Side, &t.TokenAmount,
			&t.SOLAmount, &t.PriceSOL, &t.TxSig, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TradesToday counts buys the user applied since UTC midnight, for the
// daily trade cap. created_at rows are written in UTC, so the window
// boundary must be UTC too.
func (q *Queries) TradesToday(userID string) (int, error) {
	if userID == "" {
		return 0, ErrUserIDRequired
	}
	var n int
	err := q.db.QueryRow(`SELECT COUNT(*) FROM trades
		WHERE user_id = ? AND side = 'BUY' AND created_at >= date('now')`,
		userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("trades today: %w", err)
	}
	return n, nil
}

// LastBuyAt returns the time of the user's most recent buy on any mint, for
// the cooldown gate. ErrNotFound means the user has never bought.
func (q *Queries) LastBuyAt(userID string) (time.Time, error) {
	if userID == "" {
		return time.Time{}, ErrUserIDRequired
	}
	var ts time.Time
	err := q.db.QueryRow(`SELECT created_at FROM trades
		WHERE user_id = ? AND side = 'BUY' ORDER BY created_at DESC, id DESC LIMIT 1`,
		userID).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("last buy: %w", err)
	}
	return ts, nil
}

// --- pending trades -------------------------------------------------------

func (q *Queries) GetPendingTrade(signature string) (*PendingTrade, error) {
	pt := &PendingTrade{}
	err := q.db.QueryRow(`SELECT signature, user_id, mint, side,
		requested_token_amount, requested_sol_amount, actual_token_amount,
		actual_sol_amount, status, error, created_at, updated_at
		FROM pending_trades WHERE signature = ?`, signature).Scan(
		&pt.Signature, &pt.UserID, &pt.Mint, &pt.Side,
		&pt.RequestedTokenAmount, &pt.RequestedSOLAmount, &pt.ActualTokenAmount,
		&pt.ActualSOLAmount, &pt.Status, &pt.Error, &pt.CreatedAt, &pt.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pending trade: %w", err)
	}
	return pt, nil
}

// ListPendingTrades returns intents oldest-first, optionally filtered by
// status. An empty status means all statuses. limit <= 0 means no limit.
func (q *Queries) ListPendingTrades(userID, status string, limit int) ([]PendingTrade, error) {
	query := `SELECT signature, user_id, mint, side,
		requested_token_amount, requested_sol_amount, actual_token_amount,
		actual_sol_amount, status, error, created_at, updated_at
		FROM pending_trades WHERE 1=1`
	var args []any
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := q.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending trades: %w", err)
	}
	defer rows.Close()

	var out []PendingTrade
	for rows.Next() {
		var pt PendingTrade
		if err := rows.Scan(&pt.Signature, &pt.UserID, &pt.Mint, &pt.Side,
			&pt.RequestedTokenAmount, &pt.RequestedSOLAmount, &pt.ActualTokenAmount,
			&pt.ActualSOLAmount, &pt.Status, &pt.Error, &pt.CreatedAt, &pt.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, pt)
	}
	return out, rows.Err()
}

// UpsertPendingTrade records a new intent or replaces an existing row with
// the same signature (resubmission keeps the latest requested amounts).
func (q *Queries) UpsertPendingTrade(pt *PendingTrade) error {
	if pt.UserID == "" {
		return ErrUserIDRequired
	}
	status := pt.Status
	if status == "" {
		status = StatusPending
	}
	_, err := q.db.Exec(`INSERT INTO pending_trades (signature, user_id, mint, side,
		requested_token_amount, requested_sol_amount, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(signature) DO UPDATE SET
		user_id = excluded.user_id, mint = excluded.mint, side = excluded.side,
		requested_token_amount = excluded.requested_token_amount,
		requested_sol_amount = excluded.requested_sol_amount,
		status = excluded.status, updated_at = CURRENT_TIMESTAMP`,
		pt.Signature, pt.UserID, pt.Mint, pt.Side,
		pt.RequestedTokenAmount, pt.RequestedSOLAmount, status)
	if err != nil {
		return fmt.Errorf("upsert pending trade: %w", err)
	}
	return nil
}

// ResolvePendingTrade sets the terminal status and observed amounts for an
// intent. Last write wins.
func (q *Queries) ResolvePendingTrade(signature, status string, actualToken, actualSOL sql.NullFloat64, errMsg string) error {
	var e sql.NullString
	if errMsg != "" {
		e = sql.NullString{String: errMsg, Valid: true}
	}
	_, err := q.db.Exec(`UPDATE pending_trades SET status = ?,
		actual_token_amount = ?, actual_sol_amount = ?, error = ?,
		updated_at = CURRENT_TIMESTAMP WHERE signature = ?`,
		status, actualToken, actualSOL, e, signature)
	if err != nil {
		return fmt.Errorf("resolve pending trade: %w", err)
	}
	return nil
}

// --- heartbeat ------------------------------------------------------------

// TouchHeartbeat upserts the listener liveness row for this instance.
func (q *Queries) TouchHeartbeat(instanceID string) error {
	_, err := q.db.Exec(`INSERT INTO listener_heartbeat (instance_id, updated_at)
		VALUES (?, CURRENT_TIMESTAMP)
		ON CONFLICT(instance_id) DO UPDATE SET updated_at = CURRENT_TIMESTAMP`, instanceID)
	if err != nil {
		return fmt.Errorf("touch heartbeat: %w", err)
	}
	return nil
}

// --- api users ------------------------------------------------------------

func (q *Queries) CreateAPIUser(id, email, passwordHash string) error {
	_, err := q.db.Exec(`INSERT INTO api_users (id, email, password_hash)
		VALUES (?, ?, ?)`, id, email, passwordHash)
	if err != nil {
		return fmt.Errorf("create api user: %w", err)
	}
	return nil
}

func (q *Queries) GetAPIUserByEmail(email string) (*APIUser, error) {
	u := &APIUser{}
	err := q.db.QueryRow(`SELECT id, email, password_hash, created_at, updated_at
		FROM api_users WHERE email = ?`, email).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get api user: %w", err)
	}
	return u, nil
}
