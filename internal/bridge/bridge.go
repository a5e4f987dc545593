// Package bridge turns chat messages into trades: it persists channel
// messages, detects mint addresses, and fans each signal out to the
// channel's active subscribers as policy-gated auto-buys.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/denisbrodbeck/machineid"

	"sniper-core/internal/events"
	"sniper-core/internal/executor"
	"sniper-core/internal/ledger"
	"sniper-core/internal/notify"
	"sniper-core/internal/poll"
	"sniper-core/internal/reconcile"
	"sniper-core/internal/settings"
	"sniper-core/pkg/db"
	"sniper-core/pkg/pump"
)

// Trader submits buys. Satisfied by *executor.Executor.
type Trader interface {
	SubmitBuy(ctx context.Context, req executor.BuyRequest) (*pump.BuySubmission, error)
}

// Confirmer drives a submitted signature to an outcome. Satisfied by
// *reconcile.Reconciler.
type Confirmer interface {
	Confirm(ctx context.Context, userID, signature, mint, owner, side string, retries int, delay time.Duration) (*reconcile.Result, error)
}

// BalanceSource reads a live on-chain token balance for the stall
// fallback.
type BalanceSource interface {
	GetTokenBalance(ctx context.Context, owner, mint string) (float64, error)
}

// Bridge wires signal detection to the trade path. Each subscriber buy
// runs on its own goroutine so one slow RPC never blocks message
// ingestion.
type Bridge struct {
	q        *db.Queries
	settings *settings.Service
	trader   Trader
	confirm  Confirmer
	ledger   *ledger.Ledger
	chain    BalanceSource
	notifier notify.Notifier
	bus      *events.Bus
	clock    poll.Clock

	confirmAttempts int
	confirmDelay    time.Duration

	wg sync.WaitGroup
}

func New(q *db.Queries, svc *settings.Service, trader Trader, confirm Confirmer,
	l *ledger.Ledger, chain BalanceSource, notifier notify.Notifier, bus *events.Bus) *Bridge {
	return &Bridge{
		q:               q,
		settings:        svc,
		trader:          trader,
		confirm:         confirm,
		ledger:          l,
		chain:           chain,
		notifier:        notifier,
		bus:             bus,
		clock:           poll.RealClock{},
		confirmAttempts: 20,
		confirmDelay:    2 * time.Second,
	}
}

// SetClock replaces the confirm-loop sleeper, for tests.
func (b *Bridge) SetClock(c poll.Clock) { b.clock = c }

// Wait blocks until all in-flight subscriber buys finish.
func (b *Bridge) Wait() { b.wg.Wait() }

// HandleMessage records an incoming channel message and fans detected
// mints out to active subscribers. Re-delivered messages are dropped by
// the (channel, source message) unique key.
func (b *Bridge) HandleMessage(ctx context.Context, channelID int64, handle string, sourceMessageID int64, text string) error {
	if err := b.q.UpsertChannel(channelID, handle); err != nil {
		return err
	}
	msgID, err := b.q.InsertMessage(channelID, sourceMessageID, text)
	if errors.Is(err, db.ErrDuplicateMessage) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, dm := range DetectMints(text) {
		log.Printf("bridge: detected mint=%s confidence=%d channel=%d", dm.Mint, dm.Confidence, channelID)
		if _, err := b.q.InsertSignal(channelID, msgID, dm.Mint, dm.Confidence); err != nil {
			log.Printf("bridge: record signal %s: %v", dm.Mint, err)
		}
		if b.bus != nil {
			b.bus.Publish(events.EventSignalDetected, events.SignalPayload{
				ChannelID:  channelID,
				Mint:       dm.Mint,
				Confidence: dm.Confidence,
				At:         time.Now(),
			})
		}

		users, err := b.q.ActiveSubscribers(channelID)
		if err != nil {
			log.Printf("bridge: subscribers for channel %d: %v", channelID, err)
			continue
		}
		// The caller's context is request-scoped and dies when ingestion
		// returns. Buys and their confirm loops must outlive it.
		buyCtx := context.WithoutCancel(ctx)
		for _, userID := range users {
			b.wg.Add(1)
			go func(userID, mint string) {
				defer b.wg.Done()
				defer func() {
					if r := recover(); r != nil {
						log.Printf("bridge: panic in auto-buy user=%s mint=%s: %v", userID, mint, r)
					}
				}()
				b.autoBuy(buyCtx, userID, channelID, mint)
			}(userID, dm.Mint)
		}
	}
	return nil
}

// autoBuy runs the full per-subscriber flow: policy gates, submission,
// bounded confirmation, stall fallback, and user notification.
func (b *Bridge) autoBuy(ctx context.Context, userID string, channelID int64, mint string) {
	cfg, err := b.settings.Effective(ctx, userID, channelID)
	if err != nil {
		log.Printf("bridge: settings user=%s: %v", userID, err)
		return
	}
	if !cfg.AutoBuyEnabled {
		return
	}
	if _, err := b.q.GetWallet(userID); err != nil {
		log.Printf("bridge: auto-buy skipped (no wallet): user=%s mint=%s", userID, mint)
		return
	}
	if skip, reason := b.policyBlocked(userID, mint, cfg); skip {
		log.Printf("bridge: auto-buy skipped (%s): user=%s mint=%s", reason, userID, mint)
		return
	}

	sub, err := b.trader.SubmitBuy(ctx, executor.BuyRequest{UserID: userID, Mint: mint, ChannelID: channelID})
	if err != nil {
		b.notifyBuyError(userID, mint, err)
		log.Printf("bridge: auto-buy submit failed: user=%s mint=%s err=%v", userID, mint, err)
		return
	}

	tpLine := "TP/SL: off"
	if cfg.TPSLEnabled {
		tpLine = fmt.Sprintf("TP/SL: %g%%/%g%%", cfg.TakeProfitPct, cfg.StopLossPct)
	}
	b.send(userID, fmt.Sprintf("Auto-buy submitted.\nMint: %s\nAmount: %g SOL\n%s\nTx: %s",
		mint, cfg.BuyAmountSOL, tpLine, notify.SolscanTx(sub.Signature)))

	res := b.confirmLoop(ctx, userID, sub.Signature, mint, sub.Owner)
	if res == nil {
		return
	}
	if res.Status == db.StatusPending {
		b.reconcileStalled(ctx, userID, sub.Owner, mint)
	}
	if cfg.ConfirmTxEnabled {
		switch res.Status {
		case db.StatusSuccess:
			b.send(userID, "Auto-buy confirmed.\nTx: "+notify.SolscanTx(sub.Signature))
		case db.StatusFailed:
			b.send(userID, fmt.Sprintf("Auto-buy failed.\nError: %s\nTx: %s", res.Note, notify.SolscanTx(sub.Signature)))
		}
	}
}

// policyBlocked applies the bridge-side trade throttles: duplicate-mint
// block, buy cooldown, and the daily buy cap.
func (b *Bridge) policyBlocked(userID, mint string, cfg *settings.Settings) (bool, string) {
	if cfg.DuplicateMintBlock {
		if _, err := b.q.GetPosition(userID, mint); err == nil {
			return true, "duplicate mint"
		}
	}
	if cfg.CooldownSeconds > 0 {
		if last, err := b.q.LastBuyAt(userID); err == nil {
			if time.Since(last) < time.Duration(cfg.CooldownSeconds)*time.Second {
				return true, "cooldown"
			}
		}
	}
	if cfg.MaxTradesPerDay > 0 {
		if n, err := b.q.TradesToday(userID); err == nil && n >= cfg.MaxTradesPerDay {
			return true, "daily cap"
		}
	}
	return false, ""
}

// confirmLoop polls confirmation until the intent leaves PENDING or the
// attempt budget runs out. Each attempt is a single receipt check.
func (b *Bridge) confirmLoop(ctx context.Context, userID, signature, mint, owner string) *reconcile.Result {
	var res *reconcile.Result
	for i := 0; i < b.confirmAttempts; i++ {
		r, err := b.confirm.Confirm(ctx, userID, signature, mint, owner, db.SideBuy, 1, 0)
		if err != nil {
			log.Printf("bridge: confirm user=%s sig=%s: %v", userID, signature, err)
			return res
		}
		res = r
		log.Printf("bridge: confirm user=%s mint=%s sig=%s status=%s", userID, mint, signature, res.Status)
		if res.Status != db.StatusPending {
			return res
		}
		if err := b.clock.Sleep(ctx, b.confirmDelay); err != nil {
			return res
		}
	}
	return res
}

// reconcileStalled snaps the tracked balance to the live on-chain value
// when confirmation never landed. Best effort only.
func (b *Bridge) reconcileStalled(ctx context.Context, userID, owner, mint string) {
	bal, err := b.chain.GetTokenBalance(ctx, owner, mint)
	if err != nil {
		return
	}
	if _, err := b.ledger.ReconcileBalance(ctx, userID, mint, bal); err != nil {
		log.Printf("bridge: reconcile balance user=%s mint=%s: %v", userID, mint, err)
		return
	}
	log.Printf("bridge: reconciled stalled buy user=%s mint=%s onchain=%g", userID, mint, bal)
}

// notifyBuyError translates a submit failure into a user message, with
// the curve-complete case given its own wording.
func (b *Bridge) notifyBuyError(userID, mint string, err error) {
	if errors.Is(err, pump.ErrCurveComplete) {
		b.send(userID, "Auto-buy failed.\nReason: Bonding curve complete (migrated to Raydium).\nMint: "+mint)
		return
	}
	if errors.Is(err, executor.ErrAutoBuyDisabled) {
		return
	}
	b.send(userID, fmt.Sprintf("Auto-buy failed.\nError: %s\nMint: %s", pump.FormatTxError(err), mint))
}

func (b *Bridge) send(userID, text string) {
	if b.notifier == nil {
		return
	}
	if err := b.notifier.Send(userID, text); err != nil {
		log.Printf("bridge: notify user=%s: %v", userID, err)
	}
}

// RunHeartbeat refreshes the listener heartbeat row until the context is
// cancelled, so operators can tell a live listener from a dead one.
func (b *Bridge) RunHeartbeat(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	id := instanceID()
	touch := func() {
		if err := b.q.TouchHeartbeat(id); err != nil {
			log.Printf("bridge: heartbeat: %v", err)
		}
	}
	touch()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			touch()
		}
	}
}

func instanceID() string {
	if id, err := machineid.ProtectedID("sniper-core"); err == nil {
		return id
	}
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}
