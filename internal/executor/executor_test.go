package executor

import (
	"context"
	"errors"
	"testing"
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

type fakeVenue struct {
	buySub  *pump.BuySubmission
	sellSub *pump.SellSubmission
	err     error

	lastSol  float64
	lastSlip float64
	lastRaw  uint64
}

func (v *fakeVenue) SubmitBuy(ctx context.Context, owner, mint string, solIn, slippagePct float64) (*pump.BuySubmission, error) {
	v.lastSol, v.lastSlip = solIn, slippagePct
	return v.buySub, v.err
}

func (v *fakeVenue) SubmitSell(ctx context.Context, owner, mint string, tokensInRaw uint64) (*pump.SellSubmission, error) {
	v.lastRaw = tokensInRaw
	return v.sellSub, v.err
}

type fakeWallets struct{ addr string }

func (w *fakeWallets) Address(userID string) (string, error) {
	return w.addr, nil
}

type fakeDecimals struct {
	d     int
	err   error
	calls int
}

func (f *fakeDecimals) GetMintDecimals(ctx context.Context, mint string) (int, error) {
	f.calls++
	return f.d, f.err
}

type fakeConfirmer struct {
	res   *reconcile.Result
	err   error
	calls int
}

func (f *fakeConfirmer) Confirm(ctx context.Context, userID, signature, mint, owner, side string, retries int, delay time.Duration) (*reconcile.Result, error) {
	f.calls++
	return f.res, f.err
}

type harness struct {
	exec    *Executor
	venue   *fakeVenue
	dec     *fakeDecimals
	confirm *fakeConfirmer
	tracker *intent.Tracker
	svc     *settings.Service
	ledger  *ledger.Ledger
	q       *db.Queries
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	d, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := db.ApplyMigrations(d); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	q := d.Queries()
	if err := q.EnsureUser("u1"); err != nil {
		t.Fatal(err)
	}
	h := &harness{
		venue: &fakeVenue{
			buySub:  &pump.BuySubmission{Signature: "sigBuy", Owner: "owner1", Mint: "mintA", TokensOutRaw: 1_000_000_000, LamportsIn: 500_000_000},
			sellSub: &pump.SellSubmission{Signature: "sigSell", Owner: "owner1", Mint: "mintA"},
		},
		dec:     &fakeDecimals{d: 6},
		confirm: &fakeConfirmer{res: &reconcile.Result{Status: db.StatusSuccess, Signature: "sigBuy"}},
		tracker: intent.NewTracker(q),
		svc:     settings.NewService(q, nil),
		ledger:  ledger.New(d),
		q:       q,
	}
	h.exec = New(h.venue, &fakeWallets{addr: "owner1"}, h.confirm, h.tracker,
		h.svc, q, cache.NewMintCache(), h.dec, events.NewBus(), 3, 0)
	return h
}

func (h *harness) setSettings(t *testing.T, mutate func(*settings.Settings)) {
	t.Helper()
	cfg, err := h.svc.User(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	mutate(cfg)
	if err := h.svc.Update(context.Background(), "u1", cfg); err != nil {
		t.Fatal(err)
	}
}

func TestSubmitBuyUsesSettingsDefaults(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sub, err := h.exec.SubmitBuy(ctx, BuyRequest{UserID: "u1", Mint: "mintA"})
	if err != nil {
		t.Fatalf("SubmitBuy: %v", err)
	}
	if sub.Signature != "sigBuy" {
		t.Fatalf("signature = %q", sub.Signature)
	}
	if h.venue.lastSol != 0.5 {
		t.Errorf("default buy amount = %v, want 0.5", h.venue.lastSol)
	}
	if h.venue.lastSlip <= 0 {
		t.Errorf("slippage = %v, want settings default", h.venue.lastSlip)
	}

	pt, err := h.tracker.Get(ctx, "sigBuy")
	if err != nil {
		t.Fatalf("intent not recorded: %v", err)
	}
	if pt.Status != db.StatusPending || pt.Side != db.SideBuy {
		t.Fatalf("intent = %+v", pt)
	}
	if !pt.RequestedSOLAmount.Valid || pt.RequestedSOLAmount.Float64 != 0.5 {
		t.Errorf("requested sol = %+v, want 0.5", pt.RequestedSOLAmount)
	}
	// 1_000_000_000 raw at 6 decimals is 1000 UI tokens.
	if !pt.RequestedTokenAmount.Valid || pt.RequestedTokenAmount.Float64 != 1000 {
		t.Errorf("requested tokens = %+v, want 1000", pt.RequestedTokenAmount)
	}
}

func TestSubmitBuyDisabledGate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.setSettings(t, func(s *settings.Settings) { s.AutoBuyEnabled = false })

	if _, err := h.exec.SubmitBuy(ctx, BuyRequest{UserID: "u1", Mint: "mintA"}); !errors.Is(err, ErrAutoBuyDisabled) {
		t.Fatalf("err = %v, want ErrAutoBuyDisabled", err)
	}

	// ForceBuy bypasses the gate.
	if _, err := h.exec.SubmitBuy(ctx, BuyRequest{UserID: "u1", Mint: "mintA", ForceBuy: true}); err != nil {
		t.Fatalf("forced buy: %v", err)
	}
}

func TestSubmitBuyDecimalsLookupFailureIsNonFatal(t *testing.T) {
	h := newHarness(t)
	h.dec.err = errors.New("rpc down")
	ctx := context.Background()

	if _, err := h.exec.SubmitBuy(ctx, BuyRequest{UserID: "u1", Mint: "mintA", SOLAmount: 0.25}); err != nil {
		t.Fatalf("SubmitBuy: %v", err)
	}
	pt, err := h.tracker.Get(ctx, "sigBuy")
	if err != nil {
		t.Fatal(err)
	}
	if pt.RequestedTokenAmount.Valid {
		t.Errorf("requested tokens = %+v, want NULL when decimals unknown", pt.RequestedTokenAmount)
	}
	if pt.RequestedSOLAmount.Float64 != 0.25 {
		t.Errorf("requested sol = %v, want 0.25", pt.RequestedSOLAmount.Float64)
	}
}

func TestSubmitBuyDecimalsCached(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := h.exec.SubmitBuy(ctx, BuyRequest{UserID: "u1", Mint: "mintA", SOLAmount: 0.1}); err != nil {
			t.Fatal(err)
		}
	}
	if h.dec.calls != 1 {
		t.Errorf("decimals rpc calls = %d, want 1 (cached after first)", h.dec.calls)
	}
}

func TestSubmitSellFullPosition(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.ledger.ApplyTrade(ctx, "u1", "mintA", db.SideBuy, 1500.5, 0.75, "seed"); err != nil {
		t.Fatal(err)
	}

	sub, err := h.exec.SubmitSell(ctx, "u1", "mintA", 0)
	if err != nil {
		t.Fatalf("SubmitSell: %v", err)
	}
	if sub.Signature != "sigSell" {
		t.Fatalf("signature = %q", sub.Signature)
	}
	if h.venue.lastRaw != 1_500_500_000 {
		t.Errorf("raw tokens = %d, want 1500500000", h.venue.lastRaw)
	}

	pt, err := h.tracker.Get(ctx, "sigSell")
	if err != nil {
		t.Fatal(err)
	}
	if pt.Side != db.SideSell {
		t.Errorf("side = %q", pt.Side)
	}
	if !pt.RequestedTokenAmount.Valid || pt.RequestedTokenAmount.Float64 != 1500.5 {
		t.Errorf("requested tokens = %+v, want 1500.5", pt.RequestedTokenAmount)
	}
	if pt.RequestedSOLAmount.Valid {
		t.Errorf("requested sol = %+v, want NULL for a sell", pt.RequestedSOLAmount)
	}
}

func TestSubmitSellPartial(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.ledger.ApplyTrade(ctx, "u1", "mintA", db.SideBuy, 1000, 0.5, "seed"); err != nil {
		t.Fatal(err)
	}

	if _, err := h.exec.SubmitSell(ctx, "u1", "mintA", 250); err != nil {
		t.Fatalf("SubmitSell: %v", err)
	}
	if h.venue.lastRaw != 250_000_000 {
		t.Errorf("raw tokens = %d, want 250000000", h.venue.lastRaw)
	}

	pt, err := h.tracker.Get(ctx, "sigSell")
	if err != nil {
		t.Fatal(err)
	}
	if !pt.RequestedTokenAmount.Valid || pt.RequestedTokenAmount.Float64 != 250 {
		t.Errorf("requested tokens = %+v, want 250", pt.RequestedTokenAmount)
	}
}

func TestSubmitSellOverBalance(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.ledger.ApplyTrade(ctx, "u1", "mintA", db.SideBuy, 1000, 0.5, "seed"); err != nil {
		t.Fatal(err)
	}

	if _, err := h.exec.SubmitSell(ctx, "u1", "mintA", 1000.1); !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	if h.venue.lastRaw != 0 {
		t.Errorf("venue was called with raw = %d, want no call", h.venue.lastRaw)
	}
}

func TestSubmitSellWithoutPosition(t *testing.T) {
	h := newHarness(t)
	if _, err := h.exec.SubmitSell(context.Background(), "u1", "mintA", 0); !errors.Is(err, ledger.ErrNoOpenPosition) {
		t.Fatalf("err = %v, want ErrNoOpenPosition", err)
	}
}

func TestSubmitSellRequiresDecimals(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.ledger.ApplyTrade(ctx, "u1", "mintA", db.SideBuy, 1000, 0.5, "seed"); err != nil {
		t.Fatal(err)
	}
	h.dec.err = errors.New("rpc down")

	if _, err := h.exec.SubmitSell(ctx, "u1", "mintA", 0); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount when decimals unknown", err)
	}
}

func TestAutoBuyMapsConfirmOutcomes(t *testing.T) {
	ctx := context.Background()

	t.Run("failed", func(t *testing.T) {
		h := newHarness(t)
		h.setSettings(t, func(s *settings.Settings) { s.ConfirmTxEnabled = true })
		h.confirm.res = &reconcile.Result{Status: db.StatusFailed, Signature: "sigBuy", Note: "Bonding curve complete (migrated to Raydium)."}
		_, res, err := h.exec.AutoBuy(ctx, BuyRequest{UserID: "u1", Mint: "mintA"})
		var fe *TxFailedError
		if !errors.As(err, &fe) {
			t.Fatalf("err = %v, want TxFailedError", err)
		}
		if fe.Signature != "sigBuy" || res.Status != db.StatusFailed {
			t.Fatalf("fe = %+v res = %+v", fe, res)
		}
	})

	t.Run("pending", func(t *testing.T) {
		h := newHarness(t)
		h.setSettings(t, func(s *settings.Settings) { s.ConfirmTxEnabled = true })
		h.confirm.res = &reconcile.Result{Status: db.StatusPending, Signature: "sigBuy", Note: reconcile.NoteReceiptPending}
		_, _, err := h.exec.AutoBuy(ctx, BuyRequest{UserID: "u1", Mint: "mintA"})
		var pe *TxPendingError
		if !errors.As(err, &pe) {
			t.Fatalf("err = %v, want TxPendingError", err)
		}
	})

	t.Run("success", func(t *testing.T) {
		h := newHarness(t)
		h.setSettings(t, func(s *settings.Settings) { s.ConfirmTxEnabled = true })
		_, res, err := h.exec.AutoBuy(ctx, BuyRequest{UserID: "u1", Mint: "mintA"})
		if err != nil {
			t.Fatalf("err = %v", err)
		}
		if res.Status != db.StatusSuccess {
			t.Fatalf("status = %q", res.Status)
		}
		if h.confirm.calls != 1 {
			t.Fatalf("confirm calls = %d", h.confirm.calls)
		}
	})
}

func TestAutoBuySkipsConfirmWhenDisabled(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.setSettings(t, func(s *settings.Settings) { s.ConfirmTxEnabled = false })

	sub, res, err := h.exec.AutoBuy(ctx, BuyRequest{UserID: "u1", Mint: "mintA"})
	if err != nil {
		t.Fatalf("AutoBuy: %v", err)
	}
	if sub == nil || res != nil {
		t.Fatalf("sub = %v res = %v, want submission with nil result", sub, res)
	}
	if h.confirm.calls != 0 {
		t.Errorf("confirm calls = %d, want 0", h.confirm.calls)
	}
}

func TestAutoSell(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.ledger.ApplyTrade(ctx, "u1", "mintA", db.SideBuy, 1000, 0.5, "seed"); err != nil {
		t.Fatal(err)
	}
	h.confirm.res = &reconcile.Result{Status: db.StatusSuccess, Signature: "sigSell", TokenAmount: 1000, SOLAmount: 0.6}

	sub, res, err := h.exec.AutoSell(ctx, "u1", "mintA")
	if err != nil {
		t.Fatalf("AutoSell: %v", err)
	}
	if sub.Signature != "sigSell" || res.SOLAmount != 0.6 {
		t.Fatalf("sub = %+v res = %+v", sub, res)
	}
}
