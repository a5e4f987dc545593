// Package monitor watches open positions and fires take-profit and
// stop-loss exits against live bonding-curve prices.
package monitor

import (
	"context"
	"log"
	"time"

	"sniper-core/internal/events"
	"sniper-core/internal/reconcile"
	"sniper-core/internal/settings"
	"sniper-core/pkg/cache"
	"sniper-core/pkg/db"
	"sniper-core/pkg/pump"
)

// CurveSource reads the live bonding curve for a mint.
type CurveSource interface {
	CurveState(ctx context.Context, mint string) (*pump.CurveState, error)
}

// Seller liquidates a user's full position in a mint.
type Seller interface {
	AutoSell(ctx context.Context, userID, mint string) (*pump.SellSubmission, *reconcile.Result, error)
}

// DecimalsSource resolves a mint's decimals on cache miss.
type DecimalsSource interface {
	GetMintDecimals(ctx context.Context, mint string) (int, error)
}

// Monitor polls open positions and compares curve prices against each
// user's take-profit and stop-loss thresholds.
type Monitor struct {
	q        *db.Queries
	curves   CurveSource
	seller   Seller
	settings *settings.Service
	mints    *cache.MintCache
	dec      DecimalsSource
	bus      *events.Bus
	interval time.Duration
}

func New(q *db.Queries, curves CurveSource, seller Seller, svc *settings.Service,
	mints *cache.MintCache, dec DecimalsSource, bus *events.Bus, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Monitor{
		q:        q,
		curves:   curves,
		seller:   seller,
		settings: svc,
		mints:    mints,
		dec:      dec,
		bus:      bus,
		interval: interval,
	}
}

// Run blocks until the context is cancelled, scanning all open positions
// each interval.
func (m *Monitor) Run(ctx context.Context) {
	log.Printf("monitor: started, interval %s", m.interval)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("monitor: stopped")
			return
		case <-ticker.C:
			m.Scan(ctx)
		}
	}
}

// Scan runs one pass over all open positions. A failure on one position
// never blocks the rest.
func (m *Monitor) Scan(ctx context.Context) {
	positions, err := m.q.ListOpenPositionsAll()
	if err != nil {
		log.Printf("monitor: list positions: %v", err)
		return
	}
	for i := range positions {
		m.checkPosition(ctx, &positions[i])
	}
}

func (m *Monitor) checkPosition(ctx context.Context, pos *db.Position) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("monitor: panic checking %s/%s: %v", pos.UserID, pos.Mint, r)
		}
	}()

	cfg, err := m.settings.User(ctx, pos.UserID)
	if err != nil {
		log.Printf("monitor: settings for %s: %v", pos.UserID, err)
		return
	}
	if !cfg.TPSLEnabled || pos.AvgEntrySOL <= 0 {
		return
	}

	price, ok := m.price(ctx, pos.Mint)
	if !ok {
		// Price unavailable this tick; try again next pass.
		return
	}

	changePct := (price - pos.AvgEntrySOL) / pos.AvgEntrySOL * 100

	var kind string
	switch {
	case cfg.TakeProfitPct > 0 && price >= pos.AvgEntrySOL*(1+cfg.TakeProfitPct/100):
		kind = "take_profit"
	case cfg.StopLossPct > 0 && price <= pos.AvgEntrySOL*(1-cfg.StopLossPct/100):
		kind = "stop_loss"
	default:
		return
	}

	log.Printf("monitor: %s triggered for %s/%s price=%.10f entry=%.10f (%.2f%%)",
		kind, pos.UserID, pos.Mint, price, pos.AvgEntrySOL, changePct)
	if m.bus != nil {
		m.bus.Publish(events.EventStopTriggered, events.StopPayload{
			UserID:    pos.UserID,
			Mint:      pos.Mint,
			Kind:      kind,
			Price:     price,
			AvgEntry:  pos.AvgEntrySOL,
			ChangePct: changePct,
		})
	}

	if _, _, err := m.seller.AutoSell(ctx, pos.UserID, pos.Mint); err != nil {
		log.Printf("monitor: %s sell for %s/%s: %v", kind, pos.UserID, pos.Mint, err)
	}
}

// price returns the current per-token price in SOL, or false when the
// curve or the mint decimals cannot be read.
func (m *Monitor) price(ctx context.Context, mint string) (float64, bool) {
	st, err := m.curves.CurveState(ctx, mint)
	if err != nil {
		return 0, false
	}
	d, ok := m.mints.Decimals(mint)
	if !ok {
		d, err = m.dec.GetMintDecimals(ctx, mint)
		if err != nil {
			return 0, false
		}
		m.mints.SetDecimals(mint, d)
	}
	p := st.Price(d)
	if p <= 0 {
		return 0, false
	}
	m.mints.SetPrice(mint, p)
	if m.bus != nil {
		m.bus.Publish(events.EventPriceTick, events.PricePayload{Mint: mint, PriceSOL: p, At: time.Now()})
	}
	return p, true
}
