package settings

import (
	"context"
	"database/sql"
	"testing"

	"sniper-core/pkg/config"
	"sniper-core/pkg/db"
)

func newTestService(t *testing.T, policy *config.ChannelPolicy) (*Service, *db.Queries) {
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
	return NewService(q, policy), q
}

func bp(v bool) *bool       { return &v }
func fp(v float64) *float64 { return &v }

func TestUserDefaults(t *testing.T) {
	s, _ := newTestService(t, nil)

	got, err := s.User(context.Background(), "u1")
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	if !got.AutoBuyEnabled || got.BuyAmountSOL != 0.5 || got.TakeProfitPct != 30 {
		t.Errorf("defaults = %+v", got)
	}
}

func TestEffectiveNoChannelContext(t *testing.T) {
	s, _ := newTestService(t, nil)

	got, err := s.Effective(context.Background(), "u1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if got.BuyAmountSOL != 0.5 {
		t.Errorf("buy amount = %v, want user default", got.BuyAmountSOL)
	}
}

func TestEffectiveDBOverrideFieldByField(t *testing.T) {
	s, q := newTestService(t, nil)
	ctx := context.Background()
	if err := q.UpsertChannel(42, "alpha"); err != nil {
		t.Fatal(err)
	}
	err := q.UpsertChannelSettings(&db.ChannelSettings{
		UserID:         "u1",
		ChannelID:      42,
		BuyAmountSOL:   sql.NullFloat64{Float64: 0.1, Valid: true},
		AutoBuyEnabled: sql.NullBool{Bool: false, Valid: true},
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.Effective(ctx, "u1", 42)
	if err != nil {
		t.Fatal(err)
	}
	if got.BuyAmountSOL != 0.1 {
		t.Errorf("buy amount = %v, want channel override 0.1", got.BuyAmountSOL)
	}
	if got.AutoBuyEnabled {
		t.Error("auto buy should be overridden off")
	}
	// Fields with NULL overrides keep the user default.
	if got.TakeProfitPct != 30 || got.BuySlippagePct != 20 {
		t.Errorf("non-overridden fields changed: %+v", got)
	}
	// The cooldown has no channel column; always the user value.
	if got.CooldownSeconds != 60 {
		t.Errorf("cooldown = %d, want 60", got.CooldownSeconds)
	}
}

func TestEffectiveFilePolicyFallback(t *testing.T) {
	policy := &config.ChannelPolicy{Channels: map[string]config.ChannelOverride{
		"42": {BuyAmountSOL: fp(0.05), AutoBuyEnabled: bp(false)},
	}}
	s, _ := newTestService(t, policy)

	got, err := s.Effective(context.Background(), "u1", 42)
	if err != nil {
		t.Fatal(err)
	}
	if got.BuyAmountSOL != 0.05 || got.AutoBuyEnabled {
		t.Errorf("file policy not applied: %+v", got)
	}

	// Channel without a policy entry: plain user defaults.
	got, err = s.Effective(context.Background(), "u1", 99)
	if err != nil {
		t.Fatal(err)
	}
	if got.BuyAmountSOL != 0.5 {
		t.Errorf("buy amount = %v, want user default", got.BuyAmountSOL)
	}
}

func TestDBOverrideBeatsFilePolicy(t *testing.T) {
	policy := &config.ChannelPolicy{Channels: map[string]config.ChannelOverride{
		"42": {BuyAmountSOL: fp(0.05)},
	}}
	s, q := newTestService(t, policy)
	if err := q.UpsertChannel(42, "alpha"); err != nil {
		t.Fatal(err)
	}
	err := q.UpsertChannelSettings(&db.ChannelSettings{
		UserID:       "u1",
		ChannelID:    42,
		BuyAmountSOL: sql.NullFloat64{Float64: 0.2, Valid: true},
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.Effective(context.Background(), "u1", 42)
	if err != nil {
		t.Fatal(err)
	}
	if got.BuyAmountSOL != 0.2 {
		t.Errorf("buy amount = %v, db row should win over file policy", got.BuyAmountSOL)
	}
}

func TestUpdateRoundTrip(t *testing.T) {
	s, _ := newTestService(t, nil)
	ctx := context.Background()

	got, err := s.User(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	got.TakeProfitPct = 50
	got.AutoBuyEnabled = false
	if err := s.Update(ctx, "u1", got); err != nil {
		t.Fatalf("update: %v", err)
	}

	again, err := s.User(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if again.TakeProfitPct != 50 || again.AutoBuyEnabled {
		t.Errorf("settings not persisted: %+v", again)
	}
}
