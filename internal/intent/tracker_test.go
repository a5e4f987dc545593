package intent

import (
	"context"
	"errors"
	"testing"

	"sniper-core/pkg/db"
)

func newTestTracker(t *testing.T) *Tracker {
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
	return NewTracker(q)
}

func f(v float64) *float64 { return &v }

func TestEnqueueIsIdempotentPerSignature(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	if err := tr.Enqueue(ctx, "u1", "mintA", db.SideBuy, "sig1", nil, f(0.5)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := tr.Enqueue(ctx, "u1", "mintA", db.SideBuy, "sig1", f(1000), f(0.75)); err != nil {
		t.Fatalf("re-enqueue: %v", err)
	}

	all, err := tr.List(ctx, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("intents = %d, want 1 (no duplicate rows)", len(all))
	}
	got := all[0]
	if got.RequestedSOLAmount.Float64 != 0.75 {
		t.Errorf("requested sol = %v, want 0.75", got.RequestedSOLAmount.Float64)
	}
	if !got.RequestedTokenAmount.Valid || got.RequestedTokenAmount.Float64 != 1000 {
		t.Errorf("requested tokens = %+v, want 1000", got.RequestedTokenAmount)
	}
}

func TestEnqueueNilAmountsStayUnknown(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	if err := tr.Enqueue(ctx, "u1", "mintA", db.SideSell, "sig1", f(500), nil); err != nil {
		t.Fatal(err)
	}
	got, err := tr.Get(ctx, "sig1")
	if err != nil {
		t.Fatal(err)
	}
	if got.RequestedSOLAmount.Valid {
		t.Error("nil requested SOL must store NULL, not zero")
	}
}

func TestResolveLastWriteWins(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	if err := tr.Enqueue(ctx, "u1", "mintA", db.SideBuy, "sig1", nil, f(0.5)); err != nil {
		t.Fatal(err)
	}
	if err := tr.Resolve(ctx, "sig1", db.StatusSuccess, f(1000), f(0.49), ""); err != nil {
		t.Fatal(err)
	}
	// Resolving again with identical values is harmless.
	if err := tr.Resolve(ctx, "sig1", db.StatusSuccess, f(1000), f(0.49), ""); err != nil {
		t.Fatal(err)
	}
	got, err := tr.Get(ctx, "sig1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != db.StatusSuccess || got.ActualTokenAmount.Float64 != 1000 {
		t.Errorf("intent = %+v", got)
	}

	if err := tr.Resolve(ctx, "sig1", db.StatusFailed, nil, nil, "late failure"); err != nil {
		t.Fatal(err)
	}
	got, _ = tr.Get(ctx, "sig1")
	if got.Status != db.StatusFailed {
		t.Errorf("status = %q, last write should win", got.Status)
	}
}

func TestListOldestFirstWithStatusFilter(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	for _, sig := range []string{"a", "b", "c", "d"} {
		if err := tr.Enqueue(ctx, "u1", "mintA", db.SideBuy, sig, nil, f(0.1)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tr.Resolve(ctx, "b", db.StatusSuccess, nil, nil, ""); err != nil {
		t.Fatal(err)
	}

	pending, err := tr.List(ctx, db.StatusPending, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 3 {
		t.Fatalf("pending = %d, want 3", len(pending))
	}

	limited, err := tr.List(ctx, db.StatusPending, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Fatalf("limited = %d, want 2", len(limited))
	}
}

func TestGetUnknownSignature(t *testing.T) {
	tr := newTestTracker(t)
	if _, err := tr.Get(context.Background(), "nope"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
