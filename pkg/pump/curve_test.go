package pump

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func encodeCurve(vToken, vSOL, rToken, rSOL, supply uint64, complete bool, creator [32]byte) []byte {
	data := make([]byte, curveStateMinLen)
	off := 8
	for _, v := range []uint64{vToken, vSOL, rToken, rSOL, supply} {
		binary.LittleEndian.PutUint64(data[off:], v)
		off += 8
	}
	if complete {
		data[off] = 1
	}
	off++
	copy(data[off:], creator[:])
	return data
}

func TestDecodeCurveState(t *testing.T) {
	var creator [32]byte
	creator[0] = 0xAB
	data := encodeCurve(1_073_000_000_000_000, 30_000_000_000, 793_100_000_000_000, 0, 1_000_000_000_000_000, false, creator)

	st, err := DecodeCurveState(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.VirtualTokenReserves != 1_073_000_000_000_000 {
		t.Errorf("vToken = %d", st.VirtualTokenReserves)
	}
	if st.VirtualSOLReserves != 30_000_000_000 {
		t.Errorf("vSOL = %d", st.VirtualSOLReserves)
	}
	if st.Complete {
		t.Error("complete should be false")
	}
	if st.Creator == "" {
		t.Error("creator should decode to base58")
	}
}

func TestDecodeCurveStateTooShort(t *testing.T) {
	if _, err := DecodeCurveState(make([]byte, 40)); !errors.Is(err, ErrCurveDataTooShort) {
		t.Fatalf("got %v, want ErrCurveDataTooShort", err)
	}
}

func TestDecodeCurveStateCompleteFlag(t *testing.T) {
	data := encodeCurve(1, 1, 0, 0, 1, true, [32]byte{})
	st, err := DecodeCurveState(data)
	if err != nil {
		t.Fatal(err)
	}
	if !st.Complete {
		t.Error("complete flag not decoded")
	}
}

func TestQuoteBuyConstantProduct(t *testing.T) {
	st := &CurveState{
		VirtualTokenReserves: 1_073_000_000_000_000,
		VirtualSOLReserves:   30_000_000_000,
	}
	// out = x*vToken/(vSOL+x) with x = 0.5 SOL.
	x := uint64(500_000_000)
	got := st.QuoteBuy(x)
	want := uint64(float64(x) * float64(st.VirtualTokenReserves) / float64(st.VirtualSOLReserves+x))
	// Integer math vs float approximation; allow rounding drift.
	diff := int64(got) - int64(want)
	if diff < -2 || diff > 2 {
		t.Errorf("quote = %d, want ~%d", got, want)
	}

	if st.QuoteBuy(0) != 0 {
		t.Error("zero in must quote zero out")
	}
	if (&CurveState{}).QuoteBuy(x) != 0 {
		t.Error("empty reserves must quote zero")
	}
}

func TestQuoteBuyMonotonic(t *testing.T) {
	st := &CurveState{
		VirtualTokenReserves: 1_073_000_000_000_000,
		VirtualSOLReserves:   30_000_000_000,
	}
	prev := uint64(0)
	for _, x := range []uint64{1e6, 1e7, 1e8, 1e9, 5e9, 50e9} {
		out := st.QuoteBuy(x)
		if out <= prev {
			t.Fatalf("quote not increasing at x=%d: %d <= %d", x, out, prev)
		}
		// Never more than the virtual token reserves.
		if out >= st.VirtualTokenReserves {
			t.Fatalf("quote %d exceeds reserves", out)
		}
		prev = out
	}
}

func TestPriceScalesByDecimals(t *testing.T) {
	st := &CurveState{
		VirtualTokenReserves: 1_073_000_000_000_000,
		VirtualSOLReserves:   30_000_000_000,
	}
	raw := st.RawPrice()
	if raw <= 0 {
		t.Fatal("raw price should be positive")
	}
	got := st.Price(6)
	want := raw * 1e6
	if math.Abs(got-want) > want*1e-12 {
		t.Errorf("price(6) = %g, want %g", got, want)
	}
	if (&CurveState{}).RawPrice() != 0 {
		t.Error("empty curve price should be zero")
	}
}

func TestCurvePDA(t *testing.T) {
	pda, err := CurvePDA("So11111111111111111111111111111111111111112")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	again, err := CurvePDA("So11111111111111111111111111111111111111112")
	if err != nil {
		t.Fatal(err)
	}
	if pda != again {
		t.Error("pda derivation not deterministic")
	}
	if _, err := CurvePDA("not-a-pubkey"); err == nil {
		t.Error("expected error for invalid mint")
	}
}
