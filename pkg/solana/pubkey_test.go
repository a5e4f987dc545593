package solana

import (
	"errors"
	"testing"
)

const systemProgram = "11111111111111111111111111111111"

func TestParsePublicKeyRoundTrip(t *testing.T) {
	pk, err := ParsePublicKey(systemProgram)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if pk.String() != systemProgram {
		t.Errorf("round trip = %q, want %q", pk.String(), systemProgram)
	}
}

func TestParsePublicKeyRejectsInvalid(t *testing.T) {
	for _, s := range []string{"", "abc", "0OIl", systemProgram + "1111"} {
		if _, err := ParsePublicKey(s); !errors.Is(err, ErrInvalidPublicKey) {
			t.Errorf("%q: got %v, want ErrInvalidPublicKey", s, err)
		}
	}
}

func TestFindProgramAddressDeterministic(t *testing.T) {
	program, err := ParsePublicKey("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")
	if err != nil {
		t.Fatal(err)
	}
	mint, err := ParsePublicKey(systemProgram)
	if err != nil {
		t.Fatal(err)
	}
	seeds := [][]byte{[]byte("bonding-curve"), mint[:]}

	a1, bump1, err := FindProgramAddress(seeds, program)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	a2, bump2, err := FindProgramAddress(seeds, program)
	if err != nil {
		t.Fatalf("find again: %v", err)
	}
	if a1 != a2 || bump1 != bump2 {
		t.Errorf("derivation not deterministic: %v/%d vs %v/%d", a1, bump1, a2, bump2)
	}
	// The derived address must be off curve.
	if isOnCurve(a1[:]) {
		t.Error("derived address is on curve")
	}
	// Direct derivation with the found bump must agree.
	direct, err := CreateProgramAddress(append(seeds, []byte{bump1}), program)
	if err != nil {
		t.Fatalf("create with bump: %v", err)
	}
	if direct != a1 {
		t.Errorf("direct = %v, want %v", direct, a1)
	}
}

func TestCreateProgramAddressSeedTooLong(t *testing.T) {
	program, _ := ParsePublicKey(systemProgram)
	if _, err := CreateProgramAddress([][]byte{make([]byte, 33)}, program); err == nil {
		t.Error("expected error for 33-byte seed")
	}
}
