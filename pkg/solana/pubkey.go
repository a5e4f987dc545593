package solana

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// PublicKey is a 32-byte ed25519 public key.
type PublicKey [32]byte

var ErrInvalidPublicKey = errors.New("solana: invalid public key")

// ParsePublicKey decodes a base58-encoded public key string.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	raw, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	if len(raw) != 32 {
		return pk, fmt.Errorf("%w: got %d bytes", ErrInvalidPublicKey, len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}

func (pk PublicKey) String() string {
	return base58.Encode(pk[:])
}

// isOnCurve reports whether the bytes decode to a valid curve point.
// Program-derived addresses must be off curve so no keypair can sign for them.
func isOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

const pdaMarker = "ProgramDerivedAddress"

// CreateProgramAddress hashes the seeds with the program id and the PDA
// marker. Returns an error when the result lands on the curve.
func CreateProgramAddress(seeds [][]byte, program PublicKey) (PublicKey, error) {
	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > 32 {
			return PublicKey{}, errors.New("solana: seed exceeds 32 bytes")
		}
		h.Write(seed)
	}
	h.Write(program[:])
	h.Write([]byte(pdaMarker))
	sum := h.Sum(nil)
	if isOnCurve(sum) {
		return PublicKey{}, errors.New("solana: derived address is on curve")
	}
	var pk PublicKey
	copy(pk[:], sum)
	return pk, nil
}

// FindProgramAddress walks the bump seed down from 255 until the derived
// address falls off the curve.
func FindProgramAddress(seeds [][]byte, program PublicKey) (PublicKey, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		full := make([][]byte, len(seeds), len(seeds)+1)
		copy(full, seeds)
		full = append(full, []byte{byte(bump)})
		pk, err := CreateProgramAddress(full, program)
		if err == nil {
			return pk, uint8(bump), nil
		}
	}
	return PublicKey{}, 0, errors.New("solana: no viable bump seed")
}
