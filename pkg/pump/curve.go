// Package pump quotes and trades against pump.fun bonding curves.
package pump

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/mr-tron/base58"

	"sniper-core/pkg/solana"
)

// ProgramID is the pump.fun program on mainnet.
const ProgramID = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"

// CurveState is the decoded bonding curve account. Reserves are raw
// integer units (lamports for SOL, base units for tokens).
type CurveState struct {
	VirtualTokenReserves uint64
	VirtualSOLReserves   uint64
	RealTokenReserves    uint64
	RealSOLReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool
	Creator              string
}

// Anchor account layout: 8-byte discriminator, five u64 LE fields, a bool,
// then the 32-byte creator key.
const curveStateMinLen = 8 + 8*5 + 1 + 32

var ErrCurveDataTooShort = errors.New("pump: bonding curve account too small")

// DecodeCurveState parses raw bonding curve account data.
func DecodeCurveState(data []byte) (*CurveState, error) {
	if len(data) < curveStateMinLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrCurveDataTooShort, len(data))
	}
	off := 8
	st := &CurveState{}
	st.VirtualTokenReserves = binary.LittleEndian.Uint64(data[off:])
	st.VirtualSOLReserves = binary.LittleEndian.Uint64(data[off+8:])
	st.RealTokenReserves = binary.LittleEndian.Uint64(data[off+16:])
	st.RealSOLReserves = binary.LittleEndian.Uint64(data[off+24:])
	st.TokenTotalSupply = binary.LittleEndian.Uint64(data[off+32:])
	off += 8 * 5
	st.Complete = data[off] != 0
	off++
	st.Creator = base58.Encode(data[off : off+32])
	return st, nil
}

// CurvePDA derives the bonding curve address for a mint.
func CurvePDA(mint string) (solana.PublicKey, error) {
	mintPK, err := solana.ParsePublicKey(mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	program, err := solana.ParsePublicKey(ProgramID)
	if err != nil {
		return solana.PublicKey{}, err
	}
	pda, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("bonding-curve"), mintPK[:]}, program)
	return pda, err
}

// RawPrice is SOL per raw token unit from the virtual reserves.
func (st *CurveState) RawPrice() float64 {
	if st.VirtualTokenReserves == 0 || st.VirtualSOLReserves == 0 {
		return 0
	}
	return (float64(st.VirtualSOLReserves) / solana.LamportsPerSOL) / float64(st.VirtualTokenReserves)
}

// Price is SOL per whole (UI) token, given the mint's decimals.
func (st *CurveState) Price(decimals int) float64 {
	return st.RawPrice() * math.Pow10(decimals)
}

// QuoteBuy estimates raw tokens out for lamports in, constant-product
// against the virtual reserves: out = (x * vToken) / (vSOL + x).
// Fees are not modeled; the on-chain program enforces the real price and
// the slippage bound caps the damage.
func (st *CurveState) QuoteBuy(lamportsIn uint64) uint64 {
	if lamportsIn == 0 || st.VirtualSOLReserves == 0 || st.VirtualTokenReserves == 0 {
		return 0
	}
	// lamports * tokenReserves overflows uint64 on real curves, so the
	// multiply/divide goes through 128 bits.
	hi, lo := bits.Mul64(lamportsIn, st.VirtualTokenReserves)
	quo, _ := bits.Div64(hi, lo, st.VirtualSOLReserves+lamportsIn)
	return quo
}
