package pump

import (
	"context"
	"errors"
	"fmt"

	"sniper-core/pkg/solana"
)

// ErrCurveComplete is returned when quoting against a migrated curve;
// pump.fun no longer serves the mint once it moves to Raydium.
var ErrCurveComplete = errors.New("pump: bonding curve complete")

// RPC is the node surface the venue needs.
type RPC interface {
	GetAccountData(ctx context.Context, pubkey string) ([]byte, error)
	SendTransaction(ctx context.Context, txBase64 string) (string, error)
}

// InstructionBuilder assembles and signs the venue transaction for a wallet.
// Wire-format assembly lives behind this interface so the trade flow stays
// testable without a signer.
type InstructionBuilder interface {
	// BuildBuy produces a signed base64 transaction buying tokensOutRaw
	// base units for at most maxSolCostLamports.
	BuildBuy(ctx context.Context, owner, mint string, tokensOutRaw, maxSolCostLamports uint64) (string, error)
	// BuildSell produces a signed base64 transaction selling tokensInRaw
	// base units for at least minSolOutLamports.
	BuildSell(ctx context.Context, owner, mint string, tokensInRaw, minSolOutLamports uint64) (string, error)
}

// Venue submits buys and sells against pump.fun bonding curves.
type Venue struct {
	rpc     RPC
	builder InstructionBuilder
}

func NewVenue(rpc RPC, builder InstructionBuilder) *Venue {
	return &Venue{rpc: rpc, builder: builder}
}

// BuySubmission describes a buy that was sent to the network.
type BuySubmission struct {
	Signature    string
	Owner        string
	Mint         string
	TokensOutRaw uint64
	LamportsIn   uint64
}

// SellSubmission describes a sell that was sent to the network.
type SellSubmission struct {
	Signature   string
	Owner       string
	Mint        string
	TokensInRaw uint64
}

// fetchCurve loads and decodes the bonding curve for a mint.
func (v *Venue) fetchCurve(ctx context.Context, mint string) (*CurveState, error) {
	pda, err := CurvePDA(mint)
	if err != nil {
		return nil, fmt.Errorf("derive curve pda: %w", err)
	}
	data, err := v.rpc.GetAccountData(ctx, pda.String())
	if err != nil {
		return nil, fmt.Errorf("fetch curve %s: %w", pda, err)
	}
	return DecodeCurveState(data)
}

// CurveState exposes the decoded curve for price reads.
func (v *Venue) CurveState(ctx context.Context, mint string) (*CurveState, error) {
	return v.fetchCurve(ctx, mint)
}

// SubmitBuy quotes the curve, applies the slippage bound and sends the
// signed buy. solIn is whole SOL; slippagePct widens the max cost.
func (v *Venue) SubmitBuy(ctx context.Context, owner, mint string, solIn, slippagePct float64) (*BuySubmission, error) {
	st, err := v.fetchCurve(ctx, mint)
	if err != nil {
		return nil, err
	}
	if st.Complete {
		return nil, ErrCurveComplete
	}

	lamportsIn := uint64(solIn * solana.LamportsPerSOL)
	tokensOut := st.QuoteBuy(lamportsIn)
	if tokensOut == 0 {
		return nil, fmt.Errorf("pump: zero quote for %.4f SOL on %s", solIn, mint)
	}
	maxSol := uint64(float64(lamportsIn) * (1.0 + slippagePct/100.0))

	tx, err := v.builder.BuildBuy(ctx, owner, mint, tokensOut, maxSol)
	if err != nil {
		return nil, fmt.Errorf("build buy: %w", err)
	}
	sig, err := v.rpc.SendTransaction(ctx, tx)
	if err != nil {
		return nil, err
	}
	return &BuySubmission{
		Signature:    sig,
		Owner:        owner,
		Mint:         mint,
		TokensOutRaw: tokensOut,
		LamportsIn:   lamportsIn,
	}, nil
}

// SubmitSell sends a signed sell for tokensInRaw base units. The minimum
// SOL out is pinned to 1 lamport; the receipt, not the quote, decides the
// proceeds recorded in the ledger.
func (v *Venue) SubmitSell(ctx context.Context, owner, mint string, tokensInRaw uint64) (*SellSubmission, error) {
	tx, err := v.builder.BuildSell(ctx, owner, mint, tokensInRaw, 1)
	if err != nil {
		return nil, fmt.Errorf("build sell: %w", err)
	}
	sig, err := v.rpc.SendTransaction(ctx, tx)
	if err != nil {
		return nil, err
	}
	return &SellSubmission{
		Signature:   sig,
		Owner:       owner,
		Mint:        mint,
		TokensInRaw: tokensInRaw,
	}, nil
}
