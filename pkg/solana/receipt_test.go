package solana

import (
	"encoding/json"
	"testing"
)

func fptr(f float64) *float64 { return &f }

func buyReceipt(owner, mint string) *TxReceipt {
	r := &TxReceipt{
		Meta: &TxMeta{
			PreBalances:  []int64{10 * LamportsPerSOL, 5 * LamportsPerSOL},
			PostBalances: []int64{10*LamportsPerSOL - 500_000_000, 5*LamportsPerSOL + 490_000_000},
			PostTokenBalances: []TokenBalance{
				{AccountIndex: 2, Mint: mint, Owner: owner},
			},
		},
	}
	r.Meta.PostTokenBalances[0].UITokenAmount.UIAmount = fptr(12345.6)
	r.Transaction.Message.AccountKeys = []string{owner, "curveAcct"}
	return r
}

func TestExtractDeltasBuy(t *testing.T) {
	owner := "ownerPub"
	mint := "mintPub"
	r := buyReceipt(owner, mint)

	sol, tok := r.ExtractDeltas(owner, mint)
	if sol == nil || *sol != -500_000_000 {
		t.Fatalf("sol delta = %v, want -500000000", sol)
	}
	// No pre token balance entry means the ATA was created by this tx,
	// so the pre side counts as zero, not unknown.
	if tok == nil || *tok != 12345.6 {
		t.Fatalf("token delta = %v, want 12345.6", tok)
	}
}

func TestExtractDeltasSell(t *testing.T) {
	owner := "ownerPub"
	mint := "mintPub"
	r := &TxReceipt{
		Meta: &TxMeta{
			PreBalances:  []int64{LamportsPerSOL},
			PostBalances: []int64{LamportsPerSOL + 300_000_000},
			PreTokenBalances: []TokenBalance{
				{Mint: mint, Owner: owner},
			},
			PostTokenBalances: []TokenBalance{
				{Mint: mint, Owner: owner},
			},
		},
	}
	r.Meta.PreTokenBalances[0].UITokenAmount.UIAmount = fptr(1000)
	r.Meta.PostTokenBalances[0].UITokenAmount.UIAmount = fptr(250)
	r.Transaction.Message.AccountKeys = []string{owner}

	sol, tok := r.ExtractDeltas(owner, mint)
	if sol == nil || *sol != 300_000_000 {
		t.Fatalf("sol delta = %v, want 300000000", sol)
	}
	if tok == nil || *tok != -750 {
		t.Fatalf("token delta = %v, want -750", tok)
	}
}

func TestExtractDeltasMissing(t *testing.T) {
	owner := "ownerPub"
	r := &TxReceipt{
		Meta: &TxMeta{
			PreBalances:  []int64{LamportsPerSOL},
			PostBalances: []int64{LamportsPerSOL - 100},
		},
	}
	r.Transaction.Message.AccountKeys = []string{owner}

	sol, tok := r.ExtractDeltas(owner, "mintPub")
	if sol == nil || *sol != -100 {
		t.Fatalf("sol delta = %v, want -100", sol)
	}
	if tok != nil {
		t.Fatalf("token delta = %v, want nil (unknown)", tok)
	}

	// Owner not in account keys at all: both unknown.
	sol, tok = r.ExtractDeltas("someoneElse", "mintPub")
	if sol != nil || tok != nil {
		t.Fatalf("deltas for unrelated owner = %v/%v, want nil/nil", sol, tok)
	}
}

func TestExtractDeltasIgnoresOtherOwners(t *testing.T) {
	owner := "ownerPub"
	mint := "mintPub"
	r := buyReceipt(owner, mint)
	other := TokenBalance{Mint: mint, Owner: "curveVault"}
	other.UITokenAmount.UIAmount = fptr(999999)
	r.Meta.PostTokenBalances = append(r.Meta.PostTokenBalances, other)

	_, tok := r.ExtractDeltas(owner, mint)
	if tok == nil || *tok != 12345.6 {
		t.Fatalf("token delta = %v, want 12345.6 (vault balance ignored)", tok)
	}
}

func TestReceiptFailed(t *testing.T) {
	r := &TxReceipt{Meta: &TxMeta{Err: json.RawMessage(`null`)}}
	if r.Failed() {
		t.Error("null err should not be failed")
	}
	r.Meta.Err = json.RawMessage(`{"InstructionError":[3,{"Custom":6005}]}`)
	if !r.Failed() {
		t.Error("instruction error should be failed")
	}
	if (&TxReceipt{}).Failed() {
		t.Error("nil meta must not count as failed")
	}
}
