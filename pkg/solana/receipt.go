package solana

import "encoding/json"

// TxReceipt is the subset of a getTransaction response the trade
// reconciler needs: whether the transaction errored on chain and the
// pre/post balance snapshots.
type TxReceipt struct {
	Meta        *TxMeta `json:"meta"`
	Transaction struct {
		Message struct {
			AccountKeys []string `json:"accountKeys"`
		} `json:"message"`
	} `json:"transaction"`
}

type TxMeta struct {
	Err               json.RawMessage `json:"err"`
	PreBalances       []int64         `json:"preBalances"`
	PostBalances      []int64         `json:"postBalances"`
	PreTokenBalances  []TokenBalance  `json:"preTokenBalances"`
	PostTokenBalances []TokenBalance  `json:"postTokenBalances"`
	LogMessages       []string        `json:"logMessages"`
}

type TokenBalance struct {
	AccountIndex  int    `json:"accountIndex"`
	Mint          string `json:"mint"`
	Owner         string `json:"owner"`
	UITokenAmount struct {
		UIAmount *float64 `json:"uiAmount"`
		Amount   string   `json:"amount"`
		Decimals int      `json:"decimals"`
	} `json:"uiTokenAmount"`
}

// Failed reports whether the transaction errored on chain. A nil meta
// means the receipt is unusable and the caller should treat the outcome
// as unknown, not failed.
func (r *TxReceipt) Failed() bool {
	return r.Meta != nil && len(r.Meta.Err) > 0 && string(r.Meta.Err) != "null"
}

// ExtractDeltas computes the owner's lamport delta and the owner's token
// delta (in UI units) for the given mint. Either result is nil when it
// cannot be derived from the receipt; callers distinguish a true zero
// from an unknown.
func (r *TxReceipt) ExtractDeltas(owner, mint string) (solDeltaLamports *int64, tokenDeltaUI *float64) {
	if r.Meta == nil {
		return nil, nil
	}

	idx := -1
	for i, key := range r.Transaction.Message.AccountKeys {
		if key == owner {
			idx = i
			break
		}
	}
	if idx >= 0 && idx < len(r.Meta.PreBalances) && idx < len(r.Meta.PostBalances) {
		d := r.Meta.PostBalances[idx] - r.Meta.PreBalances[idx]
		solDeltaLamports = &d
	}

	// Token balances list only token accounts touched by the tx; an account
	// absent from the pre list existed with zero balance (fresh ATA on a
	// first buy), so missing entries count as zero rather than unknown.
	pre := sumTokenUI(r.Meta.PreTokenBalances, owner, mint)
	post := sumTokenUI(r.Meta.PostTokenBalances, owner, mint)
	if pre == nil && post == nil {
		return solDeltaLamports, nil
	}
	var preV, postV float64
	if pre != nil {
		preV = *pre
	}
	if post != nil {
		postV = *post
	}
	d := postV - preV
	tokenDeltaUI = &d
	return solDeltaLamports, tokenDeltaUI
}

func sumTokenUI(balances []TokenBalance, owner, mint string) *float64 {
	var sum float64
	found := false
	for _, b := range balances {
		if b.Owner != owner || b.Mint != mint {
			continue
		}
		found = true
		if b.UITokenAmount.UIAmount != nil {
			sum += *b.UITokenAmount.UIAmount
		}
	}
	if !found {
		return nil
	}
	return &sum
}
