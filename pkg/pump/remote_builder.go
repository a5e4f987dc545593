package pump

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// RemoteBuilder delegates transaction assembly and signing to an external
// signer service. Key material never enters this process; the service
// holds the wallets and returns fully signed transactions.
type RemoteBuilder struct {
	url  string
	http *http.Client
}

func NewRemoteBuilder(url string) *RemoteBuilder {
	return &RemoteBuilder{
		url:  url,
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

type buildRequest struct {
	Action         string `json:"action"`
	Owner          string `json:"owner"`
	Mint           string `json:"mint"`
	TokenAmountRaw uint64 `json:"token_amount_raw"`
	LamportsBound  uint64 `json:"lamports_bound"`
}

type buildResponse struct {
	TxBase64 string `json:"tx_base64"`
	Error    string `json:"error"`
}

func (b *RemoteBuilder) BuildBuy(ctx context.Context, owner, mint string, tokensOutRaw, maxSolCostLamports uint64) (string, error) {
	return b.build(ctx, buildRequest{
		Action:         "buy",
		Owner:          owner,
		Mint:           mint,
		TokenAmountRaw: tokensOutRaw,
		LamportsBound:  maxSolCostLamports,
	})
}

func (b *RemoteBuilder) BuildSell(ctx context.Context, owner, mint string, tokensInRaw, minSolOutLamports uint64) (string, error) {
	return b.build(ctx, buildRequest{
		Action:         "sell",
		Owner:          owner,
		Mint:           mint,
		TokenAmountRaw: tokensInRaw,
		LamportsBound:  minSolOutLamports,
	})
}

func (b *RemoteBuilder) build(ctx context.Context, req buildRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("signer request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url+"/build", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("signer request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("signer %s: %w", req.Action, err)
	}
	defer resp.Body.Close()

	var out buildResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("signer %s: decode: %w", req.Action, err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != "" {
			return "", fmt.Errorf("signer %s: %s", req.Action, out.Error)
		}
		return "", fmt.Errorf("signer %s: status %d", req.Action, resp.StatusCode)
	}
	if out.TxBase64 == "" {
		return "", fmt.Errorf("signer %s: empty transaction", req.Action)
	}
	return out.TxBase64, nil
}
