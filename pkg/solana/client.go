package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const LamportsPerSOL = 1_000_000_000

var (
	// ErrTxNotFound means the RPC node has no record of the signature.
	// The transaction may still land; callers must not treat this as failure.
	ErrTxNotFound = errors.New("solana: transaction not found")

	// ErrAccountNotFound means the queried account does not exist.
	ErrAccountNotFound = errors.New("solana: account not found")
)

// Client is a minimal Solana JSON-RPC client. All requests share one
// rate limiter so bursts of confirmations cannot exhaust the provider
// quota.
type Client struct {
	url     string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient builds a client against the given RPC endpoint. requestsPerSec
// caps the outbound request rate; zero or negative disables limiting.
func NewClient(url string, requestsPerSec float64) *Client {
	var lim *rate.Limiter
	if requestsPerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(requestsPerSec), 1)
	}
	return &Client{
		url:     url,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: lim,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d", method, resp.StatusCode)
	}

	var rr rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if rr.Error != nil {
		return fmt.Errorf("%s: %w", method, rr.Error)
	}
	if out != nil {
		if err := json.Unmarshal(rr.Result, out); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return nil
}

// GetTransaction fetches the confirmed receipt for a signature.
// Returns ErrTxNotFound while the node has not seen it.
func (c *Client) GetTransaction(ctx context.Context, signature string) (*TxReceipt, error) {
	params := []any{signature, map[string]any{
		"encoding":                       "json",
		"commitment":                     "confirmed",
		"maxSupportedTransactionVersion": 0,
	}}
	var receipt *TxReceipt
	if err := c.call(ctx, "getTransaction", params, &receipt); err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, ErrTxNotFound
	}
	return receipt, nil
}

// SignatureStatus is the node's view of a submitted signature.
type SignatureStatus struct {
	ConfirmationStatus string          `json:"confirmationStatus"`
	Err                json.RawMessage `json:"err"`
}

// Confirmed reports whether the signature reached confirmed or finalized.
func (s *SignatureStatus) Confirmed() bool {
	return s != nil && (s.ConfirmationStatus == "confirmed" || s.ConfirmationStatus == "finalized")
}

// GetSignatureStatus queries getSignatureStatuses with history search on.
// A nil status means the node has not seen the signature.
func (c *Client) GetSignatureStatus(ctx context.Context, signature string) (*SignatureStatus, error) {
	params := []any{[]string{signature}, map[string]any{"searchTransactionHistory": true}}
	var result struct {
		Value []*SignatureStatus `json:"value"`
	}
	if err := c.call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return nil, err
	}
	if len(result.Value) == 0 {
		return nil, nil
	}
	return result.Value[0], nil
}

// GetBalance returns the account's lamport balance.
func (c *Client) GetBalance(ctx context.Context, pubkey string) (int64, error) {
	var result struct {
		Value int64 `json:"value"`
	}
	if err := c.call(ctx, "getBalance", []any{pubkey}, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}

// GetTokenBalance sums the owner's UI balance for a mint across all of the
// owner's token accounts.
func (c *Client) GetTokenBalance(ctx context.Context, owner, mint string) (float64, error) {
	params := []any{owner, map[string]any{"mint": mint}, map[string]any{"encoding": "jsonParsed"}}
	var result struct {
		Value []struct {
			Account struct {
				Data struct {
					Parsed struct {
						Info struct {
							TokenAmount struct {
								UIAmount *float64 `json:"uiAmount"`
							} `json:"tokenAmount"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getTokenAccountsByOwner", params, &result); err != nil {
		return 0, err
	}
	var sum float64
	for _, v := range result.Value {
		if ui := v.Account.Data.Parsed.Info.TokenAmount.UIAmount; ui != nil {
			sum += *ui
		}
	}
	return sum, nil
}

// GetAccountData fetches and decodes an account's raw data bytes,
// tolerating the base64 wrapper variants providers use.
func (c *Client) GetAccountData(ctx context.Context, pubkey string) ([]byte, error) {
	params := []any{pubkey, map[string]any{"encoding": "base64"}}
	var result struct {
		Value *struct {
			Data json.RawMessage `json:"data"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}
	if result.Value == nil {
		return nil, ErrAccountNotFound
	}
	return NormalizeAccountData(result.Value.Data)
}

// GetMintDecimals reads the decimals byte from the SPL mint layout
// (byte 44; token-2022 keeps the base region in place).
func (c *Client) GetMintDecimals(ctx context.Context, mint string) (int, error) {
	data, err := c.GetAccountData(ctx, mint)
	if err != nil {
		return 0, err
	}
	if len(data) < 45 {
		return 0, fmt.Errorf("solana: mint data too short: %d bytes", len(data))
	}
	return int(data[44]), nil
}

// GetLatestBlockhash returns a recent blockhash at processed commitment.
func (c *Client) GetLatestBlockhash(ctx context.Context) (string, error) {
	params := []any{map[string]any{"commitment": "processed"}}
	var result struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getLatestBlockhash", params, &result); err != nil {
		return "", err
	}
	return result.Value.Blockhash, nil
}

// SendTransaction submits a base64-encoded signed transaction and returns
// its signature. Preflight stays on so obvious failures surface before
// the confirmation loop.
func (c *Client) SendTransaction(ctx context.Context, txBase64 string) (string, error) {
	params := []any{txBase64, map[string]any{"encoding": "base64", "skipPreflight": false}}
	var sig string
	if err := c.call(ctx, "sendTransaction", params, &sig); err != nil {
		return "", err
	}
	return sig, nil
}
