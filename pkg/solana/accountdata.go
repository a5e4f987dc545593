package solana

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnsupportedAccountData = errors.New("solana: unsupported account data encoding")

// NormalizeAccountData decodes the account `data` field from a JSON-RPC
// response into raw bytes. Providers wrap the payload differently:
//
//	"BASE64"
//	["BASE64", "base64"]
//	[["BASE64"], "base64"]
//	["BASE64"]
//
// Unknown shapes return ErrUnsupportedAccountData rather than panicking.
func NormalizeAccountData(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 {
		return nil, ErrUnsupportedAccountData
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return decodeB64(s)
	}

	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) == 0 {
		return nil, ErrUnsupportedAccountData
	}

	first := arr[0]
	if err := json.Unmarshal(first, &s); err == nil {
		return decodeB64(s)
	}
	var inner []string
	if err := json.Unmarshal(first, &inner); err == nil && len(inner) > 0 {
		return decodeB64(inner[0])
	}
	return nil, ErrUnsupportedAccountData
}

func decodeB64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedAccountData, err)
	}
	return b, nil
}
