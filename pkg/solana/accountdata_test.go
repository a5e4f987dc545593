package solana

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
)

func TestNormalizeAccountData(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0x04}
	b64 := base64.StdEncoding.EncodeToString(payload)

	cases := []struct {
		name string
		raw  string
	}{
		{"bare string", `"` + b64 + `"`},
		{"pair with encoding tag", `["` + b64 + `", "base64"]`},
		{"nested list", `[["` + b64 + `"], "base64"]`},
		{"single element list", `["` + b64 + `"]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeAccountData(json.RawMessage(tc.raw))
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Errorf("got %x, want %x", got, payload)
			}
		})
	}
}

func TestNormalizeAccountDataRejectsGarbage(t *testing.T) {
	for _, raw := range []string{``, `{}`, `[]`, `123`, `"not base64!!!"`} {
		if _, err := NormalizeAccountData(json.RawMessage(raw)); !errors.Is(err, ErrUnsupportedAccountData) {
			t.Errorf("raw %q: got %v, want ErrUnsupportedAccountData", raw, err)
		}
	}
}
