package bridge

import "testing"

const (
	mintA = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
	mintB = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
)

func TestDetectMints(t *testing.T) {
	cases := []struct {
		name string
		text string
		want []DetectedMint
	}{
		{"empty", "", nil},
		{"no candidates", "gm everyone, big news soon", nil},
		{"bare mint", "check this " + mintA, []DetectedMint{{mintA, 50}}},
		{"contract keyword boosts", "contract: " + mintA, []DetectedMint{{mintA, 75}}},
		{"pump keyword boosts", mintA + " live on pump.fun", []DetectedMint{{mintA, 60}}},
		{"both boosts", "mint " + mintA + " on pump.fun", []DetectedMint{{mintA, 85}}},
		{"two mints", mintA + " " + mintB, []DetectedMint{{mintA, 50}, {mintB, 50}}},
		{"duplicate kept once", mintA + " again " + mintA, []DetectedMint{{mintA, 50}}},
		{"too short run", "1111111111111111111111111111111", nil},
		{"overlong run rejected whole", mintA + mintA, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DetectMints(tc.text)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("hit %d = %+v, want %+v", i, got[i], tc.want[i])
				}
			}
		})
	}
}
