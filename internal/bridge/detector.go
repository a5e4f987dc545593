package bridge

import (
	"regexp"
	"strings"
)

// runRe matches maximal base58 runs. Mint candidates are runs of 32-44
// characters; longer runs (signatures, garbage) are rejected whole, which
// matches lookaround boundary semantics without lookaround support.
var runRe = regexp.MustCompile(`[1-9A-HJ-NP-Za-km-z]+`)

// DetectedMint is a candidate token address found in message text,
// scored 0-100 by surrounding context.
type DetectedMint struct {
	Mint       string
	Confidence int
}

// DetectMints scans message text for base58 runs of mint length and
// scores each by nearby vocabulary. Duplicates keep their first
// occurrence.
func DetectMints(text string) []DetectedMint {
	if text == "" {
		return nil
	}

	var out []DetectedMint
	seen := make(map[string]bool)
	for _, m := range runRe.FindAllStringIndex(text, -1) {
		start, end := m[0], m[1]
		if n := end - start; n < 32 || n > 44 {
			continue
		}
		mint := text[start:end]
		if seen[mint] {
			continue
		}
		seen[mint] = true

		lo := start - 40
		if lo < 0 {
			lo = 0
		}
		hi := end + 40
		if hi > len(text) {
			hi = len(text)
		}
		window := strings.ToLower(text[lo:hi])

		score := 50
		if strings.Contains(window, "ca") || strings.Contains(window, "contract") ||
			strings.Contains(window, "mint") || strings.Contains(window, "address") {
			score += 25
		}
		if strings.Contains(window, "pump") || strings.Contains(window, "bonding") {
			score += 10
		}
		if score > 100 {
			score = 100
		}
		out = append(out, DetectedMint{Mint: mint, Confidence: score})
	}
	return out
}
