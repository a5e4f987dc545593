package pump

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	innerMessageRe      = regexp.MustCompile(`'message': '([^']+)'`)
	insufficientLampsRe = regexp.MustCompile(`insufficient lamports (\d+), need (\d+)`)
)

// FormatTxError turns raw RPC and program errors into a message fit for a
// chat notification. Unrecognized errors pass through as-is.
func FormatTxError(err error) string {
	if err == nil {
		return "Transaction failed."
	}
	msg := err.Error()
	if msg == "" {
		return "Transaction failed."
	}

	// Providers often nest the useful message inside a serialized payload.
	if m := innerMessageRe.FindStringSubmatch(msg); m != nil {
		msg = m[1]
	}
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(msg, "BondingCurveComplete"),
		strings.Contains(msg, "custom program error: 0x1775"):
		return "Bonding curve complete (migrated to Raydium)."
	case strings.Contains(lower, "accountnotfound"):
		return "Wallet has no SOL (account not funded)."
	case strings.Contains(lower, "insufficient lamports"):
		if m := insufficientLampsRe.FindStringSubmatch(msg); m != nil {
			have, _ := strconv.ParseInt(m[1], 10, 64)
			need, _ := strconv.ParseInt(m[2], 10, 64)
			return fmt.Sprintf("Insufficient SOL for fees (need %.6f, have %.6f).",
				float64(need)/1e9, float64(have)/1e9)
		}
		return "Insufficient SOL for fees."
	case strings.Contains(lower, "transaction processed but receipt not available"):
		return "Transaction submitted; awaiting confirmation."
	case strings.Contains(lower, "transaction simulation failed"):
		return "Transaction simulation failed."
	case strings.Contains(lower, "custom program error: 0x1"),
		strings.Contains(lower, "custom': 1"):
		return "Transaction failed (program error)."
	}
	return msg
}

// IsCurveComplete reports whether the error indicates the curve migrated
// to Raydium, which ends sniping on that mint.
func IsCurveComplete(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "BondingCurveComplete") ||
		strings.Contains(msg, "custom program error: 0x1775")
}
