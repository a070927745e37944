package utils

import "strings"

// IsSymbol reports whether s is a non-empty run of ASCII letters and digits,
// the only characters exchange pair names use.
func IsSymbol(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'A' && r <= 'Z') && !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// BaseAsset strips the quote suffix from symbol: BTCUSDT with quote USDT is BTC.
// It returns "" when symbol is not quoted in quote or has no base part.
func BaseAsset(symbol, quote string) string {
	if quote == "" || !strings.HasSuffix(symbol, quote) {
		return ""
	}
	return strings.TrimSuffix(symbol, quote)
}
