package token

import (
	"fmt"
	"math"
	"math/big"
	"strings"
)

// ParseAmount converts a decimal string ("100", "12.5") into base units of
// a token with the given decimals. Excess fractional digits are truncated,
// never rounded up.
func ParseAmount(s string, decimals int) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(s, "-") {
		return nil, fmt.Errorf("negative amount %q", s)
	}
	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > decimals {
		frac = frac[:decimals]
	}
	frac += strings.Repeat("0", decimals-len(frac))
	out, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("bad amount %q", s)
	}
	return out, nil
}

// FormatAmount renders base units back into a decimal string, trimming
// trailing zeros from the fractional part.
func FormatAmount(x *big.Int, decimals int) string {
	if x == nil {
		return "0"
	}
	s := x.String()
	if decimals == 0 {
		return s
	}
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	cut := len(s) - decimals
	whole, frac := s[:cut], strings.TrimRight(s[cut:], "0")
	out := whole
	if frac != "" {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}

// ToFloat is lossy and only suitable for logs, metrics and scoring inputs.
func ToFloat(amount *big.Int, decimals int) float64 {
	if amount == nil {
		return 0
	}
	f := new(big.Float).SetInt(amount)
	f.Quo(f, big.NewFloat(math.Pow10(decimals)))
	val, _ := f.Float64()
	return val
}
