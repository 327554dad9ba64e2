package model

import (
	"fmt"
	"strconv"
	"strings"
)

// PriceResult is the tagged outcome of normalizing a raw price value.
// Callers branch on OK; Original keeps the source representation for audit.
type PriceResult struct {
	Value    float64
	OK       bool
	Original string
}

// ParsePrice normalizes the shapes price data actually arrives in: plain
// numbers, strings with currency symbols and thousands separators, shorthand
// like "750k" or "1.2m", and nested {"from": x} objects. All price reads in
// the pipeline go through here; nothing parses currency ad hoc.
func ParsePrice(v any) PriceResult {
	switch t := v.(type) {
	case nil:
		return PriceResult{Original: ""}
	case float64:
		return numericPrice(t, fmt.Sprintf("%v", t))
	case float32:
		return numericPrice(float64(t), fmt.Sprintf("%v", t))
	case int:
		return numericPrice(float64(t), strconv.Itoa(t))
	case int64:
		return numericPrice(float64(t), strconv.FormatInt(t, 10))
	case string:
		return parsePriceString(t)
	case map[string]any:
		// {"from": x} wrappers from upstream feeds.
		for _, key := range []string{"from", "price", "value", "amount"} {
			if inner, ok := t[key]; ok {
				res := ParsePrice(inner)
				res.Original = fmt.Sprintf("%v", t)
				return res
			}
		}
		return PriceResult{Original: fmt.Sprintf("%v", t)}
	default:
		return PriceResult{Original: fmt.Sprintf("%v", v)}
	}
}

func numericPrice(f float64, original string) PriceResult {
	if f <= 0 {
		return PriceResult{Original: original}
	}
	return PriceResult{Value: f, OK: true, Original: original}
}

func parsePriceString(s string) PriceResult {
	original := s
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "poa" || s == "tbc" || s == "n/a" {
		return PriceResult{Original: original}
	}

	s = strings.NewReplacer("£", "", "gbp", "", ",", "", " ", "").Replace(s)

	multiplier := 1.0
	switch {
	case strings.HasSuffix(s, "m"):
		multiplier = 1_000_000
		s = strings.TrimSuffix(s, "m")
	case strings.HasSuffix(s, "k"):
		multiplier = 1_000
		s = strings.TrimSuffix(s, "k")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return PriceResult{Original: original}
	}
	return numericPrice(f*multiplier, original)
}

func normalizeToken(s string) string {
	return strings.NewReplacer(" ", "", "-", "", "_", "").Replace(strings.ToLower(strings.TrimSpace(s)))
}
