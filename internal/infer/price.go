package infer

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/structharvest/harvester/internal/capsule"
)

// TinyPriceThreshold is the post-merge guardrail cutoff: a resolved price
// under this value is treated as noise (a misparsed quantity or rating) and
// dropped from content.
const TinyPriceThreshold = 5.00

// ReasonTinyPrice is recorded in the report when the guardrail fires.
const ReasonTinyPrice = "tiny_price"

// matchPrice finds the first amount carrying an explicit currency marker.
// Amounts with no symbol or ISO code are never extracted.
func matchPrice(text string) (amount, currency string, ok bool) {
	if m := priceSymbolPattern.FindStringSubmatch(text); m != nil {
		return normalizeAmount(m[2]), currencyCode(m[1]), true
	}
	if m := priceTrailingPattern.FindStringSubmatch(text); m != nil {
		return normalizeAmount(m[1]), currencyCode(m[2]), true
	}
	return "", "", false
}

func currencyCode(marker string) string {
	if code, ok := symbolCurrency[marker]; ok {
		return code
	}
	return strings.ToUpper(marker)
}

// normalizeAmount turns a matched amount into a plain decimal string. Mixed
// separators are resolved by treating the last one as the decimal point;
// a lone separator is decimal only when followed by one or two digits
// (so "1.234,56" -> "1234.56" and "1,234" -> "1234"). This is a documented
// baseline, not a full locale parser.
func normalizeAmount(raw string) string {
	raw = strings.ReplaceAll(raw, " ", "")
	lastDot := strings.LastIndex(raw, ".")
	lastComma := strings.LastIndex(raw, ",")

	decimalAt := -1
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			decimalAt = lastComma
		} else {
			decimalAt = lastDot
		}
	case lastDot >= 0:
		if d := len(raw) - lastDot - 1; d >= 1 && d <= 2 {
			decimalAt = lastDot
		}
	case lastComma >= 0:
		if d := len(raw) - lastComma - 1; d >= 1 && d <= 2 {
			decimalAt = lastComma
		}
	}

	var whole, frac string
	if decimalAt >= 0 {
		whole, frac = raw[:decimalAt], raw[decimalAt+1:]
	} else {
		whole = raw
	}
	whole = strings.Map(digitsOnly, whole)
	frac = strings.Map(digitsOnly, frac)
	if whole == "" {
		whole = "0"
	}
	if frac != "" {
		return whole + "." + frac
	}
	return whole
}

func digitsOnly(r rune) rune {
	if r >= '0' && r <= '9' {
		return r
	}
	return -1
}

// NormalizeContentPrice rewrites a merged price that still carries a
// currency marker ("$49.99") into a plain decimal amount plus a separate
// priceCurrency field. An already-set priceCurrency is left alone.
func NormalizeContentPrice(content map[string]any) {
	raw, ok := content["price"].(string)
	if !ok {
		return
	}
	amount, currency, matched := matchPrice(raw)
	if !matched {
		return
	}
	content["price"] = amount
	if currency != "" {
		if _, exists := content["priceCurrency"]; !exists {
			content["priceCurrency"] = currency
		}
	}
}

// ApplyPriceGuardrail drops a small positive resolved price from merged
// content after the merge step and notes the removal in the report.
func ApplyPriceGuardrail(content map[string]any, report *capsule.Report) {
	raw, ok := content["price"]
	if !ok {
		return
	}
	value, ok := priceValue(raw)
	if !ok || value <= 0 || value >= TinyPriceThreshold {
		return
	}
	delete(content, "price")
	delete(content, "priceCurrency")
	report.RemovedFields = append(report.RemovedFields, capsule.Removal{
		Field:  "price",
		Reason: ReasonTinyPrice,
	})
}

func priceValue(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
