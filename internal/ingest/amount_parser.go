package ingest

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	moneyRe = regexp.MustCompile(`\$?\s*([\d,]+(?:\.\d+)?)\s*([kKmM])?`)
	digitRe = regexp.MustCompile(`\d`)
)

// parseAmountRange extracts a dollar range from free text. Handles
// "$5,000 - $25,000", "up to $50k", "minimum $10,000", "$1.5M" and plain
// numbers. Returns ok=false when no monetary value can be recognized.
func parseAmountRange(text string) (min, max *float64, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" || !digitRe.MatchString(text) {
		return nil, nil, false
	}

	lower := strings.ToLower(text)
	values := extractMoneyValues(text)
	if len(values) == 0 {
		return nil, nil, false
	}

	switch {
	case len(values) >= 2:
		lo, hi := values[0], values[1]
		if lo > hi {
			lo, hi = hi, lo
		}
		return &lo, &hi, true
	case strings.Contains(lower, "up to") || strings.Contains(lower, "maximum") || strings.Contains(lower, "max"):
		return nil, &values[0], true
	case strings.Contains(lower, "minimum") || strings.Contains(lower, "at least") || strings.Contains(lower, "min"):
		return &values[0], nil, true
	default:
		// Single value with no qualifier reads as the award ceiling.
		return nil, &values[0], true
	}
}

// extractMoneyValues pulls up to two numeric values from text, applying
// k/M suffix multipliers. Bare numbers under 100 without a dollar sign are
// skipped to avoid picking up "5 years" or "3 awards".
func extractMoneyValues(text string) []float64 {
	matches := moneyRe.FindAllStringSubmatch(text, 4)
	values := make([]float64, 0, 2)
	for _, m := range matches {
		raw := strings.ReplaceAll(m[1], ",", "")
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		switch strings.ToLower(m[2]) {
		case "k":
			v *= 1_000
		case "m":
			v *= 1_000_000
		}
		if !strings.Contains(m[0], "$") && m[2] == "" && v < 100 {
			continue
		}
		values = append(values, v)
		if len(values) == 2 {
			break
		}
	}
	return values
}
