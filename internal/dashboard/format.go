package dashboard

import (
	"fmt"
	"strings"

	"goldtracer/internal/domain"
)

// Placeholder is rendered in place of absent values. Absent is never shown
// as zero.
const (
	Placeholder        = "---"
	PercentPlaceholder = "--%"
)

// FormatInt formats an integer with comma separators.
func FormatInt(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	s := fmt.Sprintf("%d", n)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	start := len(s) % 3
	if start > 0 {
		b.WriteString(s[:start])
	}
	for i := start; i < len(s); i += 3 {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatCompact formats a large value with B/M/K suffixes.
func FormatCompact(v float64) string {
	abs := v
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 1e9:
		return fmt.Sprintf("%.1fB", v/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

// FormatNumber formats n with the given decimal places, or Placeholder.
func FormatNumber(n domain.Number, places int32) string {
	if !n.Valid {
		return Placeholder
	}
	return n.Value.StringFixed(places)
}

// FormatPrice formats a price with two decimals, or Placeholder.
func FormatPrice(n domain.Number) string {
	return FormatNumber(n, 2)
}

// FormatYield formats a yield as "4.21%", or PercentPlaceholder.
func FormatYield(n domain.Number) string {
	if !n.Valid {
		return PercentPlaceholder
	}
	return n.Value.StringFixed(2) + "%"
}

// FormatChange formats a percent change as "+0.42%" / "-1.10%", or
// Placeholder.
func FormatChange(n domain.Number) string {
	if !n.Valid {
		return Placeholder
	}
	s := n.Value.StringFixed(2)
	if n.Value.IsPositive() {
		s = "+" + s
	}
	return s + "%"
}

// FormatConfidence formats a 0..1 fraction as a percentage with one decimal.
func FormatConfidence(f float64) string {
	return fmt.Sprintf("%.1f%%", f*100)
}
