package chat

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"goldtracer/internal/domain"
)

const timeLayout = "2006-01-02 15:04:05"

// BuildContext serializes the parts of snap the analyst needs into the fixed
// text block embedded in the system instruction. The pivot line quotes the
// tf set, falling back to the flat set.
func BuildContext(snap *domain.Snapshot, tf domain.Timeframe, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Current Time: %s (%s Time)\n", now.In(loc).Format(timeLayout), zoneLabel(loc))

	b.WriteString("Market Data:\n")
	for _, t := range snap.Tickers {
		fmt.Fprintf(&b, "- %s: %s (%s%%)\n", t.Ticker, numberText(t.LastPrice, -1), numberText(t.ChangePercent, 2))
	}

	b.WriteString("Macro Indicators:\n")
	for _, m := range snap.Macro {
		line := fmt.Sprintf("- %s: %s %s", m.Name, numberText(m.Value, -1), m.Unit)
		b.WriteString(strings.TrimRight(line, " "))
		b.WriteByte('\n')
	}

	b.WriteString("Strategy & FedWatch:\n")
	pivot := "N/A"
	fedwatch := "{}"
	if snap.Strategy != nil {
		if set, ok := snap.Strategy.PivotPoints.Resolve(tf); ok && set.P.Valid {
			pivot = set.P.Value.String()
		}
		if snap.Strategy.FedWatch != nil {
			if raw, err := json.Marshal(snap.Strategy.FedWatch); err == nil {
				fedwatch = string(raw)
			}
		}
	}
	fmt.Fprintf(&b, "- Pivot: %s\n", pivot)
	fmt.Fprintf(&b, "- FedWatch: %s\n", fedwatch)
	return b.String()
}

// numberText renders n with fixed places, or as-is when places < 0.
func numberText(n domain.Number, places int32) string {
	if !n.Valid {
		return "N/A"
	}
	if places < 0 {
		return n.Value.String()
	}
	return n.Value.StringFixed(places)
}

func zoneLabel(loc *time.Location) string {
	name := loc.String()
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return strings.ReplaceAll(name, "_", " ")
}

// SystemInstruction wraps the context block with the analyst persona and
// the output constraints.
func SystemInstruction(contextBlock string, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf(`You are AI_CORE (Agent v5.1), an investment agent for professional gold traders.

Operating steps:
1. Data verification: before answering, silently check the market data below for internal conflicts.
2. Context: the time is %s. Market state:
%s
3. Persona: elite, skeptical, objective. Focus on institutional flows and macro policy.
4. China focus: always give concrete implications for domestic gold ETFs 518880 and 159934.
5. No generic advice.

Response format:
- Use professional trading terminology.
- Stay under 250 words.
- If data verification fails, begin the reply with '[DATA_CAUTION]'.`,
		now.In(loc).Format(timeLayout), contextBlock)
}
