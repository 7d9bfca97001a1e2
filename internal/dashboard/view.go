package dashboard

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"goldtracer/internal/domain"
)

// MeetingInProgress is the countdown text once the meeting time has passed.
const MeetingInProgress = "meeting in progress"

// Countdown renders the time remaining until meeting as whole days, hours
// (mod 24) and minutes (mod 60), truncated. A zero meeting yields "".
func Countdown(meeting, now time.Time) string {
	if meeting.IsZero() {
		return ""
	}
	diff := meeting.Sub(now)
	if diff <= 0 {
		return MeetingInProgress
	}
	total := int64(diff / time.Minute)
	days := total / (24 * 60)
	hours := (total / 60) % 24
	minutes := total % 60
	return fmt.Sprintf("%s %s %s",
		plural(days, "day"), plural(hours, "hour"), plural(minutes, "minute"))
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// SnapshotCountdown computes the countdown from the snapshot's FedWatch
// meeting time. It is safe on a nil snapshot.
func SnapshotCountdown(snap *domain.Snapshot, now time.Time) string {
	at, ok := snap.FedWatch().MeetingAt()
	if !ok {
		return ""
	}
	return Countdown(at, now)
}

// DefaultSentiment is the gauge position when the indicator is absent.
const DefaultSentiment = 78

// SentimentGauge returns the risk-aversion gauge position in 0..100.
func SentimentGauge(snap *domain.Snapshot) float64 {
	m, ok := FindMacro(snap, MacroRiskAversion)
	if !ok || !m.Value.Valid {
		return DefaultSentiment
	}
	v := m.Value.Float()
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

// AdviceCard is the display form of the trade advice block.
type AdviceCard struct {
	Present    bool
	Entry      string
	Target     string
	Stop       string
	Confidence string
	Rationale  string
}

const defaultRationale = "Awaiting strategy synchronization."

// BuildAdviceCard formats the strategy's trade advice. Absent advice yields
// a card with placeholders and Present false.
func BuildAdviceCard(snap *domain.Snapshot) AdviceCard {
	if snap == nil || snap.Strategy == nil || snap.Strategy.TradeAdvice == nil {
		return AdviceCard{
			Entry:      Placeholder,
			Target:     Placeholder,
			Stop:       Placeholder,
			Confidence: PercentPlaceholder,
			Rationale:  defaultRationale,
		}
	}
	a := snap.Strategy.TradeAdvice
	note := strings.TrimSpace(a.Note)
	if note == "" {
		note = snap.Strategy.AISummary
	}
	if note == "" {
		note = defaultRationale
	}
	return AdviceCard{
		Present:    true,
		Entry:      a.Entry.StringFixed(2),
		Target:     FormatPrice(a.Target),
		Stop:       FormatPrice(a.Stop),
		Confidence: FormatConfidence(a.Confidence),
		Rationale:  note,
	}
}

// Header is the ticker strip across the top of the terminal.
type Header struct {
	Gold       string
	GoldChange string
	USDCNY     string
	DXY        string
	Nominal    string
	Real       string
	Sentiment  float64
	Countdown  string
}

// BuildHeader assembles the ticker strip from the snapshot.
func BuildHeader(snap *domain.Snapshot, now time.Time) Header {
	h := Header{
		Gold:       Placeholder,
		GoldChange: Placeholder,
		USDCNY:     Placeholder,
		DXY:        Placeholder,
		Nominal:    PercentPlaceholder,
		Real:       PercentPlaceholder,
		Sentiment:  SentimentGauge(snap),
		Countdown:  SnapshotCountdown(snap, now),
	}
	if q, ok := FindTicker(snap, SymbolGold); ok {
		h.Gold = FormatPrice(q.LastPrice)
		h.GoldChange = FormatChange(q.ChangePercent)
	}
	if q, ok := FindTicker(snap, SymbolUSDCNY); ok {
		h.USDCNY = FormatNumber(q.LastPrice, 4)
	}
	if q, ok := FindTicker(snap, SymbolDXY); ok {
		h.DXY = FormatPrice(q.LastPrice)
	}
	if q, ok := FindTicker(snap, SymbolTNX); ok {
		h.Nominal = FormatYield(q.LastPrice)
	}
	if m, ok := FindMacro(snap, MacroRealYield); ok {
		h.Real = FormatYield(m.Value)
	}
	return h
}

// IntelStream returns the snapshot's news feed, or extra when the snapshot
// has none, newest first and at most limit items.
func IntelStream(snap *domain.Snapshot, extra []domain.NewsItem, limit int) []domain.NewsItem {
	src := extra
	if snap != nil && len(snap.News) > 0 {
		src = snap.News
	}
	out := make([]domain.NewsItem, 0, len(src))
	for _, it := range src {
		if !it.Kind.Valid() {
			it.Kind = domain.NewsFlash
		}
		out = append(out, it)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
