// Package httpapi provides a local HTTP API mirroring the terminal: the
// derived dashboard view, the history series and the chat transcript in
// JSON, plus Prometheus metrics.
package httpapi

import (
	"time"

	"goldtracer/internal/dashboard"
	"goldtracer/internal/domain"
)

// HeaderJSON is the ticker strip.
type HeaderJSON struct {
	Gold       string  `json:"gold"`
	GoldChange string  `json:"goldChange"`
	USDCNY     string  `json:"usdCny"`
	DXY        string  `json:"dxy"`
	Nominal    string  `json:"nominalYield"`
	Real       string  `json:"realYield"`
	Sentiment  float64 `json:"sentiment"`
	Countdown  string  `json:"countdown"`
}

// LadderRowJSON is one pivot table row.
type LadderRowJSON struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
	Pivot bool   `json:"pivot,omitempty"`
}

// PivotsJSON is the resolved pivot view for one timeframe.
type PivotsJSON struct {
	Timeframe   string          `json:"timeframe"`
	Placeholder bool            `json:"placeholder"`
	Ladder      []LadderRowJSON `json:"ladder"`
	Bars        []dashboard.Bar `json:"bars"`
}

// AdviceJSON is the trade advice card.
type AdviceJSON struct {
	Present    bool   `json:"present"`
	Entry      string `json:"entry"`
	Target     string `json:"target"`
	Stop       string `json:"stop"`
	Confidence string `json:"confidence"`
	Rationale  string `json:"rationale"`
}

// SessionJSON is one regional session indicator.
type SessionJSON struct {
	Region string `json:"region"`
	Open   bool   `json:"open"`
}

// ViewResponse is the full derived dashboard.
type ViewResponse struct {
	Synced     bool                `json:"synced"`
	SnapshotAt *time.Time          `json:"snapshotAt,omitempty"`
	Header     HeaderJSON          `json:"header"`
	Pivots     PivotsJSON          `json:"pivots"`
	Advice     AdviceJSON          `json:"advice"`
	Sessions   []SessionJSON       `json:"sessions"`
	Intel      []domain.NewsItem   `json:"intel"`
	Analysis   *domain.AnalysisSOP `json:"analysis,omitempty"`
}

// SeriesJSON summarizes one history series.
type SeriesJSON struct {
	Name   string  `json:"name"`
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Last   float64 `json:"last"`
	Change float64 `json:"change"`
}

// HistoryResponse is the currently selected history range.
type HistoryResponse struct {
	Range  string                `json:"range"`
	Loaded bool                  `json:"loaded"`
	Points []domain.HistoryPoint `json:"points"`
	Series []SeriesJSON          `json:"series"`
}

// TranscriptResponse is the chat transcript.
type TranscriptResponse struct {
	Busy  bool              `json:"busy"`
	Turns []domain.ChatTurn `json:"turns"`
}

func convertHeader(h dashboard.Header) HeaderJSON {
	return HeaderJSON{
		Gold:       h.Gold,
		GoldChange: h.GoldChange,
		USDCNY:     h.USDCNY,
		DXY:        h.DXY,
		Nominal:    h.Nominal,
		Real:       h.Real,
		Sentiment:  h.Sentiment,
		Countdown:  h.Countdown,
	}
}

func convertPivots(v dashboard.PivotView) PivotsJSON {
	rows := v.Ladder()
	ladder := make([]LadderRowJSON, len(rows))
	for i, r := range rows {
		ladder[i] = LadderRowJSON{Key: r.Key, Label: r.Label, Value: r.Value, Pivot: r.Pivot}
	}
	return PivotsJSON{
		Timeframe:   string(v.Timeframe),
		Placeholder: v.Placeholder,
		Ladder:      ladder,
		Bars:        dashboard.PivotBars(v),
	}
}

func convertAdvice(c dashboard.AdviceCard) AdviceJSON {
	return AdviceJSON{
		Present:    c.Present,
		Entry:      c.Entry,
		Target:     c.Target,
		Stop:       c.Stop,
		Confidence: c.Confidence,
		Rationale:  c.Rationale,
	}
}

func convertSeries(points []domain.HistoryPoint) []SeriesJSON {
	all := []dashboard.Series{dashboard.SeriesNominal, dashboard.SeriesReal, dashboard.SeriesBreakeven}
	out := make([]SeriesJSON, 0, len(all))
	for _, s := range all {
		st := dashboard.Stats(points, s)
		out = append(out, SeriesJSON{
			Name:   s.String(),
			Count:  st.Count,
			Min:    st.Min,
			Max:    st.Max,
			Last:   st.Last,
			Change: st.Change(),
		})
	}
	return out
}
