// Package domain defines the dashboard data model shared by the client, the
// derived views, the scheduler and the chat session.
package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Number
// ---------------------------------------------------------------------------

// Number is an optional decimal. The backend sends numbers, numeric strings
// and nulls interchangeably; anything that does not parse decodes as absent.
type Number struct {
	Value decimal.Decimal
	Valid bool
}

// NumberOf wraps a float as a present Number.
func NumberOf(f float64) Number {
	return Number{Value: decimal.NewFromFloat(f), Valid: true}
}

// ParseNumber parses s as a present Number.
func ParseNumber(s string) (Number, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Number{}, err
	}
	return Number{Value: d, Valid: true}, nil
}

// Float returns the value as float64, or 0 when absent.
func (n Number) Float() float64 {
	if !n.Valid {
		return 0
	}
	f, _ := n.Value.Float64()
	return f
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(b []byte) error {
	*n = Number{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	n.Value, n.Valid = d, true
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return []byte(n.Value.String()), nil
}

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// TickerQuote is one row of the backend market cache.
type TickerQuote struct {
	Ticker        string `json:"ticker"`
	LastPrice     Number `json:"last_price"`
	ChangePercent Number `json:"change_percent"`
	OpenPrice     Number `json:"open_price"`
	HighPrice     Number `json:"high_price"`
	LowPrice      Number `json:"low_price"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

// MacroIndicator is a named macro series value.
type MacroIndicator struct {
	Name        string `json:"indicator_name"`
	Value       Number `json:"value"`
	Unit        string `json:"unit,omitempty"`
	ChangeValue Number `json:"change_value"`
	IsStale     bool   `json:"is_stale,omitempty"`
	Source      string `json:"source,omitempty"`
}

// InstitutionalStat is a positioning or flow record (CFTC, ETF holdings).
type InstitutionalStat struct {
	Category    string `json:"category"`
	Label       string `json:"label"`
	Value       Number `json:"value"`
	ChangeValue Number `json:"change_value"`
}

// ---------------------------------------------------------------------------
// Strategy
// ---------------------------------------------------------------------------

// TradeAdvice is the backend's entry/target/stop recommendation.
type TradeAdvice struct {
	Entry      decimal.Decimal `json:"entry"`
	Target     Number          `json:"tp"`
	Stop       Number          `json:"sl"`
	Confidence float64         `json:"confidence"`
	Note       string          `json:"note,omitempty"`
}

// FedWatchState is the implied-probability view of the next FOMC meeting.
type FedWatchState struct {
	MeetingName  string `json:"meeting_name,omitempty"`
	MeetingDate  string `json:"meeting_date,omitempty"`
	MeetingTime  string `json:"meeting_time,omitempty"`
	MeetingAtUTC string `json:"meeting_datetime_utc,omitempty"`
	ProbPause    Number `json:"prob_pause"`
	ProbCut25    Number `json:"prob_cut_25"`
	ImpliedRate  Number `json:"implied_rate"`
	CurrentRate  Number `json:"current_rate"`
	DataSource   string `json:"data_source,omitempty"`
	LastVerified string `json:"last_verified,omitempty"`
}

// MeetingAt parses the meeting datetime. ok is false when none is
// configured or it does not parse.
func (f *FedWatchState) MeetingAt() (t time.Time, ok bool) {
	if f == nil || f.MeetingAtUTC == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, f.MeetingAtUTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Strategy is the day's technical plan.
type Strategy struct {
	LogDate     string         `json:"log_date"`
	AISummary   string         `json:"ai_summary,omitempty"`
	PivotPoints PivotPoints    `json:"pivot_points"`
	TradeAdvice *TradeAdvice   `json:"-"`
	FedWatch    *FedWatchState `json:"fedwatch,omitempty"`
}

type strategyWire struct {
	LogDate     string          `json:"log_date"`
	AISummary   string          `json:"ai_summary,omitempty"`
	PivotPoints PivotPoints     `json:"pivot_points"`
	TradeAdvice json.RawMessage `json:"trade_advice,omitempty"`
	FedWatch    *FedWatchState  `json:"fedwatch,omitempty"`
}

// UnmarshalJSON decodes the strategy block. TradeAdvice is set only when the
// payload carries a non-null entry price.
func (s *Strategy) UnmarshalJSON(b []byte) error {
	var w strategyWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*s = Strategy{
		LogDate:     w.LogDate,
		AISummary:   w.AISummary,
		PivotPoints: w.PivotPoints,
		FedWatch:    w.FedWatch,
	}
	s.TradeAdvice = decodeAdvice(w.TradeAdvice)
	return nil
}

// MarshalJSON encodes the strategy block with trade_advice omitted when absent.
func (s Strategy) MarshalJSON() ([]byte, error) {
	w := strategyWire{
		LogDate:     s.LogDate,
		AISummary:   s.AISummary,
		PivotPoints: s.PivotPoints,
		FedWatch:    s.FedWatch,
	}
	if s.TradeAdvice != nil {
		raw, err := json.Marshal(s.TradeAdvice)
		if err != nil {
			return nil, err
		}
		w.TradeAdvice = raw
	}
	return json.Marshal(w)
}

func decodeAdvice(raw json.RawMessage) *TradeAdvice {
	if len(raw) == 0 {
		return nil
	}
	var probe struct {
		Entry      Number `json:"entry"`
		Target     Number `json:"tp"`
		Stop       Number `json:"sl"`
		Confidence Number `json:"confidence"`
		Note       string `json:"note"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || !probe.Entry.Valid {
		return nil
	}
	return &TradeAdvice{
		Entry:      probe.Entry.Value,
		Target:     probe.Target,
		Stop:       probe.Stop,
		Confidence: probe.Confidence.Float(),
		Note:       probe.Note,
	}
}

// ---------------------------------------------------------------------------
// Intel and analysis
// ---------------------------------------------------------------------------

// NewsKind classifies an intel stream message.
type NewsKind string

const (
	NewsFlash  NewsKind = "FLASH"
	NewsData   NewsKind = "DATA"
	NewsNotice NewsKind = "NOTICE"
	NewsAlert  NewsKind = "ALERT"
)

// Valid reports whether k is one of the known kinds.
func (k NewsKind) Valid() bool {
	switch k {
	case NewsFlash, NewsData, NewsNotice, NewsAlert:
		return true
	}
	return false
}

// NewsItem is one intel stream message.
type NewsItem struct {
	PublishedAt time.Time `json:"published_at"`
	Kind        NewsKind  `json:"type"`
	Title       string    `json:"title"`
	Content     string    `json:"content,omitempty"`
	URL         string    `json:"url,omitempty"`
	Source      string    `json:"source,omitempty"`
}

// AnalysisSOP is the backend's rule-based market read.
type AnalysisSOP struct {
	MacroSegment struct {
		Sentiment string `json:"sentiment"`
		Logic     string `json:"logic,omitempty"`
	} `json:"macro_segment"`
	Alerts struct {
		PremiumWarning bool `json:"premium_warning"`
		CrowdedWarning bool `json:"crowded_warning"`
		ETFDivergence  bool `json:"etf_divergence"`
	} `json:"alerts"`
}

// ---------------------------------------------------------------------------
// Snapshot
// ---------------------------------------------------------------------------

// Snapshot is everything one summary poll returns. It is replaced wholesale
// and never mutated after decoding.
type Snapshot struct {
	Tickers       []TickerQuote       `json:"tickers"`
	Macro         []MacroIndicator    `json:"macro"`
	Institutional []InstitutionalStat `json:"institutional"`
	Strategy      *Strategy           `json:"today_strategy,omitempty"`
	News          []NewsItem          `json:"news,omitempty"`
	Analysis      *AnalysisSOP        `json:"analysis_sop,omitempty"`
}

// FedWatch returns the strategy's FedWatch block, or nil.
func (s *Snapshot) FedWatch() *FedWatchState {
	if s == nil || s.Strategy == nil {
		return nil
	}
	return s.Strategy.FedWatch
}

// HistoryPoint is one day of the yield history chart.
type HistoryPoint struct {
	LogDate            string `json:"log_date"`
	NominalYield       Number `json:"nominal_yield"`
	RealYield          Number `json:"real_yield"`
	BreakevenInflation Number `json:"breakeven_inflation"`
}

// ---------------------------------------------------------------------------
// Enums
// ---------------------------------------------------------------------------

// ErrUnknownRange is returned for history ranges outside the supported set.
var ErrUnknownRange = errors.New("unknown history range")

// HistoryRange is the lookback window of the history chart.
type HistoryRange string

const (
	Range1D HistoryRange = "1d"
	Range1W HistoryRange = "1w"
	Range1M HistoryRange = "1mo"
	Range3M HistoryRange = "3mo"
	Range1Y HistoryRange = "1y"
)

// HistoryRanges lists the supported ranges in display order.
var HistoryRanges = []HistoryRange{Range1D, Range1W, Range1M, Range3M, Range1Y}

// ParseHistoryRange parses s case-insensitively.
func ParseHistoryRange(s string) (HistoryRange, error) {
	r := HistoryRange(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range HistoryRanges {
		if r == v {
			return r, nil
		}
	}
	return "", ErrUnknownRange
}

// Timeframe selects a pivot set.
type Timeframe string

const (
	Timeframe4H Timeframe = "4h"
	Timeframe1D Timeframe = "1d"
	Timeframe1W Timeframe = "1w"
)

// Timeframes lists pivot timeframes in display order.
var Timeframes = []Timeframe{Timeframe4H, Timeframe1D, Timeframe1W}

// ---------------------------------------------------------------------------
// Chat
// ---------------------------------------------------------------------------

// Role identifies the author of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn is one transcript entry. Timestamp is formatted when the turn is
// created and never recomputed.
type ChatTurn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp string    `json:"timestamp"`
	CreatedAt time.Time `json:"created_at"`
}
