package dashboard

import (
	"github.com/shopspring/decimal"

	"goldtracer/internal/domain"
)

// Bar colors.
const (
	ColorSupport    = "#ef4444"
	ColorPivot      = "#22c55e"
	ColorResistance = "#22c55e"
	ColorExtended   = "#fbbf24"
)

// PlaceholderPivots is shown when the backend has no pivot data. It is
// illustrative and must be labelled as such.
var PlaceholderPivots = domain.PivotSet{
	R3: mustNumber("2382.4"),
	R2: mustNumber("2368.1"),
	R1: mustNumber("2354.8"),
	P:  mustNumber("2332.1"),
	S1: mustNumber("2315.5"),
	S2: mustNumber("2298.9"),
}

// PlaceholderBars is the bar series shown when the backend has no pivot data.
var PlaceholderBars = []Bar{
	{Label: "S2", Value: 120, Color: ColorSupport},
	{Label: "S1", Value: 110, Color: ColorSupport},
	{Label: "Pivot", Value: 140, Color: ColorPivot},
	{Label: "R1", Value: 180, Color: ColorResistance},
	{Label: "R2", Value: 160, Color: ColorResistance},
	{Label: "R3", Value: 240, Color: ColorExtended},
}

func mustNumber(s string) domain.Number {
	n, err := domain.ParseNumber(s)
	if err != nil {
		panic(err)
	}
	return n
}

// PivotView is the resolved pivot set for one timeframe.
type PivotView struct {
	Timeframe   domain.Timeframe
	Set         domain.PivotSet
	Placeholder bool
}

// ResolvePivots picks the pivot set for tf from the snapshot's strategy. It
// falls back to the flat legacy set, then to PlaceholderPivots.
func ResolvePivots(snap *domain.Snapshot, tf domain.Timeframe) PivotView {
	if snap != nil && snap.Strategy != nil {
		if set, ok := snap.Strategy.PivotPoints.Resolve(tf); ok {
			return PivotView{Timeframe: tf, Set: set}
		}
	}
	return PivotView{Timeframe: tf, Set: PlaceholderPivots, Placeholder: true}
}

// LadderRow is one line of the pivot table.
type LadderRow struct {
	Key   string
	Label string
	Value string
	Pivot bool
}

// Ladder returns the pivot table from the top resistance down. R3 is listed
// only when present.
func (v PivotView) Ladder() []LadderRow {
	s := v.Set
	rows := make([]LadderRow, 0, 6)
	if s.R3.Valid {
		rows = append(rows, LadderRow{Key: "R3", Label: "R3 (extreme resistance)", Value: FormatNumber(s.R3, 1)})
	}
	rows = append(rows,
		LadderRow{Key: "R2", Label: "R2 (strong resistance)", Value: FormatNumber(s.R2, 1)},
		LadderRow{Key: "R1", Label: "R1 (weak resistance)", Value: FormatNumber(s.R1, 1)},
		LadderRow{Key: "P", Label: "PIVOT (balance)", Value: FormatNumber(s.P, 1), Pivot: true},
		LadderRow{Key: "S1", Label: "S1 (weak support)", Value: FormatNumber(s.S1, 1)},
		LadderRow{Key: "S2", Label: "S2 (strong support)", Value: FormatNumber(s.S2, 1)},
	)
	return rows
}

// Bar is one entry of the pivot bar chart.
type Bar struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Color string  `json:"color"`
}

// PivotBars maps the view into the fixed bar order S2, S1, Pivot, R1, R2, with
// R3 appended when present. A placeholder view yields PlaceholderBars.
func PivotBars(v PivotView) []Bar {
	if v.Placeholder {
		out := make([]Bar, len(PlaceholderBars))
		copy(out, PlaceholderBars)
		return out
	}
	s := v.Set
	bars := []Bar{
		{Label: "S2", Value: s.S2.Float(), Color: ColorSupport},
		{Label: "S1", Value: s.S1.Float(), Color: ColorSupport},
		{Label: "Pivot", Value: s.P.Float(), Color: ColorPivot},
		{Label: "R1", Value: s.R1.Float(), Color: ColorResistance},
		{Label: "R2", Value: s.R2.Float(), Color: ColorResistance},
	}
	if s.R3.Valid {
		bars = append(bars, Bar{Label: "R3", Value: s.R3.Float(), Color: ColorExtended})
	}
	return bars
}

// StandardPivots computes classic floor-trader pivots from the prior period's
// high, low and close, rounded to two decimals.
func StandardPivots(high, low, closePx decimal.Decimal) domain.PivotSet {
	three := decimal.NewFromInt(3)
	two := decimal.NewFromInt(2)
	p := high.Add(low).Add(closePx).Div(three)
	rng := high.Sub(low)

	num := func(d decimal.Decimal) domain.Number {
		return domain.Number{Value: d.Round(2), Valid: true}
	}
	return domain.PivotSet{
		P:  num(p),
		R1: num(two.Mul(p).Sub(low)),
		S1: num(two.Mul(p).Sub(high)),
		R2: num(p.Add(rng)),
		S2: num(p.Sub(rng)),
	}
}
