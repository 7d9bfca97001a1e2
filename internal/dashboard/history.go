package dashboard

import (
	"math"
	"strings"

	"goldtracer/internal/domain"
)

// Series selects one yield line of the history chart.
type Series int

const (
	SeriesNominal Series = iota
	SeriesReal
	SeriesBreakeven
)

func (s Series) String() string {
	switch s {
	case SeriesNominal:
		return "Nominal"
	case SeriesReal:
		return "Real"
	case SeriesBreakeven:
		return "Breakeven"
	}
	return "?"
}

func (s Series) pick(p domain.HistoryPoint) domain.Number {
	switch s {
	case SeriesNominal:
		return p.NominalYield
	case SeriesReal:
		return p.RealYield
	default:
		return p.BreakevenInflation
	}
}

// SeriesStats summarizes one series over the loaded history. Count is the
// number of dates carrying a value; Min, Max and Last are zero when Count is 0.
type SeriesStats struct {
	Count int
	Min   float64
	Max   float64
	Last  float64
	First float64
}

// Change is Last - First.
func (s SeriesStats) Change() float64 { return s.Last - s.First }

// Stats summarizes series s, skipping dates where it is absent.
func Stats(points []domain.HistoryPoint, s Series) SeriesStats {
	st := SeriesStats{Min: math.MaxFloat64, Max: -math.MaxFloat64}
	for _, p := range points {
		n := s.pick(p)
		if !n.Valid {
			continue
		}
		v := n.Float()
		if st.Count == 0 {
			st.First = v
		}
		st.Count++
		st.Last = v
		st.Min = math.Min(st.Min, v)
		st.Max = math.Max(st.Max, v)
	}
	if st.Count == 0 {
		return SeriesStats{}
	}
	return st
}

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders series s as a single line of block glyphs, at most width
// runes wide (the most recent points are kept). Absent values render as a
// space.
func Sparkline(points []domain.HistoryPoint, s Series, width int) string {
	if width <= 0 || len(points) == 0 {
		return ""
	}
	if len(points) > width {
		points = points[len(points)-width:]
	}
	st := Stats(points, s)
	if st.Count == 0 {
		return strings.Repeat(" ", len(points))
	}
	span := st.Max - st.Min

	var b strings.Builder
	for _, p := range points {
		n := s.pick(p)
		if !n.Valid {
			b.WriteByte(' ')
			continue
		}
		idx := len(sparkRunes) / 2
		if span > 0 {
			idx = int((n.Float() - st.Min) / span * float64(len(sparkRunes)-1))
		}
		b.WriteRune(sparkRunes[idx])
	}
	return b.String()
}
