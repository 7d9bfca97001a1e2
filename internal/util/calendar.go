package util

import "time"

// Region is a regional gold trading session.
type Region string

const (
	RegionAsia   Region = "Asia"
	RegionEurope Region = "Europe"
	RegionUS     Region = "US"
)

// Session is a fixed daily trading window in UTC hours, [Open, Close).
type Session struct {
	Region Region
	Open   int
	Close  int
}

// Sessions lists the regional windows in display order. Windows overlap.
var Sessions = []Session{
	{Region: RegionAsia, Open: 0, Close: 9},
	{Region: RegionEurope, Open: 7, Close: 16},
	{Region: RegionUS, Open: 13, Close: 22},
}

// IsOpenAt reports whether the session covers the given UTC hour.
func (s Session) IsOpenAt(hour int) bool {
	return hour >= s.Open && hour < s.Close
}

// OpenRegions returns every region whose window covers t's UTC hour. The
// result may be empty or list several regions.
func OpenRegions(t time.Time) []Region {
	hour := t.UTC().Hour()
	var out []Region
	for _, s := range Sessions {
		if s.IsOpenAt(hour) {
			out = append(out, s.Region)
		}
	}
	return out
}

// SessionStates reports open/closed for every region, keyed by region.
func SessionStates(t time.Time) map[Region]bool {
	hour := t.UTC().Hour()
	states := make(map[Region]bool, len(Sessions))
	for _, s := range Sessions {
		states[s.Region] = s.IsOpenAt(hour)
	}
	return states
}
