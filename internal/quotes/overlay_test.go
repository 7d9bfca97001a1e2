package quotes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"goldtracer/internal/domain"
	"goldtracer/internal/util"
)

type fakeBars struct {
	symbols []string
	req     marketdata.GetBarsRequest
	bars    map[string][]marketdata.Bar
	err     error
}

func (f *fakeBars) GetMultiBars(symbols []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error) {
	f.symbols, f.req = symbols, req
	return f.bars, f.err
}

func TestOverlayFetch(t *testing.T) {
	d1 := time.Date(2026, 3, 12, 4, 0, 0, 0, time.UTC)
	d2 := d1.Add(24 * time.Hour)
	fb := &fakeBars{bars: map[string][]marketdata.Bar{
		"IAU": {{Timestamp: d2, Open: 50, High: 51, Low: 49.5, Close: 50.5}},
		"GLD": {
			{Timestamp: d2, Open: 216, High: 220, Low: 215, Close: 218},
			{Timestamp: d1, Close: 200},
		},
		"SGOL": {},
	}}
	o := NewOverlay(fb, []string{" gld", "IAU", ""}, util.NewRateLimiter(60))
	now := d2.Add(12 * time.Hour)

	quotes, err := o.Fetch(context.Background(), now)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(fb.symbols) != 2 || fb.symbols[0] != "GLD" {
		t.Errorf("requested symbols = %v, want [GLD IAU]", fb.symbols)
	}
	if fb.req.TimeFrame != marketdata.OneDay {
		t.Errorf("TimeFrame = %v, want OneDay", fb.req.TimeFrame)
	}
	if len(quotes) != 2 {
		t.Fatalf("got %d quotes, want 2", len(quotes))
	}

	gld := quotes[0]
	if gld.Ticker != "GLD" {
		t.Fatalf("quotes[0].Ticker = %s, want GLD", gld.Ticker)
	}
	if got := gld.LastPrice.Value.String(); got != "218" {
		t.Errorf("GLD last = %s, want 218", got)
	}
	if got := gld.ChangePercent.Value.String(); got != "9" {
		t.Errorf("GLD change = %s, want 9", got)
	}

	iau := quotes[1]
	if iau.ChangePercent.Valid {
		t.Errorf("IAU change with one bar = %v, want absent", iau.ChangePercent.Value)
	}
}

func TestOverlayFetchError(t *testing.T) {
	o := NewOverlay(&fakeBars{err: errors.New("forbidden")}, []string{"GLD"}, nil)
	if _, err := o.Fetch(context.Background(), time.Now()); err == nil {
		t.Error("Fetch returned nil error on client failure")
	}
}

func TestOverlayNoSymbols(t *testing.T) {
	fb := &fakeBars{}
	quotes, err := NewOverlay(fb, nil, nil).Fetch(context.Background(), time.Now())
	if err != nil || quotes != nil {
		t.Errorf("Fetch = %v, %v, want nil, nil", quotes, err)
	}
	if fb.symbols != nil {
		t.Error("client called without symbols")
	}
}

func TestOverlayWaitsForLimiter(t *testing.T) {
	rl := util.NewRateLimiter(1)
	rl.Allow() // drain the only token

	fb := &fakeBars{}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := NewOverlay(fb, []string{"GLD"}, rl).Fetch(ctx, time.Now())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Fetch error = %v, want deadline exceeded", err)
	}
	if fb.symbols != nil {
		t.Error("client called before the limiter released a token")
	}
}

func TestMerge(t *testing.T) {
	backend := []domain.TickerQuote{{Ticker: "GC=F"}, {Ticker: "GLD", LastPrice: domain.NumberOf(1)}}
	overlay := []domain.TickerQuote{{Ticker: "GLD", LastPrice: domain.NumberOf(2)}, {Ticker: "IAU"}}

	got := Merge(backend, overlay)
	if len(got) != 3 {
		t.Fatalf("Merge returned %d quotes, want 3", len(got))
	}
	if got[1].LastPrice.Value.String() != "1" {
		t.Errorf("backend GLD replaced by overlay")
	}
	if got[2].Ticker != "IAU" {
		t.Errorf("got[2] = %s, want IAU", got[2].Ticker)
	}
	if len(backend) != 2 {
		t.Error("backend slice modified")
	}
}
