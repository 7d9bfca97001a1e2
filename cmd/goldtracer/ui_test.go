package main

import (
	"testing"

	"goldtracer/internal/domain"
	"goldtracer/internal/live"
)

func TestPadOrTrunc(t *testing.T) {
	if got := padOrTrunc("abc", 5); got != "abc  " {
		t.Errorf("padOrTrunc = %q, want %q", got, "abc  ")
	}
	if got := padOrTrunc("abcdef", 3); got != "abc" {
		t.Errorf("padOrTrunc = %q, want %q", got, "abc")
	}
}

func TestDisplaySnapshotMergesOverlay(t *testing.T) {
	model := live.NewModel(nil)
	backend := &domain.Snapshot{Tickers: []domain.TickerQuote{{Ticker: "GC=F", LastPrice: domain.NumberOf(2345.1)}}}
	model.ApplySnapshot(model.BeginSummary(), backend)

	a := &app{model: model, intel: &intelCache{}}
	a.intel.setQuotes([]domain.TickerQuote{
		{Ticker: "GC=F", LastPrice: domain.NumberOf(1)},
		{Ticker: "GLD", LastPrice: domain.NumberOf(215.3)},
	})
	m := ui{app: a}

	snap := m.displaySnapshot()
	if len(snap.Tickers) != 2 {
		t.Fatalf("tickers = %d, want 2", len(snap.Tickers))
	}
	if snap.Tickers[0].LastPrice.Float() != 2345.1 {
		t.Errorf("backend quote replaced: %v", snap.Tickers[0].LastPrice.Float())
	}
	if snap.Tickers[1].Ticker != "GLD" {
		t.Errorf("overlay ticker = %q, want GLD", snap.Tickers[1].Ticker)
	}
	if len(backend.Tickers) != 1 {
		t.Errorf("stored snapshot mutated: %d tickers", len(backend.Tickers))
	}
}

func TestDisplaySnapshotWithoutOverlay(t *testing.T) {
	model := live.NewModel(nil)
	m := ui{app: &app{model: model, intel: &intelCache{}}}
	if snap := m.displaySnapshot(); snap != nil {
		t.Errorf("displaySnapshot = %+v, want nil before sync", snap)
	}
}
