package live

import (
	"testing"
	"time"

	"goldtracer/internal/domain"
)

type countingStale struct{ n map[string]int }

func (c *countingStale) RecordStale(kind string) {
	if c.n == nil {
		c.n = map[string]int{}
	}
	c.n[kind]++
}

func snapWith(ticker string) *domain.Snapshot {
	return &domain.Snapshot{Tickers: []domain.TickerQuote{{Ticker: ticker}}}
}

func TestApplySnapshotNilKeepsPrevious(t *testing.T) {
	m := NewModel(nil)

	first := snapWith("GC=F")
	if !m.ApplySnapshot(m.BeginSummary(), first) {
		t.Fatal("first snapshot not applied")
	}
	if m.ApplySnapshot(m.BeginSummary(), nil) {
		t.Error("nil snapshot applied")
	}
	if got := m.Current(); got != first {
		t.Errorf("Current() = %p, want previous %p", got, first)
	}
}

func TestApplySnapshotDiscardsStale(t *testing.T) {
	stale := &countingStale{}
	m := NewModel(stale)

	older := m.BeginSummary()
	newer := m.BeginSummary()

	fresh := snapWith("fresh")
	if !m.ApplySnapshot(newer, fresh) {
		t.Fatal("newer snapshot not applied")
	}
	if m.ApplySnapshot(older, snapWith("old")) {
		t.Error("older snapshot applied after newer")
	}
	if m.Current() != fresh {
		t.Error("stale arrival overwrote fresher snapshot")
	}
	if stale.n["summary"] != 1 {
		t.Errorf("stale summary count = %d, want 1", stale.n["summary"])
	}
}

func TestApplySnapshotOlderAppliesWhenNewerFailed(t *testing.T) {
	m := NewModel(nil)
	older := m.BeginSummary()
	newer := m.BeginSummary()

	m.ApplySnapshot(newer, nil)
	if !m.ApplySnapshot(older, snapWith("old")) {
		t.Error("older snapshot rejected though nothing newer was applied")
	}
}

func TestSeed(t *testing.T) {
	m := NewModel(nil)
	cached := snapWith("cached")
	at := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)

	if !m.Seed(cached, at) {
		t.Fatal("Seed on empty model failed")
	}
	if _, gotAt := m.Snapshot(); !gotAt.Equal(at) {
		t.Errorf("snapshotAt = %v, want %v", gotAt, at)
	}

	live := snapWith("live")
	if !m.ApplySnapshot(m.BeginSummary(), live) {
		t.Fatal("live snapshot not applied over seed")
	}
	if m.Seed(cached, at) {
		t.Error("Seed overwrote live snapshot")
	}
}

func TestHistoryLatestRequestWins(t *testing.T) {
	stale := &countingStale{}
	m := NewModel(stale)

	s1 := m.BeginHistory(domain.Range1M)
	s2 := m.BeginHistory(domain.Range1Y)

	if m.ApplyHistory(s1, []domain.HistoryPoint{{LogDate: "old"}}) {
		t.Error("superseded range applied")
	}
	if _, _, loaded := m.History(); loaded {
		t.Error("History loaded before the selected range answered")
	}

	if !m.ApplyHistory(s2, []domain.HistoryPoint{{LogDate: "2026-01-02"}}) {
		t.Fatal("current range not applied")
	}
	r, points, loaded := m.History()
	if !loaded || r != domain.Range1Y || len(points) != 1 {
		t.Errorf("History() = %s, %v, %v", r, points, loaded)
	}
	if stale.n["history"] != 1 {
		t.Errorf("stale history count = %d, want 1", stale.n["history"])
	}
}

func TestHistoryEmptyIsLoaded(t *testing.T) {
	m := NewModel(nil)
	seq := m.BeginHistory(domain.Range1D)
	m.ApplyHistory(seq, []domain.HistoryPoint{})
	if _, points, loaded := m.History(); !loaded || len(points) != 0 {
		t.Errorf("History() = %v, %v, want loaded empty", points, loaded)
	}
}

func TestSubscribe(t *testing.T) {
	m := NewModel(nil)
	id, ch := m.Subscribe(4)

	m.ApplySnapshot(m.BeginSummary(), snapWith("GC=F"))
	m.SetCountdown("1 day 0 hours 0 minutes")
	m.SetCountdown("1 day 0 hours 0 minutes") // unchanged, no event

	want := []EventKind{SnapshotChanged, CountdownChanged}
	for _, k := range want {
		select {
		case evt := <-ch:
			if evt.Kind != k {
				t.Errorf("event = %s, want %s", evt.Kind, k)
			}
		default:
			t.Fatalf("missing %s event", k)
		}
	}
	select {
	case evt := <-ch:
		t.Errorf("unexpected event %s", evt.Kind)
	default:
	}

	m.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Error("channel not closed after Unsubscribe")
	}
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	m := NewModel(nil)
	_, ch := m.Subscribe(1)

	m.ApplySnapshot(m.BeginSummary(), snapWith("a"))
	m.ApplySnapshot(m.BeginSummary(), snapWith("b"))

	if len(ch) != 1 {
		t.Errorf("buffered events = %d, want 1", len(ch))
	}
}
