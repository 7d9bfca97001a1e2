package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldtracer/internal/domain"
)

type staticSource struct{ snap *domain.Snapshot }

func (s staticSource) Current() *domain.Snapshot { return s.snap }

type fakeGenerator struct {
	mu    sync.Mutex
	reply string
	err   error
	reqs  []Request

	// block, when set, holds Generate until closed.
	block chan struct{}
	// entered is closed on the first Generate call.
	entered chan struct{}
	once    sync.Once
}

func (f *fakeGenerator) Generate(ctx context.Context, req Request) (string, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.entered != nil {
		f.once.Do(func() { close(f.entered) })
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

type memStore struct {
	mu    sync.Mutex
	turns []domain.ChatTurn
}

func (m *memStore) AppendTurn(_ context.Context, turn domain.ChatTurn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turn)
	return nil
}

func (m *memStore) LoadTurns(_ context.Context, limit int) ([]domain.ChatTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ChatTurn, len(m.turns))
	copy(out, m.turns)
	return out, nil
}

func (m *memStore) ClearTurns(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = nil
	return nil
}

type outcomes struct {
	mu  sync.Mutex
	got []string
}

func (o *outcomes) RecordChat(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.got = append(o.got, outcome)
}

func testSnapshot() *domain.Snapshot {
	return &domain.Snapshot{
		Tickers: []domain.TickerQuote{{
			Ticker:        "GC=F",
			LastPrice:     domain.NumberOf(2345.1),
			ChangePercent: domain.NumberOf(0.4213),
		}},
		Macro: []domain.MacroIndicator{{Name: "10Y_Real_Yield", Value: domain.NumberOf(2.1), Unit: "%"}},
	}
}

func newTestSession(gen Generator, snap *domain.Snapshot) *Session {
	return NewSession(Options{
		Generator: gen,
		Snapshots: staticSource{snap: snap},
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Location:  time.UTC,
		Now:       func() time.Time { return time.Date(2026, 3, 16, 9, 5, 0, 0, time.UTC) },
	})
}

func TestSendEmptyIsNoop(t *testing.T) {
	gen := &fakeGenerator{reply: "x"}
	s := newTestSession(gen, testSnapshot())
	for _, in := range []string{"", "   ", "\n\t"} {
		assert.ErrorIs(t, s.Send(context.Background(), in), ErrEmptyMessage)
	}
	assert.Empty(t, s.Transcript())
	assert.Empty(t, gen.reqs)
}

func TestSendSuccess(t *testing.T) {
	gen := &fakeGenerator{reply: "Bullish above 2332."}
	rec := &outcomes{}
	s := newTestSession(gen, testSnapshot())
	s.rec = rec

	require.NoError(t, s.Send(context.Background(), "What now?"))

	turns := s.Transcript()
	require.Len(t, turns, 2)
	assert.Equal(t, domain.RoleUser, turns[0].Role)
	assert.Equal(t, "What now?", turns[0].Content)
	assert.Equal(t, "09:05", turns[0].Timestamp)
	assert.Equal(t, domain.RoleAssistant, turns[1].Role)
	assert.Equal(t, "Bullish above 2332.", turns[1].Content)
	assert.NotEqual(t, turns[0].ID, turns[1].ID)
	assert.False(t, s.Busy())
	assert.Equal(t, []string{"ok"}, rec.got)

	require.Len(t, gen.reqs, 1)
	assert.Equal(t, "What now?", gen.reqs[0].Prompt)
	assert.Contains(t, gen.reqs[0].System, "- GC=F: 2345.1 (0.42%)")
}

func TestSendReplies(t *testing.T) {
	tests := []struct {
		name string
		gen  Generator
		snap *domain.Snapshot
		want string
	}{
		{"no snapshot", &fakeGenerator{reply: "x"}, nil, WaitingReply},
		{"no generator", nil, testSnapshot(), DisabledReply},
		{"no credential", &fakeGenerator{err: ErrNoCredential}, testSnapshot(), DisabledReply},
		{"failure", &fakeGenerator{err: errors.New("503")}, testSnapshot(), ErrorReply},
		{"empty reply", &fakeGenerator{reply: "  "}, testSnapshot(), EmptyReply},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(tt.gen, tt.snap)
			require.NoError(t, s.Send(context.Background(), "hello"))
			turns := s.Transcript()
			require.Len(t, turns, 2)
			assert.Equal(t, tt.want, turns[1].Content)
			assert.False(t, s.Busy())
		})
	}
}

func TestSendNoSnapshotSkipsGenerator(t *testing.T) {
	gen := &fakeGenerator{reply: "x"}
	s := newTestSession(gen, nil)
	require.NoError(t, s.Send(context.Background(), "hello"))
	assert.Empty(t, gen.reqs)
}

func TestSendSingleFlight(t *testing.T) {
	gen := &fakeGenerator{
		reply:   "done",
		block:   make(chan struct{}),
		entered: make(chan struct{}),
	}
	s := newTestSession(gen, testSnapshot())

	errc := make(chan error, 1)
	go func() { errc <- s.Send(context.Background(), "first") }()
	<-gen.entered

	assert.True(t, s.Busy())
	assert.ErrorIs(t, s.Send(context.Background(), "second"), ErrBusy)
	assert.Len(t, s.Transcript(), 1)

	close(gen.block)
	require.NoError(t, <-errc)
	assert.False(t, s.Busy())

	turns := s.Transcript()
	require.Len(t, turns, 2)
	assert.Equal(t, "done", turns[1].Content)
}

func TestSendTimeout(t *testing.T) {
	gen := &fakeGenerator{block: make(chan struct{})}
	s := newTestSession(gen, testSnapshot())
	s.timeout = 10 * time.Millisecond

	require.NoError(t, s.Send(context.Background(), "slow"))
	turns := s.Transcript()
	require.Len(t, turns, 2)
	assert.Equal(t, ErrorReply, turns[1].Content)
	assert.False(t, s.Busy())
}

func TestRestore(t *testing.T) {
	store := &memStore{}
	s := newTestSession(nil, nil)
	s.store = store

	require.NoError(t, s.Restore(context.Background()))
	turns := s.Transcript()
	require.Len(t, turns, 1)
	assert.Equal(t, GreetingReply, turns[0].Content)

	require.NoError(t, s.Send(context.Background(), "hi"))
	require.Len(t, store.turns, 3)

	again := newTestSession(nil, nil)
	again.store = store
	require.NoError(t, again.Restore(context.Background()))
	assert.Equal(t, s.Transcript(), again.Transcript())
}

func TestOnChange(t *testing.T) {
	var n int
	s := NewSession(Options{
		Snapshots: staticSource{},
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		OnChange:  func() { n++ },
	})
	require.NoError(t, s.Send(context.Background(), "hi"))
	// user turn, assistant turn, busy cleared
	assert.Equal(t, 3, n)
}

func TestBuildContext(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	snap := testSnapshot()
	snap.Strategy = &domain.Strategy{
		PivotPoints: domain.PivotPoints{Flat: domain.PivotSet{P: domain.NumberOf(2332.1)}},
		FedWatch:    &domain.FedWatchState{MeetingDate: "2026-03-18"},
	}
	now := time.Date(2026, 3, 16, 1, 30, 0, 0, time.UTC)

	got := BuildContext(snap, domain.Timeframe1D, now, loc)
	for _, want := range []string{
		"Current Time: 2026-03-16 09:30:00 (Shanghai Time)",
		"- GC=F: 2345.1 (0.42%)",
		"- 10Y_Real_Yield: 2.1 %",
		"- Pivot: 2332.1",
		`"meeting_date":"2026-03-18"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("BuildContext missing %q in:\n%s", want, got)
		}
	}
}

func TestBuildContextWithoutStrategy(t *testing.T) {
	got := BuildContext(&domain.Snapshot{}, domain.Timeframe1D, time.Unix(0, 0), time.UTC)
	if !strings.Contains(got, "- Pivot: N/A") {
		t.Errorf("missing pivot placeholder:\n%s", got)
	}
	if !strings.Contains(got, "- FedWatch: {}") {
		t.Errorf("missing fedwatch placeholder:\n%s", got)
	}
}

func TestBuildContextSelectedTimeframe(t *testing.T) {
	snap := &domain.Snapshot{Strategy: &domain.Strategy{PivotPoints: domain.PivotPoints{
		Flat: domain.PivotSet{P: domain.NumberOf(2332.1)},
		Keyed: map[domain.Timeframe]domain.PivotSet{
			domain.Timeframe4H: {P: domain.NumberOf(2340.5)},
		},
	}}}
	tests := []struct {
		tf   domain.Timeframe
		want string
	}{
		{domain.Timeframe4H, "- Pivot: 2340.5"},
		{domain.Timeframe1W, "- Pivot: 2332.1"}, // flat fallback
	}
	for _, tt := range tests {
		got := BuildContext(snap, tt.tf, time.Unix(0, 0), time.UTC)
		if !strings.Contains(got, tt.want) {
			t.Errorf("BuildContext(%s) missing %q in:\n%s", tt.tf, tt.want, got)
		}
	}
}

func TestSendUsesSelectedTimeframe(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	snap := testSnapshot()
	snap.Strategy = &domain.Strategy{PivotPoints: domain.PivotPoints{
		Flat:  domain.PivotSet{P: domain.NumberOf(2332.1)},
		Keyed: map[domain.Timeframe]domain.PivotSet{domain.Timeframe4H: {P: domain.NumberOf(2340.5)}},
	}}
	s := newTestSession(gen, snap)
	s.SetTimeframe(domain.Timeframe4H)

	require.NoError(t, s.Send(context.Background(), "levels?"))
	require.Len(t, gen.reqs, 1)
	assert.Contains(t, gen.reqs[0].System, "- Pivot: 2340.5")
}

func TestClear(t *testing.T) {
	store := &memStore{}
	s := newTestSession(&fakeGenerator{reply: "x"}, testSnapshot())
	s.store = store
	require.NoError(t, s.Restore(context.Background()))
	require.NoError(t, s.Send(context.Background(), "hi"))
	require.Len(t, store.turns, 3)

	require.NoError(t, s.Clear(context.Background()))
	turns := s.Transcript()
	require.Len(t, turns, 1)
	assert.Equal(t, GreetingReply, turns[0].Content)
	require.Len(t, store.turns, 1)
	assert.Equal(t, GreetingReply, store.turns[0].Content)
	assert.False(t, s.Busy())
}

func TestClearWhileBusy(t *testing.T) {
	gen := &fakeGenerator{reply: "done", block: make(chan struct{}), entered: make(chan struct{})}
	s := newTestSession(gen, testSnapshot())

	errc := make(chan error, 1)
	go func() { errc <- s.Send(context.Background(), "first") }()
	<-gen.entered

	assert.ErrorIs(t, s.Clear(context.Background()), ErrBusy)
	close(gen.block)
	require.NoError(t, <-errc)
	assert.Len(t, s.Transcript(), 2)
}

func TestGeminiDisabledWithoutKey(t *testing.T) {
	g := NewGemini("short", "")
	assert.False(t, g.Enabled())
	_, err := g.Generate(context.Background(), Request{Prompt: "x"})
	assert.ErrorIs(t, err, ErrNoCredential)
	assert.Nil(t, g.client)
}
