package poll

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldtracer/internal/domain"
	"goldtracer/internal/live"
)

type fakeFetcher struct {
	mu           sync.Mutex
	summaryCalls int
	ranges       []domain.HistoryRange
	snap         *domain.Snapshot

	// gates, when set for a range, block that history fetch until closed.
	gates map[domain.HistoryRange]chan struct{}
}

func (f *fakeFetcher) FetchSummary(ctx context.Context) *domain.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaryCalls++
	return f.snap
}

func (f *fakeFetcher) FetchHistory(ctx context.Context, r domain.HistoryRange) []domain.HistoryPoint {
	f.mu.Lock()
	f.ranges = append(f.ranges, r)
	gate := f.gates[r]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return []domain.HistoryPoint{}
		}
	}
	return []domain.HistoryPoint{{LogDate: string(r)}}
}

func (f *fakeFetcher) calls() (int, []domain.HistoryRange) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.HistoryRange, len(f.ranges))
	copy(out, f.ranges)
	return f.summaryCalls, out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func meetingSnapshot() *domain.Snapshot {
	return &domain.Snapshot{
		Strategy: &domain.Strategy{
			FedWatch: &domain.FedWatchState{MeetingAtUTC: "2026-03-18T19:00:00Z"},
		},
	}
}

func TestStartFetchesImmediately(t *testing.T) {
	f := &fakeFetcher{snap: meetingSnapshot()}
	m := live.NewModel(nil)
	now := time.Date(2026, 3, 16, 15, 50, 0, 0, time.UTC)

	var applied sync.WaitGroup
	applied.Add(1)
	s := New(f, m, Options{
		SummaryInterval:   time.Hour,
		CountdownInterval: time.Hour,
		InitialRange:      domain.Range3M,
		Now:               func() time.Time { return now },
		Logger:            quietLogger(),
		OnSnapshot:        func(*domain.Snapshot) { applied.Done() },
	})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	applied.Wait()
	assert.Equal(t, f.snap, m.Current())

	require.Eventually(t, func() bool {
		_, points, loaded := m.History()
		return loaded && len(points) == 1 && points[0].LogDate == "3mo"
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return m.Countdown() == "2 days 3 hours 10 minutes"
	}, time.Second, 5*time.Millisecond)
}

func TestSummaryPollsOnInterval(t *testing.T) {
	f := &fakeFetcher{snap: &domain.Snapshot{}}
	s := New(f, live.NewModel(nil), Options{
		SummaryInterval: 10 * time.Millisecond,
		Logger:          quietLogger(),
	})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool {
		n, _ := f.calls()
		return n >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestCountdownEmptyWithoutMeeting(t *testing.T) {
	f := &fakeFetcher{} // summary always fails
	m := live.NewModel(nil)
	m.SetCountdown("stale text")

	s := New(f, m, Options{SummaryInterval: time.Hour, Logger: quietLogger()})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool { return m.Countdown() == "" }, time.Second, 5*time.Millisecond)
	assert.Nil(t, m.Current())
}

func TestSetRangeDiscardsSupersededResponse(t *testing.T) {
	slow := make(chan struct{})
	f := &fakeFetcher{
		snap:  &domain.Snapshot{},
		gates: map[domain.HistoryRange]chan struct{}{domain.Range1M: slow},
	}
	m := live.NewModel(nil)
	s := New(f, m, Options{SummaryInterval: time.Hour, InitialRange: domain.Range1M, Logger: quietLogger()})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	// Wait for the slow initial request to be in flight, then switch range.
	require.Eventually(t, func() bool {
		_, r := f.calls()
		return len(r) == 1
	}, time.Second, 5*time.Millisecond)
	s.SetRange(domain.Range1Y)

	require.Eventually(t, func() bool {
		r, points, loaded := m.History()
		return loaded && r == domain.Range1Y && points[0].LogDate == "1y"
	}, time.Second, 5*time.Millisecond)

	// The late 1mo answer must not replace the 1y series.
	close(slow)
	time.Sleep(20 * time.Millisecond)
	r, points, loaded := m.History()
	assert.True(t, loaded)
	assert.Equal(t, domain.Range1Y, r)
	assert.Equal(t, "1y", points[0].LogDate)
}

func TestRefresh(t *testing.T) {
	f := &fakeFetcher{snap: &domain.Snapshot{}}
	s := New(f, live.NewModel(nil), Options{SummaryInterval: time.Hour, Logger: quietLogger()})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool { n, _ := f.calls(); return n == 1 }, time.Second, 5*time.Millisecond)
	s.Refresh()
	require.Eventually(t, func() bool { n, _ := f.calls(); return n == 2 }, time.Second, 5*time.Millisecond)
}

func TestStopReleasesEverything(t *testing.T) {
	f := &fakeFetcher{snap: &domain.Snapshot{}}
	m := live.NewModel(nil)
	s := New(f, m, Options{
		SummaryInterval:   5 * time.Millisecond,
		CountdownInterval: 5 * time.Millisecond,
		Logger:            quietLogger(),
	})

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrRunning)
	assert.True(t, s.Running())

	require.Eventually(t, func() bool { n, _ := f.calls(); return n >= 2 }, time.Second, 2*time.Millisecond)

	s.Stop()
	assert.False(t, s.Running())

	_, events := m.Subscribe(16)
	before, _ := f.calls()
	time.Sleep(30 * time.Millisecond)
	after, _ := f.calls()

	assert.Equal(t, before, after, "summary fetched after Stop")
	assert.Len(t, events, 0, "model updated after Stop")

	// Stop is idempotent.
	s.Stop()
}

func TestStopOnParentCancel(t *testing.T) {
	f := &fakeFetcher{snap: &domain.Snapshot{}}
	s := New(f, live.NewModel(nil), Options{SummaryInterval: 5 * time.Millisecond, Logger: quietLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after parent cancel")
	}
}
