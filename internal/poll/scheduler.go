// Package poll drives the dashboard refresh cycle: the summary poll, the
// countdown refresh and range-driven history loads.
package poll

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"goldtracer/internal/dashboard"
	"goldtracer/internal/domain"
	"goldtracer/internal/live"
)

// ErrRunning is returned by Start on a scheduler that is already running.
var ErrRunning = errors.New("scheduler already running")

// Fetcher loads dashboard data. Implementations normalize failures: nil for
// the summary, an empty slice for history.
type Fetcher interface {
	FetchSummary(ctx context.Context) *domain.Snapshot
	FetchHistory(ctx context.Context, r domain.HistoryRange) []domain.HistoryPoint
}

// Options configures a Scheduler. Zero durations fall back to one minute.
type Options struct {
	SummaryInterval   time.Duration
	CountdownInterval time.Duration
	InitialRange      domain.HistoryRange
	Now               func() time.Time
	Logger            *slog.Logger

	// OnSnapshot runs after a fetched snapshot has been applied.
	OnSnapshot func(*domain.Snapshot)
}

// Scheduler owns the three refresh activities. Start and Stop bracket the
// lifetime of the view that displays the model.
type Scheduler struct {
	fetch Fetcher
	model *live.Model
	opts  Options
	log   *slog.Logger

	rangeCh   chan domain.HistoryRange
	refreshCh chan struct{}

	mu      sync.Mutex
	cancel  context.CancelFunc
	group   *errgroup.Group
	running bool
}

// New creates a stopped scheduler.
func New(f Fetcher, m *live.Model, opts Options) *Scheduler {
	if opts.SummaryInterval <= 0 {
		opts.SummaryInterval = time.Minute
	}
	if opts.CountdownInterval <= 0 {
		opts.CountdownInterval = time.Minute
	}
	if opts.InitialRange == "" {
		opts.InitialRange = domain.Range1M
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Scheduler{
		fetch:     f,
		model:     m,
		opts:      opts,
		log:       opts.Logger,
		rangeCh:   make(chan domain.HistoryRange, 1),
		refreshCh: make(chan struct{}, 1),
	}
}

// Start fetches the summary and the initial history range immediately and
// then keeps polling until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	s.cancel, s.group, s.running = cancel, g, true

	firstSummary := make(chan struct{})
	g.Go(func() error { return s.summaryLoop(gctx, g, firstSummary) })
	g.Go(func() error { return s.countdownLoop(gctx, firstSummary) })
	g.Go(func() error { return s.historyLoop(gctx, g) })

	s.log.Info("scheduler started",
		"summary_interval", s.opts.SummaryInterval,
		"countdown_interval", s.opts.CountdownInterval,
		"range", s.opts.InitialRange)
	return nil
}

// Stop cancels every timer and waits for in-flight fetches to finish. No
// model update happens after Stop returns. Stop is idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, g := s.cancel, s.group
	s.running = false
	s.mu.Unlock()

	cancel()
	_ = g.Wait()
	s.log.Info("scheduler stopped")
}

// Running reports whether the scheduler is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SetRange selects a new history range and triggers its fetch. Rapid changes
// coalesce to the latest range.
func (s *Scheduler) SetRange(r domain.HistoryRange) {
	for {
		select {
		case s.rangeCh <- r:
			return
		default:
		}
		select {
		case <-s.rangeCh:
		default:
		}
	}
}

// Refresh requests an immediate summary fetch, for example after a forced
// backend sync or a manual correction.
func (s *Scheduler) Refresh() {
	select {
	case s.refreshCh <- struct{}{}:
	default:
	}
}

func (s *Scheduler) summaryLoop(ctx context.Context, g *errgroup.Group, first chan struct{}) error {
	var once sync.Once
	launch := func() {
		seq := s.model.BeginSummary()
		g.Go(func() error {
			defer once.Do(func() { close(first) })
			snap := s.fetch.FetchSummary(ctx)
			if ctx.Err() != nil {
				return nil
			}
			if s.model.ApplySnapshot(seq, snap) && s.opts.OnSnapshot != nil {
				s.opts.OnSnapshot(snap)
			}
			return nil
		})
	}

	launch()
	ticker := time.NewTicker(s.opts.SummaryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			launch()
		case <-s.refreshCh:
			launch()
		}
	}
}

func (s *Scheduler) countdownLoop(ctx context.Context, first <-chan struct{}) error {
	select {
	case <-ctx.Done():
		return nil
	case <-first:
	}

	update := func() {
		s.model.SetCountdown(dashboard.SnapshotCountdown(s.model.Current(), s.opts.Now()))
	}

	update()
	ticker := time.NewTicker(s.opts.CountdownInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			update()
		}
	}
}

func (s *Scheduler) historyLoop(ctx context.Context, g *errgroup.Group) error {
	launch := func(r domain.HistoryRange) {
		seq := s.model.BeginHistory(r)
		g.Go(func() error {
			points := s.fetch.FetchHistory(ctx, r)
			if ctx.Err() != nil {
				return nil
			}
			if !s.model.ApplyHistory(seq, points) {
				s.log.Debug("discarded superseded history", "range", r)
			}
			return nil
		})
	}

	launch(s.opts.InitialRange)
	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-s.rangeCh:
			launch(r)
		}
	}
}
