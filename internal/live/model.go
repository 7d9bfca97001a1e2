// Package live holds the shared dashboard state: the current snapshot, the
// history series for the selected range and the countdown text, with
// sequence-number staleness guards and pub/sub for views.
package live

import (
	"sync"
	"time"

	"goldtracer/internal/domain"
)

// EventKind says which part of the model changed.
type EventKind int

const (
	SnapshotChanged EventKind = iota
	HistoryChanged
	CountdownChanged
)

func (k EventKind) String() string {
	switch k {
	case SnapshotChanged:
		return "snapshot"
	case HistoryChanged:
		return "history"
	case CountdownChanged:
		return "countdown"
	}
	return "unknown"
}

// Event is emitted to subscribers after a change is applied.
type Event struct {
	Kind EventKind
	Seq  uint64
}

// StaleRecorder counts discarded responses.
type StaleRecorder interface {
	RecordStale(kind string)
}

// Model is the single shared dashboard cell. Writers are the poll scheduler
// and operator actions; readers get the immutable snapshot pointer.
//
// Summary responses are applied only when their sequence number is higher
// than the last applied one, so a slow response never overwrites fresher
// state. History responses are applied only when they answer the most
// recently requested range.
type Model struct {
	mu sync.RWMutex

	summarySeq     uint64 // last issued
	summaryApplied uint64
	snapshot       *domain.Snapshot
	snapshotAt     time.Time

	historySeq     uint64 // last issued
	historyRange   domain.HistoryRange
	history        []domain.HistoryPoint
	historyApplied uint64

	countdown string

	stale StaleRecorder

	subsMu    sync.Mutex
	nextSubID int
	subs      map[int]chan Event
}

// NewModel creates an empty model. stale may be nil.
func NewModel(stale StaleRecorder) *Model {
	return &Model{
		stale: stale,
		subs:  make(map[int]chan Event),
	}
}

// BeginSummary issues the sequence number for a new summary request.
func (m *Model) BeginSummary() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summarySeq++
	return m.summarySeq
}

// ApplySnapshot installs snap if it answers a newer request than the one
// currently shown. A nil snap (failed fetch) is never applied and the
// previous snapshot is kept. It reports whether the snapshot was applied.
func (m *Model) ApplySnapshot(seq uint64, snap *domain.Snapshot) bool {
	if snap == nil {
		return false
	}
	m.mu.Lock()
	if seq <= m.summaryApplied {
		m.mu.Unlock()
		if m.stale != nil {
			m.stale.RecordStale("summary")
		}
		return false
	}
	m.summaryApplied = seq
	m.snapshot = snap
	m.snapshotAt = time.Now()
	m.mu.Unlock()

	m.publish(Event{Kind: SnapshotChanged, Seq: seq})
	return true
}

// Seed installs a snapshot restored from a local cache. It is ignored once
// any live snapshot has been applied.
func (m *Model) Seed(snap *domain.Snapshot, at time.Time) bool {
	if snap == nil {
		return false
	}
	m.mu.Lock()
	if m.snapshot != nil {
		m.mu.Unlock()
		return false
	}
	m.snapshot = snap
	m.snapshotAt = at
	m.mu.Unlock()

	m.publish(Event{Kind: SnapshotChanged})
	return true
}

// Snapshot returns the current snapshot (nil before the first successful
// fetch) and when it was applied.
func (m *Model) Snapshot() (*domain.Snapshot, time.Time) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot, m.snapshotAt
}

// Current returns the current snapshot.
func (m *Model) Current() *domain.Snapshot {
	snap, _ := m.Snapshot()
	return snap
}

// BeginHistory records r as the selected range and issues the sequence
// number for its request.
func (m *Model) BeginHistory(r domain.HistoryRange) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.historySeq++
	m.historyRange = r
	return m.historySeq
}

// ApplyHistory installs points if seq is the most recently issued history
// request. An empty result is applied (it means "no chart data").
func (m *Model) ApplyHistory(seq uint64, points []domain.HistoryPoint) bool {
	m.mu.Lock()
	if seq != m.historySeq {
		m.mu.Unlock()
		if m.stale != nil {
			m.stale.RecordStale("history")
		}
		return false
	}
	m.history = points
	m.historyApplied = seq
	m.mu.Unlock()

	m.publish(Event{Kind: HistoryChanged, Seq: seq})
	return true
}

// History returns the selected range and its loaded points. loaded is false
// until a response for the selected range has arrived.
func (m *Model) History() (r domain.HistoryRange, points []domain.HistoryPoint, loaded bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loaded = m.historyApplied != 0 && m.historyApplied == m.historySeq
	if !loaded {
		return m.historyRange, nil, false
	}
	out := make([]domain.HistoryPoint, len(m.history))
	copy(out, m.history)
	return m.historyRange, out, true
}

// SetCountdown stores the countdown text, notifying only on change.
func (m *Model) SetCountdown(s string) {
	m.mu.Lock()
	changed := m.countdown != s
	m.countdown = s
	m.mu.Unlock()
	if changed {
		m.publish(Event{Kind: CountdownChanged})
	}
}

// Countdown returns the last computed countdown text.
func (m *Model) Countdown() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.countdown
}

func (m *Model) publish(evt Event) {
	m.subsMu.Lock()
	for _, ch := range m.subs {
		select {
		case ch <- evt:
		default:
			// Slow subscriber, drop event.
		}
	}
	m.subsMu.Unlock()
}

// Subscribe creates a new subscription channel for model events.
func (m *Model) Subscribe(bufSize int) (id int, ch <-chan Event) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	id = m.nextSubID
	m.nextSubID++
	c := make(chan Event, bufSize)
	m.subs[id] = c
	return id, c
}

// Unsubscribe removes a subscription and closes its channel.
func (m *Model) Unsubscribe(id int) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	if ch, ok := m.subs[id]; ok {
		close(ch)
		delete(m.subs, id)
	}
}
