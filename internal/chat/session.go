// Package chat runs the analyst conversation: one request in flight at a
// time, every reply grounded in the latest dashboard snapshot.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"goldtracer/internal/domain"
)

var (
	ErrEmptyMessage = errors.New("empty message")
	ErrBusy         = errors.New("chat request already in flight")
)

// Fixed assistant replies.
const (
	GreetingReply = "Terminal initialized. Scanning Treasury yields, dollar index and CFTC positioning. Ask about the current gold setup."
	WaitingReply  = "AI_CORE: Waiting for system state synchronization..."
	DisabledReply = "AI_CORE: Neural link disabled. Set VITE_GEMINI_API_KEY or GEMINI_API_KEY to enable analysis."
	ErrorReply    = "AI_CORE ERROR: Neural core unresponsive. Please verify API configuration."
	EmptyReply    = "Analysis unavailable."
)

const (
	DefaultTimeout = 45 * time.Second
	stampLayout    = "15:04"
	restoreLimit   = 200
)

// SnapshotSource yields the latest dashboard snapshot, or nil before the
// first successful sync.
type SnapshotSource interface {
	Current() *domain.Snapshot
}

// TranscriptStore persists chat turns across restarts.
type TranscriptStore interface {
	AppendTurn(ctx context.Context, turn domain.ChatTurn) error
	LoadTurns(ctx context.Context, limit int) ([]domain.ChatTurn, error)
	ClearTurns(ctx context.Context) error
}

// Recorder counts chat outcomes.
type Recorder interface {
	RecordChat(outcome string)
}

// Options configures a Session. Generator may be nil, in which case every
// request is answered with DisabledReply.
type Options struct {
	Generator Generator
	Snapshots SnapshotSource
	Store     TranscriptStore
	Recorder  Recorder
	Logger    *slog.Logger
	Location  *time.Location
	Timeout   time.Duration
	Now       func() time.Time

	// OnChange runs after every transcript or busy-state change.
	OnChange func()
}

// Session is the conversation with the analyst.
type Session struct {
	gen      Generator
	snaps    SnapshotSource
	store    TranscriptStore
	rec      Recorder
	log      *slog.Logger
	loc      *time.Location
	timeout  time.Duration
	now      func() time.Time
	onChange func()

	busy atomic.Bool

	mu    sync.RWMutex
	turns []domain.ChatTurn
	tf    domain.Timeframe
}

// NewSession creates a session with an empty transcript. Call Restore to
// load history and seed the greeting.
func NewSession(opts Options) *Session {
	s := &Session{
		gen:      opts.Generator,
		snaps:    opts.Snapshots,
		store:    opts.Store,
		rec:      opts.Recorder,
		log:      opts.Logger,
		loc:      opts.Location,
		timeout:  opts.Timeout,
		now:      opts.Now,
		onChange: opts.OnChange,
		tf:       domain.Timeframe1D,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Restore loads the persisted transcript. When nothing was persisted the
// greeting turn is appended instead.
func (s *Session) Restore(ctx context.Context) error {
	var loaded []domain.ChatTurn
	if s.store != nil {
		turns, err := s.store.LoadTurns(ctx, restoreLimit)
		if err != nil {
			return err
		}
		loaded = turns
	}

	if len(loaded) > 0 {
		s.mu.Lock()
		s.turns = loaded
		s.mu.Unlock()
		s.changed()
		return nil
	}
	s.append(ctx, domain.RoleAssistant, GreetingReply)
	return nil
}

// Transcript returns a copy of the turns in order.
func (s *Session) Transcript() []domain.ChatTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ChatTurn, len(s.turns))
	copy(out, s.turns)
	return out
}

// SetTimeframe selects the pivot set quoted in the analyst context.
func (s *Session) SetTimeframe(tf domain.Timeframe) {
	s.mu.Lock()
	s.tf = tf
	s.mu.Unlock()
}

func (s *Session) timeframe() domain.Timeframe {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tf
}

// Clear drops the transcript, in memory and in the store, and starts over
// with the greeting. It returns ErrBusy while a request is running.
func (s *Session) Clear(ctx context.Context) error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer func() {
		s.busy.Store(false)
		s.changed()
	}()

	s.mu.Lock()
	s.turns = nil
	s.mu.Unlock()
	if s.store != nil {
		if err := s.store.ClearTurns(ctx); err != nil {
			s.log.Warn("clear stored transcript", "error", err)
		}
	}
	s.append(ctx, domain.RoleAssistant, GreetingReply)
	return nil
}

// Busy reports whether a request is in flight.
func (s *Session) Busy() bool {
	return s.busy.Load()
}

// Send appends text as a user turn and then exactly one assistant turn. It
// returns ErrEmptyMessage for blank input and ErrBusy while another request
// is running; neither changes the transcript.
func (s *Session) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if !s.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer func() {
		s.busy.Store(false)
		s.changed()
	}()

	s.append(ctx, domain.RoleUser, text)
	reply, outcome := s.answer(ctx, text)
	s.append(ctx, domain.RoleAssistant, reply)
	if s.rec != nil {
		s.rec.RecordChat(outcome)
	}
	return nil
}

func (s *Session) answer(ctx context.Context, text string) (reply, outcome string) {
	snap := s.snaps.Current()
	if snap == nil {
		return WaitingReply, "no_snapshot"
	}
	if s.gen == nil {
		return DisabledReply, "disabled"
	}

	now := s.now()
	req := Request{
		Prompt: text,
		System: SystemInstruction(BuildContext(snap, s.timeframe(), now, s.loc), now, s.loc),
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	out, err := s.gen.Generate(ctx, req)
	switch {
	case errors.Is(err, ErrNoCredential):
		return DisabledReply, "disabled"
	case err != nil:
		s.log.Error("chat generation failed", "error", err, "elapsed", time.Since(start))
		return ErrorReply, "error"
	case strings.TrimSpace(out) == "":
		return EmptyReply, "empty"
	}
	s.log.Debug("chat reply", "chars", len(out), "elapsed", time.Since(start))
	return out, "ok"
}

func (s *Session) append(ctx context.Context, role domain.Role, content string) {
	now := s.now()
	turn := domain.ChatTurn{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: now.In(s.loc).Format(stampLayout),
		CreatedAt: now,
	}

	s.mu.Lock()
	s.turns = append(s.turns, turn)
	s.mu.Unlock()

	if s.store != nil {
		// The turn stays in memory even when the write fails.
		if err := s.store.AppendTurn(context.WithoutCancel(ctx), turn); err != nil {
			s.log.Warn("persist chat turn", "error", err)
		}
	}
	s.changed()
}

func (s *Session) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}
