package goldtracer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldtracer/internal/domain"
)

const summaryJSON = `{
  "tickers":[{"ticker":"GC=F","last_price":2345.1,"change_percent":0.42}],
  "macro":[{"indicator_name":"10Y_Real_Yield","value":"1.85"}],
  "today_strategy":{"log_date":"2026-01-05","pivot_points":{"P":2332.1}}
}`

type fakeBackend struct {
	mu            sync.Mutex
	summaryStatus int
	syncStatus    int
	fedStatus     int
	summaryCalls  atomic.Int32
	historyRange  string
	syncQuery     string
	fedBody       map[string]any
	fedCalls      atomic.Int32
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+PathSummary, func(w http.ResponseWriter, r *http.Request) {
		b.summaryCalls.Add(1)
		if b.summaryStatus != 0 {
			w.WriteHeader(b.summaryStatus)
			return
		}
		io.WriteString(w, summaryJSON)
	})
	mux.HandleFunc("GET "+PathHistory, func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.historyRange = r.URL.Query().Get("range")
		b.mu.Unlock()
		io.WriteString(w, `[{"log_date":"2026-01-02","nominal_yield":4.2,"real_yield":null,"breakeven_inflation":"2.31"}]`)
	})
	mux.HandleFunc("GET "+PathSync, func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.syncQuery = r.URL.RawQuery
		b.mu.Unlock()
		if b.syncStatus != 0 {
			http.Error(w, "busy", b.syncStatus)
			return
		}
		io.WriteString(w, `{"status":"success","message":"5 sources refreshed"}`)
	})
	mux.HandleFunc("POST "+PathFedWatchUpdate, func(w http.ResponseWriter, r *http.Request) {
		b.fedCalls.Add(1)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.fedBody = body
		b.mu.Unlock()
		if b.fedStatus != 0 {
			http.Error(w, `{"detail":"Invalid admin key"}`, b.fedStatus)
			return
		}
		io.WriteString(w, `{"status":"success"}`)
	})
	return mux
}

func newTestClient(t *testing.T, b *fakeBackend, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return NewClient(srv.URL+"/", opts...)
}

type recordedCall struct {
	op, outcome string
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (r *fakeRecorder) ObserveRequest(op, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedCall{op, outcome})
}

func TestNewClient(t *testing.T) {
	c := NewClient("http://localhost:8000/", WithTimeout(5*time.Second))
	require.NotNil(t, c)
	assert.Equal(t, "http://localhost:8000", c.BaseURL())
	assert.Equal(t, 5*time.Second, c.httpClient.Timeout)
}

func TestFetchSummary(t *testing.T) {
	c := newTestClient(t, &fakeBackend{})

	snap := c.FetchSummary(context.Background())
	require.NotNil(t, snap)
	require.Len(t, snap.Tickers, 1)
	assert.Equal(t, "GC=F", snap.Tickers[0].Ticker)
	assert.Equal(t, "2345.1", snap.Tickers[0].LastPrice.Value.String())
}

func TestFetchSummaryFailureIsNil(t *testing.T) {
	rec := &fakeRecorder{}
	c := newTestClient(t, &fakeBackend{summaryStatus: http.StatusInternalServerError}, WithRecorder(rec))

	assert.Nil(t, c.FetchSummary(context.Background()))

	_, err := c.Summary(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStatus))
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Code)

	require.Len(t, rec.calls, 2)
	assert.Equal(t, recordedCall{OpSummary, "error"}, rec.calls[0])
}

func TestFetchSummaryUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	assert.Nil(t, c.FetchSummary(context.Background()))
}

func TestFetchHistory(t *testing.T) {
	b := &fakeBackend{}
	c := newTestClient(t, b)

	points := c.FetchHistory(context.Background(), domain.Range3M)
	require.Len(t, points, 1)
	assert.Equal(t, "3mo", b.historyRange)
	assert.True(t, points[0].NominalYield.Valid)
	assert.False(t, points[0].RealYield.Valid)
	assert.Equal(t, "2.31", points[0].BreakevenInflation.Value.String())
}

func TestFetchHistoryFailureIsEmpty(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", WithTimeout(time.Second),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	points := c.FetchHistory(context.Background(), domain.Range1D)
	assert.NotNil(t, points)
	assert.Empty(t, points)

	// Unknown range is rejected without a request.
	_, err := c.History(context.Background(), "5y")
	assert.ErrorIs(t, err, domain.ErrUnknownRange)
}

// refetcher counts reconcile calls and records the summary it re-reads.
type refetcher struct {
	c     *Client
	calls int
	snap  *domain.Snapshot
}

func (r *refetcher) reconcile() {
	r.calls++
	r.snap = r.c.FetchSummary(context.Background())
}

func TestTriggerSyncRefetchesOnSuccess(t *testing.T) {
	b := &fakeBackend{}
	c := newTestClient(t, b)
	rf := &refetcher{c: c}

	notice := c.TriggerSync(context.Background(), true, rf.reconcile)
	assert.True(t, notice.OK)
	assert.Equal(t, "Sync complete: 5 sources refreshed", notice.Text)
	assert.Equal(t, "full=true", b.syncQuery)
	assert.Equal(t, 1, rf.calls)
	assert.NotNil(t, rf.snap)
	assert.Equal(t, int32(1), b.summaryCalls.Load())
}

func TestTriggerSyncRefetchesOnFailure(t *testing.T) {
	b := &fakeBackend{syncStatus: http.StatusServiceUnavailable}
	c := newTestClient(t, b)
	rf := &refetcher{c: c}

	notice := c.TriggerSync(context.Background(), false, rf.reconcile)
	assert.False(t, notice.OK)
	assert.Contains(t, notice.Text, "Sync failed")
	assert.Equal(t, "", b.syncQuery)
	assert.Equal(t, 1, rf.calls)
	assert.Equal(t, int32(1), b.summaryCalls.Load())
}

func TestTriggerSyncReconcilesAfterAck(t *testing.T) {
	release := make(chan struct{})
	var acked atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+PathSync, func(w http.ResponseWriter, r *http.Request) {
		<-release
		acked.Store(true)
		io.WriteString(w, `{"status":"success"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	var ackedAtReconcile bool
	done := make(chan Notice, 1)
	go func() {
		done <- c.TriggerSync(context.Background(), false, func() { ackedAtReconcile = acked.Load() })
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)

	notice := <-done
	assert.True(t, notice.OK)
	assert.True(t, ackedAtReconcile, "reconcile ran before the sync was acknowledged")
}

func TestTriggerSyncNilReconcile(t *testing.T) {
	b := &fakeBackend{}
	c := newTestClient(t, b)
	assert.True(t, c.TriggerSync(context.Background(), false, nil).OK)
	assert.Equal(t, int32(0), b.summaryCalls.Load())
}

func TestSubmitFedWatchCorrection(t *testing.T) {
	b := &fakeBackend{}
	c := newTestClient(t, b, WithAdminKey("admin-key"), WithDefaultMeetingDate("2026-03-18"))
	rf := &refetcher{c: c}

	ok, err := c.SubmitFedWatchCorrection(context.Background(), CorrectionInput{
		ProbPause: "84.2",
		ProbCut25: " 15.8% ",
	}, rf.reconcile)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, rf.calls)
	assert.NotNil(t, rf.snap)

	assert.Equal(t, 84.2, b.fedBody["prob_pause"])
	assert.Equal(t, 15.8, b.fedBody["prob_cut_25"])
	assert.Equal(t, "2026-03-18", b.fedBody["meeting_date"])
	assert.Equal(t, "admin-key", b.fedBody["admin_key"])
	assert.Equal(t, int32(1), b.summaryCalls.Load())
}

func TestSubmitFedWatchCorrectionInvalidInputSendsNothing(t *testing.T) {
	tests := []struct {
		name string
		in   CorrectionInput
	}{
		{"non-numeric pause", CorrectionInput{ProbPause: "abc", ProbCut25: "15.8"}},
		{"non-numeric cut", CorrectionInput{ProbPause: "84.2", ProbCut25: ""}},
		{"out of range", CorrectionInput{ProbPause: "120", ProbCut25: "-20"}},
		{"bad sum", CorrectionInput{ProbPause: "50", ProbCut25: "20"}},
		{"bad date", CorrectionInput{ProbPause: "84.2", ProbCut25: "15.8", MeetingDate: "March 18"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{}
			c := newTestClient(t, b)
			rf := &refetcher{c: c}

			ok, err := c.SubmitFedWatchCorrection(context.Background(), tt.in, rf.reconcile)
			assert.False(t, ok)
			assert.ErrorIs(t, err, ErrInvalidCorrection)
			assert.Equal(t, 0, rf.calls)
			assert.Equal(t, int32(0), b.fedCalls.Load())
			assert.Equal(t, int32(0), b.summaryCalls.Load())
		})
	}
}

func TestSubmitFedWatchCorrectionRejected(t *testing.T) {
	b := &fakeBackend{fedStatus: http.StatusForbidden}
	c := newTestClient(t, b)
	rf := &refetcher{c: c}

	ok, err := c.SubmitFedWatchCorrection(context.Background(), CorrectionInput{ProbPause: "84.2", ProbCut25: "15.8"}, rf.reconcile)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrStatus)
	assert.Equal(t, 0, rf.calls)
	assert.Equal(t, int32(0), b.summaryCalls.Load())
}

func TestSyncNotice(t *testing.T) {
	assert.Equal(t, Notice{OK: true, Text: "Sync complete (queued)"}, SyncNotice(&SyncAck{Status: "queued"}, nil))
	assert.Equal(t, Notice{OK: true, Text: "Sync complete"}, SyncNotice(nil, nil))
	assert.False(t, SyncNotice(nil, errors.New("boom")).OK)
}
