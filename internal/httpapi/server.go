package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"goldtracer/internal/dashboard"
	"goldtracer/internal/domain"
	"goldtracer/internal/live"
	"goldtracer/internal/util"
)

// Transcript is the read side of the chat session.
type Transcript interface {
	Transcript() []domain.ChatTurn
	Busy() bool
}

// IntelFunc returns supplementary intel items shown when the snapshot has no
// news feed.
type IntelFunc func() []domain.NewsItem

// DashboardServer serves the mirror API.
type DashboardServer struct {
	model    *live.Model
	chat     Transcript
	intel    IntelFunc
	gatherer prometheus.Gatherer
	now      func() time.Time
	log      *slog.Logger
}

// NewDashboardServer creates a mirror API server. chat, intel and gatherer
// may be nil.
func NewDashboardServer(model *live.Model, chat Transcript, intel IntelFunc, gatherer prometheus.Gatherer, log *slog.Logger) *DashboardServer {
	if log == nil {
		log = slog.Default()
	}
	return &DashboardServer{
		model:    model,
		chat:     chat,
		intel:    intel,
		gatherer: gatherer,
		now:      time.Now,
		log:      log,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *DashboardServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/view", s.handleView)
	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/transcript", s.handleTranscript)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

// Handler returns an http.Handler with CORS middleware.
func (s *DashboardServer) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *DashboardServer) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("mirror api listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// parseTimeframe reads the "tf" query param, defaulting to 1d.
func parseTimeframe(r *http.Request) (domain.Timeframe, bool) {
	v := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("tf")))
	if v == "" {
		return domain.Timeframe1D, true
	}
	for _, tf := range domain.Timeframes {
		if domain.Timeframe(v) == tf {
			return tf, true
		}
	}
	return "", false
}

func (s *DashboardServer) handleView(w http.ResponseWriter, r *http.Request) {
	tf, ok := parseTimeframe(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown timeframe")
		return
	}

	snap, at := s.model.Snapshot()
	now := s.now()

	var extra []domain.NewsItem
	if s.intel != nil {
		extra = s.intel()
	}

	resp := ViewResponse{
		Synced: snap != nil,
		Header: convertHeader(dashboard.BuildHeader(snap, now)),
		Pivots: convertPivots(dashboard.ResolvePivots(snap, tf)),
		Advice: convertAdvice(dashboard.BuildAdviceCard(snap)),
		Intel:  dashboard.IntelStream(snap, extra, 0),
	}
	if snap != nil {
		resp.SnapshotAt = &at
		resp.Analysis = snap.Analysis
	}
	if cd := s.model.Countdown(); cd != "" {
		resp.Header.Countdown = cd
	}
	for _, sess := range util.Sessions {
		resp.Sessions = append(resp.Sessions, SessionJSON{
			Region: string(sess.Region),
			Open:   sess.IsOpenAt(now.UTC().Hour()),
		})
	}
	writeJSON(w, resp)
}

func (s *DashboardServer) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := s.model.Current()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "not synchronized")
		return
	}
	writeJSON(w, snap)
}

func (s *DashboardServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	rng, points, loaded := s.model.History()
	if points == nil {
		points = []domain.HistoryPoint{}
	}
	writeJSON(w, HistoryResponse{
		Range:  string(rng),
		Loaded: loaded,
		Points: points,
		Series: convertSeries(points),
	})
}

func (s *DashboardServer) handleTranscript(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		writeJSON(w, TranscriptResponse{Turns: []domain.ChatTurn{}})
		return
	}
	turns := s.chat.Transcript()
	if turns == nil {
		turns = []domain.ChatTurn{}
	}
	writeJSON(w, TranscriptResponse{Busy: s.chat.Busy(), Turns: turns})
}
