// Command goldtracer is the gold market dashboard terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"

	"goldtracer/internal/chat"
	"goldtracer/internal/config"
	"goldtracer/internal/domain"
	"goldtracer/internal/httpapi"
	"goldtracer/internal/live"
	"goldtracer/internal/metrics"
	"goldtracer/internal/news"
	"goldtracer/internal/poll"
	"goldtracer/internal/quotes"
	"goldtracer/internal/store"
	"goldtracer/internal/util"
	"goldtracer/pkg/goldtracer"
)

// intelCache holds the supplementary intel and overlay quotes shared by the
// TUI and the mirror API.
type intelCache struct {
	mu     sync.RWMutex
	items  []domain.NewsItem
	quotes []domain.TickerQuote
}

func (c *intelCache) setItems(items []domain.NewsItem) {
	c.mu.Lock()
	c.items = items
	c.mu.Unlock()
}

func (c *intelCache) setQuotes(q []domain.TickerQuote) {
	c.mu.Lock()
	c.quotes = q
	c.mu.Unlock()
}

func (c *intelCache) Items() []domain.NewsItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.items
}

func (c *intelCache) Quotes() []domain.TickerQuote {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.quotes
}

// alpacaPerMinute stays well under the free data plan's request budget.
const alpacaPerMinute = 100

// app bundles the long-lived components the UI drives.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	client   *goldtracer.Client
	model    *live.Model
	sched    *poll.Scheduler
	session  *chat.Session
	exporter store.HistoryExporter
	feed     *news.Feed
	overlay  *quotes.Overlay
	intel    *intelCache
	limiter  *util.RateLimiter

	// chatChanged receives a signal on every transcript change.
	chatChanged chan struct{}
}

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	if cfg.API.BaseURL == "" {
		fmt.Fprintln(os.Stderr, "api.base_url is empty; set GOLDTRACER_API_URL")
		os.Exit(1)
	}

	logFile, err := util.OpenLogFile(cfg.Logging.File, "goldtracer")
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format, logFile)
	util.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)

	a := &app{
		cfg:         cfg,
		log:         logger,
		model:       live.NewModel(rec),
		exporter:    store.NewParquetStore(cfg.Storage.ExportDir),
		intel:       &intelCache{},
		limiter:     util.NewRateLimiter(6),
		chatChanged: make(chan struct{}, 1),
	}
	a.client = goldtracer.NewClient(cfg.API.BaseURL,
		goldtracer.WithTimeout(cfg.API.Timeout),
		goldtracer.WithLogger(logger),
		goldtracer.WithRecorder(rec),
		goldtracer.WithAdminKey(cfg.API.AdminKey),
		goldtracer.WithDefaultMeetingDate(cfg.API.DefaultMeetingDate),
	)

	// Local store: cached snapshot and transcript. Optional.
	var cache store.SnapshotCache
	var transcripts chat.TranscriptStore
	if db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath); err != nil {
		logger.Warn("local store unavailable", "path", cfg.Storage.SQLitePath, "error", err)
	} else {
		defer db.Close()
		cache, transcripts = db, db
		if snap, at, err := db.LoadSnapshot(ctx); err == nil {
			a.model.Seed(snap, at)
			logger.Info("seeded cached snapshot", "fetched_at", at)
		} else if !errors.Is(err, store.ErrNotFound) {
			logger.Warn("loading cached snapshot", "error", err)
		}
	}

	initialRange, err := domain.ParseHistoryRange(cfg.Poll.HistoryRange)
	if err != nil {
		logger.Warn("invalid history range, using 1mo", "range", cfg.Poll.HistoryRange)
		initialRange = domain.Range1M
	}
	a.sched = poll.New(a.client, a.model, poll.Options{
		SummaryInterval:   cfg.Poll.SummaryInterval,
		CountdownInterval: cfg.Poll.CountdownInterval,
		InitialRange:      initialRange,
		Logger:            logger,
		OnSnapshot: func(snap *domain.Snapshot) {
			now := time.Now()
			rec.RecordSnapshotApplied(now)
			for _, q := range snap.Tickers {
				if q.LastPrice.Valid {
					rec.RecordPrice(q.Ticker, q.LastPrice.Float())
				}
			}
			if cache != nil {
				if err := cache.SaveSnapshot(context.WithoutCancel(ctx), snap, now); err != nil {
					logger.Warn("caching snapshot", "error", err)
				}
			}
		},
	})

	// Chat.
	loc, err := time.LoadLocation(cfg.Chat.TimeZone)
	if err != nil {
		logger.Warn("loading chat time zone", "tz", cfg.Chat.TimeZone, "error", err)
		loc = time.UTC
	}
	var gen chat.Generator
	if cfg.ChatEnabled() {
		gen = chat.NewGemini(cfg.Chat.APIKey, cfg.Chat.Model)
	} else {
		logger.Warn("AI credential missing; chat disabled")
	}
	a.session = chat.NewSession(chat.Options{
		Generator: gen,
		Snapshots: a.model,
		Store:     transcripts,
		Recorder:  rec,
		Logger:    logger,
		Location:  loc,
		Timeout:   cfg.Chat.Timeout,
		OnChange: func() {
			select {
			case a.chatChanged <- struct{}{}:
			default:
			}
		},
	})
	if err := a.session.Restore(ctx); err != nil {
		logger.Warn("restoring transcript", "error", err)
	}

	// Supplementary intel and quotes.
	var sources []news.Source
	if cfg.AlpacaEnabled() {
		mdc := quotes.NewClient(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL)
		// One budget for every Alpaca call made by this process.
		alpacaLimit := util.NewRateLimiter(alpacaPerMinute)
		a.overlay = quotes.NewOverlay(mdc, cfg.Alpaca.Symbols, alpacaLimit)
		if !cfg.News.Disabled {
			sources = append(sources, news.NewAlpacaSource(mdc, a.overlay.Symbols(), alpacaLimit))
		}
	}
	if !cfg.News.Disabled {
		sources = append(sources, news.NewGoogleSource(cfg.News.Query, "", nil))
	}
	a.feed = news.NewFeed(logger, 30, sources...)

	if cfg.HTTP.Enabled {
		srv := httpapi.NewDashboardServer(a.model, a.session, a.intel.Items, reg, logger)
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.HTTP.Addr); err != nil {
				logger.Error("mirror api", "error", err)
			}
		}()
	}

	if err := a.sched.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "starting scheduler: %v\n", err)
		os.Exit(1)
	}
	defer a.sched.Stop()

	p := tea.NewProgram(newUI(ctx, a, initialRange), tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
