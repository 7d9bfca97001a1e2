// Package news fills the intel stream from Alpaca news and Google News RSS
// when the backend summary carries no news feed of its own.
package news

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"golang.org/x/sync/errgroup"

	"goldtracer/internal/domain"
)

// Source is one news provider.
type Source interface {
	Name() string
	Fetch(ctx context.Context, start, end time.Time) ([]domain.NewsItem, error)
}

// --- Alpaca ---

// NewsClient is the subset of the Alpaca market-data client used here.
type NewsClient interface {
	GetNews(req marketdata.GetNewsRequest) ([]marketdata.News, error)
}

// Waiter paces outgoing API calls. *util.RateLimiter implements it.
type Waiter interface {
	Wait(ctx context.Context) error
}

// AlpacaSource reads news tagged with gold ETF symbols.
type AlpacaSource struct {
	client  NewsClient
	symbols []string
	limit   Waiter
}

// NewAlpacaSource returns a source for the given symbols. limit may be nil.
func NewAlpacaSource(client NewsClient, symbols []string, limit Waiter) *AlpacaSource {
	return &AlpacaSource{client: client, symbols: symbols, limit: limit}
}

func (s *AlpacaSource) Name() string { return "alpaca" }

// Fetch returns news for the configured symbols within [start, end].
func (s *AlpacaSource) Fetch(ctx context.Context, start, end time.Time) ([]domain.NewsItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.limit != nil {
		if err := s.limit.Wait(ctx); err != nil {
			return nil, err
		}
	}
	alpacaNews, err := s.client.GetNews(marketdata.GetNewsRequest{
		Symbols:    s.symbols,
		Start:      start,
		End:        end,
		TotalLimit: 50,
		Sort:       marketdata.SortDesc,
	})
	if err != nil {
		return nil, fmt.Errorf("GetNews: %w", err)
	}

	items := make([]domain.NewsItem, 0, len(alpacaNews))
	for _, a := range alpacaNews {
		body := a.Summary
		if body == "" && a.Content != "" {
			body = StripHTML(a.Content)
		}
		items = append(items, domain.NewsItem{
			PublishedAt: a.CreatedAt,
			Kind:        Classify(a.Headline),
			Title:       a.Headline,
			Content:     body,
			URL:         a.URL,
			Source:      s.Name(),
		})
	}
	return items, nil
}

// --- Google News RSS ---

// GoogleNewsURL is the RSS search endpoint.
const GoogleNewsURL = "https://news.google.com/rss/search"

type rssResponse struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	PubDate string `xml:"pubDate"`
	Desc    string `xml:"description"`
}

// GoogleSource searches Google News RSS for a query.
type GoogleSource struct {
	query   string
	baseURL string
	hc      *http.Client
}

// NewGoogleSource returns a source for query. An empty baseURL selects
// GoogleNewsURL; a nil client gets a 10 second timeout.
func NewGoogleSource(query, baseURL string, hc *http.Client) *GoogleSource {
	if baseURL == "" {
		baseURL = GoogleNewsURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &GoogleSource{query: query, baseURL: baseURL, hc: hc}
}

func (s *GoogleSource) Name() string { return "google" }

// Fetch returns RSS items published within [start, end].
func (s *GoogleSource) Fetch(ctx context.Context, start, end time.Time) ([]domain.NewsItem, error) {
	u := s.baseURL + "?q=" + url.QueryEscape(s.query) + "&hl=en-US&gl=US&ceid=US:en"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google news status %d", resp.StatusCode)
	}

	var rss rssResponse
	if err := xml.NewDecoder(resp.Body).Decode(&rss); err != nil {
		return nil, err
	}

	var items []domain.NewsItem
	for _, item := range rss.Channel.Items {
		t, ok := parsePubDate(item.PubDate)
		if !ok || t.Before(start) || t.After(end) {
			continue
		}
		title, publisher := splitTitle(item.Title)
		src := s.Name()
		if publisher != "" {
			src = publisher
		}
		items = append(items, domain.NewsItem{
			PublishedAt: t,
			Kind:        Classify(title),
			Title:       title,
			Content:     StripHTML(item.Desc),
			URL:         item.Link,
			Source:      src,
		})
	}
	return items, nil
}

func parsePubDate(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, "Mon, 02 Jan 2006 15:04 MST"} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// splitTitle separates the trailing " - Publisher" Google appends.
func splitTitle(title string) (headline, publisher string) {
	if idx := strings.LastIndex(title, " - "); idx > 0 {
		return title[:idx], strings.TrimSpace(title[idx+3:])
	}
	return title, ""
}

// --- Aggregation ---

// Feed merges several sources into one intel stream.
type Feed struct {
	sources []Source
	limit   int
	log     *slog.Logger
}

// NewFeed returns a feed over sources keeping at most limit items.
func NewFeed(log *slog.Logger, limit int, sources ...Source) *Feed {
	if log == nil {
		log = slog.Default()
	}
	return &Feed{sources: sources, limit: limit, log: log}
}

// Empty reports whether the feed has no sources.
func (f *Feed) Empty() bool { return len(f.sources) == 0 }

// Fetch queries every source concurrently over the lookback window ending
// at now. A failing source is logged and skipped. Items are deduplicated by
// title and returned newest first.
func (f *Feed) Fetch(ctx context.Context, now time.Time, lookback time.Duration) []domain.NewsItem {
	start := now.Add(-lookback)
	results := make([][]domain.NewsItem, len(f.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range f.sources {
		g.Go(func() error {
			items, err := src.Fetch(gctx, start, now)
			if err != nil {
				f.log.Warn("news source failed", "source", src.Name(), "error", err)
				return nil
			}
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	var all []domain.NewsItem
	for _, items := range results {
		all = append(all, items...)
	}
	return Merge(all, f.limit)
}

// Merge deduplicates items by case-folded title, sorts newest first and
// truncates to limit when limit > 0.
func Merge(items []domain.NewsItem, limit int) []domain.NewsItem {
	seen := make(map[string]bool, len(items))
	out := make([]domain.NewsItem, 0, len(items))
	for _, it := range items {
		key := strings.ToLower(strings.Join(strings.Fields(it.Title), " "))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// --- Classification ---

var (
	alertRe  = regexp.MustCompile(`(?i)\b(plunge|plunges|crash|surge|surges|soar|soars|record high|warning|sanction|war|default)\b`)
	dataRe   = regexp.MustCompile(`(?i)\b(cpi|ppi|pce|nfp|payrolls|jobless|pmi|gdp|inflation data|etf holdings|cftc)\b`)
	noticeRe = regexp.MustCompile(`(?i)\b(holiday|schedule|maintenance|announces|announcement|notice)\b`)
)

// Classify assigns an intel kind from a headline.
func Classify(title string) domain.NewsKind {
	switch {
	case alertRe.MatchString(title):
		return domain.NewsAlert
	case dataRe.MatchString(title):
		return domain.NewsData
	case noticeRe.MatchString(title):
		return domain.NewsNotice
	}
	return domain.NewsFlash
}

// --- HTML helpers ---

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes HTML tags and normalizes whitespace.
func StripHTML(s string) string {
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}
