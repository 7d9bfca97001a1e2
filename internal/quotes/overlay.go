// Package quotes overlays Alpaca gold ETF prices on the backend ticker strip.
package quotes

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"goldtracer/internal/domain"
)

// BarClient is the subset of the Alpaca market-data client used here.
type BarClient interface {
	GetMultiBars(symbols []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error)
}

// NewClient builds an Alpaca market-data client. An empty dataURL uses the
// SDK default.
func NewClient(apiKey, apiSecret, dataURL string) *marketdata.Client {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return marketdata.NewClient(opts)
}

// lookback covers weekends and holidays so two sessions are always present.
const lookback = 10 * 24 * time.Hour

// Waiter paces outgoing API calls. *util.RateLimiter implements it.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Overlay derives ticker quotes from recent daily bars.
type Overlay struct {
	client  BarClient
	symbols []string
	limit   Waiter
}

// NewOverlay returns an overlay for symbols using the free IEX feed. A nil
// limit leaves calls unpaced.
func NewOverlay(client BarClient, symbols []string, limit Waiter) *Overlay {
	up := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			up = append(up, s)
		}
	}
	return &Overlay{client: client, symbols: up, limit: limit}
}

// Symbols returns the overlaid symbols.
func (o *Overlay) Symbols() []string { return o.symbols }

// Fetch returns one quote per symbol with bars, sorted by ticker. The last
// bar gives price and range; the change is measured against the previous
// close when there is one.
func (o *Overlay) Fetch(ctx context.Context, now time.Time) ([]domain.TickerQuote, error) {
	if len(o.symbols) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if o.limit != nil {
		if err := o.limit.Wait(ctx); err != nil {
			return nil, err
		}
	}
	multiBars, err := o.client.GetMultiBars(o.symbols, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     now.Add(-lookback),
		End:       now,
		Feed:      "iex",
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", err)
	}

	quotes := make([]domain.TickerQuote, 0, len(multiBars))
	for symbol, bars := range multiBars {
		if q, ok := quoteFromBars(strings.ToUpper(symbol), bars); ok {
			quotes = append(quotes, q)
		}
	}
	sort.Slice(quotes, func(i, j int) bool { return quotes[i].Ticker < quotes[j].Ticker })
	return quotes, nil
}

func quoteFromBars(symbol string, bars []marketdata.Bar) (domain.TickerQuote, bool) {
	if len(bars) == 0 {
		return domain.TickerQuote{}, false
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	last := bars[len(bars)-1]
	q := domain.TickerQuote{
		Ticker:    symbol,
		LastPrice: domain.NumberOf(last.Close),
		OpenPrice: domain.NumberOf(last.Open),
		HighPrice: domain.NumberOf(last.High),
		LowPrice:  domain.NumberOf(last.Low),
		UpdatedAt: last.Timestamp.UTC().Format(time.RFC3339),
	}
	if len(bars) >= 2 {
		prev := decimal.NewFromFloat(bars[len(bars)-2].Close)
		if !prev.IsZero() {
			chg := decimal.NewFromFloat(last.Close).Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Round(2)
			q.ChangePercent = domain.Number{Value: chg, Valid: true}
		}
	}
	return q, true
}

// Merge appends overlay quotes whose tickers the snapshot does not already
// carry. The snapshot is not modified.
func Merge(backend, overlay []domain.TickerQuote) []domain.TickerQuote {
	have := make(map[string]bool, len(backend))
	for _, q := range backend {
		have[q.Ticker] = true
	}
	out := make([]domain.TickerQuote, len(backend), len(backend)+len(overlay))
	copy(out, backend)
	for _, q := range overlay {
		if !have[q.Ticker] {
			out = append(out, q)
		}
	}
	return out
}
