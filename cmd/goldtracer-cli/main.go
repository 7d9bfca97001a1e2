package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"goldtracer/internal/chat"
	"goldtracer/internal/config"
	"goldtracer/internal/dashboard"
	"goldtracer/internal/domain"
	"goldtracer/internal/store"
	"goldtracer/internal/util"
	"goldtracer/pkg/goldtracer"
)

const version = "0.3.0"

const (
	retryAttempts = 3
	retryDelay    = 500 * time.Millisecond
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: goldtracer-cli <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  version                          Print the CLI version\n")
	fmt.Fprintf(os.Stderr, "  summary                          Print the dashboard snapshot as JSON\n")
	fmt.Fprintf(os.Stderr, "  history <range>                  Print yield history (1d, 1w, 1mo, 3mo, 1y)\n")
	fmt.Fprintf(os.Stderr, "  sync [--full]                    Force a backend refresh\n")
	fmt.Fprintf(os.Stderr, "  fedwatch <pause> <cut25> [date]  Submit a manual FedWatch correction\n")
	fmt.Fprintf(os.Stderr, "  export <range> <out.parquet>     Write yield history to a Parquet file\n")
	fmt.Fprintf(os.Stderr, "  pivots <high> <low> <close>      Compute standard floor pivots\n")
	fmt.Fprintf(os.Stderr, "  ask <question...>                Ask the analyst one question\n")
	fmt.Fprintf(os.Stderr, "\n")
}

func main() {
	flag.Usage = usage
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]
	if cmd == "version" {
		fmt.Printf("goldtracer-cli %s\n", version)
		return
	}
	if cmd == "pivots" {
		if err := runPivots(args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(config.Path())
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	logger := util.NewLogger(cfg.Logging.Level, "text", os.Stderr)
	util.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := goldtracer.NewClient(cfg.API.BaseURL,
		goldtracer.WithTimeout(cfg.API.Timeout),
		goldtracer.WithLogger(logger),
		goldtracer.WithAdminKey(cfg.API.AdminKey),
		goldtracer.WithDefaultMeetingDate(cfg.API.DefaultMeetingDate),
	)

	switch cmd {
	case "summary":
		err = runSummary(ctx, client)
	case "history":
		err = runHistory(ctx, client, args)
	case "sync":
		err = runSync(ctx, client, args)
	case "fedwatch":
		err = runFedWatch(ctx, client, args)
	case "export":
		err = runExport(ctx, client, args)
	case "ask":
		err = runAsk(ctx, cfg, client, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// withRetry retries fn on transport and 5xx failures. Client errors are
// returned immediately.
func withRetry(ctx context.Context, fn func(context.Context) error) error {
	return util.Retry(ctx, retryAttempts, retryDelay, func(ctx context.Context) error {
		err := fn(ctx)
		var se *goldtracer.StatusError
		if errors.As(err, &se) && se.Code < 500 {
			return util.Permanent(err)
		}
		return err
	})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runSummary(ctx context.Context, client *goldtracer.Client) error {
	var snap *domain.Snapshot
	err := withRetry(ctx, func(ctx context.Context) error {
		var err error
		snap, err = client.Summary(ctx)
		return err
	})
	if err != nil {
		return err
	}
	return printJSON(snap)
}

func fetchHistory(ctx context.Context, client *goldtracer.Client, arg string) (domain.HistoryRange, []domain.HistoryPoint, error) {
	r, err := domain.ParseHistoryRange(arg)
	if err != nil {
		return "", nil, err
	}
	var points []domain.HistoryPoint
	err = withRetry(ctx, func(ctx context.Context) error {
		var err error
		points, err = client.History(ctx, r)
		return err
	})
	return r, points, err
}

func runHistory(ctx context.Context, client *goldtracer.Client, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: history <range>")
	}
	_, points, err := fetchHistory(ctx, client, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%-12s %9s %9s %9s\n", "DATE", "NOMINAL", "REAL", "BREAKEVEN")
	for _, p := range points {
		fmt.Printf("%-12s %9s %9s %9s\n", p.LogDate,
			dashboard.FormatYield(p.NominalYield),
			dashboard.FormatYield(p.RealYield),
			dashboard.FormatYield(p.BreakevenInflation))
	}
	return nil
}

func runSync(ctx context.Context, client *goldtracer.Client, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	full := fs.Bool("full", false, "re-pull every source")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var snap *domain.Snapshot
	notice := client.TriggerSync(ctx, *full, func() { snap = client.FetchSummary(ctx) })
	fmt.Println(notice.Text)
	if snap != nil {
		if gold, ok := dashboard.FindTicker(snap, dashboard.SymbolGold); ok {
			fmt.Printf("gold %s %s\n", dashboard.FormatPrice(gold.LastPrice), dashboard.FormatChange(gold.ChangePercent))
		}
	}
	if !notice.OK {
		return errors.New("sync failed")
	}
	return nil
}

func runFedWatch(ctx context.Context, client *goldtracer.Client, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return errors.New("usage: fedwatch <pause> <cut25> [yyyy-mm-dd]")
	}
	in := goldtracer.CorrectionInput{ProbPause: args[0], ProbCut25: args[1]}
	if len(args) == 3 {
		in.MeetingDate = args[2]
	}
	var snap *domain.Snapshot
	ok, err := client.SubmitFedWatchCorrection(ctx, in, func() { snap = client.FetchSummary(ctx) })
	if err != nil {
		return err
	}
	if ok {
		fmt.Println("FedWatch correction accepted")
	}
	if fw := snap.FedWatch(); fw != nil {
		fmt.Printf("meeting %s  pause %s%%  cut25 %s%%\n", fw.MeetingDate,
			dashboard.FormatNumber(fw.ProbPause, 1), dashboard.FormatNumber(fw.ProbCut25, 1))
	}
	return nil
}

func runExport(ctx context.Context, client *goldtracer.Client, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: export <range> <out.parquet>")
	}
	r, points, err := fetchHistory(ctx, client, args[0])
	if err != nil {
		return err
	}
	if err := store.WriteHistoryFile(args[1], points); err != nil {
		return err
	}
	fmt.Printf("wrote %d %s rows to %s\n", len(points), r, args[1])
	return nil
}

func runPivots(args []string) error {
	if len(args) != 3 {
		return errors.New("usage: pivots <high> <low> <close>")
	}
	vals := make([]decimal.Decimal, 3)
	for i, a := range args {
		d, err := decimal.NewFromString(a)
		if err != nil {
			return fmt.Errorf("parse %q: %w", a, err)
		}
		vals[i] = d
	}
	set := dashboard.StandardPivots(vals[0], vals[1], vals[2])
	view := dashboard.PivotView{Timeframe: domain.Timeframe1D, Set: set}
	for _, row := range view.Ladder() {
		fmt.Printf("%-26s %10s\n", row.Label, row.Value)
	}
	return nil
}

// snapshotOnce serves one snapshot to a chat session.
type snapshotOnce struct{ snap *domain.Snapshot }

func (s snapshotOnce) Current() *domain.Snapshot { return s.snap }

func runAsk(ctx context.Context, cfg *config.Config, client *goldtracer.Client, args []string) error {
	question := strings.Join(args, " ")
	if strings.TrimSpace(question) == "" {
		return errors.New("usage: ask <question...>")
	}
	loc, err := time.LoadLocation(cfg.Chat.TimeZone)
	if err != nil {
		loc = time.UTC
	}
	var gen chat.Generator
	if cfg.ChatEnabled() {
		gen = chat.NewGemini(cfg.Chat.APIKey, cfg.Chat.Model)
	}
	session := chat.NewSession(chat.Options{
		Generator: gen,
		Snapshots: snapshotOnce{snap: client.FetchSummary(ctx)},
		Location:  loc,
		Timeout:   cfg.Chat.Timeout,
	})
	if err := session.Send(ctx, question); err != nil {
		return err
	}
	turns := session.Transcript()
	fmt.Println(turns[len(turns)-1].Content)
	return nil
}
