// Command tdquotes supplies end-of-day quotes from twelvedata.com to
// KMyMoney.
//
//	tdquotes --fetch AAPL   print one quote as: price="185.50" date="2024-01-02"
//	tdquotes --retrieve     refresh the quote cache for all configured tickers
//
// --fetch serves a quote left by --retrieve when there is one, consuming it,
// and otherwise asks Twelve Data directly. The exit status is always zero;
// a missing stdout line means no quote was available.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"tdquotes/internal/config"
	"tdquotes/internal/httpx"
	"tdquotes/internal/lock"
	"tdquotes/internal/logging"
	"tdquotes/internal/provider/ratelimit"
	"tdquotes/internal/provider/twelvedata"
	"tdquotes/internal/quotecache"
	"tdquotes/internal/quotes"
	"tdquotes/internal/tickers"
)

func main() {
	run(context.Background(), os.Args, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) {
	boot := logging.NewStderr(stderr)

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		ticker     string
		retrieve   bool
		configPath string
	)
	fs.StringVar(&ticker, "fetch", "", "print a quote for `TICKER`")
	fs.BoolVar(&retrieve, "retrieve", false, "retrieve quotes for all configured tickers into the cache file")
	fs.StringVar(&configPath, "config", "", "path to "+config.FileName+" (default: $TDQUOTES_CONFIG, ~/.config, or next to the executable)")
	if err := fs.Parse(args[1:]); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			boot.Error("invalid arguments", "error", err)
		}
		return
	}
	fetch := false
	fs.Visit(func(f *flag.Flag) { fetch = fetch || f.Name == "fetch" })

	cfg, err := config.Load(configPath)
	if err != nil {
		boot.Error("a config file with your Twelve Data API key is required", "error", err)
		return
	}

	log, closer := logging.New(cfg.Logging.File, cfg.Logging.Level, stderr)
	defer closer.Close()

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "error", err)
		return
	}

	switch {
	case fetch && retrieve:
		log.Error("only one of --fetch or --retrieve may be given")
	case retrieve:
		retrieveQuotes(ctx, cfg, log, args[0])
	case fetch:
		ticker = strings.ToUpper(strings.TrimSpace(ticker))
		if ticker == "" {
			log.Error("the --fetch option requires a ticker symbol")
			return
		}
		fetchQuote(ctx, cfg, log, ticker, stdout)
	default:
		log.Error("either --fetch or --retrieve is required")
	}
}

func fetchQuote(ctx context.Context, cfg config.Config, log *slog.Logger, ticker string, stdout io.Writer) {
	svc, err := newService(cfg, log)
	if err != nil {
		log.Error("unable to set up quote service", "error", err)
		return
	}
	q, ok := svc.Fetch(ctx, ticker)
	if !ok {
		return
	}
	reply := fmt.Sprintf("price=%q date=%q", q.Price, q.Date)
	log.Debug("reply to KMyMoney", "reply", reply)
	fmt.Fprintln(stdout, reply)
}

func retrieveQuotes(ctx context.Context, cfg config.Config, log *slog.Logger, program string) {
	if cfg.Quotes.CSVFile == "" {
		log.Error("unable to retrieve quotes", "error", quotes.ErrNoCache)
		return
	}
	src, err := tickerSource(cfg, program)
	if err != nil {
		log.Error("unable to retrieve quotes", "error", err)
		return
	}
	svc, err := newService(cfg, log)
	if err != nil {
		log.Error("unable to set up quote service", "error", err)
		return
	}

	res, err := svc.Refresh(ctx, src, cfg.Quotes.Exclude)
	if err != nil {
		log.Error("unable to retrieve quotes", "error", err)
		return
	}
	log.Info("quotes retrieved", "refreshed", len(res.Refreshed), "failed", len(res.Failed), "file", cfg.Quotes.CSVFile)
}

func newService(cfg config.Config, log *slog.Logger) (*quotes.Service, error) {
	hc := httpx.New(time.Duration(cfg.Settings.TimeoutSec) * time.Second)
	td, err := twelvedata.New(cfg.Settings.APIKey,
		twelvedata.WithHTTPClient(hc),
		twelvedata.WithBaseURL(cfg.Settings.Endpoint),
		twelvedata.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	gated := &ratelimit.Gated{
		P: td,
		Limiter: &ratelimit.Limiter{
			Store: cfg.State(),
			Delay: time.Duration(cfg.Settings.Delay) * time.Second,
			Log:   log,
		},
		Lock: lock.New(cfg.Settings.LockDir, lock.Quote, log),
		Log:  log,
	}

	var cache quotes.Cache
	if cfg.Quotes.CSVFile != "" {
		cache = quotecache.NewFile(cfg.Quotes.CSVFile, lock.New(cfg.Settings.LockDir, lock.Cache, log))
	}
	return quotes.NewService(cache, gated, log), nil
}

func tickerSource(cfg config.Config, program string) (tickers.Source, error) {
	switch {
	case len(cfg.Quotes.Symbols) > 0:
		return tickers.Static(cfg.Quotes.Symbols), nil
	case cfg.Quotes.KMMFile != "":
		name := cfg.Quotes.SourceName
		if name == "" {
			name = tickers.SourceName(program)
		}
		return tickers.KMyMoney{Path: cfg.Quotes.KMMFile, Name: name}, nil
	default:
		return nil, errors.New("config setting quotes.symbols or quotes.kmmfile is required to retrieve multiple quotes")
	}
}
