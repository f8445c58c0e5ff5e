// Package quotes combines the quote cache and the provider into the tool's
// two operations: fetching one quote for the host application, and
// refreshing the cache for many tickers.
package quotes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tdquotes/internal/provider"
	"tdquotes/internal/quotecache"
	"tdquotes/internal/tickers"
)

//go:generate mockgen -package=quotes_test -destination=mock_provider_test.go -source=../provider/provider.go Provider

// ErrNoCache is returned by Refresh when no cache file is configured.
var ErrNoCache = errors.New("a quote cache file (quotes.csvfile) is required to retrieve multiple quotes")

// Cache is the durable quote cache. Both methods hold the cache lock for
// their whole read-modify-write.
type Cache interface {
	Take(ticker string) (quotecache.Row, bool, error)
	Update(fn func(t *quotecache.Table)) error
}

type Service struct {
	cache    Cache
	provider provider.Provider
	log      *slog.Logger
}

// NewService returns a service. cache may be nil, in which case Fetch always
// asks the provider and Refresh fails with ErrNoCache.
func NewService(cache Cache, p provider.Provider, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{cache: cache, provider: p, log: log}
}

// Fetch returns a quote for ticker. A cached row is used first and removed
// from the cache as it is handed out; otherwise the provider is asked.
// The boolean is false when no quote could be obtained; the reason has
// already been logged.
func (s *Service) Fetch(ctx context.Context, ticker string) (provider.Quote, bool) {
	if s.cache != nil {
		row, found, err := s.cache.Take(ticker)
		if found {
			if err != nil {
				s.log.Error("quote taken from cache but cache not rewritten", "ticker", ticker, "error", err)
			}
			s.log.Info("quote retrieved from cache", "ticker", ticker, "price", row.Price, "date", row.Date)
			return provider.Quote{Symbol: row.Ticker, Date: row.Date, Price: row.Price}, true
		}
		if err != nil {
			s.log.Error("unable to read quote cache", "ticker", ticker, "error", err)
		}
	}

	q, err := s.provider.Fetch(ctx, ticker)
	if err != nil {
		s.logFetchError(ticker, err)
		return provider.Quote{}, false
	}
	s.log.Info("quote retrieved from provider", "provider", s.provider.Name(), "ticker", ticker, "price", q.Price, "date", q.Date)
	return q, true
}

// Result summarizes a Refresh.
type Result struct {
	Requested []string
	Refreshed []string
	Failed    []string
}

// Refresh asks the provider for every ticker from src, minus exclude, and
// merges the quotes into the cache with a single write at the end. A ticker
// that fails is logged and skipped. The returned error is set only when the
// ticker source or the cache itself fails.
func (s *Service) Refresh(ctx context.Context, src tickers.Source, exclude []string) (Result, error) {
	if s.cache == nil {
		return Result{}, ErrNoCache
	}
	all, err := src.Tickers()
	if err != nil {
		return Result{}, err
	}

	res := Result{Requested: Filter(all, exclude)}
	s.log.Info("retrieving quotes", "count", len(res.Requested), "tickers", res.Requested)

	fetched := make([]quotecache.Row, 0, len(res.Requested))
	for i, ticker := range res.Requested {
		q, err := s.provider.Fetch(ctx, ticker)
		if err != nil {
			s.logFetchError(ticker, err)
			res.Failed = append(res.Failed, ticker)
			continue
		}
		s.log.Info("quote retrieved from provider",
			"n", i+1, "of", len(res.Requested), "provider", s.provider.Name(),
			"ticker", ticker, "price", q.Price, "date", q.Date)
		fetched = append(fetched, quotecache.Row{Ticker: ticker, Date: q.Date, Price: q.Price})
		res.Refreshed = append(res.Refreshed, ticker)
	}

	// The cache is loaded only now, under the lock, so rows consumed by
	// single fetches during the requests stay consumed.
	err = s.cache.Update(func(t *quotecache.Table) {
		for _, r := range fetched {
			t.Merge(r)
		}
	})
	if err != nil {
		return res, fmt.Errorf("update quote cache: %w", err)
	}
	return res, nil
}

func (s *Service) logFetchError(ticker string, err error) {
	var pe *provider.Error
	if errors.As(err, &pe) {
		attrs := []any{"ticker", ticker, "kind", pe.Kind.String(), "error", err}
		if pe.Field != "" {
			attrs = append(attrs, "field", pe.Field)
		}
		s.log.Error("unable to fetch quote", attrs...)
		return
	}
	s.log.Error("unable to fetch quote", "ticker", ticker, "error", err)
}

// Filter drops every excluded ticker and repeated tickers, keeping the first
// occurrence order.
func Filter(all, exclude []string) []string {
	skip := make(map[string]struct{}, len(exclude)+len(all))
	for _, e := range exclude {
		skip[e] = struct{}{}
	}
	out := make([]string, 0, len(all))
	for _, t := range all {
		if t == "" {
			continue
		}
		if _, ok := skip[t]; ok {
			continue
		}
		skip[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
