package ratelimit

import (
	"context"
	"log/slog"

	"tdquotes/internal/provider"
)

//go:generate mockgen -package=ratelimit_test -destination=mock_provider_test.go -source=../provider.go Provider

// Locker runs fn while holding an exclusive lock.
type Locker interface {
	Do(fn func() error) error
}

// Gated wraps a provider so each request runs as one unit under Lock:
// wait for the limiter, call the provider, record the request time.
type Gated struct {
	P       provider.Provider
	Limiter *Limiter
	Lock    Locker
	Log     *slog.Logger
}

func (g *Gated) Name() string { return g.P.Name() }

func (g *Gated) Fetch(ctx context.Context, ticker string) (provider.Quote, error) {
	var (
		q        provider.Quote
		fetchErr error
	)
	err := g.Lock.Do(func() error {
		waited, err := g.Limiter.Wait(ctx)
		if err != nil {
			return err
		}
		q, fetchErr = g.P.Fetch(ctx, ticker)
		// Requests that failed in transport are not recorded.
		if provider.KindOf(fetchErr) != provider.KindNetwork {
			g.Limiter.Record()
		}
		if waited > 0 {
			g.logger().Debug("rate limited request", "ticker", ticker, "waited_sec", int(waited.Seconds()))
		}
		return nil
	})
	if err != nil {
		return provider.Quote{}, err
	}
	return q, fetchErr
}

func (g *Gated) logger() *slog.Logger {
	if g.Log != nil {
		return g.Log
	}
	return slog.Default()
}
