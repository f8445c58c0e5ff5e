package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Store persists the time of the last provider request across processes.
type Store interface {
	// LastRequest returns the zero time when no request was recorded.
	LastRequest() (time.Time, error)
	SetLastRequest(t time.Time) error
}

// Limiter enforces a minimum interval between provider requests made by any
// invocation of the tool. Wait and Record must be called while holding the
// provider lock, otherwise two processes can pass Wait before either records.
type Limiter struct {
	Store Store
	Delay time.Duration
	Log   *slog.Logger

	// Now and Sleep default to the wall clock.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Wait blocks until Delay has passed since the last recorded request and
// returns how long it slept. Times are compared in whole seconds.
func (l *Limiter) Wait(ctx context.Context) (time.Duration, error) {
	delay := int64(l.Delay / time.Second)
	if delay <= 0 {
		return 0, nil
	}

	var wait int64
	last, err := l.Store.LastRequest()
	switch {
	case err != nil:
		// Unknown history: assume a request was just made.
		l.logger().Error("unable to read quote time", "error", err)
		wait = delay
	case last.IsZero():
		return 0, nil
	default:
		if interval := l.now().Unix() - last.Unix(); interval < delay {
			wait = delay - interval
		}
	}
	if wait <= 0 {
		return 0, nil
	}

	d := time.Duration(wait) * time.Second
	l.logger().Debug("sleeping before retrieving quote", "seconds", wait)
	if err := l.sleep(ctx, d); err != nil {
		return 0, err
	}
	return d, nil
}

// Record stores the current time as the last request time. A failed write
// is logged and otherwise ignored: it weakens the next invocation's limit
// but must not cost this one its quote.
func (l *Limiter) Record() {
	if err := l.Store.SetLastRequest(l.now()); err != nil {
		l.logger().Error("unable to update quote time", "error", err)
	}
}

func (l *Limiter) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func (l *Limiter) sleep(ctx context.Context, d time.Duration) error {
	if l.Sleep != nil {
		return l.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (l *Limiter) logger() *slog.Logger {
	if l.Log != nil {
		return l.Log
	}
	return slog.Default()
}
