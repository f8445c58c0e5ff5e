// Package lock provides named exclusive locks shared by every process on the
// host. Each lock is an advisory flock on a marker file; the kernel drops it
// when the holder exits, even if the holder crashes.
package lock

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// Names of the two locks used by the tool. They are independent: holding
// one never waits on the other.
const (
	Quote = "quotelock"
	Cache = "csvlock"
)

// slowAcquire is how long a wait may last before it is logged.
const slowAcquire = time.Second

// Lock is a named cross-process exclusive lock.
type Lock struct {
	name string
	path string
	log  *slog.Logger
}

// New returns the lock called name whose marker file lives in dir.
// An empty dir means the OS temp directory.
func New(dir, name string, log *slog.Logger) *Lock {
	if dir == "" {
		dir = os.TempDir()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Lock{
		name: name,
		path: filepath.Join(dir, "tdquotes_"+name+".lck"),
		log:  log,
	}
}

func (l *Lock) Name() string { return l.name }
func (l *Lock) Path() string { return l.path }

// Acquire blocks until the lock is held and returns the function that
// releases it.
func (l *Lock) Acquire() (release func(), err error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY, 0o666)
	if err != nil {
		return nil, fmt.Errorf("open %s lock: %w", l.name, err)
	}

	start := time.Now()
	for {
		err = unix.Flock(int(f.Fd()), unix.LOCK_EX)
		if !errors.Is(err, unix.EINTR) {
			break
		}
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("acquire %s lock: %w", l.name, err)
	}
	if waited := time.Since(start); waited > slowAcquire {
		l.log.Debug("waited to acquire lock", "lock", l.name, "seconds", int(waited.Seconds()))
	}

	return func() {
		if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
			l.log.Error("release lock", "lock", l.name, "error", err)
		}
		f.Close()
	}, nil
}

// Do runs fn while holding the lock. The lock is released on every return
// path, including a panic in fn.
func (l *Lock) Do(fn func() error) error {
	release, err := l.Acquire()
	if err != nil {
		return err
	}
	defer release()
	return fn()
}
