package quotecache

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"tdquotes/internal/fsx"
)

// ErrPersist wraps failures to write the cache file back to disk.
var ErrPersist = errors.New("persist quote cache")

// Locker runs fn while holding an exclusive lock.
type Locker interface {
	Do(fn func() error) error
}

// File is the quote cache on disk: one CSV row per quote, every field
// quoted, no header. It is shared by all invocations of the tool, so every
// read-modify-write goes through Take or Update, which hold the cache lock.
type File struct {
	path string
	lock Locker
}

func NewFile(path string, lock Locker) *File {
	return &File{path: path, lock: lock}
}

func (f *File) Path() string { return f.path }

// Take removes the first row for ticker and rewrites the file before
// returning it, so a cached quote is handed out once. When no row matches
// the file is left untouched.
//
// If the row was found but the file could not be rewritten, the row is
// returned together with an error wrapping ErrPersist.
func (f *File) Take(ticker string) (row Row, found bool, err error) {
	err = f.lock.Do(func() error {
		t, err := f.Load()
		if err != nil {
			return err
		}
		row, found = t.Take(ticker)
		if !found {
			return nil
		}
		return f.Persist(t)
	})
	return row, found, err
}

// Update loads the table, applies fn and persists the result, all under
// the cache lock. Nothing is written if the file cannot be loaded.
func (f *File) Update(fn func(t *Table)) error {
	return f.lock.Do(func() error {
		t, err := f.Load()
		if err != nil {
			return err
		}
		fn(t)
		return f.Persist(t)
	})
}

// Load reads the cache file. A missing file is an empty table. Callers
// outside this package must hold the cache lock.
func (f *File) Load() (*Table, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewTable(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read quote cache: %w", err)
	}

	r := csv.NewReader(bytes.NewReader(b))
	r.FieldsPerRecord = 3
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse quote cache %s: %w", f.path, err)
	}
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, Row{Ticker: rec[0], Date: rec[1], Price: rec[2]})
	}
	return NewTable(rows...), nil
}

// Persist sorts t and replaces the whole file with it. The file is swapped
// in atomically, so a crash leaves either the old or the new snapshot.
// Callers outside this package must hold the cache lock.
func (f *File) Persist(t *Table) error {
	t.Sort()
	if err := fsx.WriteFile(f.path, encode(t.rows), 0o644); err != nil {
		return fmt.Errorf("%w %s: %w", ErrPersist, f.path, err)
	}
	return nil
}

// encode writes rows with every field quoted, which encoding/csv.Writer
// cannot be told to do.
func encode(rows []Row) []byte {
	var b bytes.Buffer
	for _, r := range rows {
		for i, field := range [...]string{r.Ticker, r.Date, r.Price} {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(field, `"`, `""`))
			b.WriteByte('"')
		}
		b.WriteString("\r\n")
	}
	return b.Bytes()
}
