package quotecache

import "sort"

// Row is one cached quote awaiting delivery.
type Row struct {
	Ticker string
	Date   string
	Price  string
}

// Table holds quote rows with at most one row per (ticker, date).
type Table struct {
	rows []Row
}

// NewTable builds a table by merging rows in order, so a later duplicate
// (ticker, date) overrides the price of an earlier one.
func NewTable(rows ...Row) *Table {
	t := &Table{rows: make([]Row, 0, len(rows))}
	for _, r := range rows {
		t.Merge(r)
	}
	return t
}

func (t *Table) Len() int { return len(t.rows) }

// Rows returns a copy of the rows in their current order.
func (t *Table) Rows() []Row {
	out := make([]Row, len(t.rows))
	copy(out, t.rows)
	return out
}

// Peek returns the first row for ticker without removing it.
func (t *Table) Peek(ticker string) (Row, bool) {
	if i := t.index(ticker); i >= 0 {
		return t.rows[i], true
	}
	return Row{}, false
}

// Take removes and returns the first row for ticker.
func (t *Table) Take(ticker string) (Row, bool) {
	i := t.index(ticker)
	if i < 0 {
		return Row{}, false
	}
	r := t.rows[i]
	t.rows = append(t.rows[:i], t.rows[i+1:]...)
	return r, true
}

// Merge updates the price of the row with r's (ticker, date), or appends r
// when there is none.
func (t *Table) Merge(r Row) {
	for i := range t.rows {
		if t.rows[i].Ticker == r.Ticker && t.rows[i].Date == r.Date {
			t.rows[i].Price = r.Price
			return
		}
	}
	t.rows = append(t.rows, r)
}

// Sort orders rows by (ticker, date) ascending.
func (t *Table) Sort() {
	sort.SliceStable(t.rows, func(i, j int) bool {
		if t.rows[i].Ticker != t.rows[j].Ticker {
			return t.rows[i].Ticker < t.rows[j].Ticker
		}
		return t.rows[i].Date < t.rows[j].Date
	})
}

func (t *Table) index(ticker string) int {
	for i, r := range t.rows {
		if r.Ticker == ticker {
			return i
		}
	}
	return -1
}
