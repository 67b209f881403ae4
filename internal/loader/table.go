package loader

import "strings"

// Unit is one compiled module: the lowered CommonJS body plus the
// static imports it declares. Units are compared by identity; two
// imports of the same URL share one unit.
type Unit struct {
	URL     string
	Body    string   // lowered source, no trailing newline
	Imports []string // specifiers in declaration order

	blobLine int // 1-based line of the unit's header in the linked blob
}

// Table is a per-load module table: a bidirectional URL↔unit mapping
// with insertion order retained for deterministic linking. It doubles
// as the visited set during resolution, which is what breaks import
// cycles.
type Table struct {
	byURL  map[string]*Unit
	byUnit map[*Unit]string
	order  []*Unit
}

func NewTable() *Table {
	return &Table{
		byURL:  make(map[string]*Unit),
		byUnit: make(map[*Unit]string),
	}
}

// Add inserts the unit under its URL. A URL maps to at most one unit;
// re-adding an existing URL is a no-op and returns false.
func (t *Table) Add(u *Unit) bool {
	if _, ok := t.byURL[u.URL]; ok {
		return false
	}
	t.byURL[u.URL] = u
	t.byUnit[u] = u.URL
	t.order = append(t.order, u)
	return true
}

// Get returns the unit compiled for url.
func (t *Table) Get(url string) (*Unit, bool) {
	u, ok := t.byURL[url]
	return u, ok
}

// URLOf returns the URL a unit was compiled from, for diagnostics.
func (t *Table) URLOf(u *Unit) (string, bool) {
	url, ok := t.byUnit[u]
	return url, ok
}

// Len reports the number of distinct modules in the table.
func (t *Table) Len() int { return len(t.order) }

// Units returns the table's units in insertion order.
func (t *Table) Units() []*Unit { return t.order }

// Locate maps a 1-based line of the linked blob to the unit whose body
// contains it and the line's 1-based position within that body.
func (t *Table) Locate(blobLine int) (*Unit, int, bool) {
	for _, u := range t.order {
		if u.blobLine == 0 {
			continue
		}
		first := u.blobLine + 1
		n := strings.Count(u.Body, "\n") + 1
		if blobLine >= first && blobLine < first+n {
			return u, blobLine - first + 1, true
		}
	}
	return nil, 0, false
}

// bodyLine returns the 1-based line of a unit's body, or "" when out
// of range.
func bodyLine(u *Unit, line int) string {
	lines := strings.Split(u.Body, "\n")
	if line < 1 || line > len(lines) {
		return ""
	}
	return lines[line-1]
}
