package state

import "sort"

// DisplayIndex is the 1-based ordinal shown to the customer next to a product
// in the latest listing. It is meaningless once a new listing is shown.
type DisplayIndex int

// RowID is the stable key of a catalog row assigned by the backing sheet.
type RowID int

// IndexMap maps display indices of the current listing to catalog rows.
// The direction is fixed by the key/value types; there is no orientation guessing.
type IndexMap map[DisplayIndex]RowID

// Resolution is the outcome of resolving customer-supplied numbers.
type Resolution struct {
	Rows    []RowID
	Unknown []int
}

// Store replaces the whole map with a copy of mapping. Entries of an older
// listing never survive a Store call.
func (m *IndexMap) Store(mapping map[DisplayIndex]RowID) {
	fresh := make(IndexMap, len(mapping))
	for idx, row := range mapping {
		fresh[idx] = row
	}
	*m = fresh
}

// Clear drops every entry.
func (m *IndexMap) Clear() {
	*m = IndexMap{}
}

func (m IndexMap) Lookup(idx DisplayIndex) (RowID, bool) {
	row, ok := m[idx]
	return row, ok
}

func (m IndexMap) Len() int {
	return len(m)
}

// Indices returns the stored display indices in ascending order.
func (m IndexMap) Indices() []DisplayIndex {
	out := make([]DisplayIndex, 0, len(m))
	for idx := range m {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Resolve maps each number to a row, preserving input order. A number that is
// a display index of the current listing resolves through the map; otherwise,
// when isRow reports it as an existing row id, it passes through unchanged.
// Everything else lands in Unknown.
func (m IndexMap) Resolve(numbers []int, isRow func(RowID) bool) Resolution {
	res := Resolution{Rows: make([]RowID, 0, len(numbers))}
	for _, n := range numbers {
		if row, ok := m[DisplayIndex(n)]; ok {
			res.Rows = append(res.Rows, row)
			continue
		}
		if isRow != nil && isRow(RowID(n)) {
			res.Rows = append(res.Rows, RowID(n))
			continue
		}
		res.Unknown = append(res.Unknown, n)
	}
	return res
}
