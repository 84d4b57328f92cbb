package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mycok/seqindexer/specimen"
	"github.com/mycok/seqindexer/specimen/extract"
)

// Static and compile-time check to ensure Store implements PageFetcher.
var _ extract.PageFetcher = (*Store)(nil)

// Store is a PageFetcher that serves rows out of memory. It is mostly used
// for tests and dry runs.
type Store struct {
	mu      sync.Mutex
	rows    []specimen.RawRow
	fetches int
	err     error
}

// NewStore returns a store serving copies of the provided rows.
func NewStore(rows ...specimen.RawRow) *Store {
	s := new(Store)
	for _, r := range rows {
		s.rows = append(s.rows, copyRow(r))
	}

	return s
}

// Add appends a copy of row to the store.
func (s *Store) Add(row specimen.RawRow) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows = append(s.rows, copyRow(row))
}

// FailWith makes every subsequent fetch return err. A nil err clears it.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.err = err
}

// Fetches returns the number of FetchPage calls served so far.
func (s *Store) Fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.fetches
}

// FetchPage returns at most limit rows matching q, ordered by q.OrderBy and
// skipping the first offset matches. Rows keep insertion order when no
// ordering column is given.
func (s *Store) FetchPage(
	ctx context.Context, q extract.Query, limit, offset int,
) ([]specimen.RawRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.fetches++
	if s.err != nil {
		return nil, s.err
	}

	var matches []specimen.RawRow
	for _, r := range s.rows {
		if matchesFilter(r, q.Filter) {
			matches = append(matches, r)
		}
	}

	if q.OrderBy != "" {
		sort.SliceStable(matches, func(i, j int) bool {
			return matches[i].Get(q.OrderBy) < matches[j].Get(q.OrderBy)
		})
	}

	if offset >= len(matches) {
		return nil, nil
	}

	end := offset + limit
	if end > len(matches) {
		end = len(matches)
	}

	page := make([]specimen.RawRow, 0, end-offset)
	for _, r := range matches[offset:end] {
		page = append(page, copyRow(r))
	}

	return page, nil
}

func matchesFilter(r specimen.RawRow, filter []extract.Condition) bool {
	for _, cond := range filter {
		if v, ok := r.Value(cond.Column); !ok || v != cond.Value {
			return false
		}
	}

	return true
}

func copyRow(r specimen.RawRow) specimen.RawRow {
	out := make(specimen.RawRow, len(r))
	for k, v := range r {
		out[k] = v
	}

	return out
}
