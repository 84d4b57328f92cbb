// Package extract implements offset-paginated extraction of raw specimen rows.
package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/mycok/seqindexer/specimen"
)

// ErrInvalidPageSize is returned when the requested page size is not positive.
var ErrInvalidPageSize = errors.New("page size must be > 0")

// Condition is an equality predicate over a single source column.
type Condition struct {
	Column string
	Value  string
}

// Query describes which source rows to extract and how to order them.
type Query struct {
	// Conditions that must all hold for a row to be extracted.
	Filter []Condition

	// The column providing a stable total order over the source rows.
	// Offset pagination is only free of gaps and duplicates when every page
	// is read in the same order.
	OrderBy string
}

// PageFetcher is implemented by row stores that can return bounded pages of
// an ordered result set.
type PageFetcher interface {
	// FetchPage returns at most limit rows matching q, skipping the first
	// offset rows.
	FetchPage(ctx context.Context, q Query, limit, offset int) ([]specimen.RawRow, error)
}

// PageInfo describes a page that has just been fetched.
type PageInfo struct {
	// 1-based position of the page within this extraction.
	Number int
	// Offset the page was fetched from.
	Offset int
	// Number of rows returned.
	Rows int
}

// Config defines how an Iterator walks through the source.
type Config struct {
	Query Query

	// Number of rows requested per page.
	PageSize int

	// Offset of the first requested page. Used to resume an interrupted
	// extraction.
	StartOffset int

	// Invoked once for every fetched page, including a final empty one.
	OnPage func(PageInfo)
}

// Iterator lazily yields the rows of consecutive pages. A page holding fewer
// rows than the configured page size is the last one.
type Iterator struct {
	fetcher PageFetcher
	cfg     Config

	page    []specimen.RawRow
	pageIdx int
	offset  int
	pages   int
	done    bool
	row     specimen.RawRow
	lastErr error
}

// New returns an iterator over the rows matching cfg.Query.
func New(fetcher PageFetcher, cfg Config) (*Iterator, error) {
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("extract: %w", ErrInvalidPageSize)
	}

	if cfg.StartOffset < 0 {
		return nil, fmt.Errorf("extract: invalid start offset %d", cfg.StartOffset)
	}

	return &Iterator{
		fetcher: fetcher,
		cfg:     cfg,
		offset:  cfg.StartOffset,
	}, nil
}

// Next loads the next row, fetching a new page when the current one has been
// consumed. It returns false when no more rows are available or when an error
// occurs.
func (it *Iterator) Next(ctx context.Context) bool {
	if it.lastErr != nil {
		return false
	}

	if it.pageIdx >= len(it.page) {
		if it.done || !it.fetch(ctx) {
			return false
		}
	}

	it.row = it.page[it.pageIdx]
	it.pageIdx++

	return true
}

func (it *Iterator) fetch(ctx context.Context) bool {
	rows, err := it.fetcher.FetchPage(ctx, it.cfg.Query, it.cfg.PageSize, it.offset)
	if err != nil {
		it.lastErr = fmt.Errorf("extract: fetch page at offset %d: %w", it.offset, err)

		return false
	}

	it.pages++
	if it.cfg.OnPage != nil {
		it.cfg.OnPage(PageInfo{Number: it.pages, Offset: it.offset, Rows: len(rows)})
	}

	it.page = rows
	it.pageIdx = 0
	it.offset += len(rows)

	if len(rows) < it.cfg.PageSize {
		it.done = true
	}

	return len(rows) > 0
}

// Row returns the current row.
func (it *Iterator) Row() specimen.RawRow {
	return it.row
}

// Error returns the last error encountered by the iterator.
func (it *Iterator) Error() error {
	return it.lastErr
}

// Pages returns the number of pages fetched so far.
func (it *Iterator) Pages() int {
	return it.pages
}

// Offset returns the offset the next page would be fetched from.
func (it *Iterator) Offset() int {
	return it.offset
}
