package syncer

import (
	"context"

	"github.com/mycok/seqindexer/pipeline"
	"github.com/mycok/seqindexer/specimen/extract"
)

// Static and compile-time check to ensure rowSource implements
// pipeline.Source interface.
var _ pipeline.Source = (*rowSource)(nil)

type rowSource struct {
	it     *extract.Iterator
	offset int
	rows   int
}

// Next loads the next row from the extractor. When no more rows are
// available or an error occurs, calls to Next return false.
func (s *rowSource) Next(ctx context.Context) bool {
	if !s.it.Next(ctx) {
		return false
	}

	s.rows++

	return true
}

// Payload returns the current row wrapped in a payload.
func (s *rowSource) Payload() pipeline.Payload {
	payload := payloadPool.Get().(*recordPayload)
	payload.Offset = s.offset + s.rows - 1
	payload.Row = s.it.Row()

	return payload
}

// Error returns the last error encountered by the extractor.
func (s *rowSource) Error() error {
	return s.it.Error()
}
