package syncer

import (
	"sync"

	"github.com/mycok/seqindexer/pipeline"
	"github.com/mycok/seqindexer/specimen"
)

var (
	_ pipeline.Payload = (*recordPayload)(nil)

	payloadPool = sync.Pool{
		New: func() interface{} {
			return new(recordPayload)
		},
	}
)

type recordPayload struct {
	Offset int                // populated by the row source.
	Row    specimen.RawRow    // populated by the row source.
	Doc    *specimen.Document // populated by the transformer stage.
}

// MarkAsProcessed is invoked by the pipeline when the payload either reaches
// the sink or gets discarded by one of the stages.
func (p *recordPayload) MarkAsProcessed() {
	p.Offset = 0
	p.Row = nil
	p.Doc = nil

	payloadPool.Put(p)
}
