package syncer

import (
	"context"

	"github.com/mycok/seqindexer/pipeline"
	"github.com/mycok/seqindexer/specimen"
)

// Static and compile-time check to ensure docTransformer implements
// pipeline.Processor interface.
var _ pipeline.Processor = (*docTransformer)(nil)

type docTransformer struct {
	t *specimen.Transformer
}

func newDocTransformer(t *specimen.Transformer) *docTransformer {
	return &docTransformer{t: t}
}

// Process converts the payload row into an index document.
func (p *docTransformer) Process(
	ctx context.Context, payload pipeline.Payload,
) (pipeline.Payload, error) {
	rp, ok := payload.(*recordPayload)
	if !ok {
		return nil, nil
	}

	rp.Doc = p.t.Transform(rp.Row)

	return rp, nil
}
