/*
	pipeline package provides a sequential, multi-stage pipeline abstraction.

		Requirements:
			- The client / user should provide an input source that satisfies
			  the [pipeline.Source] interface.
			- The client / user should provide an output sink that satisfies
			  the [pipeline.Sink] interface.
			- Zero or more [pipeline.Processor] stages transform each payload
			  on its way from the source to the sink.

	Payloads travel through the pipeline one at a time: the source is not
	asked for the next payload until the current one has either reached the
	sink or been dropped by a stage.
*/

package pipeline

import (
	"context"
	"fmt"
)

// Pipeline provides modular, multi-stage pipeline functionality. Each pipeline
// is built out of an input source, an output sink and zero or more
// processing stages.
type Pipeline struct {
	stages []Processor
}

// New returns a pointer to a pipeline instance.
func New(stages ...Processor) *Pipeline {
	return &Pipeline{stages}
}

// Execute reads the contents of the specified source, sends them through the
// various stages of the pipeline and directs the results to the specified sink
// and returns back any errors that may have occurred.
//
// Calls to execute block until:
//   - all data from the source has been processed or discarded.
//   - an error is encountered from any of the pipeline components including
//     the source, the sink and the stage processors.
//   - the supplied context is cancelled. Cancellation is observed between
//     payloads, never while a payload is inside a stage or the sink.
func (p *Pipeline) Execute(ctx context.Context, src Source, sink Sink) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !src.Next(ctx) {
			break
		}

		if err := p.process(ctx, src.Payload(), sink); err != nil {
			return err
		}
	}

	if err := src.Error(); err != nil {
		return fmt.Errorf("pipeline source: %w", err)
	}

	return nil
}

func (p *Pipeline) process(ctx context.Context, payload Payload, sink Sink) error {
	for i, stage := range p.stages {
		out, err := stage.Process(ctx, payload)
		if err != nil {
			payload.MarkAsProcessed()

			return fmt.Errorf("pipeline stage %d: %w", i, err)
		}

		// The stage dropped the payload, there is nothing left to do.
		if out == nil {
			payload.MarkAsProcessed()

			return nil
		}

		payload = out
	}

	if err := sink.Consume(ctx, payload); err != nil {
		payload.MarkAsProcessed()

		return fmt.Errorf("pipeline sink: %w", err)
	}

	payload.MarkAsProcessed()

	return nil
}
