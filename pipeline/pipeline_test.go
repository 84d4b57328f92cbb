package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	check "gopkg.in/check.v1"

	"github.com/mycok/seqindexer/pipeline"
)

// Initialize and register a pointer instance of the pipelineTestSuite to be
// executed by check testing package.
var _ = check.Suite(new(pipelineTestSuite))

// Test registers the [check] library with the go testing library and enables
// the running of the test suite using the go testing library.
func Test(t *testing.T) {
	check.TestingT(t)
}

type pipelineTestSuite struct{}

func (s *pipelineTestSuite) TestDataflow(c *check.C) {
	stages := make([]pipeline.Processor, 10)
	for i := 0; i < len(stages); i++ {
		stages[i] = makePassThruProcessor()
	}

	src := &sourceStab{data: generateStringPayloads(3)}
	sink := new(sinkStab)
	p := pipeline.New(stages...)

	err := p.Execute(context.TODO(), src, sink)
	c.Assert(err, check.IsNil)
	c.Assert(src.data, check.DeepEquals, sink.data)
	assertAllPayloadProcessed(c, sink.data...)
}

func (s *pipelineTestSuite) TestStagesRunInOrder(c *check.C) {
	stages := make([]pipeline.Processor, 3)
	for i := 0; i < len(stages); i++ {
		stages[i] = makeMutatingProcessor(i)
	}

	src := &sourceStab{data: generateStringPayloads(2)}
	sink := new(sinkStab)

	err := pipeline.New(stages...).Execute(context.TODO(), src, sink)
	c.Assert(err, check.IsNil)
	c.Assert(sink.data, check.HasLen, 2)
	c.Assert(sink.data[0].(*stringPayload).value, check.Equals, "0_0_1_2")
	c.Assert(sink.data[1].(*stringPayload).value, check.Equals, "1_0_1_2")
}

func (s *pipelineTestSuite) TestPayloadsAreProcessedOneAtATime(c *check.C) {
	var inFlight, maxInFlight int

	src := &sourceStab{
		data: generateStringPayloads(5),
		onNext: func() {
			// The source must never be asked for more data while a payload
			// is still travelling through the pipeline.
			c.Assert(inFlight, check.Equals, 0)
		},
	}

	stage := pipeline.ProcessorFunc(func(_ context.Context, p pipeline.Payload) (pipeline.Payload, error) {
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}

		return p, nil
	})

	sink := &sinkStab{onConsume: func() { inFlight-- }}

	err := pipeline.New(stage).Execute(context.TODO(), src, sink)
	c.Assert(err, check.IsNil)
	c.Assert(maxInFlight, check.Equals, 1)
	c.Assert(sink.data, check.HasLen, 5)
}

func (s *pipelineTestSuite) TestProcessorErrHandling(c *check.C) {
	processorErr := errors.New("processor error")
	stage := pipeline.ProcessorFunc(func(context.Context, pipeline.Payload) (pipeline.Payload, error) {
		return nil, processorErr
	})

	src := &sourceStab{data: generateStringPayloads(3)}
	sink := new(sinkStab)
	p := pipeline.New(makePassThruProcessor(), stage)

	err := p.Execute(context.TODO(), src, sink)
	c.Assert(err, check.ErrorMatches, "pipeline stage 1: processor error")
	c.Assert(errors.Is(err, processorErr), check.Equals, true)
	c.Assert(sink.data, check.HasLen, 0)
	assertAllPayloadProcessed(c, src.data[0])
}

func (s *pipelineTestSuite) TestProcessorPayloadDrop(c *check.C) {
	drop := pipeline.ProcessorFunc(func(context.Context, pipeline.Payload) (pipeline.Payload, error) {
		return nil, nil
	})

	src := &sourceStab{data: generateStringPayloads(2)}
	sink := new(sinkStab)

	err := pipeline.New(drop).Execute(context.TODO(), src, sink)
	c.Assert(err, check.IsNil)
	c.Assert(sink.data, check.HasLen, 0)
	assertAllPayloadProcessed(c, src.data...)
}

func (s *pipelineTestSuite) TestSourceErrHandling(c *check.C) {
	srcErr := errors.New("source error")
	src := &sourceStab{
		data: generateStringPayloads(3),
		err:  srcErr,
	}
	sink := new(sinkStab)

	err := pipeline.New(makePassThruProcessor()).Execute(context.TODO(), src, sink)
	c.Assert(err, check.ErrorMatches, "pipeline source: source error")
}

func (s *pipelineTestSuite) TestSinkErrHanding(c *check.C) {
	sinkErr := errors.New("sink error")
	src := &sourceStab{data: generateStringPayloads(3)}
	sink := &sinkStab{err: sinkErr}

	err := pipeline.New().Execute(context.TODO(), src, sink)
	c.Assert(err, check.ErrorMatches, "pipeline sink: sink error")
	c.Assert(sink.data, check.HasLen, 1)
	// The payload rejected by the sink is still released.
	assertAllPayloadProcessed(c, sink.data...)
}

func (s *pipelineTestSuite) TestCancellationBetweenPayloads(c *check.C) {
	ctx, cancelFn := context.WithCancel(context.TODO())
	defer cancelFn()

	src := &sourceStab{data: generateStringPayloads(5)}
	sink := &sinkStab{}
	sink.onConsume = func() {
		if len(sink.data) == 2 {
			cancelFn()
		}
	}

	err := pipeline.New().Execute(ctx, src, sink)
	c.Assert(errors.Is(err, context.Canceled), check.Equals, true)
	// The payload that was in flight when the context got cancelled still
	// reaches the sink and nothing else is read from the source.
	c.Assert(sink.data, check.HasLen, 2)
	c.Assert(src.index, check.Equals, 2)
	assertAllPayloadProcessed(c, sink.data...)
}

// Helper functions and stabs.
func assertAllPayloadProcessed(c *check.C, payloads ...pipeline.Payload) {
	for i, p := range payloads {
		payload := p.(*stringPayload)
		c.Assert(
			payload.isProcessed, check.Equals, true,
			check.Commentf("payload %d not processed", i),
		)
	}
}

func makePassThruProcessor() pipeline.Processor {
	return pipeline.ProcessorFunc(func(_ context.Context, p pipeline.Payload) (pipeline.Payload, error) {
		return p, nil
	})
}

func makeMutatingProcessor(index int) pipeline.Processor {
	return pipeline.ProcessorFunc(func(_ context.Context, p pipeline.Payload) (pipeline.Payload, error) {
		sp := p.(*stringPayload)
		sp.value = fmt.Sprintf("%s_%d", sp.value, index)

		return p, nil
	})
}

type sourceStab struct {
	index  int
	data   []pipeline.Payload
	err    error
	onNext func()
}

func (s *sourceStab) Next(ctx context.Context) bool {
	if s.onNext != nil {
		s.onNext()
	}

	if s.index >= len(s.data) || s.err != nil {
		return false
	}

	s.index++

	return true
}

func (s *sourceStab) Payload() pipeline.Payload {
	return s.data[s.index-1]
}

func (s *sourceStab) Error() error {
	return s.err
}

type sinkStab struct {
	data      []pipeline.Payload
	err       error
	onConsume func()
}

func (s *sinkStab) Consume(ctx context.Context, p pipeline.Payload) error {
	s.data = append(s.data, p)

	if s.onConsume != nil {
		s.onConsume()
	}

	return s.err
}

type stringPayload struct {
	value       string
	isProcessed bool
}

func (p *stringPayload) MarkAsProcessed() {
	p.isProcessed = true
}

func generateStringPayloads(numOfPayloads int) []pipeline.Payload {
	payloads := make([]pipeline.Payload, numOfPayloads)
	for i := 0; i < numOfPayloads; i++ {
		payloads[i] = &stringPayload{value: fmt.Sprint(i)}
	}

	return payloads
}
