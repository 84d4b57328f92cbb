/*
	syncer package copies specimen records from a relational source into a
	document index using a sequential pipeline. Every record goes through
	the following steps before the next one is extracted:
		1. Read the next raw row from the paginated extractor.
		2. Transform the row into an index document.
		3. Upsert the document keyed by its normalized identifier.
		4. Hand control to the throttle, which may pause the run.
*/

package syncer

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"github.com/mycok/seqindexer/pipeline"
	"github.com/mycok/seqindexer/searchindex/index"
	"github.com/mycok/seqindexer/specimen"
	"github.com/mycok/seqindexer/specimen/extract"
	"github.com/mycok/seqindexer/throttle"
)

// DefaultPageSize is the number of rows requested per page.
const DefaultPageSize = 100

// Config serves as a configuration object for the syncer.
type Config struct {
	// Source of raw specimen rows.
	Fetcher extract.PageFetcher

	// Filter and ordering applied to the source rows.
	Query extract.Query

	// Number of rows per page. Defaults to DefaultPageSize.
	PageSize int

	// Offset of the first extracted row. Used to resume an interrupted run.
	StartOffset int

	// Row to document mapping. If not specified, the iBOL public layout
	// returned by specimen.NewTransformer is used.
	Transformer *specimen.Transformer

	// Client and target of the document index.
	Client index.Client
	Target index.Target

	// How documents are written. Defaults to ModeUpdate.
	Mode Mode

	// Retry policy of a single write. Defaults to DefaultRetry.
	Retry Retry

	// Pacing applied after every record. If not specified, a jitter
	// throttle with the default parameters is used.
	Throttle throttle.Throttle

	// A clock instance for generating time-related events. If not specified,
	// the default wall-clock will be used instead.
	Clock clock.Clock

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (cfg *Config) validate() error {
	var err error

	if cfg.Fetcher == nil {
		err = multierror.Append(err, fmt.Errorf("row fetcher not provided"))
	}

	if cfg.Client == nil {
		err = multierror.Append(err, fmt.Errorf("index client not provided"))
	}

	if tErr := cfg.Target.Validate(); tErr != nil {
		err = multierror.Append(err, tErr)
	}

	if cfg.PageSize == 0 {
		cfg.PageSize = DefaultPageSize
	} else if cfg.PageSize < 0 {
		err = multierror.Append(err, fmt.Errorf("invalid value for page size, must be > 0"))
	}

	if cfg.StartOffset < 0 {
		err = multierror.Append(err, fmt.Errorf("invalid value for start offset, must be >= 0"))
	}

	mode, modeErr := ParseMode(string(cfg.Mode))
	if modeErr != nil {
		err = multierror.Append(err, modeErr)
	}
	cfg.Mode = mode

	if cfg.Retry == (Retry{}) {
		cfg.Retry = DefaultRetry
	} else if cfg.Retry.MaxRetries < 0 {
		err = multierror.Append(err, fmt.Errorf("invalid value for max retries, must be >= 0"))
	}

	if cfg.Transformer == nil {
		cfg.Transformer = specimen.NewTransformer()
	}

	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}

	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	if cfg.Throttle == nil {
		cfg.Throttle = throttle.NewJitter(cfg.Clock, cfg.Logger)
	}

	return err
}

// Syncer executes the extract, transform and upsert pipeline.
type Syncer struct {
	cfg Config
	p   *pipeline.Pipeline
}

// New validates cfg and returns a ready to use syncer.
func New(cfg Config) (*Syncer, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("syncer: config validation failed: %w", err)
	}

	return &Syncer{
		cfg: cfg,
		p:   pipeline.New(newDocTransformer(cfg.Transformer)),
	}, nil
}

// Sync performs a single pass over the source. It blocks until every row has
// been processed, a fatal error occurs or ctx is cancelled. The returned
// summary is never nil; its NextOffset can be used to resume the pass.
func (s *Syncer) Sync(ctx context.Context) (*Summary, error) {
	runID := uuid.New()
	logger := s.cfg.Logger.WithFields(logrus.Fields{
		"run_id": runID.String(),
		"index":  s.cfg.Target.Index,
	})

	summary := &Summary{RunID: runID, StartOffset: s.cfg.StartOffset, NextOffset: s.cfg.StartOffset}
	start := s.cfg.Clock.Now()

	it, err := extract.New(s.cfg.Fetcher, extract.Config{
		Query:       s.cfg.Query,
		PageSize:    s.cfg.PageSize,
		StartOffset: s.cfg.StartOffset,
		OnPage: func(p extract.PageInfo) {
			logger.WithFields(logrus.Fields{
				"page":   p.Number,
				"offset": p.Offset,
				"rows":   p.Rows,
			}).Info("fetched page")
		},
	})
	if err != nil {
		return summary, fmt.Errorf("sync: %w", err)
	}

	src := &rowSource{it: it, offset: s.cfg.StartOffset}
	sink := &upsertSink{
		client:   s.cfg.Client,
		target:   s.cfg.Target,
		mode:     s.cfg.Mode,
		retry:    s.cfg.Retry,
		throttle: s.cfg.Throttle,
		clock:    s.cfg.Clock,
		logger:   logger,
	}

	logger.WithFields(logrus.Fields{
		"start_offset": s.cfg.StartOffset,
		"page_size":    s.cfg.PageSize,
		"mode":         string(s.cfg.Mode),
	}).Info("starting sync")

	err = s.p.Execute(ctx, src, sink)

	summary.Pages = it.Pages()
	summary.Records = sink.upserted + sink.failed
	summary.Upserted = sink.upserted
	summary.Failed = sink.failed
	summary.FailedIDs = sink.failedIDs
	summary.NextOffset = s.cfg.StartOffset + summary.Records
	summary.Elapsed = s.cfg.Clock.Now().Sub(start)

	logger.WithFields(summary.fields()).Info("sync finished")

	if err != nil {
		return summary, fmt.Errorf("sync: %w", err)
	}

	return summary, nil
}

// Summary reports the outcome of a sync pass.
type Summary struct {
	// Identifies the pass in the logs.
	RunID uuid.UUID

	// Offset the pass started from.
	StartOffset int

	// Number of pages fetched, including a trailing empty page.
	Pages int

	// Number of records that reached the index writer.
	Records int

	// Number of successful and failed writes.
	Upserted int
	Failed   int

	// Identifiers of the records that could not be written.
	FailedIDs []string

	// Offset to resume from.
	NextOffset int

	// Wall time spent in the pass.
	Elapsed time.Duration
}

func (s *Summary) fields() logrus.Fields {
	return logrus.Fields{
		"pages":       s.Pages,
		"records":     s.Records,
		"upserted":    s.Upserted,
		"failed":      s.Failed,
		"next_offset": s.NextOffset,
		"elapsed":     s.Elapsed.String(),
	}
}
