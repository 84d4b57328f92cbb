package indexsync

import (
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"github.com/mycok/seqindexer/searchindex/index"
	"github.com/mycok/seqindexer/specimen"
	"github.com/mycok/seqindexer/specimen/extract"
	"github.com/mycok/seqindexer/syncer"
	"github.com/mycok/seqindexer/throttle"
)

// Config encapsulates the settings for configuring the index sync service.
type Config struct {
	// Source of raw specimen rows.
	Fetcher extract.PageFetcher

	// Filter and ordering applied to the source rows.
	Query extract.Query

	// Number of rows per page and offset of the first row of every pass.
	PageSize    int
	StartOffset int

	// Row to document mapping. Defaults to specimen.NewTransformer.
	Transformer *specimen.Transformer

	// Client and target of the document index.
	Client index.Client
	Target index.Target

	// If set, the target index is dropped and recreated with this mapping
	// before the first pass.
	Mapping *index.Mapping

	// Write mode and retry policy forwarded to the syncer.
	Mode  syncer.Mode
	Retry syncer.Retry

	// Pacing applied after every record.
	Throttle throttle.Throttle

	// Time between the end of a pass and the start of the next one. A zero
	// value runs a single pass.
	RepeatInterval time.Duration

	// A clock instance for generating time-related events. If not specified,
	// the default wall-clock will be used instead.
	Clock clock.Clock

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (config *Config) validate() error {
	var err error

	if config.Fetcher == nil {
		err = multierror.Append(err, fmt.Errorf("row fetcher not provided"))
	}

	if config.Client == nil {
		err = multierror.Append(err, fmt.Errorf("index client not provided"))
	}

	if tErr := config.Target.Validate(); tErr != nil {
		err = multierror.Append(err, tErr)
	}

	if config.RepeatInterval < 0 {
		err = multierror.Append(err, fmt.Errorf("invalid value for repeat interval, must be >= 0"))
	}

	if config.Clock == nil {
		config.Clock = clock.WallClock
	}

	if config.Logger == nil {
		config.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return err
}

func (config *Config) syncerConfig() syncer.Config {
	return syncer.Config{
		Fetcher:     config.Fetcher,
		Query:       config.Query,
		PageSize:    config.PageSize,
		StartOffset: config.StartOffset,
		Transformer: config.Transformer,
		Client:      config.Client,
		Target:      config.Target,
		Mode:        config.Mode,
		Retry:       config.Retry,
		Throttle:    config.Throttle,
		Clock:       config.Clock,
		Logger:      config.Logger,
	}
}
