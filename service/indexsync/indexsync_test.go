package indexsync

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/juju/clock"
	"github.com/juju/clock/testclock"
	"github.com/sirupsen/logrus"
	check "gopkg.in/check.v1"

	"github.com/mycok/seqindexer/schema"
	"github.com/mycok/seqindexer/searchindex/index"
	memindex "github.com/mycok/seqindexer/searchindex/store/memory"
	"github.com/mycok/seqindexer/specimen"
	"github.com/mycok/seqindexer/specimen/extract"
	memstore "github.com/mycok/seqindexer/specimen/store/memory"
	"github.com/mycok/seqindexer/throttle"
)

var (
	_ = check.Suite(new(ConfigTestSuite))
	_ = check.Suite(new(IndexSyncTestSuite))
)

// Test registers the [check] library with the go testing library and enables
// the running of the test suite using the go testing library.
func Test(t *testing.T) {
	check.TestingT(t)
}

var target = index.Target{Index: "sequence"}

type IndexSyncTestSuite struct {
	rows   *memstore.Store
	client *memindex.Client
}

func (s *IndexSyncTestSuite) SetUpTest(c *check.C) {
	s.rows = memstore.NewStore(
		specimen.RawRow{"processid": "AAA001.COI-5P", "class_reg": "Reptilia", "nucraw": "ACGTACGT"},
		specimen.RawRow{"processid": "BBB002.COI-5P", "class_reg": "Mammalia", "nucraw": "TTGACCAA"},
	)
	s.client = memindex.NewClient()
}

func (s *IndexSyncTestSuite) TearDownTest(c *check.C) {
	c.Assert(s.client.Close(), check.IsNil)
}

func (s *IndexSyncTestSuite) TestSinglePass(c *check.C) {
	svc, err := New(s.config(nil))
	c.Assert(err, check.IsNil)
	c.Assert(svc.LastSummary(), check.IsNil)

	c.Assert(svc.Run(context.TODO()), check.IsNil)

	summary := svc.LastSummary()
	c.Assert(summary, check.NotNil)
	c.Assert(summary.Upserted, check.Equals, 2)
	c.Assert(summary.NextOffset, check.Equals, 2)
	c.Assert(s.rows.Fetches(), check.Equals, 1)

	doc, found := s.client.Source(target.Index, "AAA001")
	c.Assert(found, check.Equals, true)
	c.Assert(doc["class"], check.Equals, "Reptilia")
}

func (s *IndexSyncTestSuite) TestProvisionBeforeFirstPass(c *check.C) {
	res, err := s.client.Send(
		context.TODO(), http.MethodPut, target.DocPath("STALE"), map[string]string{"seq": "A"},
	)
	c.Assert(err, check.IsNil)
	c.Assert(res.IsError(), check.Equals, false)

	svc, err := New(s.config(func(cfg *Config) {
		cfg.Mapping = schema.SequenceMapping(schema.Options{})
	}))
	c.Assert(err, check.IsNil)
	c.Assert(svc.Run(context.TODO()), check.IsNil)

	// Provisioning drops the existing index together with its documents.
	_, found := s.client.Source(target.Index, "STALE")
	c.Assert(found, check.Equals, false)

	_, found = s.client.Source(target.Index, "BBB002")
	c.Assert(found, check.Equals, true)

	tokens, err := schema.Analyze(context.TODO(), s.client, target, schema.AnalyzerName, "ACGTAC")
	c.Assert(err, check.IsNil)
	c.Assert(tokens, check.DeepEquals, []string{"ACGTA", "CGTAC"})
}

func (s *IndexSyncTestSuite) TestProvisionFailureIsReturned(c *check.C) {
	svc, err := New(s.config(func(cfg *Config) {
		cfg.Mapping = &index.Mapping{Properties: map[string]index.Field{
			"seq": {Type: "text", Analyzer: "missing_analyzer"},
		}}
	}))
	c.Assert(err, check.IsNil)

	err = svc.Run(context.TODO())
	c.Assert(errors.Is(err, schema.ErrProvision), check.Equals, true)
	c.Assert(svc.LastSummary(), check.IsNil)
	c.Assert(s.rows.Fetches(), check.Equals, 0)
}

func (s *IndexSyncTestSuite) TestRepeatedPasses(c *check.C) {
	ctx, cancelFn := context.WithCancel(context.TODO())
	defer cancelFn()

	clk := testclock.NewClock(time.Now())
	fetcher := &cancellingFetcher{PageFetcher: s.rows, cancelAt: 2, cancelFn: cancelFn}

	svc, err := New(s.config(func(cfg *Config) {
		cfg.Fetcher = fetcher
		cfg.RepeatInterval = time.Minute
		cfg.Clock = clk
	}))
	c.Assert(err, check.IsNil)

	go func() {
		// Wait until the first pass is done and the service waits on the
		// repeat interval, then trigger the second pass.
		c.Assert(clk.WaitAdvance(time.Minute, 10*time.Second, 1), check.IsNil)
	}()

	c.Assert(svc.Run(ctx), check.IsNil)
	c.Assert(fetcher.calls, check.Equals, 2)

	// The second pass stops after the record that was in flight when the
	// context got cancelled.
	summary := svc.LastSummary()
	c.Assert(summary, check.NotNil)
	c.Assert(summary.Records, check.Equals, 1)
	c.Assert(summary.NextOffset, check.Equals, 1)
}

func (s *IndexSyncTestSuite) TestCancelledBeforeStart(c *check.C) {
	ctx, cancelFn := context.WithCancel(context.TODO())
	cancelFn()

	svc, err := New(s.config(nil))
	c.Assert(err, check.IsNil)
	c.Assert(svc.Run(ctx), check.IsNil)
	c.Assert(svc.LastSummary().Records, check.Equals, 0)
	c.Assert(s.client.Calls(), check.Equals, 0)
}

func (s *IndexSyncTestSuite) TestFatalExtractionError(c *check.C) {
	s.rows.FailWith(errors.New("connection reset"))

	svc, err := New(s.config(func(cfg *Config) { cfg.RepeatInterval = time.Hour }))
	c.Assert(err, check.IsNil)

	err = svc.Run(context.TODO())
	c.Assert(err, check.ErrorMatches, "(?ms).*fetch page at offset 0: connection reset.*")
}

func (s *IndexSyncTestSuite) config(mutate func(*Config)) Config {
	cfg := Config{
		Fetcher:  s.rows,
		Query:    extract.Query{OrderBy: "processid"},
		Client:   s.client,
		Target:   target,
		Throttle: throttle.None{},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	return cfg
}

// cancellingFetcher cancels the run once the source has been hit cancelAt
// times.
type cancellingFetcher struct {
	extract.PageFetcher

	calls    int
	cancelAt int
	cancelFn func()
}

func (f *cancellingFetcher) FetchPage(
	ctx context.Context, q extract.Query, limit, offset int,
) ([]specimen.RawRow, error) {
	rows, err := f.PageFetcher.FetchPage(ctx, q, limit, offset)
	f.calls++
	if f.calls == f.cancelAt {
		f.cancelFn()
	}

	return rows, err
}

type ConfigTestSuite struct{}

func (s *ConfigTestSuite) TestConfigValidation(c *check.C) {
	origConfig := Config{
		Fetcher: memstore.NewStore(),
		Client:  memindex.NewClient(),
		Target:  target,
	}

	cfg := origConfig
	c.Assert(cfg.validate(), check.IsNil)
	c.Assert(cfg.Clock, check.Equals, clock.WallClock, check.Commentf("default clock was not assigned"))
	c.Assert(cfg.Logger, check.NotNil, check.Commentf("default logger was not assigned"))

	cfg = origConfig
	cfg.Fetcher = nil
	c.Assert(cfg.validate(), check.ErrorMatches, "(?ms).*row fetcher not provided.*")

	cfg = origConfig
	cfg.Client = nil
	c.Assert(cfg.validate(), check.ErrorMatches, "(?ms).*index client not provided.*")

	cfg = origConfig
	cfg.Target = index.Target{}
	c.Assert(cfg.validate(), check.ErrorMatches, "(?ms).*index name not provided.*")

	cfg = origConfig
	cfg.RepeatInterval = -time.Second
	c.Assert(cfg.validate(), check.ErrorMatches, "(?ms).*invalid value for repeat interval.*")

	cfg = origConfig
	cfg.Logger = logrus.NewEntry(logrus.New())
	logger := cfg.Logger
	c.Assert(cfg.validate(), check.IsNil)
	c.Assert(cfg.Logger, check.Equals, logger)
}

func (s *ConfigTestSuite) TestNewForwardsSyncerValidation(c *check.C) {
	_, err := New(Config{
		Fetcher: memstore.NewStore(),
		Client:  memindex.NewClient(),
		Target:  target,
		Mode:    "replace",
	})
	c.Assert(err, check.ErrorMatches, "(?ms)indexsync service: syncer: config validation failed.*")
}
