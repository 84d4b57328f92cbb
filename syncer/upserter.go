package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"github.com/mycok/seqindexer/pipeline"
	"github.com/mycok/seqindexer/searchindex/index"
	"github.com/mycok/seqindexer/specimen"
	"github.com/mycok/seqindexer/throttle"
)

// Static and compile-time check to ensure upsertSink implements
// pipeline.Sink interface.
var _ pipeline.Sink = (*upsertSink)(nil)

// Mode selects how documents are written to the index.
type Mode string

const (
	// ModeUpdate merges the document into any stored version, creating it
	// when missing (doc_as_upsert).
	ModeUpdate Mode = "update"

	// ModeIndex replaces any stored version with the document.
	ModeIndex Mode = "index"
)

// ParseMode converts s into a Mode. An empty string selects ModeUpdate.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeUpdate, "":
		return ModeUpdate, nil
	case ModeIndex:
		return ModeIndex, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Retry bounds the attempts made for a single document write.
type Retry struct {
	// Number of retries after the first attempt.
	MaxRetries int

	// Delay before the first retry. Later delays grow exponentially.
	InitialInterval time.Duration

	// Upper bound of the delay between retries.
	MaxInterval time.Duration
}

// DefaultRetry is used when Config.Retry is left empty.
var DefaultRetry = Retry{
	MaxRetries:      3,
	InitialInterval: 100 * time.Millisecond,
	MaxInterval:     5 * time.Second,
}

type upsertSink struct {
	client   index.Client
	target   index.Target
	mode     Mode
	retry    Retry
	throttle throttle.Throttle
	clock    clock.Clock
	logger   *logrus.Entry

	upserted  int
	failed    int
	failedIDs []string
}

// Consume writes the payload document and then hands control to the
// throttle. A failed write is logged and counted but never stops the sync.
func (s *upsertSink) Consume(ctx context.Context, p pipeline.Payload) error {
	rp, ok := p.(*recordPayload)
	if !ok || rp.Doc == nil {
		return nil
	}

	// The write itself is never interrupted; cancellation is picked up
	// before the next record is extracted.
	if err := s.write(context.WithoutCancel(ctx), rp.Doc); err != nil {
		s.failed++
		if rp.Doc.ID != "" {
			s.failedIDs = append(s.failedIDs, rp.Doc.ID)
		}

		s.logger.WithFields(logrus.Fields{
			"processid": rp.Doc.ID,
			"offset":    rp.Offset,
			"error":     err.Error(),
		}).Warn("skipping record: upsert failed")
	} else {
		s.upserted++
	}

	return s.throttle.Wait(ctx)
}

func (s *upsertSink) write(ctx context.Context, doc *specimen.Document) error {
	if doc.ID == "" {
		return ErrMissingIdentifier
	}

	method, path, body := s.request(doc)

	// Encoding failures are deterministic and never retried.
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("upsert %q: encode document: %w", doc.ID, err)
	}

	op := func() error {
		res, err := s.client.Send(ctx, method, path, json.RawMessage(data))
		if err != nil {
			return err
		}

		if err = res.Err(); err != nil {
			var idxErr *index.Error
			if errors.As(err, &idxErr) && !idxErr.Temporary() {
				return backoff.Permanent(err)
			}

			return err
		}

		return nil
	}

	notify := func(err error, wait time.Duration) {
		s.logger.WithFields(logrus.Fields{
			"processid": doc.ID,
			"retry_in":  wait.String(),
			"error":     err.Error(),
		}).Debug("retrying upsert")
	}

	b := backoff.WithContext(backoff.WithMaxRetries(s.backOff(), uint64(s.retry.MaxRetries)), ctx)
	if err = backoff.RetryNotifyWithTimer(op, b, notify, &clockTimer{clk: s.clock}); err != nil {
		return fmt.Errorf("upsert %q: %w", doc.ID, err)
	}

	return nil
}

func (s *upsertSink) request(doc *specimen.Document) (string, string, interface{}) {
	if s.mode == ModeIndex {
		return http.MethodPut, s.target.DocPath(doc.ID), doc
	}

	return http.MethodPost, s.target.UpdatePath(doc.ID), map[string]interface{}{
		"doc":           doc,
		"doc_as_upsert": true,
	}
}

func (s *upsertSink) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retry.InitialInterval
	b.MaxInterval = s.retry.MaxInterval
	b.MaxElapsedTime = 0
	b.Clock = s.clock
	b.Reset()

	return b
}

// clockTimer drives backoff retries from a clock.Clock.
type clockTimer struct {
	clk   clock.Clock
	timer clock.Timer
}

func (t *clockTimer) Start(d time.Duration) {
	t.timer = t.clk.NewTimer(d)
}

func (t *clockTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *clockTimer) C() <-chan time.Time {
	return t.timer.Chan()
}
