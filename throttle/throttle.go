// Package throttle paces the rate at which documents are written to the
// index.
package throttle

import (
	"context"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Default jitter parameters: pause for 100 to 300ms after every 10 records.
const (
	DefaultEvery = 10
	DefaultMin   = 100 * time.Millisecond
	DefaultMax   = 300 * time.Millisecond
)

// Throttle is invoked once after every processed record.
type Throttle interface {
	// Wait blocks for as long as the strategy requires. It returns the
	// context error if ctx expires while waiting.
	Wait(ctx context.Context) error
}

// Static and compile-time checks to ensure the strategies implement Throttle.
var (
	_ Throttle = (*Jitter)(nil)
	_ Throttle = (*Rate)(nil)
	_ Throttle = None{}
)

// Jitter pauses for a random duration in [Min, Max] after every Every
// records.
type Jitter struct {
	// Number of records between pauses. Defaults to DefaultEvery.
	Every int

	// Bounds of the pause duration. Both default to DefaultMin and
	// DefaultMax when zero.
	Min time.Duration
	Max time.Duration

	// A clock instance for generating time-related events. If not
	// specified, the default wall-clock will be used instead.
	Clock clock.Clock

	// Source of randomness. If not specified, a time seeded source is used.
	Rand *rand.Rand

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry

	once  sync.Once
	count int
}

// NewJitter returns a Jitter with the default parameters.
func NewJitter(clk clock.Clock, logger *logrus.Entry) *Jitter {
	return &Jitter{
		Every:  DefaultEvery,
		Min:    DefaultMin,
		Max:    DefaultMax,
		Clock:  clk,
		Logger: logger,
	}
}

// Wait counts a record and sleeps once the count reaches a multiple of Every.
func (j *Jitter) Wait(ctx context.Context) error {
	j.once.Do(j.setDefaults)

	j.count++
	if j.count%j.Every != 0 {
		return nil
	}

	pause := j.pause()
	j.Logger.WithFields(logrus.Fields{
		"records": j.count,
		"pause":   pause.String(),
	}).Debug("throttling")

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-j.Clock.After(pause):
		return nil
	}
}

// Count returns the number of records seen so far.
func (j *Jitter) Count() int {
	return j.count
}

func (j *Jitter) pause() time.Duration {
	span := j.Max - j.Min
	if span <= 0 {
		return j.Min
	}

	return j.Min + time.Duration(j.Rand.Int63n(int64(span)+1))
}

func (j *Jitter) setDefaults() {
	if j.Every <= 0 {
		j.Every = DefaultEvery
	}

	if j.Min == 0 && j.Max == 0 {
		j.Min, j.Max = DefaultMin, DefaultMax
	}

	if j.Max < j.Min {
		j.Max = j.Min
	}

	if j.Clock == nil {
		j.Clock = clock.WallClock
	}

	if j.Rand == nil {
		j.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	if j.Logger == nil {
		j.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}
}

// Rate paces records with a token bucket.
type Rate struct {
	limiter *rate.Limiter
}

// NewRate returns a throttle that allows perSecond records per second with
// bursts of up to burst records.
func NewRate(perSecond float64, burst int) *Rate {
	if burst < 1 {
		burst = 1
	}

	return &Rate{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until the bucket holds a token.
func (r *Rate) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// None never pauses.
type None struct{}

// Wait returns immediately.
func (None) Wait(context.Context) error { return nil }
