/*
	indexsync package wraps the syncer into a long running service. The
	service optionally provisions the target index, then runs one sync pass
	or keeps repeating passes at a fixed interval until its context is
	cancelled.
*/

package indexsync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mycok/seqindexer/schema"
	"github.com/mycok/seqindexer/syncer"
)

// Service implements the index sync service.
type Service struct {
	config Config
	syncer *syncer.Syncer

	mu   sync.Mutex
	last *syncer.Summary
}

// New creates, validates and returns a new index sync service instance.
func New(config Config) (*Service, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("indexsync service: config validation failed: %w", err)
	}

	s, err := syncer.New(config.syncerConfig())
	if err != nil {
		return nil, fmt.Errorf("indexsync service: %w", err)
	}

	return &Service{config: config, syncer: s}, nil
}

// Run blocks until the passes are done, a fatal error occurs or ctx is
// cancelled. Cancelling ctx stops the current pass
// between records and makes Run return nil; LastSummary then reports the
// offset to resume from.
func (svc *Service) Run(ctx context.Context) error {
	svc.config.Logger.WithField("repeat_interval", svc.config.RepeatInterval.String()).
		Info("starting service")
	defer svc.config.Logger.Info("stopped service")

	if svc.config.Mapping != nil {
		p := schema.Provisioner{
			Client: svc.config.Client,
			Target: svc.config.Target,
			Logger: svc.config.Logger,
		}
		if err := p.Provision(ctx, svc.config.Mapping); err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return err
		}
	}

	for {
		summary, err := svc.syncer.Sync(ctx)
		svc.setLast(summary)

		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil
		case err != nil:
			return err
		}

		if svc.config.RepeatInterval == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-svc.config.Clock.After(svc.config.RepeatInterval):
		}
	}
}

// LastSummary returns the summary of the most recent pass or nil if no pass
// has run yet.
func (svc *Service) LastSummary() *syncer.Summary {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	return svc.last
}

func (svc *Service) setLast(s *syncer.Summary) {
	svc.mu.Lock()
	svc.last = s
	svc.mu.Unlock()
}
