// Package schema installs index settings and field mappings.
package schema

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/mycok/seqindexer/searchindex/index"
)

// Provisioner (re)creates an index from a mapping. Provisioning is
// destructive: any existing index with the same name is dropped together
// with its documents.
type Provisioner struct {
	// Client used to talk to the index.
	Client index.Client

	// The index to (re)create.
	Target index.Target

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

// Provision deletes the target index if it exists, creates it with the
// mapping settings and installs the field mappings. Any failure after the
// delete step is returned wrapped with ErrProvision.
func (p *Provisioner) Provision(ctx context.Context, m *index.Mapping) error {
	if m == nil {
		return fmt.Errorf("%w: %w", ErrProvision, ErrInvalidMapping)
	}

	if err := p.Target.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrProvision, err)
	}

	logger := p.logger().WithField("index", p.Target.Index)

	res, err := p.Client.Send(ctx, http.MethodDelete, p.Target.IndexPath(), nil)
	if err != nil {
		return stepError("delete index", err)
	}

	switch err = res.Err(); {
	case err == nil:
		logger.Info("deleted existing index")
	case index.IsNotFound(err):
		logger.Debug("index does not exist yet")
	default:
		return stepError("delete index", err)
	}

	var createBody interface{}
	if m.Settings != nil {
		createBody = map[string]interface{}{"settings": m.Settings}
	}

	if err = p.send(ctx, http.MethodPut, p.Target.IndexPath(), createBody); err != nil {
		return stepError("create index", err)
	}
	logger.WithField("analysis", m.HasAnalysis()).Info("created index")

	mappingBody := map[string]interface{}{"properties": m.Properties}
	if err = p.send(ctx, http.MethodPut, p.Target.MappingPath(), mappingBody); err != nil {
		return stepError("put mapping", err)
	}
	logger.WithField("fields", len(m.Properties)).Info("installed mapping")

	return nil
}

func (p *Provisioner) send(ctx context.Context, method, path string, body interface{}) error {
	res, err := p.Client.Send(ctx, method, path, body)
	if err != nil {
		return err
	}

	return res.Err()
}

func (p *Provisioner) logger() *logrus.Entry {
	if p.Logger == nil {
		return logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return p.Logger
}

func stepError(step string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrProvision, step, err)
}
