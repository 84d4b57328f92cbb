package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/mycok/seqindexer/schema"
	"github.com/mycok/seqindexer/searchindex/index"
	"github.com/mycok/seqindexer/searchindex/store/es"
	memindex "github.com/mycok/seqindexer/searchindex/store/memory"
	"github.com/mycok/seqindexer/specimen/extract"
	"github.com/mycok/seqindexer/throttle"
)

type indexConfig struct {
	URI      string
	Username string
	Password string

	// Upper bound for the connectivity check performed when connecting.
	Timeout time.Duration
}

// getIndexClient returns the index client selected by the URI scheme
// together with a function releasing it.
func getIndexClient(ctx context.Context, cfg indexConfig) (index.Client, func(), error) {
	if cfg.URI == "" {
		return nil, nil, fmt.Errorf("index URI must be specified with --index-uri")
	}

	u, err := url.Parse(cfg.URI)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse index URI: %w", err)
	}

	switch u.Scheme {
	case "in-memory":
		logger.Info("using in-memory index store")
		c := memindex.NewClient()

		return c, func() { _ = c.Close() }, nil
	case "es", "es+http", "es+https":
		nodes, err := es.NodesFromURI(cfg.URI)
		if err != nil {
			return nil, nil, err
		}

		c, err := es.NewClient(es.Config{
			Addresses: nodes,
			Username:  cfg.Username,
			Password:  cfg.Password,
		})
		if err != nil {
			return nil, nil, err
		}

		pingCtx, cancelFn := context.WithTimeout(ctx, cfg.Timeout)
		defer cancelFn()
		if err = c.Ping(pingCtx); err != nil {
			return nil, nil, fmt.Errorf("failed to connect to index: %w", err)
		}
		logger.WithField("nodes", nodes).Info("using ES index store")

		return c, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported index URI scheme: %q", u.Scheme)
	}
}

func targetFromContext(appCtx *cli.Context) index.Target {
	return index.Target{
		Index:   appCtx.String("index-name"),
		DocType: appCtx.String("doc-type"),
	}
}

func queryFromContext(appCtx *cli.Context) (extract.Query, error) {
	filter, err := parseFilter(appCtx.StringSlice("filter"))
	if err != nil {
		return extract.Query{}, err
	}

	return extract.Query{Filter: filter, OrderBy: appCtx.String("order-by")}, nil
}

// parseFilter converts "column=value" expressions into equality conditions.
func parseFilter(exprs []string) ([]extract.Condition, error) {
	var conds []extract.Condition
	for _, expr := range exprs {
		col, val, found := strings.Cut(expr, "=")
		col = strings.TrimSpace(col)
		if !found || col == "" {
			return nil, fmt.Errorf("invalid filter %q: expected column=value", expr)
		}

		conds = append(conds, extract.Condition{Column: col, Value: val})
	}

	return conds, nil
}

func getMapping(appCtx *cli.Context) (*index.Mapping, error) {
	opts := schema.Options{
		GramSize:       appCtx.Int("gram-size"),
		LegacyGeoShape: appCtx.Bool("legacy-geo-shape"),
	}

	path := appCtx.Path("mapping-file")
	if path == "" {
		return schema.Preset(appCtx.String("mapping"), opts)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mapping file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return schema.LoadMapping(f)
}

type throttleConfig struct {
	Strategy string
	Every    int
	Min      time.Duration
	Max      time.Duration
	Rate     float64
	Burst    int
}

func getThrottle(cfg throttleConfig, logger *logrus.Entry) (throttle.Throttle, error) {
	switch cfg.Strategy {
	case "jitter", "":
		if cfg.Every <= 0 {
			return nil, fmt.Errorf("invalid value for throttle every, must be > 0")
		}

		if cfg.Min < 0 || cfg.Max < cfg.Min {
			return nil, fmt.Errorf("invalid throttle pause range [%s, %s]", cfg.Min, cfg.Max)
		}

		return &throttle.Jitter{
			Every:  cfg.Every,
			Min:    cfg.Min,
			Max:    cfg.Max,
			Clock:  clock.WallClock,
			Logger: logger.WithField("throttle", "jitter"),
		}, nil
	case "rate":
		if cfg.Rate <= 0 {
			return nil, fmt.Errorf("invalid value for throttle rate, must be > 0")
		}

		return throttle.NewRate(cfg.Rate, cfg.Burst), nil
	case "none":
		return throttle.None{}, nil
	default:
		return nil, fmt.Errorf("unsupported throttle strategy: %q", cfg.Strategy)
	}
}
