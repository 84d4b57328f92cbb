package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/mycok/seqindexer/searchindex/index"
)

// Static and compile-time check to ensure Client implements index.Client.
var _ index.Client = (*Client)(nil)

// Config defines how to reach the elasticsearch cluster.
type Config struct {
	// Node addresses, ie. http://localhost:9200.
	Addresses []string

	// Optional basic auth credentials.
	Username string
	Password string

	// Disables the transport level retries on 502, 503 and 504 responses.
	DisableRetry bool

	// Custom HTTP transport. If not specified, http.DefaultTransport is used.
	Transport http.RoundTripper
}

// Client is an index.Client that talks to elasticsearch through the official
// go client.
type Client struct {
	es *elasticsearch.Client
}

// NewClient returns a client for the nodes listed in cfg.
func NewClient(cfg Config) (*Client, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("es client: no node addresses provided")
	}

	c, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    cfg.Addresses,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DisableRetry: cfg.DisableRetry,
		Transport:    cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("es client: %w", err)
	}

	return &Client{es: c}, nil
}

// NodesFromURI converts an index URI of the form es://host1:9200,host2:9200
// into a list of node addresses. The es+https scheme selects TLS.
func NodesFromURI(uri string) ([]string, error) {
	scheme, hosts, found := strings.Cut(uri, "://")
	if !found || hosts == "" {
		return nil, fmt.Errorf("index URI %q: expected es://host:port[,host:port]", uri)
	}

	var proto string
	switch scheme {
	case "es", "es+http", "http":
		proto = "http"
	case "es+https", "https":
		proto = "https"
	default:
		return nil, fmt.Errorf("index URI %q: unsupported scheme %q", uri, scheme)
	}

	var nodes []string
	for _, host := range strings.Split(strings.TrimRight(hosts, "/"), ",") {
		if host = strings.TrimSpace(host); host != "" {
			nodes = append(nodes, proto+"://"+host)
		}
	}

	if len(nodes) == 0 {
		return nil, fmt.Errorf("index URI %q: no hosts", uri)
	}

	return nodes, nil
}

// Ping checks that the cluster is reachable.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("ping: %s", res.Status())
	}

	return nil
}

// Send performs a request against the cluster and returns the raw response.
func (c *Client) Send(
	ctx context.Context, method, path string, body interface{},
) (*index.Response, error) {
	var reqBody io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("%s %s: encode body: %w", method, path, err)
		}

		reqBody = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, "/"+strings.TrimPrefix(path, "/"), reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.es.Perform(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = res.Body.Close() }()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read response: %w", method, path, err)
	}

	return &index.Response{StatusCode: res.StatusCode, Body: data}, nil
}
