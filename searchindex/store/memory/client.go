package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/mycok/seqindexer/searchindex/index"
)

// Static and compile-time check to ensure Client implements index.Client.
var _ index.Client = (*Client)(nil)

// Client is an in-process index.Client that emulates the subset of the
// elasticsearch HTTP API used for provisioning and loading documents.
// Responses carry the same status codes and JSON envelopes as the real
// endpoints.
type Client struct {
	mu      sync.Mutex
	indices map[string]*memIndex
	calls   int
}

// NewClient returns an empty in-memory index cluster.
func NewClient() *Client {
	return &Client{indices: make(map[string]*memIndex)}
}

// Close releases the resources held by every index.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, idx := range c.indices {
		idx.close()
		delete(c.indices, name)
	}

	return nil
}

// Calls returns the number of requests served so far.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.calls
}

// Source returns a copy of the stored document or false if it does not exist.
func (c *Client) Source(indexName, id string) (map[string]interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, exists := c.indices[indexName]
	if !exists {
		return nil, false
	}

	doc, exists := idx.docs[id]
	if !exists {
		return nil, false
	}

	return deepCopy(doc), true
}

// Send serves a single request.
func (c *Client) Send(
	ctx context.Context, method, path string, body interface{},
) (*index.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	payload, err := normalizeBody(body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: encode body: %w", method, path, err)
	}

	segments, err := splitPath(path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++

	return c.route(method, segments, payload), nil
}

func (c *Client) route(method string, seg []string, body map[string]interface{}) *index.Response {
	name := seg[0]

	switch {
	case len(seg) == 1:
		switch method {
		case http.MethodDelete:
			return c.deleteIndex(name)
		case http.MethodPut:
			return c.createIndex(name, body)
		case http.MethodGet, http.MethodHead:
			return c.getIndex(name)
		}
	case len(seg) >= 2 && seg[1] == "_mapping" && len(seg) <= 3:
		if method == http.MethodPut || method == http.MethodPost {
			return c.putMapping(name, body)
		}
	case len(seg) == 2 && seg[1] == "_count":
		return c.count(name)
	case len(seg) == 2 && seg[1] == "_refresh":
		return c.withIndex(name, func(*memIndex) *index.Response {
			return jsonResponse(http.StatusOK, map[string]interface{}{
				"_shards": map[string]int{"total": 1, "successful": 1, "failed": 0},
			})
		})
	case len(seg) == 2 && seg[1] == "_analyze":
		return c.analyze(name, body)
	case len(seg) == 3 && seg[1] == "_update":
		if method == http.MethodPost {
			return c.updateDoc(name, seg[2], body)
		}
	case len(seg) == 4 && seg[3] == "_update":
		if method == http.MethodPost {
			return c.updateDoc(name, seg[2], body)
		}
	case len(seg) == 3 && (seg[1] == "_doc" || !strings.HasPrefix(seg[1], "_")):
		switch method {
		case http.MethodPut, http.MethodPost:
			return c.putDoc(name, seg[2], body)
		case http.MethodGet:
			return c.getDoc(name, seg[2])
		case http.MethodDelete:
			return c.deleteDoc(name, seg[2])
		}
	default:
		return errorResponse(http.StatusBadRequest, "illegal_argument_exception",
			fmt.Sprintf("unsupported endpoint [%s]", strings.Join(seg, "/")))
	}

	return errorResponse(http.StatusMethodNotAllowed, "method_not_allowed",
		fmt.Sprintf("method [%s] is not allowed for [%s]", method, strings.Join(seg, "/")))
}

func (c *Client) deleteIndex(name string) *index.Response {
	idx, exists := c.indices[name]
	if !exists {
		return indexNotFound(name)
	}

	delete(c.indices, name)
	idx.close()

	return acknowledged()
}

func (c *Client) createIndex(name string, body map[string]interface{}) *index.Response {
	if _, exists := c.indices[name]; exists {
		return errorResponse(http.StatusBadRequest, index.ErrTypeIndexExists,
			fmt.Sprintf("index [%s] already exists", name))
	}

	var req struct {
		Settings *index.Settings `json:"settings"`
		Mappings *struct {
			Properties map[string]index.Field `json:"properties"`
		} `json:"mappings"`
	}
	if err := decodeInto(body, &req); err != nil {
		return errorResponse(http.StatusBadRequest, "parse_exception", err.Error())
	}

	var props map[string]index.Field
	if req.Mappings != nil {
		props = req.Mappings.Properties
	}

	idx, err := newMemIndex(req.Settings, props)
	if err != nil {
		return errorResponse(http.StatusBadRequest, "illegal_argument_exception", err.Error())
	}

	c.indices[name] = idx

	return jsonResponse(http.StatusOK, map[string]interface{}{
		"acknowledged":        true,
		"shards_acknowledged": true,
		"index":               name,
	})
}

func (c *Client) getIndex(name string) *index.Response {
	return c.withIndex(name, func(idx *memIndex) *index.Response {
		return jsonResponse(http.StatusOK, map[string]interface{}{
			name: map[string]interface{}{
				"settings": idx.settings,
				"mappings": map[string]interface{}{"properties": idx.properties},
			},
		})
	})
}

func (c *Client) putMapping(name string, body map[string]interface{}) *index.Response {
	return c.withIndex(name, func(idx *memIndex) *index.Response {
		var req struct {
			Properties map[string]index.Field `json:"properties"`
		}
		if err := decodeInto(body, &req); err != nil {
			return errorResponse(http.StatusBadRequest, "mapper_parsing_exception", err.Error())
		}

		if err := idx.putMapping(req.Properties); err != nil {
			return errorResponse(http.StatusBadRequest, "mapper_parsing_exception", err.Error())
		}

		return acknowledged()
	})
}

func (c *Client) count(name string) *index.Response {
	return c.withIndex(name, func(idx *memIndex) *index.Response {
		n, err := idx.count()
		if err != nil {
			return errorResponse(http.StatusInternalServerError, "exception", err.Error())
		}

		return jsonResponse(http.StatusOK, map[string]interface{}{
			"count":   n,
			"_shards": map[string]int{"total": 1, "successful": 1, "failed": 0},
		})
	})
}

func (c *Client) analyze(name string, body map[string]interface{}) *index.Response {
	return c.withIndex(name, func(idx *memIndex) *index.Response {
		analyzer, _ := body["analyzer"].(string)
		text, _ := body["text"].(string)

		tokens, err := idx.analyze(analyzer, text)
		if err != nil {
			return errorResponse(http.StatusBadRequest, "illegal_argument_exception", err.Error())
		}

		return jsonResponse(http.StatusOK, map[string]interface{}{"tokens": tokens})
	})
}

func (c *Client) updateDoc(name, id string, body map[string]interface{}) *index.Response {
	doc, _ := body["doc"].(map[string]interface{})
	upsert, _ := body["doc_as_upsert"].(bool)

	idx, exists := c.indices[name]
	if !exists {
		if !upsert {
			return indexNotFound(name)
		}

		idx = c.autoCreate(name)
	}

	existing, found := idx.docs[id]
	if !found && !upsert {
		return errorResponse(http.StatusNotFound, index.ErrTypeDocumentMissing,
			fmt.Sprintf("[%s]: document missing", id))
	}

	if !found {
		return idx.store(name, id, deepCopy(doc), "created")
	}

	merged := deepCopy(existing)
	mergeInto(merged, doc)

	if reflect.DeepEqual(merged, existing) {
		return docResult(http.StatusOK, name, id, idx.versions[id], "noop")
	}

	return idx.store(name, id, merged, "updated")
}

func (c *Client) putDoc(name, id string, body map[string]interface{}) *index.Response {
	idx, exists := c.indices[name]
	if !exists {
		idx = c.autoCreate(name)
	}

	result := "created"
	if _, found := idx.docs[id]; found {
		result = "updated"
	}

	return idx.store(name, id, deepCopy(body), result)
}

func (c *Client) getDoc(name, id string) *index.Response {
	return c.withIndex(name, func(idx *memIndex) *index.Response {
		doc, found := idx.docs[id]
		if !found {
			return jsonResponse(http.StatusNotFound, map[string]interface{}{
				"_index": name,
				"_id":    id,
				"found":  false,
			})
		}

		return jsonResponse(http.StatusOK, map[string]interface{}{
			"_index":   name,
			"_id":      id,
			"_version": idx.versions[id],
			"found":    true,
			"_source":  doc,
		})
	})
}

func (c *Client) deleteDoc(name, id string) *index.Response {
	return c.withIndex(name, func(idx *memIndex) *index.Response {
		if _, found := idx.docs[id]; !found {
			return docResult(http.StatusNotFound, name, id, 0, "not_found")
		}

		version := idx.remove(id)

		return docResult(http.StatusOK, name, id, version, "deleted")
	})
}

func (c *Client) withIndex(name string, fn func(*memIndex) *index.Response) *index.Response {
	idx, exists := c.indices[name]
	if !exists {
		return indexNotFound(name)
	}

	return fn(idx)
}

// autoCreate mirrors the automatic index creation performed on first write.
func (c *Client) autoCreate(name string) *memIndex {
	idx, _ := newMemIndex(nil, nil)
	c.indices[name] = idx

	return idx
}

func splitPath(path string) ([]string, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil, fmt.Errorf("empty request path")
	}

	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	raw := strings.Split(path, "/")
	segments := make([]string, len(raw))
	for i, s := range raw {
		unescaped, err := url.PathUnescape(s)
		if err != nil {
			return nil, err
		}

		segments[i] = unescaped
	}

	return segments, nil
}

// normalizeBody round-trips body through JSON so that the emulator sees
// exactly what would have been sent over the wire.
func normalizeBody(body interface{}) (map[string]interface{}, error) {
	if body == nil {
		return map[string]interface{}{}, nil
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	out := map[string]interface{}{}
	if err = json.Unmarshal(data, &out); err != nil {
		return nil, err
	}

	return out, nil
}

func decodeInto(body map[string]interface{}, v interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, v)
}
