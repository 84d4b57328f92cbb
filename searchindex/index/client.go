package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

//go:generate mockgen -package mocks -destination mocks/mock_client.go github.com/mycok/seqindexer/searchindex/index Client

// Client should be implemented by objects that can send requests to a
// document index speaking the Elasticsearch HTTP protocol.
type Client interface {
	// Send performs a request against the index. A nil body sends no
	// payload; anything else is encoded as JSON. A non-nil error is only
	// returned for transport failures. Requests rejected by the index are
	// reported through the returned Response.
	Send(ctx context.Context, method, path string, body interface{}) (*Response, error)
}

// Response holds the status and raw body of an index response.
type Response struct {
	StatusCode int
	Body       []byte
}

// IsError returns true if the response status is not 2xx.
func (r *Response) IsError() bool {
	return r.StatusCode < http.StatusOK || r.StatusCode > 299
}

// Err returns a typed *Error describing a failed response or nil when the
// response indicates success.
func (r *Response) Err() error {
	if !r.IsError() {
		return nil
	}

	var errRes esErrorRes
	if err := json.Unmarshal(r.Body, &errRes); err != nil || errRes.Error.Type == "" {
		return &Error{
			Status: r.StatusCode,
			Reason: http.StatusText(r.StatusCode),
		}
	}

	return &Error{
		Status: r.StatusCode,
		Type:   errRes.Error.Type,
		Reason: errRes.Error.Reason,
	}
}

// Decode unmarshals a successful response body into v. Failed responses
// return the same error as Err.
func (r *Response) Decode(v interface{}) error {
	if err := r.Err(); err != nil {
		return err
	}

	return json.Unmarshal(r.Body, v)
}

// Error describes a request that was rejected by the index.
type Error struct {
	// HTTP status code of the response.
	Status int
	// ES error type, ie. index_not_found_exception.
	Type string
	// Human readable description of the failure.
	Reason string
}

func (e *Error) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("status %d: %s", e.Status, e.Reason)
	}

	return fmt.Sprintf("status %d: %s: %s", e.Status, e.Type, e.Reason)
}

// Temporary returns true for failures worth retrying.
func (e *Error) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

// ErrorType returns the ES error type of err, or an empty string if err does
// not wrap an *Error.
func ErrorType(err error) string {
	var idxErr *Error
	if errors.As(err, &idxErr) {
		return idxErr.Type
	}

	return ""
}

// IsNotFound returns true if err wraps a 404 response.
func IsNotFound(err error) bool {
	var idxErr *Error

	return errors.As(err, &idxErr) && idxErr.Status == http.StatusNotFound
}

type esErrorRes struct {
	Error  esError `json:"error"`
	Status int     `json:"status"`
}

type esError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}
