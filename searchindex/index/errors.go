package index

import "errors"

const (
	// ErrTypeIndexNotFound is reported when the addressed index does not exist.
	ErrTypeIndexNotFound = "index_not_found_exception"

	// ErrTypeIndexExists is reported when creating an index that already exists.
	ErrTypeIndexExists = "resource_already_exists_exception"

	// ErrTypeDocumentMissing is reported when updating a missing document
	// without upsert semantics.
	ErrTypeDocumentMissing = "document_missing_exception"
)

// ErrEmptyIndexName is returned when a target does not name an index.
var ErrEmptyIndexName = errors.New("index name not provided")
