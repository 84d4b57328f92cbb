package index

import (
	"net/url"
	"strings"
)

// Target identifies the index, and optionally the legacy mapping type, that
// documents are written to. An empty DocType uses the typeless endpoints of
// Elasticsearch 7 and later.
type Target struct {
	Index   string
	DocType string
}

// Validate returns ErrEmptyIndexName if the target does not name an index.
func (t Target) Validate() error {
	if strings.TrimSpace(t.Index) == "" {
		return ErrEmptyIndexName
	}

	return nil
}

// IndexPath returns the path of the index itself.
func (t Target) IndexPath() string {
	return escape(t.Index)
}

// MappingPath returns the path used to install field mappings.
func (t Target) MappingPath() string {
	if t.DocType == "" {
		return t.IndexPath() + "/_mapping"
	}

	return t.IndexPath() + "/_mapping/" + escape(t.DocType)
}

// UpdatePath returns the partial update endpoint for the document id.
func (t Target) UpdatePath(id string) string {
	if t.DocType == "" {
		return t.IndexPath() + "/_update/" + escape(id)
	}

	return t.IndexPath() + "/" + escape(t.DocType) + "/" + escape(id) + "/_update"
}

// DocPath returns the path of the document id.
func (t Target) DocPath(id string) string {
	if t.DocType == "" {
		return t.IndexPath() + "/_doc/" + escape(id)
	}

	return t.IndexPath() + "/" + escape(t.DocType) + "/" + escape(id)
}

// CountPath returns the document count endpoint of the index.
func (t Target) CountPath() string {
	return t.IndexPath() + "/_count"
}

// RefreshPath returns the endpoint that makes recent writes searchable.
func (t Target) RefreshPath() string {
	return t.IndexPath() + "/_refresh"
}

// AnalyzePath returns the analysis endpoint of the index.
func (t Target) AnalyzePath() string {
	return t.IndexPath() + "/_analyze"
}

func escape(segment string) string {
	return url.PathEscape(segment)
}
