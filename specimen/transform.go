package specimen

import (
	"math"
	"strconv"
	"strings"
)

// Column describes a source column that is copied into a document field.
type Column struct {
	// Name of the column in the raw row.
	Source string
	// Name of the field in the document.
	Target string
}

// Transformer maps raw rows into documents. A zero Transformer drops every
// column; use NewTransformer for the iBOL public data layout.
type Transformer struct {
	// The column holding the record identifier.
	IDColumn string

	// The document field that also receives the identifier. Left empty, the
	// identifier only becomes the document ID.
	IDField string

	// Suffix tokens stripped from the end of the identifier.
	IDSuffixes []string

	// Columns copied only when they hold a non-empty value.
	Taxonomy []Column

	// The column holding the raw sequence, copied verbatim.
	Sequence Column

	// Columns holding decimal latitude and longitude values.
	LatColumn string
	LonColumn string

	// The document field that receives the derived point geometry.
	GeometryField string
}

// The suffix used by the iBOL taxonomy columns, ie. genus_reg.
const taxonomySuffix = "_reg"

var taxonomyColumns = []string{
	"phylum_reg", "class_reg", "order_reg", "family_reg",
	"subfamily_reg", "genus_reg", "species_reg",
}

// NewTransformer returns a Transformer configured for the iBOL public
// specimen table.
func NewTransformer() *Transformer {
	return &Transformer{
		IDColumn:      "processid",
		IDField:       "processid",
		IDSuffixes:    []string{".COI-5P"},
		Taxonomy:      TaxonomyColumns(taxonomySuffix, taxonomyColumns...),
		Sequence:      Column{Source: "nucraw", Target: "seq"},
		LatColumn:     "lat",
		LonColumn:     "lon",
		GeometryField: "geometry",
	}
}

// TaxonomyColumns returns a column mapping that renames each source column by
// dropping suffix from its name.
func TaxonomyColumns(suffix string, sources ...string) []Column {
	cols := make([]Column, 0, len(sources))
	for _, src := range sources {
		cols = append(cols, Column{
			Source: src,
			Target: strings.TrimSuffix(src, suffix),
		})
	}

	return cols
}

// Transform builds a document out of a raw row. It never fails: columns that
// are missing or empty are left out of the document and columns that are not
// part of the mapping are dropped.
func (t *Transformer) Transform(row RawRow) *Document {
	doc := NewDocument(t.identifier(row))
	if t.IDField != "" {
		doc.Set(t.IDField, doc.ID)
	}

	for _, col := range t.Taxonomy {
		doc.Set(col.Target, row.Get(col.Source))
	}

	if t.Sequence.Source != "" {
		doc.SetVerbatim(t.Sequence.Target, row.Get(t.Sequence.Source))
	}

	if t.GeometryField != "" {
		doc.SetGeometry(t.GeometryField, t.point(row))
	}

	return doc
}

func (t *Transformer) identifier(row RawRow) string {
	id := row.Get(t.IDColumn)
	for _, suffix := range t.IDSuffixes {
		id = strings.TrimSuffix(id, suffix)
	}

	return id
}

// point returns nil unless both coordinates are present, finite and within
// the WGS84 bounds.
func (t *Transformer) point(row RawRow) *Geometry {
	lat, ok := parseCoordinate(row.Get(t.LatColumn), 90)
	if !ok {
		return nil
	}

	lon, ok := parseCoordinate(row.Get(t.LonColumn), 180)
	if !ok {
		return nil
	}

	return NewPoint(lon, lat)
}

func parseCoordinate(raw string, limit float64) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > limit {
		return 0, false
	}

	return v, true
}
