package specimen

import (
	"bytes"
	"encoding/json"
)

// RawRow is a flat column-name to value mapping produced by the relational
// source for a single specimen / sequence record. Columns holding SQL NULL
// values are not present in the map.
type RawRow map[string]string

// Value returns the value stored for col and whether the column is present.
func (r RawRow) Value(col string) (string, bool) {
	v, ok := r[col]

	return v, ok
}

// Get returns the value stored for col or an empty string if the column is
// absent.
func (r RawRow) Get(col string) string {
	return r[col]
}

// Geometry is a GeoJSON point. Coordinates are always stored in
// [longitude, latitude] order.
type Geometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// NewPoint returns a point geometry for the provided location.
func NewPoint(lon, lat float64) *Geometry {
	return &Geometry{
		Type:        "Point",
		Coordinates: [2]float64{lon, lat},
	}
}

type field struct {
	name  string
	value interface{}
}

// Document describes a normalized specimen record that is ready to be written
// to the search index. Fields are only ever populated with known values; an
// unknown value is represented by the absence of the field.
type Document struct {
	// The identifier used as the index document ID.
	ID string

	fields []field
}

// NewDocument returns an empty document for the provided identifier.
func NewDocument(id string) *Document {
	return &Document{ID: id}
}

// Set assigns value to the named field. Empty values are ignored so that the
// document never carries empty keys.
func (d *Document) Set(name, value string) {
	if value == "" {
		return
	}

	d.put(name, value)
}

// SetVerbatim assigns value to the named field even if it is empty.
func (d *Document) SetVerbatim(name, value string) {
	d.put(name, value)
}

// SetGeometry assigns a geometry to the named field. Nil geometries are ignored.
func (d *Document) SetGeometry(name string, g *Geometry) {
	if g == nil {
		return
	}

	d.put(name, g)
}

// Field returns the value of the named field and whether it has been set.
func (d *Document) Field(name string) (interface{}, bool) {
	for _, f := range d.fields {
		if f.name == name {
			return f.value, true
		}
	}

	return nil, false
}

// Fields returns a copy of the populated fields keyed by field name.
func (d *Document) Fields() map[string]interface{} {
	out := make(map[string]interface{}, len(d.fields))
	for _, f := range d.fields {
		out[f.name] = f.value
	}

	return out
}

// Len returns the number of populated fields.
func (d *Document) Len() int {
	return len(d.fields)
}

// MarshalJSON serializes the populated fields in the order they were set.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')
	for i, f := range d.fields {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(f.name)
		if err != nil {
			return nil, err
		}

		val, err := json.Marshal(f.value)
		if err != nil {
			return nil, err
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

func (d *Document) put(name string, value interface{}) {
	for i := range d.fields {
		if d.fields[i].name == name {
			d.fields[i].value = value

			return
		}
	}

	d.fields = append(d.fields, field{name: name, value: value})
}
