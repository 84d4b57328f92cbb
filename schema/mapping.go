package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mycok/seqindexer/searchindex/index"
)

const (
	// DefaultGramSize is the n-gram length used for sequence search.
	DefaultGramSize = 5

	// AnalyzerName is the analyzer applied to the sequence field.
	AnalyzerName = "ngram_tokenizer_analyzer"

	// TokenizerName is the n-gram tokenizer used by AnalyzerName.
	TokenizerName = "ngram_tokenizer"
)

// Names of the available mapping presets.
const (
	PresetSequence = "sequence"
	PresetBibJSON  = "bibjson"
)

//go:embed mappings/bibjson.json
var bibJSONMapping []byte

// Options tune the generated mappings.
type Options struct {
	// Length of the sequence n-grams. Defaults to DefaultGramSize.
	GramSize int

	// Emit the quadtree prefix-tree parameters on geo_shape fields. Only
	// clusters older than elasticsearch 8 accept them.
	LegacyGeoShape bool
}

func (o Options) gramSize() int {
	if o.GramSize <= 0 {
		return DefaultGramSize
	}

	return o.GramSize
}

// SequenceMapping returns the mapping for specimen sequence documents.
func SequenceMapping(opts Options) *index.Mapping {
	n := opts.gramSize()

	m := &index.Mapping{
		Settings: &index.Settings{Analysis: &index.Analysis{
			Analyzer: map[string]index.Analyzer{
				AnalyzerName: {Type: "custom", Tokenizer: TokenizerName},
			},
			Tokenizer: map[string]index.Tokenizer{
				TokenizerName: {
					Type:       "ngram",
					MinGram:    n,
					MaxGram:    n,
					TokenChars: []string{"letter", "digit"},
				},
			},
		}},
		Properties: map[string]index.Field{
			"processid": {Type: "text"},
			"phylum":    {Type: "text"},
			"class":     {Type: "text"},
			"order":     {Type: "text"},
			"family":    {Type: "text"},
			"subfamily": {Type: "text"},
			"genus":     {Type: "text"},
			"species":   {Type: "text"},
			"seq":       {Type: "text", Analyzer: AnalyzerName},
			"geometry":  {Type: "geo_shape"},
		},
	}

	applyGeoShape(m.Properties, opts.LegacyGeoShape)

	return m
}

// Preset returns the named mapping.
func Preset(name string, opts Options) (*index.Mapping, error) {
	switch name {
	case PresetSequence, "":
		return SequenceMapping(opts), nil
	case PresetBibJSON:
		m, err := decodeMapping(bibJSONMapping)
		if err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}

		applyGeoShape(m.Properties, opts.LegacyGeoShape)

		return m, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
}

// LoadMapping reads a mapping document. Both the index creation form
// ({"settings": ..., "mappings": {"properties": ...}}) and the legacy typed
// form ({"<type>": {"properties": ...}}) are accepted.
func LoadMapping(r io.Reader) (*index.Mapping, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("load mapping: %w", err)
	}

	m, err := decodeMapping(data)
	if err != nil {
		return nil, fmt.Errorf("load mapping: %w", err)
	}

	return m, nil
}

func decodeMapping(data []byte) (*index.Mapping, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	m := new(index.Mapping)
	if raw, found := doc["settings"]; found {
		if err := json.Unmarshal(raw, &m.Settings); err != nil {
			return nil, fmt.Errorf("settings: %w", err)
		}
	}

	props, err := findProperties(doc)
	if err != nil {
		return nil, err
	}

	m.Properties = props

	return m, nil
}

// findProperties locates the field properties at the top level, under
// "mappings" or under a single mapping type.
func findProperties(doc map[string]json.RawMessage) (map[string]index.Field, error) {
	if raw, found := doc["properties"]; found {
		var props map[string]index.Field
		if err := json.Unmarshal(raw, &props); err != nil {
			return nil, fmt.Errorf("properties: %w", err)
		}

		return props, nil
	}

	if raw, found := doc["mappings"]; found {
		var mappings map[string]json.RawMessage
		if err := json.Unmarshal(raw, &mappings); err != nil {
			return nil, fmt.Errorf("mappings: %w", err)
		}

		return findProperties(mappings)
	}

	var candidates []map[string]json.RawMessage
	for key, raw := range doc {
		if key == "settings" {
			continue
		}

		var typed map[string]json.RawMessage
		if err := json.Unmarshal(raw, &typed); err != nil {
			continue
		}

		if _, found := typed["properties"]; found {
			candidates = append(candidates, typed)
		}
	}

	if len(candidates) != 1 {
		return nil, ErrInvalidMapping
	}

	return findProperties(candidates[0])
}

func applyGeoShape(props map[string]index.Field, legacy bool) {
	for name, f := range props {
		if len(f.Properties) > 0 {
			applyGeoShape(f.Properties, legacy)
		}

		if f.Type != "geo_shape" {
			continue
		}

		if legacy {
			f.Tree, f.Precision = "quadtree", "1m"
		} else {
			f.Tree, f.Precision = "", ""
		}

		props[name] = f
	}
}
