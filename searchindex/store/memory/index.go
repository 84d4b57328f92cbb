package memory

import (
	"fmt"
	"net/http"

	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/analysis/token/lowercase"
	"github.com/blevesearch/bleve/analysis/token/ngram"
	"github.com/blevesearch/bleve/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/mapping"

	"github.com/mycok/seqindexer/searchindex/index"
)

// Gram bounds used by elasticsearch when an ngram tokenizer omits them.
const (
	defaultMinGram = 1
	defaultMaxGram = 2
)

type token struct {
	Token       string `json:"token"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
	Type        string `json:"type"`
	Position    int    `json:"position"`
}

// memIndex holds the documents of a single index together with a bleve
// in-memory index built from the index settings and field mappings.
type memIndex struct {
	settings   *index.Settings
	properties map[string]index.Field
	docs       map[string]map[string]interface{}
	versions   map[string]int

	mapping  *mapping.IndexMappingImpl
	bleveIdx bleve.Index
}

func newMemIndex(settings *index.Settings, props map[string]index.Field) (*memIndex, error) {
	idx := &memIndex{
		settings:   settings,
		properties: make(map[string]index.Field, len(props)),
		docs:       make(map[string]map[string]interface{}),
		versions:   make(map[string]int),
	}

	for name, f := range props {
		idx.properties[name] = f
	}

	if err := idx.rebuild(); err != nil {
		return nil, err
	}

	return idx, nil
}

// putMapping adds field mappings to the index. Existing documents are
// re-indexed with the new mapping.
func (idx *memIndex) putMapping(props map[string]index.Field) error {
	previous := idx.properties

	merged := make(map[string]index.Field, len(previous)+len(props))
	for name, f := range previous {
		merged[name] = f
	}
	for name, f := range props {
		merged[name] = f
	}

	idx.properties = merged
	if err := idx.rebuild(); err != nil {
		idx.properties = previous

		return err
	}

	return nil
}

func (idx *memIndex) rebuild() error {
	im, err := buildMapping(idx.settings, idx.properties)
	if err != nil {
		return err
	}

	bi, err := bleve.NewMemOnly(im)
	if err != nil {
		return err
	}

	for id, doc := range idx.docs {
		if err = bi.Index(id, doc); err != nil {
			_ = bi.Close()

			return err
		}
	}

	idx.close()
	idx.mapping = im
	idx.bleveIdx = bi

	return nil
}

func (idx *memIndex) store(name, id string, doc map[string]interface{}, result string) *index.Response {
	if err := idx.bleveIdx.Index(id, doc); err != nil {
		return errorResponse(http.StatusBadRequest, "mapper_parsing_exception", err.Error())
	}

	idx.docs[id] = doc
	idx.versions[id]++

	status := http.StatusOK
	if result == "created" {
		status = http.StatusCreated
	}

	return docResult(status, name, id, idx.versions[id], result)
}

func (idx *memIndex) remove(id string) int {
	_ = idx.bleveIdx.Delete(id)

	version := idx.versions[id] + 1
	delete(idx.docs, id)
	delete(idx.versions, id)

	return version
}

func (idx *memIndex) count() (uint64, error) {
	return idx.bleveIdx.DocCount()
}

func (idx *memIndex) analyze(analyzer, text string) ([]token, error) {
	if analyzer == "" {
		analyzer = standard.Name
	}

	stream, err := idx.mapping.AnalyzeText(analyzer, []byte(text))
	if err != nil {
		return nil, fmt.Errorf("failed to find analyzer [%s]", analyzer)
	}

	tokens := make([]token, 0, len(stream))
	for i, t := range stream {
		tokens = append(tokens, token{
			Token:       string(t.Term),
			StartOffset: t.Start,
			EndOffset:   t.End,
			Type:        "word",
			Position:    i,
		})
	}

	return tokens, nil
}

func (idx *memIndex) close() {
	if idx.bleveIdx != nil {
		_ = idx.bleveIdx.Close()
		idx.bleveIdx = nil
	}
}

func buildMapping(settings *index.Settings, props map[string]index.Field) (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()

	if settings != nil && settings.Analysis != nil {
		for name, a := range settings.Analysis.Analyzer {
			if err := addAnalyzer(im, name, a, settings.Analysis.Tokenizer); err != nil {
				return nil, fmt.Errorf("analyzer [%s]: %w", name, err)
			}
		}
	}

	dm := bleve.NewDocumentMapping()
	addProperties(dm, props)
	im.DefaultMapping = dm

	return im, nil
}

// addAnalyzer registers an elasticsearch analyzer as a bleve custom
// analyzer. An ngram tokenizer becomes a unicode tokenizer followed by an
// ngram token filter, which yields the same grams for letter and digit runs.
func addAnalyzer(
	im *mapping.IndexMappingImpl, name string, a index.Analyzer, tokenizers map[string]index.Tokenizer,
) error {
	var filters []string

	if tok, defined := tokenizers[a.Tokenizer]; defined && (tok.Type == "ngram" || tok.Type == "nGram") {
		minGram, maxGram := tok.MinGram, tok.MaxGram
		if minGram == 0 {
			minGram = defaultMinGram
		}
		if maxGram == 0 {
			maxGram = defaultMaxGram
		}

		filterName := name + "_ngram"
		err := im.AddCustomTokenFilter(filterName, map[string]interface{}{
			"type": ngram.Name,
			"min":  float64(minGram),
			"max":  float64(maxGram),
		})
		if err != nil {
			return err
		}

		filters = append(filters, filterName)
	}

	for _, f := range a.Filter {
		if f == "lowercase" {
			filters = append(filters, lowercase.Name)
		}
	}

	return im.AddCustomAnalyzer(name, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": filters,
	})
}

func addProperties(dm *mapping.DocumentMapping, props map[string]index.Field) {
	for name, f := range props {
		if f.Index != nil && !*f.Index {
			dm.AddSubDocumentMapping(name, bleve.NewDocumentDisabledMapping())

			continue
		}

		if len(f.Properties) > 0 {
			sub := bleve.NewDocumentMapping()
			addProperties(sub, f.Properties)
			dm.AddSubDocumentMapping(name, sub)

			continue
		}

		switch f.Type {
		case "text", "string":
			fm := bleve.NewTextFieldMapping()
			fm.Analyzer = f.Analyzer
			dm.AddFieldMappingsAt(name, fm)
		case "keyword":
			fm := bleve.NewTextFieldMapping()
			fm.Analyzer = keyword.Name
			dm.AddFieldMappingsAt(name, fm)
		case "long", "integer", "short", "byte", "double", "float":
			dm.AddFieldMappingsAt(name, bleve.NewNumericFieldMapping())
		case "date":
			dm.AddFieldMappingsAt(name, bleve.NewDateTimeFieldMapping())
		case "boolean":
			dm.AddFieldMappingsAt(name, bleve.NewBooleanFieldMapping())
		case "geo_point":
			dm.AddFieldMappingsAt(name, bleve.NewGeoPointFieldMapping())
		default:
			// geo_shape and anything else bleve cannot index.
			dm.AddSubDocumentMapping(name, bleve.NewDocumentDisabledMapping())
		}
	}
}
