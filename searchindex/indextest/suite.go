package indextest

import (
	"context"
	"encoding/json"
	"net/http"

	check "gopkg.in/check.v1"

	"github.com/mycok/seqindexer/searchindex/index"
)

// BaseSuite defines a set of re-usable tests that can be executed against
// any concrete type that implements the index.Client interface.
type BaseSuite struct {
	client index.Client
	target index.Target
}

// SetClient sets the client under test and the index it may freely destroy.
func (s *BaseSuite) SetClient(client index.Client, target index.Target) {
	s.client = client
	s.target = target
}

// TestProvisionLifecycle verifies the delete, create and mapping endpoints.
func (s *BaseSuite) TestProvisionLifecycle(c *check.C) {
	s.deleteIndex(c)

	// Deleting a missing index reports index_not_found_exception.
	res := s.send(c, http.MethodDelete, s.target.IndexPath(), nil)
	c.Assert(res.StatusCode, check.Equals, http.StatusNotFound)
	c.Assert(index.ErrorType(res.Err()), check.Equals, index.ErrTypeIndexNotFound)

	res = s.send(c, http.MethodPut, s.target.IndexPath(), map[string]interface{}{
		"settings": ngramSettings(),
	})
	c.Assert(res.Err(), check.IsNil)

	// Creating it twice is rejected.
	res = s.send(c, http.MethodPut, s.target.IndexPath(), nil)
	c.Assert(res.StatusCode, check.Equals, http.StatusBadRequest)
	c.Assert(index.ErrorType(res.Err()), check.Equals, index.ErrTypeIndexExists)

	res = s.send(c, http.MethodPut, s.target.MappingPath(), map[string]interface{}{
		"properties": sequenceProperties(),
	})
	c.Assert(res.Err(), check.IsNil)

	res = s.send(c, http.MethodDelete, s.target.IndexPath(), nil)
	c.Assert(res.Err(), check.IsNil)
}

// TestUpsertIdempotence verifies that doc_as_upsert creates missing
// documents and that replaying the same update leaves the index unchanged.
func (s *BaseSuite) TestUpsertIdempotence(c *check.C) {
	s.createIndex(c)

	doc := map[string]interface{}{
		"processid": "ABCD123",
		"class":     "Reptilia",
		"seq":       "ACGTACGT",
		"geometry":  map[string]interface{}{"type": "Point", "coordinates": []float64{-20.25, 10.5}},
	}

	c.Assert(s.upsert(c, "ABCD123", doc), check.Equals, "created")
	c.Assert(s.upsert(c, "ABCD123", doc), check.Equals, "noop")
	c.Assert(s.getSource(c, "ABCD123"), check.DeepEquals, roundTrip(c, doc))

	doc["genus"] = "Gekko"
	c.Assert(s.upsert(c, "ABCD123", doc), check.Equals, "updated")
	c.Assert(s.getSource(c, "ABCD123"), check.DeepEquals, roundTrip(c, doc))
}

// TestPartialUpdateMerges verifies that fields missing from an update keep
// their previously stored values.
func (s *BaseSuite) TestPartialUpdateMerges(c *check.C) {
	s.createIndex(c)

	c.Assert(s.upsert(c, "X1", map[string]interface{}{"class": "Aves", "genus": "Corvus"}), check.Equals, "created")
	c.Assert(s.upsert(c, "X1", map[string]interface{}{"genus": "Pica"}), check.Equals, "updated")

	c.Assert(s.getSource(c, "X1"), check.DeepEquals, map[string]interface{}{
		"class": "Aves",
		"genus": "Pica",
	})
}

// TestUpdateMissingDocument verifies that an update without upsert semantics
// fails for unknown documents.
func (s *BaseSuite) TestUpdateMissingDocument(c *check.C) {
	s.createIndex(c)

	res := s.send(c, http.MethodPost, s.target.UpdatePath("missing"), map[string]interface{}{
		"doc": map[string]interface{}{"class": "Aves"},
	})
	c.Assert(res.StatusCode, check.Equals, http.StatusNotFound)
	c.Assert(index.ErrorType(res.Err()), check.Equals, index.ErrTypeDocumentMissing)

	res = s.send(c, http.MethodGet, s.target.DocPath("missing"), nil)
	c.Assert(index.IsNotFound(res.Err()), check.Equals, true)
}

// TestIndexDocumentReplaces verifies that PUT on a document path replaces
// the whole document.
func (s *BaseSuite) TestIndexDocumentReplaces(c *check.C) {
	s.createIndex(c)

	res := s.send(c, http.MethodPut, s.target.DocPath("X1"), map[string]interface{}{"class": "Aves", "genus": "Corvus"})
	c.Assert(res.Err(), check.IsNil)

	res = s.send(c, http.MethodPut, s.target.DocPath("X1"), map[string]interface{}{"class": "Aves"})
	c.Assert(res.Err(), check.IsNil)

	c.Assert(s.getSource(c, "X1"), check.DeepEquals, map[string]interface{}{"class": "Aves"})
}

// TestEscapedIdentifiers verifies that identifiers with reserved characters
// address a single document.
func (s *BaseSuite) TestEscapedIdentifiers(c *check.C) {
	s.createIndex(c)

	c.Assert(s.upsert(c, "BOLD:AAA/01 x", map[string]interface{}{"class": "Aves"}), check.Equals, "created")
	c.Assert(s.getSource(c, "BOLD:AAA/01 x"), check.DeepEquals, map[string]interface{}{"class": "Aves"})
}

// TestCount verifies the document count endpoint.
func (s *BaseSuite) TestCount(c *check.C) {
	s.createIndex(c)

	for _, id := range []string{"A", "B", "C"} {
		s.upsert(c, id, map[string]interface{}{"processid": id})
	}
	s.upsert(c, "A", map[string]interface{}{"processid": "A"})

	c.Assert(s.send(c, http.MethodPost, s.target.RefreshPath(), nil).Err(), check.IsNil)

	var count struct {
		Count int `json:"count"`
	}
	c.Assert(s.send(c, http.MethodGet, s.target.CountPath(), nil).Decode(&count), check.IsNil)
	c.Assert(count.Count, check.Equals, 3)
}

// TestAnalyzeNgram verifies the n-gram analyzer installed at index creation.
func (s *BaseSuite) TestAnalyzeNgram(c *check.C) {
	s.createIndex(c)

	res := s.send(c, http.MethodPost, s.target.AnalyzePath(), map[string]interface{}{
		"analyzer": "ngram_tokenizer_analyzer",
		"text":     "ACGTACG",
	})

	var out struct {
		Tokens []struct {
			Token string `json:"token"`
		} `json:"tokens"`
	}
	c.Assert(res.Decode(&out), check.IsNil)

	var tokens []string
	for _, t := range out.Tokens {
		tokens = append(tokens, t.Token)
	}
	c.Assert(tokens, check.DeepEquals, []string{"ACGTA", "CGTAC", "GTACG"})
}

func (s *BaseSuite) send(c *check.C, method, path string, body interface{}) *index.Response {
	res, err := s.client.Send(context.TODO(), method, path, body)
	c.Assert(err, check.IsNil)

	return res
}

func (s *BaseSuite) deleteIndex(c *check.C) {
	res := s.send(c, http.MethodDelete, s.target.IndexPath(), nil)
	if err := res.Err(); err != nil && !index.IsNotFound(err) {
		c.Fatalf("delete index: %v", err)
	}
}

func (s *BaseSuite) createIndex(c *check.C) {
	s.deleteIndex(c)

	res := s.send(c, http.MethodPut, s.target.IndexPath(), map[string]interface{}{
		"settings": ngramSettings(),
	})
	c.Assert(res.Err(), check.IsNil)

	res = s.send(c, http.MethodPut, s.target.MappingPath(), map[string]interface{}{
		"properties": sequenceProperties(),
	})
	c.Assert(res.Err(), check.IsNil)
}

func (s *BaseSuite) upsert(c *check.C, id string, doc map[string]interface{}) string {
	res := s.send(c, http.MethodPost, s.target.UpdatePath(id), map[string]interface{}{
		"doc":           doc,
		"doc_as_upsert": true,
	})

	var out struct {
		Result string `json:"result"`
	}
	c.Assert(res.Decode(&out), check.IsNil)

	return out.Result
}

func (s *BaseSuite) getSource(c *check.C, id string) map[string]interface{} {
	var out struct {
		Found  bool                   `json:"found"`
		Source map[string]interface{} `json:"_source"`
	}
	c.Assert(s.send(c, http.MethodGet, s.target.DocPath(id), nil).Decode(&out), check.IsNil)
	c.Assert(out.Found, check.Equals, true)

	return out.Source
}

func ngramSettings() *index.Settings {
	return &index.Settings{Analysis: &index.Analysis{
		Analyzer: map[string]index.Analyzer{
			"ngram_tokenizer_analyzer": {Type: "custom", Tokenizer: "ngram_tokenizer"},
		},
		Tokenizer: map[string]index.Tokenizer{
			"ngram_tokenizer": {Type: "ngram", MinGram: 5, MaxGram: 5, TokenChars: []string{"letter", "digit"}},
		},
	}}
}

func sequenceProperties() map[string]index.Field {
	return map[string]index.Field{
		"processid": {Type: "keyword"},
		"class":     {Type: "text"},
		"genus":     {Type: "text"},
		"seq":       {Type: "text", Analyzer: "ngram_tokenizer_analyzer"},
		"geometry":  {Type: "geo_shape"},
	}
}

// roundTrip returns v as it reads back from a JSON document source.
func roundTrip(c *check.C, v interface{}) map[string]interface{} {
	data, err := json.Marshal(v)
	c.Assert(err, check.IsNil)

	var out map[string]interface{}
	c.Assert(json.Unmarshal(data, &out), check.IsNil)

	return out
}
