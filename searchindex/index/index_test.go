package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	check "gopkg.in/check.v1"
)

var _ = check.Suite(new(indexTestSuite))

// Test registers the [check] library with the go testing library and enables
// the running of the test suite using the go testing library.
func Test(t *testing.T) {
	check.TestingT(t)
}

type indexTestSuite struct{}

func (s *indexTestSuite) TestTypelessPaths(c *check.C) {
	t := Target{Index: "sequence"}

	c.Assert(t.IndexPath(), check.Equals, "sequence")
	c.Assert(t.MappingPath(), check.Equals, "sequence/_mapping")
	c.Assert(t.UpdatePath("ABCD123"), check.Equals, "sequence/_update/ABCD123")
	c.Assert(t.DocPath("ABCD123"), check.Equals, "sequence/_doc/ABCD123")
	c.Assert(t.CountPath(), check.Equals, "sequence/_count")
	c.Assert(t.RefreshPath(), check.Equals, "sequence/_refresh")
	c.Assert(t.AnalyzePath(), check.Equals, "sequence/_analyze")
}

func (s *indexTestSuite) TestTypedPaths(c *check.C) {
	t := Target{Index: "bib", DocType: "article"}

	c.Assert(t.MappingPath(), check.Equals, "bib/_mapping/article")
	c.Assert(t.UpdatePath("A1"), check.Equals, "bib/article/A1/_update")
	c.Assert(t.DocPath("A1"), check.Equals, "bib/article/A1")
}

func (s *indexTestSuite) TestIdentifiersAreEscaped(c *check.C) {
	t := Target{Index: "sequence"}

	c.Assert(t.UpdatePath("a/b c?"), check.Equals, "sequence/_update/a%2Fb%20c%3F")
	c.Assert(t.DocPath("GBAP0042-09"), check.Equals, "sequence/_doc/GBAP0042-09")
}

func (s *indexTestSuite) TestTargetValidation(c *check.C) {
	c.Assert(Target{}.Validate(), check.Equals, ErrEmptyIndexName)
	c.Assert(Target{Index: "  "}.Validate(), check.Equals, ErrEmptyIndexName)
	c.Assert(Target{Index: "sequence"}.Validate(), check.IsNil)
}

func (s *indexTestSuite) TestResponseErrorDecoding(c *check.C) {
	res := &Response{
		StatusCode: 404,
		Body:       []byte(`{"error":{"type":"index_not_found_exception","reason":"no such index [sequence]"},"status":404}`),
	}

	c.Assert(res.IsError(), check.Equals, true)

	err := res.Err()
	c.Assert(err, check.ErrorMatches, `status 404: index_not_found_exception: no such index \[sequence\]`)
	c.Assert(ErrorType(err), check.Equals, ErrTypeIndexNotFound)
	c.Assert(IsNotFound(fmt.Errorf("delete index: %w", err)), check.Equals, true)

	var idxErr *Error
	c.Assert(errors.As(err, &idxErr), check.Equals, true)
	c.Assert(idxErr.Status, check.Equals, 404)
	c.Assert(idxErr.Temporary(), check.Equals, false)
}

func (s *indexTestSuite) TestResponseErrorWithoutEnvelope(c *check.C) {
	res := &Response{StatusCode: 503, Body: []byte("upstream unavailable")}

	err := res.Err()
	c.Assert(err, check.ErrorMatches, "status 503: Service Unavailable")
	c.Assert(ErrorType(err), check.Equals, "")
	c.Assert(err.(*Error).Temporary(), check.Equals, true)
}

func (s *indexTestSuite) TestSuccessfulResponse(c *check.C) {
	res := &Response{StatusCode: 201, Body: []byte(`{"result":"created"}`)}
	c.Assert(res.IsError(), check.Equals, false)
	c.Assert(res.Err(), check.IsNil)

	var out struct {
		Result string `json:"result"`
	}
	c.Assert(res.Decode(&out), check.IsNil)
	c.Assert(out.Result, check.Equals, "created")

	c.Assert(ErrorType(nil), check.Equals, "")
	c.Assert(IsNotFound(nil), check.Equals, false)
}

func (s *indexTestSuite) TestMappingJSON(c *check.C) {
	m := Mapping{
		Settings: &Settings{Analysis: &Analysis{
			Analyzer: map[string]Analyzer{
				"ngram_tokenizer_analyzer": {Type: "custom", Tokenizer: "ngram_tokenizer"},
			},
			Tokenizer: map[string]Tokenizer{
				"ngram_tokenizer": {Type: "ngram", MinGram: 5, MaxGram: 5, TokenChars: []string{"letter", "digit"}},
			},
		}},
		Properties: map[string]Field{
			"geometry": {Type: "geo_shape", Tree: "quadtree", Precision: "1m"},
			"seq":      {Type: "text", Analyzer: "ngram_tokenizer_analyzer"},
		},
	}

	data, err := json.Marshal(m)
	c.Assert(err, check.IsNil)
	c.Assert(string(data), check.Equals, `{"settings":{"analysis":{`+
		`"analyzer":{"ngram_tokenizer_analyzer":{"type":"custom","tokenizer":"ngram_tokenizer"}},`+
		`"tokenizer":{"ngram_tokenizer":{"type":"ngram","min_gram":5,"max_gram":5,"token_chars":["letter","digit"]}}}},`+
		`"properties":{"geometry":{"type":"geo_shape","tree":"quadtree","precision":"1m"},`+
		`"seq":{"type":"text","analyzer":"ngram_tokenizer_analyzer"}}}`)
	c.Assert(m.HasAnalysis(), check.Equals, true)
	c.Assert((&Mapping{}).HasAnalysis(), check.Equals, false)
}
