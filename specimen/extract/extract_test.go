package extract_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	check "gopkg.in/check.v1"

	"github.com/mycok/seqindexer/specimen"
	"github.com/mycok/seqindexer/specimen/extract"
	"github.com/mycok/seqindexer/specimen/store/memory"
)

var _ = check.Suite(new(extractTestSuite))

// Test registers the [check] library with the go testing library and enables
// the running of the test suite using the go testing library.
func Test(t *testing.T) {
	check.TestingT(t)
}

type extractTestSuite struct{}

func (s *extractTestSuite) TestPaginationCompleteness(c *check.C) {
	for n := 0; n <= 25; n++ {
		for pageSize := 1; pageSize <= 7; pageSize++ {
			st := memory.NewStore(generateRows(n)...)
			it, err := extract.New(st, extract.Config{
				Query:    extract.Query{OrderBy: "processid"},
				PageSize: pageSize,
			})
			c.Assert(err, check.IsNil)

			got := drain(c, it)
			comment := check.Commentf("n=%d, page size=%d", n, pageSize)

			c.Assert(got, check.DeepEquals, expectedIDs(0, n), comment)

			// One fetch per page plus a trailing empty fetch whenever the
			// row count is an exact multiple of the page size.
			expectedFetches := n/pageSize + 1
			c.Assert(st.Fetches(), check.Equals, expectedFetches, comment)
			c.Assert(it.Pages(), check.Equals, expectedFetches, comment)
		}
	}
}

func (s *extractTestSuite) TestShortPageTerminates(c *check.C) {
	st := memory.NewStore(generateRows(3)...)

	var pages []extract.PageInfo
	it, err := extract.New(st, extract.Config{
		PageSize: 100,
		OnPage:   func(p extract.PageInfo) { pages = append(pages, p) },
	})
	c.Assert(err, check.IsNil)

	c.Assert(drain(c, it), check.HasLen, 3)
	c.Assert(pages, check.DeepEquals, []extract.PageInfo{{Number: 1, Offset: 0, Rows: 3}})

	// Calling Next after exhaustion must not hit the source again.
	c.Assert(it.Next(context.TODO()), check.Equals, false)
	c.Assert(st.Fetches(), check.Equals, 1)
}

func (s *extractTestSuite) TestExactMultipleFetchesTrailingEmptyPage(c *check.C) {
	st := memory.NewStore(generateRows(4)...)

	var pages []extract.PageInfo
	it, err := extract.New(st, extract.Config{
		PageSize: 2,
		OnPage:   func(p extract.PageInfo) { pages = append(pages, p) },
	})
	c.Assert(err, check.IsNil)

	c.Assert(drain(c, it), check.HasLen, 4)
	c.Assert(pages, check.DeepEquals, []extract.PageInfo{
		{Number: 1, Offset: 0, Rows: 2},
		{Number: 2, Offset: 2, Rows: 2},
		{Number: 3, Offset: 4, Rows: 0},
	})
	c.Assert(it.Offset(), check.Equals, 4)
}

func (s *extractTestSuite) TestFilteredExtraction(c *check.C) {
	st := memory.NewStore(
		specimen.RawRow{"processid": "R1", "class_reg": "Reptilia"},
		specimen.RawRow{"processid": "M1", "class_reg": "Mammalia"},
		specimen.RawRow{"processid": "R2", "class_reg": "Reptilia"},
	)

	it, err := extract.New(st, extract.Config{
		Query: extract.Query{
			Filter:  []extract.Condition{{Column: "class_reg", Value: "Reptilia"}},
			OrderBy: "processid",
		},
		PageSize: 100,
	})
	c.Assert(err, check.IsNil)

	c.Assert(drain(c, it), check.DeepEquals, []string{"R1", "R2"})
	c.Assert(it.Pages(), check.Equals, 1)
}

func (s *extractTestSuite) TestResumeFromStartOffset(c *check.C) {
	st := memory.NewStore(generateRows(10)...)

	it, err := extract.New(st, extract.Config{
		Query:       extract.Query{OrderBy: "processid"},
		PageSize:    3,
		StartOffset: 4,
	})
	c.Assert(err, check.IsNil)

	c.Assert(drain(c, it), check.DeepEquals, expectedIDs(4, 10))
	c.Assert(it.Offset(), check.Equals, 10)
}

func (s *extractTestSuite) TestFetchErrorIsFatal(c *check.C) {
	st := memory.NewStore(generateRows(5)...)

	it, err := extract.New(st, extract.Config{PageSize: 2})
	c.Assert(err, check.IsNil)

	c.Assert(it.Next(context.TODO()), check.Equals, true)
	c.Assert(it.Next(context.TODO()), check.Equals, true)

	fetchErr := errors.New("lost connection")
	st.FailWith(fetchErr)

	c.Assert(it.Next(context.TODO()), check.Equals, false)
	c.Assert(errors.Is(it.Error(), fetchErr), check.Equals, true)
	c.Assert(it.Error(), check.ErrorMatches, "extract: fetch page at offset 2: lost connection")

	// The iterator stays failed even if the source recovers.
	st.FailWith(nil)
	c.Assert(it.Next(context.TODO()), check.Equals, false)
	c.Assert(st.Fetches(), check.Equals, 2)
}

func (s *extractTestSuite) TestInvalidConfig(c *check.C) {
	_, err := extract.New(memory.NewStore(), extract.Config{PageSize: 0})
	c.Assert(errors.Is(err, extract.ErrInvalidPageSize), check.Equals, true)

	_, err = extract.New(memory.NewStore(), extract.Config{PageSize: 1, StartOffset: -1})
	c.Assert(err, check.ErrorMatches, "extract: invalid start offset -1")
}

func drain(c *check.C, it *extract.Iterator) []string {
	ids := []string{}
	for it.Next(context.TODO()) {
		ids = append(ids, it.Row().Get("processid"))
	}
	c.Assert(it.Error(), check.IsNil)

	return ids
}

func generateRows(n int) []specimen.RawRow {
	rows := make([]specimen.RawRow, n)
	for i := 0; i < n; i++ {
		rows[i] = specimen.RawRow{"processid": fmt.Sprintf("ID%03d", i)}
	}

	return rows
}

func expectedIDs(from, to int) []string {
	ids := []string{}
	for i := from; i < to; i++ {
		ids = append(ids, fmt.Sprintf("ID%03d", i))
	}

	return ids
}
