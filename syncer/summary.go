package syncer

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Maximum number of failed identifiers listed by String.
const maxListedFailures = 10

// String renders the summary for terminal output.
func (s *Summary) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "run %s: %s records in %s pages (%s upserted, %s failed) in %s, next offset %s",
		s.RunID,
		humanize.Comma(int64(s.Records)),
		humanize.Comma(int64(s.Pages)),
		humanize.Comma(int64(s.Upserted)),
		humanize.Comma(int64(s.Failed)),
		s.Elapsed.Round(time.Millisecond),
		humanize.Comma(int64(s.NextOffset)),
	)

	if len(s.FailedIDs) > 0 {
		ids := s.FailedIDs
		if len(ids) > maxListedFailures {
			ids = ids[:maxListedFailures]
		}

		sb.WriteString("\nfailed: ")
		sb.WriteString(strings.Join(ids, ", "))

		if more := len(s.FailedIDs) - len(ids); more > 0 {
			fmt.Fprintf(&sb, " and %s more", humanize.Comma(int64(more)))
		}
	}

	return sb.String()
}
