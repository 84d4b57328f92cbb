package sqldb

import "errors"

var (
	// ErrInvalidIdentifier is returned when a table or column name contains
	// characters outside of [A-Za-z0-9_] or starts with a digit.
	ErrInvalidIdentifier = errors.New("invalid SQL identifier")

	// ErrMissingOrderBy is returned when a page is requested without a
	// stable ordering column.
	ErrMissingOrderBy = errors.New("an ordering column is required for paginated queries")

	// ErrUnsupportedScheme is returned for source URIs with an unknown scheme.
	ErrUnsupportedScheme = errors.New("unsupported source URI scheme")
)
