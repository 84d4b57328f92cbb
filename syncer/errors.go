package syncer

import "errors"

var (
	// ErrMissingIdentifier is reported for records whose identifier is
	// empty after normalization. Such records are skipped.
	ErrMissingIdentifier = errors.New("document has missing identifier")

	// ErrUnknownMode is returned when parsing an unsupported write mode.
	ErrUnknownMode = errors.New("unknown write mode")
)
