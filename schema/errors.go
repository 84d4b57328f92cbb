package schema

import "errors"

var (
	// ErrProvision is wrapped by every failure that aborts provisioning.
	ErrProvision = errors.New("schema provisioning failed")

	// ErrUnknownPreset is returned when asking for a mapping preset that
	// does not exist.
	ErrUnknownPreset = errors.New("unknown mapping preset")

	// ErrInvalidMapping is returned when a mapping document declares no
	// field properties.
	ErrInvalidMapping = errors.New("mapping declares no properties")
)
