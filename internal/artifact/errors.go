package artifact

import "errors"

var (
	// ErrNoArchitecture is returned when a file name carries no architecture token.
	ErrNoArchitecture = errors.New("output file name has no architecture segment")
	// ErrInvalidPrefix is returned when the output prefix is empty or contains a path separator.
	ErrInvalidPrefix = errors.New("output prefix must be a non-empty file name")
)
