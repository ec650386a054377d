package rangeserve

import "github.com/pkg/errors"

var (
	// ErrNotFound is returned when a name does not resolve to a readable file.
	ErrNotFound = errors.New("video not found")

	// ErrMalformedRange is returned for Range headers that do not follow the single-range byte syntax.
	ErrMalformedRange = errors.New("malformed range")

	// ErrUnsatisfiableRange is returned for well-formed ranges starting past the end of the resource.
	ErrUnsatisfiableRange = errors.New("range not satisfiable")

	// ErrStorageRead is returned when the byte store fails while a response is being produced.
	ErrStorageRead = errors.New("storage read failed")
)

// IsRangeError reports whether err is a parser rejection that maps to 416.
func IsRangeError(err error) bool {
	return errors.Is(err, ErrMalformedRange) || errors.Is(err, ErrUnsatisfiableRange)
}
