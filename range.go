package rangeserve

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const rangeUnitPrefix = "bytes="

// Range represents an end-inclusive byte range.
type Range struct {
	// Start is the start of the range (starting at 0).
	Start int64

	// End is the end of the range.
	End int64
}

// Length returns the number of bytes covered by the range.
func (r Range) Length() int64 {
	return r.End - r.Start + 1
}

// ContentRange renders the Content-Range header value of a partial response.
func (r Range) ContentRange(totalLength int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, totalLength)
}

// Header renders the range as a Range request header value.
func (r Range) Header() string {
	return fmt.Sprintf("%s%d-%d", rangeUnitPrefix, r.Start, r.End)
}

func unsatisfiedContentRange(totalLength int64) string {
	return fmt.Sprintf("bytes */%d", totalLength)
}

// ParseRange validates a Range header value against a resource of totalLength bytes.
//
// An empty header yields a nil range and no error: the whole resource is served.
// Only the single-range forms "bytes=<start>-<end>" and "bytes=<start>-" are accepted.
// An end past the resource is clamped to its last byte.
func ParseRange(header string, totalLength int64) (*Range, error) {
	if header == "" {
		return nil, nil
	}

	if !strings.HasPrefix(header, rangeUnitPrefix) {
		return nil, errors.Wrapf(ErrMalformedRange, "unsupported range unit in %q", header)
	}
	spec := header[len(rangeUnitPrefix):]

	if strings.Contains(spec, ",") {
		return nil, errors.Wrapf(ErrMalformedRange, "multiple ranges in %q", header)
	}

	dash := strings.IndexByte(spec, '-')
	if dash < 0 {
		return nil, errors.Wrapf(ErrMalformedRange, "missing '-' in %q", header)
	}

	startText := strings.TrimSpace(spec[:dash])
	endText := strings.TrimSpace(spec[dash+1:])

	if startText == "" {
		return nil, errors.Wrapf(ErrMalformedRange, "missing range start in %q", header)
	}

	start, err := parseOffset(startText)
	if err != nil {
		return nil, errors.Wrapf(err, "bad range start in %q", header)
	}

	end := totalLength - 1
	if endText != "" {
		end, err = parseOffset(endText)
		if err != nil {
			return nil, errors.Wrapf(err, "bad range end in %q", header)
		}
		if end < start {
			return nil, errors.Wrapf(ErrMalformedRange, "range end before start in %q", header)
		}
	}

	if totalLength <= 0 || start >= totalLength {
		return nil, errors.Wrapf(ErrUnsatisfiableRange, "range %q for %d bytes", header, totalLength)
	}

	if end >= totalLength {
		end = totalLength - 1
	}

	return &Range{Start: start, End: end}, nil
}

// parseOffset only accepts plain decimal digits; ParseInt alone would let signs through.
func parseOffset(text string) (int64, error) {
	for i := 0; i < len(text); i++ {
		if text[i] < '0' || text[i] > '9' {
			return 0, errors.Wrapf(ErrMalformedRange, "%q is not a byte offset", text)
		}
	}

	value, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformedRange, "%q is out of range", text)
	}
	return value, nil
}
