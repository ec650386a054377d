package rangeserve

import (
	"io"

	"github.com/pkg/errors"
)

// rangeReader issues one range request per Read, sized to the caller's buffer.
type rangeReader struct {
	Name   string
	Client *Client

	RangeStart int64
	RangeEnd   int64
}

func (r *rangeReader) Read(buf []byte) (int, error) {
	if r.RangeStart > r.RangeEnd {
		return 0, io.EOF
	}
	if len(buf) == 0 {
		return 0, nil
	}

	requestedDataLength := int64(len(buf))
	byteRange := (r.RangeEnd - r.RangeStart) + 1

	var lengthToRead int64
	if requestedDataLength <= byteRange {
		lengthToRead = requestedDataLength
	} else {
		lengthToRead = byteRange
	}

	rangeEnd := (r.RangeStart + lengthToRead) - 1

	responseReader, err := r.Client.readRange(r.Name, r.RangeStart, rangeEnd)
	if errors.Is(err, ErrUnsatisfiableRange) {
		return 0, io.EOF
	}
	if err != nil {
		return 0, err
	}
	defer responseReader.Close()

	// The server clamps ranges to the file, so a short body means the file is shorter than asked.
	readCount, err := io.ReadFull(responseReader, buf[:lengthToRead])
	r.RangeStart += int64(readCount)
	if err == io.ErrUnexpectedEOF {
		r.RangeEnd = r.RangeStart - 1
		return readCount, nil
	}

	return readCount, err
}

func (r *rangeReader) Close() error {
	return nil
}
