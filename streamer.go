package rangeserve

import (
	"io"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
)

// DefaultChunkSize is the size of the buffer used to copy a store to a response.
const DefaultChunkSize = 8192

// maxConsecutiveEmptyReads bounds how many (0, nil) reads a store may return in a row.
const maxConsecutiveEmptyReads = 100

// StreamResult describes how a streamed response ended.
type StreamResult struct {
	// Status is the status code of the response.
	Status int

	// Written is the number of body bytes accepted by the client connection.
	Written int64

	// Committed is set once the status line and headers were sent.
	Committed bool

	// PeerGone is set when a body write failed, usually because the client went away.
	PeerGone bool

	// Truncated is set when the store ended before the declared length was sent.
	Truncated bool
}

// A Streamer copies byte stores to HTTP responses in fixed-size chunks.
type Streamer struct {
	chunkSize int
}

// NewStreamer returns a streamer copying at most chunkSize bytes at a time.
// A non-positive chunkSize selects DefaultChunkSize.
func NewStreamer(chunkSize int) *Streamer {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Streamer{chunkSize: chunkSize}
}

// ChunkSize returns the largest number of bytes held in memory by a single stream.
func (s *Streamer) ChunkSize() int {
	return s.chunkSize
}

// Stream writes the store to w: the whole store with 200 when rng is nil, otherwise
// exactly the bytes of rng with 206.
//
// The status line is only sent once the first chunk was read, so a store failing
// right away returns an error wrapping ErrStorageRead with Committed unset and the
// caller is still free to answer with an error status. A failed write to w is not
// an error: the copy stops and PeerGone is reported.
func (s *Streamer) Stream(w http.ResponseWriter, store ByteStore, rng *Range) (StreamResult, error) {
	result := StreamResult{Status: statusFor(rng)}
	start, length := window(store, rng)

	commit := func() {
		if result.Committed {
			return
		}
		writeHeader(w, store, rng, result.Status)
		result.Committed = true
	}

	if _, err := store.Seek(start, io.SeekStart); err != nil {
		return result, errors.Wrapf(ErrStorageRead, "seek %s to %d: %v", store.Name(), start, err)
	}

	buf := make([]byte, s.chunkSize)
	remaining := length
	emptyReads := 0
	for remaining > 0 {
		chunk := buf
		if int64(len(chunk)) > remaining {
			chunk = chunk[:remaining]
		}

		n, readErr := store.Read(chunk)
		if n > 0 {
			emptyReads = 0
			commit()
			if _, err := w.Write(chunk[:n]); err != nil {
				result.PeerGone = true
				return result, nil
			}
			result.Written += int64(n)
			remaining -= int64(n)
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return result, errors.Wrapf(ErrStorageRead, "read %s at %d: %v", store.Name(), start+result.Written, readErr)
		}

		if n == 0 {
			emptyReads++
			if emptyReads >= maxConsecutiveEmptyReads {
				return result, errors.Wrapf(ErrStorageRead, "read %s at %d: %v", store.Name(), start+result.Written, io.ErrNoProgress)
			}
		}
	}

	commit()
	result.Truncated = remaining > 0
	return result, nil
}

// Head sends the status line and headers Stream would send, without touching the store's contents.
func (s *Streamer) Head(w http.ResponseWriter, store ByteStore, rng *Range) StreamResult {
	result := StreamResult{Status: statusFor(rng), Committed: true}
	writeHeader(w, store, rng, result.Status)
	return result
}

func statusFor(rng *Range) int {
	if rng != nil {
		return http.StatusPartialContent
	}
	return http.StatusOK
}

func window(store ByteStore, rng *Range) (start int64, length int64) {
	if rng != nil {
		return rng.Start, rng.Length()
	}
	return 0, store.Size()
}

func writeHeader(w http.ResponseWriter, store ByteStore, rng *Range, status int) {
	_, length := window(store, rng)

	header := w.Header()
	header.Set("Content-Type", store.ContentType())
	header.Set("Content-Length", strconv.FormatInt(length, 10))
	if rng != nil {
		header.Set("Content-Range", rng.ContentRange(store.Size()))
		header.Set("Accept-Ranges", "bytes")
	}
	w.WriteHeader(status)
}
