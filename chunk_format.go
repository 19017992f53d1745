package e2ee

import (
	"bufio"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// Chunked body layout, following the header:
//
//	┌───────────────────────────────────────────┐
//	│ Chunk 0                                   │
//	│ - Record length (6 hex digits)            │
//	│ - base64(salt | nonce/iv | sealed data)   │
//	├───────────────────────────────────────────┤
//	│ Chunk 1                                   │
//	│ └─ ...                                    │
//	└───────────────────────────────────────────┘
//
// There is no chunk count; the last record is the one that ends the input.
// At least one record is always present.
const (
	// chunkLenDigits is the width of the record length prefix
	chunkLenDigits = 6

	// maxChunkRecordLen is the largest length the prefix can express
	maxChunkRecordLen = 1<<24 - 1
)

var chunkEncoding = base64.StdEncoding.Strict()

// chunkRecordWriter writes length-prefixed chunk records
type chunkRecordWriter struct {
	w io.Writer
}

// WriteRecord encodes blob as a single chunk record
func (cw *chunkRecordWriter) WriteRecord(blob []byte) (int64, error) {
	n := chunkEncoding.EncodedLen(len(blob))
	if n > maxChunkRecordLen {
		return 0, fmt.Errorf("chunk record of %d bytes exceeds maximum %d", n, maxChunkRecordLen)
	}
	buf := make([]byte, chunkLenDigits+n)
	copy(buf, fmt.Sprintf("%06x", n))
	chunkEncoding.Encode(buf[chunkLenDigits:], blob)
	written, err := cw.w.Write(buf)
	return int64(written), err
}

// chunkRecordReader reads chunk records written by chunkRecordWriter
type chunkRecordReader struct {
	r *bufio.Reader
}

func newChunkRecordReader(r io.Reader) *chunkRecordReader {
	if br, ok := r.(*bufio.Reader); ok {
		return &chunkRecordReader{r: br}
	}
	return &chunkRecordReader{r: bufio.NewReader(r)}
}

// ReadRecord returns the next decoded record and whether it is the last one
// in the input. It returns io.EOF only when no bytes remain. Any framing
// problem is reported as ErrDecryptionFailed.
func (cr *chunkRecordReader) ReadRecord(index int) (blob []byte, last bool, err error) {
	prefix := make([]byte, chunkLenDigits)
	if _, err := io.ReadFull(cr.r, prefix); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, false, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, false, NewCorruptionError(index, "truncated record length")
		}
		return nil, false, err
	}
	n, err := parseHex(string(prefix), 24)
	if err != nil || n == 0 {
		return nil, false, NewCorruptionError(index, "invalid record length")
	}

	encoded := make([]byte, n)
	if _, err := io.ReadFull(cr.r, encoded); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, false, NewCorruptionError(index, "record shorter than its declared length")
		}
		return nil, false, err
	}
	blob = make([]byte, chunkEncoding.DecodedLen(len(encoded)))
	m, err := chunkEncoding.Decode(blob, encoded)
	if err != nil {
		return nil, false, NewCorruptionError(index, "record is not valid base64")
	}

	if _, err := cr.r.Peek(1); err != nil {
		if !errors.Is(err, io.EOF) {
			return nil, false, err
		}
		last = true
	}
	return blob[:m], last, nil
}

// splitBytes splits data into pieces of at most size bytes. With runeSafe
// set, a piece never ends inside a UTF-8 sequence.
func splitBytes(data []byte, size int, runeSafe bool) [][]byte {
	var chunks [][]byte
	for start := 0; start < len(data); {
		end := min(start+size, len(data))
		if runeSafe && end < len(data) {
			cut := end
			for cut > start && !utf8.RuneStart(data[cut]) {
				cut--
			}
			if cut > start {
				end = cut
			}
		}
		chunks = append(chunks, data[start:end])
		start = end
	}
	return chunks
}

// splitUTF16 splits s into pieces of at most size UTF-16 code units, the
// unit legacy methods count in. Input that would have been corrupted by
// that policy (invalid UTF-8, or a surrogate pair straddling a boundary) is
// rejected with ErrInvalidInputEncoding.
func splitUTF16(s string, size int) ([][]byte, error) {
	if !utf8.ValidString(s) {
		return nil, fmt.Errorf("%w: text is not valid UTF-8", ErrInvalidInputEncoding)
	}

	var chunks [][]byte
	start, units := 0, 0
	for i, r := range s {
		width := 1
		if r >= 0x10000 {
			width = 2
		}
		if units+width > size {
			if units < size {
				return nil, fmt.Errorf("%w: character at byte %d straddles a chunk boundary", ErrInvalidInputEncoding, i)
			}
			chunks = append(chunks, []byte(s[start:i]))
			start, units = i, 0
		}
		units += width
	}
	if start < len(s) {
		chunks = append(chunks, []byte(s[start:]))
	}
	return chunks, nil
}
