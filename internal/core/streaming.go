package core

// streaming.go provides the reader stack placed in front of the record parser.
//
//   - BOMSkippingReader: drops a leading UTF-8 BOM written by Windows tools
//   - UTF8Sanitizer: replaces invalid UTF-8 bytes with '?' on the fly
//   - CountingReader: tracks bytes consumed for progress reporting
//
// Use WrapForStreaming to apply all three in the correct order. Memory use is
// bounded by the caller's buffer, never by the file size.

import (
	"bytes"
	"io"
	"sync/atomic"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// BOMSkippingReader removes a UTF-8 byte order mark at the start of a stream.
type BOMSkippingReader struct {
	reader  io.Reader
	checked bool
	head    []byte // bytes read while checking for the BOM, not yet returned
}

// NewBOMSkippingReader creates a new BOM-skipping reader.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{reader: r}
}

// Read implements io.Reader.
func (r *BOMSkippingReader) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true
		buf := make([]byte, len(utf8BOM))
		n, err := io.ReadFull(r.reader, buf)
		switch {
		case n == len(utf8BOM) && bytes.Equal(buf, utf8BOM):
			// dropped
		case n > 0:
			r.head = buf[:n]
		}
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return 0, err
		}
	}

	if len(r.head) > 0 {
		n := copy(p, r.head)
		r.head = r.head[n:]
		return n, nil
	}
	return r.reader.Read(p)
}

// UTF8Sanitizer replaces bytes that are not valid UTF-8 with '?'. A
// multi-byte sequence split across reads is held back until the rest arrives.
type UTF8Sanitizer struct {
	reader  io.Reader
	buf     []byte
	pending []byte // incomplete trailing sequence from the last fill
	ready   []byte // sanitized bytes not yet returned
	err     error  // sticky error from the underlying reader
}

// NewUTF8Sanitizer creates a new streaming UTF-8 sanitizer.
func NewUTF8Sanitizer(r io.Reader) *UTF8Sanitizer {
	return &UTF8Sanitizer{
		reader:  r,
		buf:     make([]byte, 4096),
		pending: make([]byte, 0, utf8.UTFMax),
	}
}

// Read implements io.Reader.
func (s *UTF8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(s.ready) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		s.fill()
	}
	n := copy(p, s.ready)
	s.ready = s.ready[n:]
	return n, nil
}

func (s *UTF8Sanitizer) fill() {
	off := copy(s.buf, s.pending)
	s.pending = s.pending[:0]

	n, err := s.reader.Read(s.buf[off:])
	n += off
	if err != nil {
		s.err = err
	}
	s.ready = s.buf[:s.sanitize(s.buf[:n], err != nil)]
}

// sanitize rewrites data in place and returns the number of bytes ready to
// hand out. Unless atEOF, an incomplete trailing sequence is moved to pending.
func (s *UTF8Sanitizer) sanitize(data []byte, atEOF bool) int {
	if isASCII(data) {
		return len(data)
	}

	w := 0
	for r := 0; r < len(data); {
		if data[r] < utf8.RuneSelf {
			data[w] = data[r]
			w++
			r++
			continue
		}
		if !atEOF && !utf8.FullRune(data[r:]) {
			s.pending = append(s.pending, data[r:]...)
			return w
		}
		rn, size := utf8.DecodeRune(data[r:])
		if rn == utf8.RuneError && size == 1 {
			data[w] = '?'
			w++
			r++
			continue
		}
		copy(data[w:], data[r:r+size])
		w += size
		r += size
	}
	return w
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// CountingReader tracks bytes read. BytesRead is safe to call from other
// goroutines while the reader is in use.
type CountingReader struct {
	reader io.Reader
	read   atomic.Int64
	total  int64
}

// NewCountingReader creates a counting reader; total is 0 when unknown.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{reader: r, total: total}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.read.Add(int64(n))
	return n, err
}

// BytesRead returns the number of bytes consumed so far.
func (r *CountingReader) BytesRead() int64 { return r.read.Load() }

// Total returns the expected size, or 0 if unknown.
func (r *CountingReader) Total() int64 { return r.total }

// Progress returns the read progress as a percentage (0-100).
func (r *CountingReader) Progress() int {
	if r.total <= 0 {
		return 0
	}
	return int(r.read.Load() * 100 / r.total)
}

// WrapForStreaming stacks BOM skipping, UTF-8 sanitization and byte counting.
// The BOM has to go first; counting is outermost so it reports what the
// parser actually consumed.
func WrapForStreaming(r io.Reader, totalSize int64) *CountingReader {
	return NewCountingReader(NewUTF8Sanitizer(NewBOMSkippingReader(r)), totalSize)
}
