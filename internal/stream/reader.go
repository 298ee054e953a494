package stream

import (
	"bytes"
	"io"

	"github.com/dshills/aline/internal/chunker"
	"github.com/dshills/aline/pkg/types"
)

const (
	// DefaultReadSize is the size of reads issued against the source
	DefaultReadSize = 32 * 1024

	// maxEmptyReads bounds consecutive (0, nil) reads from a misbehaving source
	maxEmptyReads = 100
)

// ReaderOptions configures a Reader
type ReaderOptions struct {
	types.Options
	ReadSize int // Source read size (default: DefaultReadSize)
}

// Reader is a pull adapter: it reads from src and hands out
// boundary-aligned emissions on demand
type Reader struct {
	src     io.Reader
	chunker *chunker.Chunker
	buf     []byte

	pending [][]byte // emissions not yet handed out
	cur     []byte   // unread remainder of the emission being Read
	err     error    // sticky, returned once pending is drained
}

// NewReader returns a Reader over src using the default read size
func NewReader(src io.Reader, opts types.Options) (*Reader, error) {
	return NewReaderWithOptions(src, ReaderOptions{Options: opts})
}

// NewReaderWithOptions returns a Reader over src
func NewReaderWithOptions(src io.Reader, opts ReaderOptions) (*Reader, error) {
	c, err := chunker.New(opts.Options)
	if err != nil {
		return nil, err
	}

	size := opts.ReadSize
	if size <= 0 {
		size = DefaultReadSize
	}

	return &Reader{
		src:     src,
		chunker: c,
		buf:     make([]byte, size),
	}, nil
}

// Next returns the next whole emission. After the flush emission it returns
// io.EOF. A source error is returned once every emission produced before it
// has been handed out; the pending tail is then discarded.
func (r *Reader) Next() ([]byte, error) {
	for len(r.pending) == 0 {
		if r.err != nil {
			return nil, r.err
		}
		r.fill()
	}

	next := r.pending[0]
	r.pending[0] = nil
	r.pending = r.pending[1:]
	return next, nil
}

// Read copies bytes of the current emission into p. It never mixes bytes of
// two emissions in one call.
func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	if len(r.cur) == 0 {
		next, err := r.Next()
		if err != nil {
			return 0, err
		}
		r.cur = next
	}

	n := copy(p, r.cur)
	r.cur = r.cur[n:]
	return n, nil
}

// WriteTo writes each remaining emission to w in a single Write call
func (r *Reader) WriteTo(w io.Writer) (int64, error) {
	var total int64

	if len(r.cur) > 0 {
		n, err := w.Write(r.cur)
		total += int64(n)
		r.cur = nil
		if err != nil {
			return total, err
		}
	}

	for {
		next, err := r.Next()
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}

		n, err := w.Write(next)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
}

// Stats returns the engine counters
func (r *Reader) Stats() chunker.Stats {
	return r.chunker.Stats()
}

// fill performs one source read and runs it through the engine
func (r *Reader) fill() {
	for empty := 0; ; empty++ {
		n, err := r.src.Read(r.buf)
		if n > 0 {
			if terr := r.chunker.Transform(r.buf[:n], r.collect); terr != nil {
				r.err = terr
				return
			}
		}

		switch {
		case err == io.EOF:
			if ferr := r.chunker.Flush(r.collect); ferr != nil {
				r.err = ferr
				return
			}
			r.err = io.EOF
			return
		case err != nil:
			r.err = err
			return
		case n > 0:
			return
		case empty >= maxEmptyReads:
			r.err = io.ErrNoProgress
			return
		}
	}
}

// collect keeps a copy of the emission; r.buf is reused by the next read
func (r *Reader) collect(chunk []byte) error {
	r.pending = append(r.pending, bytes.Clone(chunk))
	return nil
}
