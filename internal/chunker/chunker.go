package chunker

import (
	"github.com/dshills/aline/internal/byteseq"
	"github.com/dshills/aline/pkg/types"
)

// Chunker re-chunks a byte stream so that every emission ends at a separator
// boundary. A Chunker is not safe for concurrent use; transports serialise
// calls into it.
type Chunker struct {
	separator []byte
	readline  bool

	// tail holds bytes after the last emitted boundary. It is always owned
	// by the Chunker, never a view of a caller's chunk.
	tail   []byte
	closed bool

	stats Stats
}

// Stats counts the traffic through a Chunker
type Stats struct {
	Chunks    int   // Chunks passed to Transform
	BytesIn   int64 // Bytes received
	BytesOut  int64 // Bytes emitted
	Emissions int   // Calls made to the EmitFunc
}

// New creates a Chunker. The separator is validated here, once.
func New(opts types.Options) (*Chunker, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	sep := make([]byte, len(opts.Separator))
	copy(sep, opts.Separator)

	return &Chunker{
		separator: sep,
		readline:  opts.Readline,
	}, nil
}

// MustNew is like New but panics on invalid options
func MustNew(opts types.Options) *Chunker {
	c, err := New(opts)
	if err != nil {
		panic(err)
	}
	return c
}

// Separator returns the configured separator
func (c *Chunker) Separator() []byte {
	return c.separator
}

// Readline reports whether readline mode is enabled
func (c *Chunker) Readline() bool {
	return c.readline
}

// Pending returns the number of bytes waiting for a boundary
func (c *Chunker) Pending() int {
	return len(c.tail)
}

// Stats returns the counters accumulated since creation or the last Reset
func (c *Chunker) Stats() Stats {
	return c.stats
}

// Transform consumes one chunk. Everything up to and including the last
// separator of tail+chunk is emitted; the remainder becomes the new tail.
//
// Emissions may share memory with chunk and are only valid for the duration
// of the emit call unless the caller owns chunk. The chunk itself may be
// reused once Transform returns.
func (c *Chunker) Transform(chunk []byte, emit types.EmitFunc) error {
	if c.closed {
		return types.ErrClosed
	}
	c.stats.Chunks++
	if len(chunk) == 0 {
		return nil
	}
	c.stats.BytesIn += int64(len(chunk))

	// Search the merged buffer so a separator straddling the old tail and
	// the new chunk is found.
	data := byteseq.Concat(c.tail, chunk)
	index := byteseq.LastIndex(data, c.separator)
	if index == -1 {
		c.keep(data)
		return nil
	}

	boundary := index + len(c.separator)
	head := data[:boundary:boundary]
	c.keep(data[boundary:])

	return c.emit(head, emit)
}

// Flush ends the stream. A non-empty tail is emitted verbatim, exactly once,
// even without a trailing separator. Later calls to Flush do nothing and
// Transform returns types.ErrClosed.
func (c *Chunker) Flush(emit types.EmitFunc) error {
	if c.closed {
		return nil
	}
	c.closed = true

	if len(c.tail) == 0 {
		return nil
	}

	rest := c.tail
	c.tail = nil
	return c.emit(rest, emit)
}

// Reset discards the tail and reopens the Chunker for a new stream
func (c *Chunker) Reset() {
	c.tail = c.tail[:0]
	c.closed = false
	c.stats = Stats{}
}

// keep replaces the tail with a copy of rest, reusing the tail's storage.
// rest never aliases the tail: Transform only calls keep with views of a
// freshly merged buffer or of the caller's chunk.
func (c *Chunker) keep(rest []byte) {
	c.tail = append(c.tail[:0], rest...)
}

// emit hands head to the transport, one line at a time in readline mode
func (c *Chunker) emit(head []byte, emit types.EmitFunc) error {
	if !c.readline {
		return c.send(head, emit)
	}
	for _, line := range SplitLines(head, c.separator) {
		if err := c.send(line, emit); err != nil {
			return err
		}
	}
	return nil
}

func (c *Chunker) send(chunk []byte, emit types.EmitFunc) error {
	c.stats.Emissions++
	c.stats.BytesOut += int64(len(chunk))
	return emit(chunk)
}

// Align runs a complete stream through a new Chunker and returns every
// emission in order, the flush output last.
func Align(opts types.Options, chunks [][]byte) ([][]byte, error) {
	c, err := New(opts)
	if err != nil {
		return nil, err
	}

	out := make([][]byte, 0, len(chunks))
	collect := func(chunk []byte) error {
		out = append(out, chunk)
		return nil
	}

	for _, chunk := range chunks {
		if err := c.Transform(chunk, collect); err != nil {
			return nil, err
		}
	}
	if err := c.Flush(collect); err != nil {
		return nil, err
	}

	return out, nil
}
