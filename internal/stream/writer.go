package stream

import (
	"io"
	"sync"

	"github.com/dshills/aline/internal/chunker"
	"github.com/dshills/aline/pkg/types"
)

// Writer is a push adapter: bytes written to it are realigned and passed on
// as boundary-aligned emissions
type Writer struct {
	mu      sync.Mutex
	chunker *chunker.Chunker
	emit    types.EmitFunc
}

// NewWriter returns a Writer that writes each emission to dst in one call
func NewWriter(dst io.Writer, opts types.Options) (*Writer, error) {
	return NewEmitWriter(func(chunk []byte) error {
		_, err := dst.Write(chunk)
		return err
	}, opts)
}

// NewEmitWriter returns a Writer that passes each emission to emit. The
// emission is only valid during the call.
func NewEmitWriter(emit types.EmitFunc, opts types.Options) (*Writer, error) {
	c, err := chunker.New(opts)
	if err != nil {
		return nil, err
	}
	return &Writer{
		chunker: c,
		emit:    emit,
	}, nil
}

// Write feeds p to the engine. p is not retained.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.chunker.Transform(p, w.emit); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close ends the stream, emitting any pending tail
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.chunker.Flush(w.emit)
}

// Pending returns the number of bytes waiting for a separator
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.chunker.Pending()
}

// Stats returns the engine counters
func (w *Writer) Stats() chunker.Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.chunker.Stats()
}
