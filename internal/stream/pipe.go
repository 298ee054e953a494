package stream

import (
	"bytes"
	"context"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/aline/internal/chunker"
	"github.com/dshills/aline/pkg/types"
)

// Pipe realigns the chunks received on in and sends the emissions to out.
// Closing in ends the stream and flushes the tail. Cancelling ctx aborts it:
// the tail is discarded and ctx.Err() is returned. out is closed on return.
// Emissions sent on out are owned by the receiver.
func Pipe(ctx context.Context, in <-chan []byte, out chan<- []byte, opts types.Options) error {
	defer close(out)

	c, err := chunker.New(opts)
	if err != nil {
		return err
	}

	send := func(chunk []byte) error {
		select {
		case out <- bytes.Clone(chunk):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-in:
			if !ok {
				return c.Flush(send)
			}
			if err := c.Transform(chunk, send); err != nil {
				return err
			}
		}
	}
}

// Run reads src, realigns it and calls handle for every emission. Reading,
// alignment and handling run concurrently; the first error stops all three.
// A source read that is blocked when another stage fails is not interrupted.
func Run(ctx context.Context, src io.Reader, opts ReaderOptions, handle func([]byte) error) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	size := opts.ReadSize
	if size <= 0 {
		size = DefaultReadSize
	}

	g, gctx := errgroup.WithContext(ctx)
	chunks := make(chan []byte, 4)
	emissions := make(chan []byte, 16)

	// Stage 1: read. chunks is closed only on a clean EOF so that a read
	// error never triggers a flush downstream.
	g.Go(func() error {
		for {
			buf := make([]byte, size)
			n, err := src.Read(buf)
			if n > 0 {
				select {
				case chunks <- buf[:n]:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			if err == io.EOF {
				close(chunks)
				return nil
			}
			if err != nil {
				return err
			}
		}
	})

	// Stage 2: align
	g.Go(func() error {
		return Pipe(gctx, chunks, emissions, opts.Options)
	})

	// Stage 3: consume
	g.Go(func() error {
		for chunk := range emissions {
			if err := handle(chunk); err != nil {
				return err
			}
		}
		return nil
	})

	return g.Wait()
}

// Copy reads src to EOF and writes the realigned stream to dst, one Write
// per emission
func Copy(dst io.Writer, src io.Reader, opts ReaderOptions) (int64, error) {
	r, err := NewReaderWithOptions(src, opts)
	if err != nil {
		return 0, err
	}
	return r.WriteTo(dst)
}
