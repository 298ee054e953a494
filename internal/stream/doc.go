// Package stream adapts the realignment engine to Go's streaming interfaces.
//
// The engine in package chunker is transport-agnostic: it is driven through
// Transform and Flush and pushes emissions to a callback. This package
// provides the thin adapters a host program plugs it into:
//
//   - Writer: push-style io.WriteCloser. Close is the end of stream.
//   - Reader: pull-style io.Reader. Emissions are buffered until the next
//     read, and io.EOF follows the flush emission.
//   - Pipe: channel transport. Cancelling the context aborts the stream and
//     the pending tail is discarded without a flush.
//   - Run: a three-stage read/align/consume pipeline using errgroup.
//
// # Writer
//
//	w, err := stream.NewWriter(os.Stdout, types.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	if _, err := io.Copy(w, conn); err != nil {
//	    return err
//	}
//	return w.Close() // flushes the unterminated last line, if any
//
// Every emission reaches the destination as a single Write call. A Writer
// serialises concurrent Write calls, so the engine never sees two chunks at
// once.
//
// # Reader
//
//	r, err := stream.NewReader(conn, types.Options{Separator: []byte("\n"), Readline: true})
//	for {
//	    line, err := r.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    ...
//	}
//
// Read returns bytes from at most one emission per call, so a caller reading
// with a buffer at least as large as the longest line never receives a torn
// line.
package stream
