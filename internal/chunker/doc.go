// Package chunker realigns a byte stream on separator boundaries.
//
// A Chunker consumes chunks of arbitrary size and emits chunks that each end
// exactly at a separator (default "\n"), so a consumer never observes a
// logical line split across two physical chunks. No byte is lost, duplicated,
// or reordered.
//
// # Basic Usage
//
//	c, err := chunker.New(types.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	emit := func(chunk []byte) error {
//	    _, err := os.Stdout.Write(chunk)
//	    return err
//	}
//
//	for chunk := range chunks {
//	    if err := c.Transform(chunk, emit); err != nil {
//	        return err
//	    }
//	}
//	return c.Flush(emit)
//
// # Algorithm
//
// The Chunker holds a tail: bytes received after the last emitted boundary.
// For each chunk it:
//   - Merges tail and chunk
//   - Finds the LAST separator in the merged buffer
//   - Emits everything up to and including it, keeping the rest as the tail
//
// Several complete lines arriving together leave as a single emission. If no
// separator is found the whole merged buffer becomes the tail. The search
// always runs on the merged buffer, so a multi-byte separator split across
// two chunks is found once its last byte arrives.
//
// Flush emits a non-empty tail verbatim, without requiring a trailing
// separator. Downstream consumers must accept that final unterminated
// emission. A stream that is abandoned without Flush drops its tail.
//
// # Readline Mode
//
// With Options.Readline set, each boundary-aligned emission is decomposed
// into one emission per line:
//
//	out, _ := chunker.Align(types.Options{Separator: []byte("\n"), Readline: true},
//	    [][]byte{[]byte("fo"), []byte("o\nbar\nbaz")})
//	// out: "foo\n", "bar\n", "baz"
//
// # Memory
//
// The tail is always a private copy, so callers may reuse their chunk buffer
// as soon as Transform returns. Emissions may point into the caller's chunk
// and should be copied if retained after the emit callback when the chunk
// buffer is reused.
package chunker
