// Package types provides shared type definitions for aline.
//
// # Options
//
// Options configures a realignment engine. The separator is a literal byte
// sequence; the zero value is invalid and rejected once, at construction:
//
//	opts := types.DefaultOptions()          // "\n", readline off
//	opts = opts.WithSeparator("\r\n")       // custom separator
//	opts.Readline = true                    // one line per emission
//
//	if err := opts.Validate(); err != nil {
//	    // types.ErrEmptySeparator
//	}
//
// # Emissions
//
// Engines push their output through an EmitFunc. The callback belongs to the
// host transport; returning an error aborts the current step:
//
//	emit := func(chunk []byte) error {
//	    _, err := w.Write(chunk)
//	    return err
//	}
//
// # Lines
//
// Line records a readline-mode emission with its position in the stream. The
// storage and indexing layers persist lines:
//
//	line := types.NewLine(1, 0, []byte("foo\n"), []byte("\n"))
//	line.Terminated // true
//	line.End()      // 4
//
// Only the final emission of a stream may be unterminated.
package types
