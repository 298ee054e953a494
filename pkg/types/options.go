package types

// DefaultSeparator is the separator used when none is configured
const DefaultSeparator = "\n"

// Options configures a realignment engine
type Options struct {
	// Separator is the literal byte sequence chunks are aligned on.
	// It is compared byte-for-byte and never decoded as text.
	Separator []byte

	// Readline emits one line per emission instead of one
	// boundary-aligned (possibly multi-line) buffer.
	Readline bool
}

// DefaultOptions returns options aligning on "\n" without readline mode
func DefaultOptions() Options {
	return Options{
		Separator: []byte(DefaultSeparator),
	}
}

// WithSeparator returns a copy of the options using the given text separator
func (o Options) WithSeparator(sep string) Options {
	o.Separator = []byte(sep)
	return o
}

// Validate checks the options once, at construction time
func (o Options) Validate() error {
	if len(o.Separator) == 0 {
		return ErrEmptySeparator
	}
	return nil
}

// EmitFunc receives each emission produced by an engine. An error returned by
// the transport stops the current step and is passed back to the caller.
type EmitFunc func(chunk []byte) error
