package types

import (
	"bytes"
	"crypto/sha256"
	"fmt"
)

// Line is a single readline-mode emission together with its position in the
// original stream
type Line struct {
	// Number is the 1-based line number within the stream
	Number int

	// Offset is the byte offset of the first byte of Content in the stream
	Offset int64

	// Content holds the line bytes, separator included when Terminated
	Content []byte

	// Terminated is false only for a dangling final fragment emitted by a flush
	Terminated bool
}

// NewLine builds a Line and derives Terminated from the separator
func NewLine(number int, offset int64, content, separator []byte) *Line {
	return &Line{
		Number:     number,
		Offset:     offset,
		Content:    content,
		Terminated: len(separator) > 0 && bytes.HasSuffix(content, separator),
	}
}

// End returns the offset just past the line
func (l *Line) End() int64 {
	return l.Offset + int64(len(l.Content))
}

// Text returns the line content without its trailing separator
func (l *Line) Text(separator []byte) string {
	if l.Terminated {
		return string(bytes.TrimSuffix(l.Content, separator))
	}
	return string(l.Content)
}

// Hash returns the SHA-256 of the line content
func (l *Line) Hash() [32]byte {
	return sha256.Sum256(l.Content)
}

// Validate checks that the line is internally consistent
func (l *Line) Validate() error {
	if l.Number < 1 {
		return fmt.Errorf("%w: line number must be >= 1", ErrInvalidLine)
	}
	if l.Offset < 0 {
		return fmt.Errorf("%w: offset must be >= 0", ErrInvalidLine)
	}
	if len(l.Content) == 0 {
		return fmt.Errorf("%w: content cannot be empty", ErrInvalidLine)
	}
	return nil
}
