package chunker

import "github.com/dshills/aline/internal/byteseq"

// SplitLines decomposes a boundary-aligned buffer into one segment per line.
// Each segment ends with the separator except a dangling final fragment,
// which only occurs when head is a flush emission.
func SplitLines(head, separator []byte) [][]byte {
	return byteseq.SplitLines(head, separator)
}

// Lines is a convenience for readline-mode callers that want the lines of a
// complete buffer as strings
func Lines(data, separator []byte) []string {
	segments := SplitLines(data, separator)
	lines := make([]string, len(segments))
	for i, seg := range segments {
		lines[i] = string(seg)
	}
	return lines
}
