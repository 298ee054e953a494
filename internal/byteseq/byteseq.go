// Package byteseq provides allocation-conscious primitives over byte sequences.
//
// Functions never mutate their inputs. Zero-length sequences are valid
// everywhere; an empty search sequence never matches.
package byteseq

import "bytes"

// Concat returns left followed by right. When one side is empty the other is
// returned as-is, without copying; when both are empty a new zero-length
// slice is returned.
func Concat(left, right []byte) []byte {
	if len(left) == 0 && len(right) == 0 {
		return []byte{}
	}
	if len(left) == 0 {
		return right
	}
	if len(right) == 0 {
		return left
	}

	merged := make([]byte, len(left)+len(right))
	n := copy(merged, left)
	copy(merged[n:], right)
	return merged
}

// LastIndex returns the highest index at which search occurs in data, or -1.
// It returns -1 when search is empty or longer than data.
func LastIndex(data, search []byte) int {
	if len(search) == 0 || len(search) > len(data) {
		return -1
	}
	return bytes.LastIndex(data, search)
}

// Index returns the lowest index >= from at which search occurs in data,
// or -1. A negative from is treated as 0.
func Index(data, search []byte, from int) int {
	if from < 0 {
		from = 0
	}
	if len(search) == 0 || from > len(data)-len(search) {
		return -1
	}

	i := bytes.Index(data[from:], search)
	if i == -1 {
		return -1
	}
	return from + i
}

// SplitLines splits data after each occurrence of sep. Every segment but the
// last ends with sep; the remainder after the final separator is included
// only when non-empty. Segments share data's backing array.
func SplitLines(data, sep []byte) [][]byte {
	if len(sep) == 0 {
		if len(data) == 0 {
			return [][]byte{}
		}
		return [][]byte{data}
	}

	lines := make([][]byte, 0, bytes.Count(data, sep)+1)
	start := 0

	for start < len(data) {
		idx := Index(data, sep, start)
		if idx == -1 {
			lines = append(lines, data[start:len(data):len(data)])
			break
		}
		end := idx + len(sep)
		lines = append(lines, data[start:end:end])
		start = end
	}

	return lines
}
