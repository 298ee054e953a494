package byteseq

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcat(t *testing.T) {
	t.Run("regular two slices", func(t *testing.T) {
		left := []byte{1, 2, 3}
		right := []byte{4, 5, 6}

		assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, Concat(left, right))
		assert.Equal(t, []byte{1, 2, 3}, left, "left must not be mutated")
		assert.Equal(t, []byte{4, 5, 6}, right, "right must not be mutated")
	})

	t.Run("left is empty returns right as-is", func(t *testing.T) {
		right := []byte{4, 5, 6}
		out := Concat(nil, right)
		require.Len(t, out, 3)
		assert.Same(t, &right[0], &out[0])
	})

	t.Run("right is empty returns left as-is", func(t *testing.T) {
		left := []byte{1, 2, 3}
		out := Concat(left, []byte{})
		require.Len(t, out, 3)
		assert.Same(t, &left[0], &out[0])
	})

	t.Run("both empty returns new empty slice", func(t *testing.T) {
		out := Concat(nil, nil)
		assert.NotNil(t, out)
		assert.Len(t, out, 0)
	})

	t.Run("result does not alias inputs", func(t *testing.T) {
		left := []byte("ab")
		right := []byte("cd")
		out := Concat(left, right)
		out[0] = 'x'
		out[3] = 'y'
		assert.Equal(t, "ab", string(left))
		assert.Equal(t, "cd", string(right))
	})
}

func TestLastIndex(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6}

	tests := []struct {
		name   string
		search []byte
		want   int
	}{
		{"first byte", []byte{1}, 0},
		{"prefix", []byte{1, 2, 3}, 0},
		{"last byte", []byte{6}, 5},
		{"overruns end", []byte{6, 7, 8}, -1},
		{"middle", []byte{3, 4, 5}, 2},
		{"middle to end", []byte{3, 4, 5, 6}, 2},
		{"partial match rejected", []byte{3, 4, 5, 7}, -1},
		{"pair", []byte{3, 4}, 2},
		{"single", []byte{3}, 2},
		{"non-contiguous", []byte{3, 5}, -1},
		{"absent", []byte{7}, -1},
		{"tail overrun", []byte{4, 5, 6, 7}, -1},
		{"longer than data", []byte{1, 2, 3, 4, 5, 6, 7}, -1},
		{"whole", []byte{1, 2, 3, 4, 5, 6}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LastIndex(data, tt.search))
		})
	}

	t.Run("picks highest of several", func(t *testing.T) {
		assert.Equal(t, 7, LastIndex([]byte("foo\nbar\nbaz"), []byte("\n")))
		assert.Equal(t, 8, LastIndex([]byte("foo\r\nbar\r\n"), []byte("\r\n")))
	})

	t.Run("overlapping candidates", func(t *testing.T) {
		assert.Equal(t, 2, LastIndex([]byte("aaaa"), []byte("aa")))
	})

	t.Run("empty inputs", func(t *testing.T) {
		fill := []byte{1, 2, 3}
		assert.Equal(t, -1, LastIndex(fill, nil))
		assert.Equal(t, -1, LastIndex(nil, fill))
		assert.Equal(t, -1, LastIndex(nil, nil))
	})
}

func TestIndex(t *testing.T) {
	data := []byte("foo\nbar\nbaz")
	sep := []byte("\n")

	assert.Equal(t, 3, Index(data, sep, 0))
	assert.Equal(t, 3, Index(data, sep, 3))
	assert.Equal(t, 7, Index(data, sep, 4))
	assert.Equal(t, -1, Index(data, sep, 8))
	assert.Equal(t, -1, Index(data, sep, len(data)))
	assert.Equal(t, -1, Index(data, sep, len(data)+5))
	assert.Equal(t, 3, Index(data, sep, -2))
	assert.Equal(t, -1, Index(data, nil, 0))
	assert.Equal(t, -1, Index(nil, sep, 0))
	assert.Equal(t, 1, Index([]byte("a\r\nb"), []byte("\r\n"), 0))
	assert.Equal(t, -1, Index([]byte("a\r\nb"), []byte("\r\n"), 2))
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name string
		data string
		sep  string
		want []string
	}{
		{"terminated lines", "foo\nbar\n", "\n", []string{"foo\n", "bar\n"}},
		{"dangling fragment", "foo\nbar\nbaz", "\n", []string{"foo\n", "bar\n", "baz"}},
		{"no separator", "foo", "\n", []string{"foo"}},
		{"leading separator", "\nfoo\n", "\n", []string{"\n", "foo\n"}},
		{"only separators", "\n\n", "\n", []string{"\n", "\n"}},
		{"empty data", "", "\n", []string{}},
		{"multi-byte", "a\r\nb\r\nc", "\r\n", []string{"a\r\n", "b\r\n", "c"}},
		{"lone carriage return kept", "a\rb\r\n", "\r\n", []string{"a\rb\r\n"}},
		{"empty separator", "abc", "", []string{"abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitLines([]byte(tt.data), []byte(tt.sep))
			strs := make([]string, len(got))
			for i, seg := range got {
				strs[i] = string(seg)
			}
			assert.Equal(t, tt.want, strs)
			assert.Equal(t, tt.data, string(bytes.Join(got, nil)), "segments must reproduce input")
		})
	}

	t.Run("segments cannot grow into each other", func(t *testing.T) {
		data := []byte("a\nb\n")
		got := SplitLines(data, []byte("\n"))
		require.Len(t, got, 2)
		_ = append(got[0], 'X')
		assert.Equal(t, "a\nb\n", string(data))
	})
}
